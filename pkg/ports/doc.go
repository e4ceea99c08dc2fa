/*
Package ports defines the driven ports (interfaces) of questgraph.

These interfaces decouple the core from external implementations, allowing
the executor to work with various storage backends and document sources.

# Key Interfaces

  - GraphSnapshot: immutable view of an authored document, consumed by the validator and compiler.
  - SymbolResolver: answers whether a gameplay symbol referenced by a node exists.
  - DefinitionRegistry: holds compiled machines by stable id.
  - InstanceStore: persists encoded instances.
  - DistributedLocker: coordinates single-writer access across replicas.
*/
package ports
