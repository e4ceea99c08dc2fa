/*
Package domain contains the core models shared by every questgraph component.

It defines the authoring graph (Node, Pin, Edge), the compiled Machine, and the
persistable InstanceState. The package is kept pure and free of I/O so that
the document model, compiler, runtime, and adapters can all depend on it.

# Key Entities

  - Node: a unit of quest logic (objective, branch, gate, action, terminal) with typed pins.
  - Edge: a connection from an output pin to an input pin.
  - Machine: the dense, immutable state machine produced by the compiler.
  - InstanceState: the live progress of one player through one Machine.
  - Outcome: the report returned by every runtime call.
*/
package domain
