// Package codec encodes compiled quest machines and instance state into
// versioned containers.
//
// Two layouts are supported: MessagePack for storage and JSON for tooling.
// Definitions carry a symbol table from node ids to state indices. Instances
// reference their definition by id and are resolved against a
// ports.DefinitionRegistry when decoded.
package codec
