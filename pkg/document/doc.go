// Package document is the mutable authoring model of a quest graph.
//
// A Document holds nodes with typed pins, the edges between them, and each
// node's configuration payload. Mutations are checked one at a time for local
// consistency (existence, uniqueness, pin direction and type, duplicate edges,
// fan-in) and rejected with a *domain.StructuralError without side effects.
// Whole-graph rules such as reachability and cycles are left to the validator,
// which consumes the immutable Snapshot.
//
// The YAML authoring format is read and written by Decode and Encode.
package document
