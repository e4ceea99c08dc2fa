// Package compiler turns a validated quest document into an immutable,
// index-based machine.
//
// Nodes get dense indices in insertion order, conditions are flattened into
// one shared table, join layouts are fixed per gate and action parameters are
// bound. The machine id is the quest name plus a fingerprint of the canonical
// encoding, so recompiling an unchanged document yields the same bytes and id.
package compiler
