// Package schema describes and checks node configuration payloads.
//
// Each node kind has a Schema mapping payload keys to types. Fields are
// required unless wrapped with Optional, and keys the schema does not name are
// kept as opaque payload:
//
//	s := schema.ForKind(domain.KindObjective)
//	err := schema.Validate(s, map[string]any{
//	    "when":    "wolves_killed >= 3",
//	    "targets": []any{"npc.hunter"},
//	})
//
// Expression and symbol fields are only checked for shape here. The validator
// parses expressions and resolves symbols against the host's resolver.
//
// Schemas can also be parsed from type strings:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "when":    "expression",
//	    "targets": "[symbol]?",
//	})
package schema
