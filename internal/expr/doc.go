// Package expr lowers authored conditions into predicate trees and flattens
// them into the condition table of a compiled machine.
//
// Conditions use HCL expression syntax restricted to predicate references,
// scalar literals, comparisons and the logical operators:
//
//	player.has_key && (kills >= 3 || faction == "guild")
package expr
