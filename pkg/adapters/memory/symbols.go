package memory

import "strings"

// Symbols is a fixed set of known gameplay symbols. It implements
// ports.SymbolResolver.
type Symbols map[string]struct{}

// NewSymbols creates a set from ids.
func NewSymbols(ids ...string) Symbols {
	s := make(Symbols, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Resolve reports whether id is in the set. An entry ending in ".*" matches
// every id below that prefix.
func (s Symbols) Resolve(id string) bool {
	if _, ok := s[id]; ok {
		return true
	}
	for k := range s {
		if prefix, ok := strings.CutSuffix(k, "*"); ok && strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}
