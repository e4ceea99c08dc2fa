package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
)

// Mask replaces redacted predicate values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.InstanceStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks observed values whose
// predicate id matches one of the patterns. Records are re-encoded in the
// format they arrived in.
//
// Masked values are lost on reload, so patterns must only match predicates
// no condition reads, such as player contact details kept for audit.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pii pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.InstanceStore) ports.InstanceStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, instanceID string, data []byte) error {
	format := codec.Detect(data)
	state, err := codec.DecodeInstance(data, format)
	if err != nil {
		return fmt.Errorf("pii: %w", err)
	}
	if !m.mask(state) {
		return m.next.Save(ctx, instanceID, data)
	}
	masked, err := codec.EncodeInstance(state, format)
	if err != nil {
		return fmt.Errorf("pii: %w", err)
	}
	return m.next.Save(ctx, instanceID, masked)
}

// mask edits the decoded copy in place and reports whether anything matched.
func (m *piiMiddleware) mask(state *domain.InstanceState) bool {
	changed := false
	for pred := range state.Observed {
		for _, p := range m.patterns {
			if p.MatchString(pred) {
				state.Observed[pred] = domain.String(Mask)
				changed = true
				break
			}
		}
	}
	return changed
}

func (m *piiMiddleware) Load(ctx context.Context, instanceID string) ([]byte, error) {
	return m.next.Load(ctx, instanceID)
}

func (m *piiMiddleware) Delete(ctx context.Context, instanceID string) error {
	return m.next.Delete(ctx, instanceID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
