package schema

import "github.com/aretw0/questgraph/pkg/domain"

var common = Schema{
	domain.ConfigTitle:      Optional(String()),
	domain.ConfigMilestone:  Optional(Bool()),
	domain.ConfigMaxRepeats: Optional(Int()),
}

var kinds = map[domain.NodeKind]Schema{
	domain.KindObjective: {
		domain.ConfigWhen:     Expr(),
		domain.ConfigOptional: Optional(Bool()),
		domain.ConfigTargets:  Optional(Slice(Symbol())),
	},
	domain.KindBranch: {
		domain.ConfigCases: Map(Expr()),
	},
	domain.KindGate: {
		domain.ConfigJoin: Enum(string(domain.JoinAnd), string(domain.JoinOr), string(domain.JoinFirst)),
		domain.ConfigWhen: Optional(Expr()),
	},
	domain.KindAction: {
		domain.ConfigAction: String(),
		domain.ConfigParams: Optional(Map(Custom("scalar", scalar))),
		domain.ConfigRefs:   Optional(Slice(Symbol())),
	},
	domain.KindTerminal: {
		domain.ConfigOutcome: Enum(string(domain.OutcomeSuccess), string(domain.OutcomeFailure)),
	},
}

// ForKind returns the payload schema of a node kind, including the fields
// every kind accepts. Unknown kinds get the common fields only.
func ForKind(kind domain.NodeKind) Schema {
	out := make(Schema, len(common)+4)
	for k, v := range common {
		out[k] = v
	}
	for k, v := range kinds[kind] {
		out[k] = v
	}
	return out
}

func scalar(v any) error {
	_, err := domain.ValueOf(v)
	return err
}
