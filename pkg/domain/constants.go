package domain

// Config keys understood by the compiler. Unknown keys are kept as opaque payload.
const (
	ConfigTitle       = "title"
	ConfigDescription = "description"
	ConfigMilestone   = "milestone"
	ConfigMaxRepeats  = "max_repeats"
	ConfigWhen        = "when"
	ConfigOptional    = "optional"
	ConfigTargets     = "targets"
	ConfigCases       = "cases"
	ConfigJoin        = "join"
	ConfigAction      = "action"
	ConfigParams      = "params"
	ConfigRefs        = "refs"
	ConfigOutcome     = "outcome"
)

// JoinPolicy decides when a gate with several incoming paths opens.
type JoinPolicy string

const (
	// JoinNone is used by states with at most one incoming path.
	JoinNone JoinPolicy = ""
	// JoinAnd opens once every required incoming path has arrived.
	JoinAnd JoinPolicy = "and"
	// JoinOr opens on any arrival.
	JoinOr JoinPolicy = "or"
	// JoinFirst opens on the first arrival and ignores the rest for good.
	JoinFirst JoinPolicy = "first"
)

// Valid reports whether p names a join a gate can declare.
func (p JoinPolicy) Valid() bool {
	switch p {
	case JoinAnd, JoinOr, JoinFirst:
		return true
	}
	return false
}

// TerminalOutcome is the result carried by a terminal node.
type TerminalOutcome string

const (
	OutcomeNone    TerminalOutcome = ""
	OutcomeSuccess TerminalOutcome = "success"
	OutcomeFailure TerminalOutcome = "failure"
)
