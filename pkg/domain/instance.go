package domain

import "sort"

// Status is the lifecycle state of a quest instance.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// Final reports whether no further transition is possible.
func (s Status) Final() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// InstanceState is the persistable snapshot of one quest instance.
// It references its machine by id and never embeds it.
type InstanceState struct {
	ID           string `json:"id" msgpack:"id"`
	DefinitionID string `json:"definition_id" msgpack:"definition_id"`
	Status       Status `json:"status" msgpack:"status"`

	// Active is the sorted set of active state indices.
	Active []int `json:"active" msgpack:"active"`
	// History lists entered state indices in order.
	History []int `json:"history" msgpack:"history"`
	// Observed holds the last value seen for each known predicate.
	Observed map[string]Value `json:"observed" msgpack:"observed"`

	// Joins maps a gate index to its arrival counters, one slot per incoming transition.
	Joins map[int][]int `json:"joins" msgpack:"joins"`
	// Locked lists first-wins gates that already opened.
	Locked []int `json:"locked" msgpack:"locked"`
	// Visits counts entries of states that declare a repeat bound.
	Visits map[int]int `json:"visits" msgpack:"visits"`
	// Interrupted lists states dropped from the active set by an interrupt.
	Interrupted []int `json:"interrupted" msgpack:"interrupted"`
}

// NewInstanceState creates a pending instance of the given definition.
func NewInstanceState(id, definitionID string) *InstanceState {
	return &InstanceState{
		ID:           id,
		DefinitionID: definitionID,
		Status:       StatusPending,
	}
}

// IsActive reports whether state index i is in the active set.
func (s *InstanceState) IsActive(i int) bool {
	j := sort.SearchInts(s.Active, i)
	return j < len(s.Active) && s.Active[j] == i
}

// Clone returns a deep copy.
func (s *InstanceState) Clone() *InstanceState {
	out := *s
	out.Active = cloneInts(s.Active)
	out.History = cloneInts(s.History)
	out.Locked = cloneInts(s.Locked)
	out.Interrupted = cloneInts(s.Interrupted)
	if s.Observed != nil {
		out.Observed = make(map[string]Value, len(s.Observed))
		for k, v := range s.Observed {
			out.Observed[k] = v
		}
	}
	if s.Joins != nil {
		out.Joins = make(map[int][]int, len(s.Joins))
		for k, v := range s.Joins {
			out.Joins[k] = cloneInts(v)
		}
	}
	if s.Visits != nil {
		out.Visits = make(map[int]int, len(s.Visits))
		for k, v := range s.Visits {
			out.Visits[k] = v
		}
	}
	return &out
}

func cloneInts(s []int) []int {
	if s == nil {
		return nil
	}
	return append(make([]int, 0, len(s)), s...)
}

// ActionRequest asks the host to perform the side effect of an action state.
type ActionRequest struct {
	NodeID string           `json:"node_id"`
	Name   string           `json:"name"`
	Params map[string]Value `json:"params,omitempty"`
}

// Outcome is what every runtime call reports back.
type Outcome struct {
	InstanceID string `json:"instance_id"`
	Status     Status `json:"status"`
	// Entered lists milestone and terminal node ids entered during the call.
	Entered []string        `json:"entered,omitempty"`
	Actions []ActionRequest `json:"actions,omitempty"`
}
