package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventInstanceStart EventType = "instance_start"
	EventStateEnter    EventType = "state_enter"
	EventStateLeave    EventType = "state_leave"
	EventObserve       EventType = "observe"
	EventInstanceEnd   EventType = "instance_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	InstanceID string    `json:"instance_id"`
	Quest      string    `json:"quest"`
}

// StateEvent reports a state entering or leaving the active set.
type StateEvent struct {
	EventBase
	NodeID string   `json:"node_id"`
	Kind   NodeKind `json:"kind"`
}

// ObserveEvent reports an incoming predicate value.
type ObserveEvent struct {
	EventBase
	Predicate string `json:"predicate"`
	Value     Value  `json:"value"`
	// Known is false when the definition never references the predicate.
	Known bool `json:"known"`
}

// LifecycleEvent reports a lifecycle change of an instance.
type LifecycleEvent struct {
	EventBase
	Status Status `json:"status"`
}

// LifecycleHooks defines callbacks for executor observability.
type LifecycleHooks struct {
	OnStart      func(context.Context, *LifecycleEvent)
	OnStateEnter func(context.Context, *StateEvent)
	OnStateLeave func(context.Context, *StateEvent)
	OnObserve    func(context.Context, *ObserveEvent)
	OnFinish     func(context.Context, *LifecycleEvent)
}
