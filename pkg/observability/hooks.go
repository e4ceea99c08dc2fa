package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/questgraph/pkg/domain"
)

// Combine merges hook sets. Each callback runs the non-nil callbacks of the
// given sets in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnStart = chain(out.OnStart, h.OnStart)
		out.OnStateEnter = chain(out.OnStateEnter, h.OnStateEnter)
		out.OnStateLeave = chain(out.OnStateLeave, h.OnStateLeave)
		out.OnObserve = chain(out.OnObserve, h.OnObserve)
		out.OnFinish = chain(out.OnFinish, h.OnFinish)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}

// LogHooks writes every lifecycle event to logger at debug level, and
// finishes at info.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStart: func(ctx context.Context, e *domain.LifecycleEvent) {
			logger.DebugContext(ctx, "instance_start", "quest", e.Quest, "instance", e.InstanceID)
		},
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_enter", "quest", e.Quest, "instance", e.InstanceID, "node", e.NodeID, "kind", e.Kind)
		},
		OnStateLeave: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_leave", "quest", e.Quest, "instance", e.InstanceID, "node", e.NodeID)
		},
		OnObserve: func(ctx context.Context, e *domain.ObserveEvent) {
			logger.DebugContext(ctx, "observe", "quest", e.Quest, "instance", e.InstanceID,
				"predicate", e.Predicate, "value", e.Value.String(), "known", e.Known)
		},
		OnFinish: func(ctx context.Context, e *domain.LifecycleEvent) {
			logger.InfoContext(ctx, "instance_end", "quest", e.Quest, "instance", e.InstanceID, "status", e.Status)
		},
	}
}
