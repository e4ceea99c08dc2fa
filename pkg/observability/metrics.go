package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records executor activity as Prometheus series labelled by quest.
type Metrics struct {
	started      *prometheus.CounterVec
	finished     *prometheus.CounterVec
	running      *prometheus.GaugeVec
	entries      *prometheus.CounterVec
	observations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "questgraph_instances_started_total",
			Help: "Instances that left Pending.",
		}, []string{"quest"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "questgraph_instances_finished_total",
			Help: "Instances that reached a final status.",
		}, []string{"quest", "status"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "questgraph_instances_running",
			Help: "Instances started and not yet final.",
		}, []string{"quest"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "questgraph_state_entries_total",
			Help: "States entered, by node.",
		}, []string{"quest", "node"}),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "questgraph_observations_total",
			Help: "Predicate values fed to instances.",
		}, []string{"quest", "known"}),
	}
	for _, c := range []prometheus.Collector{m.started, m.finished, m.running, m.entries, m.observations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that update the collectors.
// Hooks also fire for calls that are later rolled back, so counts are an
// upper bound when the cascade limit is hit.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStart: func(_ context.Context, e *domain.LifecycleEvent) {
			m.started.WithLabelValues(e.Quest).Inc()
			m.running.WithLabelValues(e.Quest).Inc()
		},
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			m.entries.WithLabelValues(e.Quest, e.NodeID).Inc()
		},
		OnObserve: func(_ context.Context, e *domain.ObserveEvent) {
			m.observations.WithLabelValues(e.Quest, strconv.FormatBool(e.Known)).Inc()
		},
		OnFinish: func(_ context.Context, e *domain.LifecycleEvent) {
			m.finished.WithLabelValues(e.Quest, string(e.Status)).Inc()
			m.running.WithLabelValues(e.Quest).Dec()
		},
	}
}
