/*
Package observability turns executor lifecycle hooks into Prometheus metrics
and structured log lines.

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Combine(metrics.Hooks(), observability.LogHooks(logger))
	exec := runtime.NewExecutor(reg, sessions, runtime.WithLifecycleHooks(hooks))
*/
package observability
