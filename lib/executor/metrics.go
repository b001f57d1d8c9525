package executor

import "github.com/VictoriaMetrics/metrics"

// --------------------------------------------------------------------------
// Metrics (exported with metrics.WritePrometheus)
// --------------------------------------------------------------------------

var (
	unitsOK         = metrics.NewCounter(`dshard_executor_units_total{result="ok"}`)
	unitsIgnored    = metrics.NewCounter(`dshard_executor_units_total{result="ignored"}`)
	unitsFatal      = metrics.NewCounter(`dshard_executor_units_total{result="fatal"}`)
	groupsSkipped   = metrics.NewCounter(`dshard_executor_groups_skipped_total`)
	executeDuration = metrics.NewHistogram(`dshard_executor_execute_duration_seconds`)
)
