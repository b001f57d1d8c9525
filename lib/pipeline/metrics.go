package pipeline

import "github.com/VictoriaMetrics/metrics"

var (
	recordsPushed    = metrics.NewCounter(`dshard_pipeline_records_pushed_total`)
	recordsFetched   = metrics.NewCounter(`dshard_pipeline_records_fetched_total`)
	recordsAcked     = metrics.NewCounter(`dshard_pipeline_records_acked_total`)
	recordsDiscarded = metrics.NewCounter(`dshard_pipeline_records_discarded_total`)
)
