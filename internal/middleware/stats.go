package middleware

import (
	"context"
	"time"

	"workhorse/internal/job"
	"workhorse/internal/metrics"
)

// StatsEntry feeds the Metrics Collector with success/failure counts and
// processing latency. It never changes the outcome of the chain.
func StatsEntry(collector *metrics.Collector) EntryFunc {
	return func(ctx context.Context, j *job.Job, next Next) error {
		start := time.Now()
		err := next(ctx, j)
		elapsed := time.Since(start).Seconds()
		if err != nil {
			collector.ObserveFailure(elapsed)
			return err
		}
		collector.ObserveSuccess(elapsed)
		return nil
	}
}
