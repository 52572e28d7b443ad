package middleware

import (
	"log/slog"

	"workhorse/internal/metrics"
)

// NewDefaultChain builds the three entries every server starts with:
// logging, stats/instrumentation, and (appended separately by the
// caller, which owns the Redis-backed Store) the Retry entry. Keeping
// Retry's construction out of this function avoids a dependency from
// middleware on the retry package's Redis wiring.
func NewDefaultChain(log *slog.Logger, collector *metrics.Collector) *Chain {
	c := NewChain()
	c.Add("logger", LoggerEntry(log))
	c.Add("stats", StatsEntry(collector))
	return c
}
