package middleware

import (
	"context"
	"log/slog"
	"time"

	"workhorse/internal/job"
)

// LoggerEntry logs the start, successful completion, or failure of a
// job. It never swallows the error returned by the rest of the chain.
func LoggerEntry(log *slog.Logger) EntryFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, j *job.Job, next Next) error {
		start := time.Now()
		log.Info("job start", "jid", j.JID, "klass", j.Klass, "queue", j.Queue)
		err := next(ctx, j)
		elapsed := time.Since(start)
		if err != nil {
			log.Warn("job fail", "jid", j.JID, "klass", j.Klass, "queue", j.Queue, "elapsed", elapsed, "err", err)
			return err
		}
		log.Info("job done", "jid", j.JID, "klass", j.Klass, "queue", j.Queue, "elapsed", elapsed)
		return nil
	}
}
