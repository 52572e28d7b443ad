package main

import (
	"context"
	"log/slog"

	"workhorse/internal/handler"
	"workhorse/internal/job"
)

// registerDemoHandlers wires a toy Echo handler so `workhorse run`
// does something observable out of the box. Real deployments register
// their own handlers from a separate entrypoint that imports this
// module as a library.
func registerDemoHandlers(registry *handler.Registry) {
	registry.Register("Echo", func(ctx context.Context, j *job.Job) error {
		slog.InfoContext(ctx, "echo", "jid", j.JID, "args", len(j.Args))
		return nil
	})
}
