// Package cli builds the Cobra command tree for the workhorse binary:
// a run command that starts the server and ops HTTP surface, and a
// version command.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"workhorse/internal/config"
	"workhorse/internal/fetch"
	"workhorse/internal/handler"
	"workhorse/internal/httpapi"
	"workhorse/internal/metrics"
	"workhorse/internal/redisconn"
	"workhorse/internal/retry"
	"workhorse/internal/server"
	"workhorse/internal/store"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// BuildRoot assembles the root command. handlers lets callers register
// job handlers before Execute runs; a demo binary can pass a populated
// registry, a test can pass an empty one.
func BuildRoot(handlers *handler.Registry) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "workhorse",
		Short:   "A Redis-backed background job processor",
		Version: Version,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config YAML")

	root.AddCommand(buildRunCommand(&configPath, handlers))
	root.AddCommand(buildVersionCommand())

	return root
}

func buildVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return nil
		},
	}
}

func buildRunCommand(configPath *string, handlers *handler.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the server and ops HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), *configPath, handlers)
		},
	}
}

// Run loads configuration, wires the server, and blocks until SIGINT
// or SIGTERM triggers a graceful shutdown.
func Run(ctx context.Context, configPath string, handlers *handler.Registry) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("cli: load config: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel()),
	}))

	client, err := redisconn.NewClient(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("cli: connect redis: %w", err)
	}
	defer client.Close()

	collector := metrics.New()

	fetcher := fetch.NewRedisFetcher(fetch.NewRedisQueueClient(client), nil)
	retryStore := retry.NewRedisStore(client)
	introspection := store.New(client)

	srv := server.New(server.Config{
		Concurrency:  cfg.Server.Concurrency,
		Queues:       cfg.Server.Queues,
		FetchTimeout: cfg.Server.FetchTimeout,
		Fetcher:      fetcher,
		Handlers:     handlers,
		RetryStore:   retryStore,
		Clock:        retry.SystemClock,
		RNG:          retry.NewMathRandRNG(time.Now().UnixNano()),
		Metrics:      collector,
		Log:          log,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	srv.Start(runCtx)

	var httpServer *http.Server
	if cfg.Metrics.Enabled {
		ops := httpapi.New(introspection, srv, cfg.Server.Queues, collector)
		httpServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: ops.Handler()}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("ops http server failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case <-ctx.Done():
	}

	srv.RequestStop()
	cancel()
	srv.Wait()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}

	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
