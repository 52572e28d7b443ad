// Package server implements the Server Controller: it owns the
// Middleware Chain, spawns and supervises the Processor pool, and
// coordinates graceful shutdown.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"workhorse/internal/fetch"
	"workhorse/internal/handler"
	"workhorse/internal/metrics"
	"workhorse/internal/middleware"
	"workhorse/internal/processor"
	"workhorse/internal/retry"
)

// Config configures a Server at construction time. Concurrency is the
// number of Processors kept alive.
type Config struct {
	Concurrency  int
	Queues       []string
	FetchTimeout time.Duration
	Fetcher      fetch.Fetcher
	Handlers     *handler.Registry
	RetryStore   retry.Store
	Clock        retry.Clock
	RNG          retry.RNG
	Metrics      *metrics.Collector
	Log          *slog.Logger
}

// Server is the Controller. It satisfies processor.Controller.
type Server struct {
	cfg   Config
	log   *slog.Logger
	chain *middleware.Chain

	mu   sync.Mutex
	wg   sync.WaitGroup
	set  map[*processor.Processor]struct{}
	stop bool
	next int
	ctx  context.Context
}

func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	chain := middleware.NewDefaultChain(log, cfg.Metrics)
	retryMw := retry.New(cfg.RetryStore, cfg.Clock, cfg.RNG, cfg.Metrics)
	chain.Add("retry", retryMw.Entry())

	return &Server{
		cfg:   cfg,
		log:   log,
		chain: chain,
		set:   make(map[*processor.Processor]struct{}),
		ctx:   context.Background(),
	}
}

// Middleware exposes the chain every Processor shares read-only.
func (s *Server) Middleware() *middleware.Chain {
	return s.chain
}

// Start spawns Concurrency Processors. It does not block; call Wait to
// block until every Processor has exited.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	for i := 0; i < s.cfg.Concurrency; i++ {
		s.spawnLocked(ctx)
	}
}

// Wait blocks until every Processor has exited.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) spawnLocked(ctx context.Context) *processor.Processor {
	s.next++
	p := processor.New(s.next, processor.Config{
		Fetcher:      s.cfg.Fetcher,
		Chain:        s.chain,
		Terminal:     s.cfg.Handlers.Dispatch,
		Queues:       s.cfg.Queues,
		FetchTimeout: s.cfg.FetchTimeout,
		Log:          s.log,
	}, s)
	s.set[p] = struct{}{}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p.Run(ctx)
	}()
	return p
}

// Processors returns the current set of live Processors.
func (s *Server) Processors() []*processor.Processor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*processor.Processor, 0, len(s.set))
	for p := range s.set {
		out = append(out, p)
	}
	return out
}

// RequestStop is idempotent and transitions the server into stopping
// state, asking every live Processor to exit at its next idle boundary.
func (s *Server) RequestStop() {
	s.mu.Lock()
	s.stop = true
	procs := make([]*processor.Processor, 0, len(s.set))
	for p := range s.set {
		procs = append(procs, p)
	}
	s.mu.Unlock()

	for _, p := range procs {
		p.RequestStop()
	}
}

func (s *Server) Stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop
}

// ProcessorStopped records a voluntary exit. The processor is removed
// from the live set and never replaced.
func (s *Server) ProcessorStopped(p *processor.Processor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, p)
}

// ProcessorDied records an involuntary death. If the server is not
// stopping, a replacement is spawned and returned; otherwise the dead
// processor is simply removed and nil is returned. A nil p with an
// empty set is treated as "spawn initial processor".
func (s *Server) ProcessorDied(p *processor.Processor, cause error) *processor.Processor {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p != nil {
		delete(s.set, p)
	}
	if cause != nil {
		s.log.Warn("processor died", "cause", cause)
	}

	if s.stop {
		return nil
	}

	return s.spawnLocked(s.ctx)
}
