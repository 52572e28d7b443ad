// Package processor runs the fetch/dispatch/execute loop: ask the
// Fetcher for a job, decode it, invoke the Middleware Chain around the
// handler-dispatch terminal, and report outcomes to the Controller.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"workhorse/internal/fetch"
	"workhorse/internal/job"
	"workhorse/internal/middleware"
)

// fatalError is satisfied by a handler-chain error that signals an
// infrastructure failure rather than an ordinary, already-handled job
// failure. retry.StoreError implements it; Processor never imports the
// retry package, it only matches against this local contract.
type fatalError interface {
	Fatal() bool
}

func isFatal(err error) bool {
	var fe fatalError
	return errors.As(err, &fe) && fe.Fatal()
}

// State is the Processor's observable lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopping
	Stopped
	Died
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Died:
		return "died"
	default:
		return "unknown"
	}
}

// Controller is the subset of the Server Controller a Processor reports
// to. Processor never holds a direct reference to the concrete server
// type, only this contract, so the two packages can be tested apart.
type Controller interface {
	ProcessorStopped(p *Processor)
	ProcessorDied(p *Processor, cause error) *Processor
}

// Config bundles everything a Processor needs to run independently of
// the Controller that supervises it. Terminal is the handler-dispatch
// function the Middleware Chain wraps, typed as middleware.Next so it
// can be passed straight to Chain.Invoke.
type Config struct {
	Fetcher      fetch.Fetcher
	Chain        *middleware.Chain
	Terminal     middleware.Next
	Queues       []string
	FetchTimeout time.Duration
	Log          *slog.Logger
}

// Processor executes one job at a time to completion, then loops,
// until it observes shutdown, suffers a panic, or hits a fetch or fatal
// chain error.
type Processor struct {
	id     int
	cfg    Config
	log    *slog.Logger
	ctrl   Controller
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	stopRequested bool
}

func New(id int, cfg Config, ctrl Controller) *Processor {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Processor{id: id, cfg: cfg, log: log.With("processor", id), ctrl: ctrl, state: Idle}
}

func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Processor) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run blocks, executing the fetch/dispatch loop, until ctx is canceled
// or the Processor dies. It reports exactly one outcome to the
// Controller: Stopped on graceful shutdown, Died on a recovered panic,
// a fetch error, or a fatal error from the middleware chain.
func (p *Processor) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	if p.stopRequested {
		cancel()
	}
	p.mu.Unlock()
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.setState(Died)
			p.log.Error("processor died", "panic", r)
			p.ctrl.ProcessorDied(p, fmt.Errorf("processor: panic: %v", r))
			return
		}
	}()

	for {
		select {
		case <-runCtx.Done():
			p.setState(Stopped)
			p.ctrl.ProcessorStopped(p)
			return
		default:
		}

		p.setState(Idle)
		queue, payload, ok, err := p.cfg.Fetcher.Fetch(runCtx, p.cfg.Queues, p.cfg.FetchTimeout)
		if err != nil {
			p.setState(Died)
			p.log.Error("fetch failed", "error", err)
			p.ctrl.ProcessorDied(p, err)
			return
		}
		if !ok {
			continue
		}

		p.setState(Running)
		if fatalErr := p.processOne(runCtx, queue, payload); fatalErr != nil {
			p.setState(Died)
			p.log.Error("processor died", "error", fatalErr)
			p.ctrl.ProcessorDied(p, fatalErr)
			return
		}
	}
}

// processOne decodes and dispatches one job. It returns a non-nil error
// only when the middleware chain reports a fatal infrastructure error
// (e.g. a failed retry/morgue write); an ordinary handled job failure is
// logged here and never propagated, since the middleware chain has
// already recorded it.
func (p *Processor) processOne(ctx context.Context, queue string, payload []byte) error {
	j, err := job.Decode(payload)
	if err != nil {
		p.log.Warn("discarding malformed payload", "queue", queue, "error", err)
		return nil
	}

	if err := p.cfg.Chain.Invoke(ctx, j, p.cfg.Terminal); err != nil {
		if isFatal(err) {
			return err
		}
		p.log.Debug("job execution returned error", "jid", j.JID, "klass", j.Klass, "error", err)
	}
	return nil
}

// RequestStop cancels this Processor's run context so the next loop
// iteration observes shutdown at its next idle boundary. If Run has not
// stored its context yet, Run cancels it as soon as it does.
func (p *Processor) RequestStop() {
	p.mu.Lock()
	p.state = Stopping
	p.stopRequested = true
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
