package retry

import (
	"context"
	"fmt"

	"workhorse/internal/job"
	"workhorse/internal/metrics"
	"workhorse/internal/middleware"
)

// Backtracer is implemented by handler errors that can report a call
// stack. Errors that don't implement it are recorded with no frames.
type Backtracer interface {
	Backtrace() []string
}

// StoreError wraps a Redis failure encountered while writing retry or
// dead-letter bookkeeping. It is returned by Entry in place of the
// original handler error, because the job is now lost either way and
// the Processor needs a signal it can tell apart from an ordinary,
// already-handled job failure. Fatal reports true so the Processor
// treats it as an involuntary death rather than logging and moving on.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("retry: store write failed: %v", e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }
func (e *StoreError) Fatal() bool   { return true }

// Middleware wraps the handler-dispatch terminal and implements the
// retry/morgue decision algorithm on failure.
type Middleware struct {
	store   Store
	clock   Clock
	rng     RNG
	metrics *metrics.Collector
}

func New(store Store, clock Clock, rng RNG, collector *metrics.Collector) *Middleware {
	return &Middleware{store: store, clock: clock, rng: rng, metrics: collector}
}

// Entry returns the chain EntryFunc for registration under the "retry" name.
func (m *Middleware) Entry() middleware.EntryFunc {
	return func(ctx context.Context, j *job.Job, next middleware.Next) error {
		err := next(ctx, j)
		if err == nil {
			return nil
		}

		max := j.Retry.MaxRetries()
		if max == 0 {
			return err
		}

		j.ErrorMessage = err.Error()
		j.ErrorClass = errorClassName(err)

		now := m.clock.Now()
		var count int
		if j.RetryCount == nil {
			j.FailedAt = &now
			count = 0
		} else {
			j.RetriedAt = &now
			count = *j.RetryCount + 1
		}
		j.RetryCount = &count

		if tcount := j.Backtrace.MaxBacktrace(); tcount > 0 {
			if bt, ok := err.(Backtracer); ok {
				frames := bt.Backtrace()
				if len(frames) > tcount {
					frames = frames[:tcount]
				}
				j.ErrorBacktrace = frames
			}
		}

		if syncErr := j.SyncBookkeepingFields(); syncErr != nil {
			return err
		}

		if count < max {
			delaySeconds := backoffSeconds(count, m.rng)
			retryAt := now + delaySeconds
			payload, encErr := j.Encode()
			if encErr != nil {
				return err
			}
			if writeErr := m.store.ScheduleRetry(ctx, retryAt, payload); writeErr != nil {
				return &StoreError{Err: writeErr}
			}
			if m.metrics != nil {
				m.metrics.IncRetried()
			}
			return err
		}

		if storeErr := m.retriesExhausted(ctx, j, now); storeErr != nil {
			return storeErr
		}
		return err
	}
}

// retriesExhausted implements send_to_morgue, returning a *StoreError
// (never the suppressed no-op) so the caller can distinguish an actual
// Redis failure from the job.dead == false suppression.
func (m *Middleware) retriesExhausted(ctx context.Context, j *job.Job, now float64) error {
	if j.Dead != nil && !*j.Dead {
		return nil
	}
	payload, err := j.Encode()
	if err != nil {
		return nil
	}
	if writeErr := m.store.SendToMorgue(ctx, now, payload); writeErr != nil {
		return &StoreError{Err: writeErr}
	}
	if m.metrics != nil {
		m.metrics.IncDead()
	}
	return nil
}

// backoffSeconds implements count**4 + 15 + rand(30)*(count+1).
func backoffSeconds(count int, rng RNG) float64 {
	c := float64(count)
	return c*c*c*c + 15 + float64(rng.Intn(30))*float64(count+1)
}

func errorClassName(err error) string {
	type classNamed interface {
		ClassName() string
	}
	if cn, ok := err.(classNamed); ok {
		return cn.ClassName()
	}
	return "error"
}
