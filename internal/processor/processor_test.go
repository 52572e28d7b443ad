package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workhorse/internal/job"
	"workhorse/internal/middleware"
)

type fakeFetcher struct {
	mu       sync.Mutex
	payloads [][]byte
	idx      int
}

func (f *fakeFetcher) Fetch(ctx context.Context, queues []string, timeout time.Duration) (string, []byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.payloads) {
		select {
		case <-ctx.Done():
			return "", nil, false, nil
		case <-time.After(5 * time.Millisecond):
			return "", nil, false, nil
		}
	}
	p := f.payloads[f.idx]
	f.idx++
	return "default", p, true, nil
}

type fakeController struct {
	mu      sync.Mutex
	stopped []*Processor
	died    []error
}

func (c *fakeController) ProcessorStopped(p *Processor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = append(c.stopped, p)
}

func (c *fakeController) ProcessorDied(p *Processor, cause error) *Processor {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.died = append(c.died, cause)
	return nil
}

func TestProcessorExecutesFetchedJobThroughChain(t *testing.T) {
	var handled []string
	var mu sync.Mutex
	terminal := func(ctx context.Context, j *job.Job) error {
		mu.Lock()
		handled = append(handled, j.JID)
		mu.Unlock()
		return nil
	}

	fetcher := &fakeFetcher{payloads: [][]byte{[]byte(`{"jid":"1","klass":"X","args":[]}`)}}
	ctrl := &fakeController{}
	p := New(1, Config{
		Fetcher:      fetcher,
		Chain:        middleware.NewChain(),
		Terminal:     terminal,
		Queues:       []string{"default"},
		FetchTimeout: 10 * time.Millisecond,
	}, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 1
	}, time.Second, time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, []string{"1"}, handled)
	assert.Len(t, ctrl.stopped, 1)
	assert.Empty(t, ctrl.died)
}

func TestProcessorDiscardsMalformedPayloadWithoutDying(t *testing.T) {
	fetcher := &fakeFetcher{payloads: [][]byte{[]byte(`not json`)}}
	ctrl := &fakeController{}
	p := New(1, Config{
		Fetcher:      fetcher,
		Chain:        middleware.NewChain(),
		Terminal:     func(ctx context.Context, j *job.Job) error { return nil },
		Queues:       []string{"default"},
		FetchTimeout: 10 * time.Millisecond,
	}, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Empty(t, ctrl.died)
	assert.Len(t, ctrl.stopped, 1)
}

func TestProcessorReportsDiedOnPanic(t *testing.T) {
	fetcher := &fakeFetcher{payloads: [][]byte{[]byte(`{"jid":"1","klass":"X","args":[]}`)}}
	ctrl := &fakeController{}
	p := New(1, Config{
		Fetcher: fetcher,
		Chain:   middleware.NewChain(),
		Terminal: func(ctx context.Context, j *job.Job) error {
			panic("handler exploded")
		},
		Queues:       []string{"default"},
		FetchTimeout: 10 * time.Millisecond,
	}, ctrl)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not exit after panic")
	}

	require.Len(t, ctrl.died, 1)
	assert.Empty(t, ctrl.stopped)
}

func TestProcessorFetchErrorReportsDied(t *testing.T) {
	ctrl := &fakeController{}
	erroringFetcher := erroringFetcherFunc(func(ctx context.Context, queues []string, timeout time.Duration) (string, []byte, bool, error) {
		return "", nil, false, errors.New("redis down")
	})
	p := New(1, Config{
		Fetcher:      erroringFetcher,
		Chain:        middleware.NewChain(),
		Terminal:     func(ctx context.Context, j *job.Job) error { return nil },
		Queues:       []string{"default"},
		FetchTimeout: 10 * time.Millisecond,
	}, ctrl)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not exit after fetch error")
	}

	require.Len(t, ctrl.died, 1)
}

type erroringFetcherFunc func(ctx context.Context, queues []string, timeout time.Duration) (string, []byte, bool, error)

func (f erroringFetcherFunc) Fetch(ctx context.Context, queues []string, timeout time.Duration) (string, []byte, bool, error) {
	return f(ctx, queues, timeout)
}

type fatalStoreError struct{}

func (fatalStoreError) Error() string { return "retry: store write failed: redis down" }
func (fatalStoreError) Fatal() bool   { return true }

func TestProcessorDiesOnFatalChainErrorInsteadOfLogging(t *testing.T) {
	fetcher := &fakeFetcher{payloads: [][]byte{[]byte(`{"jid":"1","klass":"X","args":[]}`)}}
	ctrl := &fakeController{}
	p := New(1, Config{
		Fetcher:      fetcher,
		Chain:        middleware.NewChain(),
		Terminal:     func(ctx context.Context, j *job.Job) error { return fatalStoreError{} },
		Queues:       []string{"default"},
		FetchTimeout: 10 * time.Millisecond,
	}, ctrl)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not exit after fatal chain error")
	}

	require.Len(t, ctrl.died, 1)
	assert.ErrorIs(t, ctrl.died[0], fatalStoreError{})
	assert.Equal(t, Died, p.State())
}

func TestProcessorNonFatalChainErrorDoesNotDie(t *testing.T) {
	fetcher := &fakeFetcher{payloads: [][]byte{[]byte(`{"jid":"1","klass":"X","args":[]}`)}}
	ctrl := &fakeController{}
	p := New(1, Config{
		Fetcher:      fetcher,
		Chain:        middleware.NewChain(),
		Terminal:     func(ctx context.Context, j *job.Job) error { return errors.New("handler failed") },
		Queues:       []string{"default"},
		FetchTimeout: 10 * time.Millisecond,
	}, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Empty(t, ctrl.died)
	assert.Len(t, ctrl.stopped, 1)
}
