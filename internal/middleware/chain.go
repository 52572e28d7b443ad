// Package middleware implements the ordered wrapper chain that is
// composed around every job execution: each entry can observe the job
// before the rest of the chain runs, and observe (or re-raise) whatever
// error comes back out of it.
package middleware

import (
	"context"

	"workhorse/internal/job"
)

// Next represents "the rest of the chain plus the handler".
type Next func(ctx context.Context, j *job.Job) error

// EntryFunc is a single middleware entry. It must call next exactly
// once (unless it intends to short-circuit execution entirely) and may
// inspect or wrap whatever error next returns.
type EntryFunc func(ctx context.Context, j *job.Job, next Next) error

type namedEntry struct {
	name string
	fn   EntryFunc
}

// Chain is an ordered collection of middleware entries. It is owned by
// the Server Controller, built once at construction time, and then
// shared read-only across Processors — Invoke never mutates the chain.
type Chain struct {
	entries []namedEntry
}

func NewChain() *Chain {
	return &Chain{}
}

// Add appends an entry to the end of the chain, just before the
// handler-dispatch terminal.
func (c *Chain) Add(name string, fn EntryFunc) {
	c.entries = append(c.entries, namedEntry{name: name, fn: fn})
}

// Prepend inserts an entry at the front of the chain, so it is the
// first to see the job and the last to see the outcome.
func (c *Chain) Prepend(name string, fn EntryFunc) {
	c.entries = append([]namedEntry{{name: name, fn: fn}}, c.entries...)
}

// Remove deletes every entry whose name matches predicate.
func (c *Chain) Remove(predicate func(name string) bool) {
	kept := c.entries[:0:0]
	for _, e := range c.entries {
		if !predicate(e.name) {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}

// Entries returns the ordered entry names. The handler-dispatch
// terminal passed to Invoke is never included here.
func (c *Chain) Entries() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// Invoke runs the chain around terminal, folding right so the first
// entry in the chain is the outermost wrapper.
func (c *Chain) Invoke(ctx context.Context, j *job.Job, terminal Next) error {
	call := terminal
	for i := len(c.entries) - 1; i >= 0; i-- {
		entry := c.entries[i]
		next := call
		call = func(ctx context.Context, j *job.Job) error {
			return entry.fn(ctx, j, next)
		}
	}
	return call(ctx, j)
}
