// Package fetch pulls the next job payload off Redis, respecting queue
// priority order and a shared shutdown signal.
package fetch

import (
	"context"
	"time"
)

// Fetcher is the contract Processors use to pull work. ok is false on
// a timed-out poll or once shutdown has been observed; err is non-nil
// only for infrastructure failures the caller should treat as fatal.
type Fetcher interface {
	Fetch(ctx context.Context, queues []string, timeout time.Duration) (queue string, payload []byte, ok bool, err error)
}
