// Package store is the read-only Introspection Store: it reports
// queue depth and retry/dead set sizes straight from Redis, backing
// the ops HTTP surface without persisting anything of its own.
package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Stats is a point-in-time snapshot. Every call to Snapshot re-reads
// Redis; nothing here is cached.
type Stats struct {
	QueueLengths map[string]int64
	RetryCount   int64
	DeadCount    int64
}

// Store is the Introspection Store.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// QueueLength reports LLEN queue:<name>.
func (s *Store) QueueLength(ctx context.Context, queue string) (int64, error) {
	n, err := s.rdb.LLen(ctx, "queue:"+queue).Result()
	if err != nil {
		return 0, fmt.Errorf("store: queue length %s: %w", queue, err)
	}
	return n, nil
}

// RetryCount reports ZCARD retry.
func (s *Store) RetryCount(ctx context.Context) (int64, error) {
	n, err := s.rdb.ZCard(ctx, "retry").Result()
	if err != nil {
		return 0, fmt.Errorf("store: retry count: %w", err)
	}
	return n, nil
}

// DeadCount reports ZCARD dead.
func (s *Store) DeadCount(ctx context.Context) (int64, error) {
	n, err := s.rdb.ZCard(ctx, "dead").Result()
	if err != nil {
		return 0, fmt.Errorf("store: dead count: %w", err)
	}
	return n, nil
}

// Snapshot gathers QueueLength for each of queues plus the retry/dead
// totals in one call.
func (s *Store) Snapshot(ctx context.Context, queues []string) (Stats, error) {
	stats := Stats{QueueLengths: make(map[string]int64, len(queues))}

	for _, q := range queues {
		n, err := s.QueueLength(ctx, q)
		if err != nil {
			return Stats{}, err
		}
		stats.QueueLengths[q] = n
	}

	retryN, err := s.RetryCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.RetryCount = retryN

	deadN, err := s.DeadCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.DeadCount = deadN

	return stats, nil
}
