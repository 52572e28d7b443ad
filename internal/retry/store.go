// Package retry implements the Retry/Morgue middleware: on handler
// failure it decides between rescheduling a job with exponential
// backoff and moving it permanently into the dead set, then re-raises
// the original error so outer middleware still observes the failure.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the Redis surface the Retry middleware needs. Keeping it
// narrow lets the decision algorithm be tested without a live server.
type Store interface {
	ScheduleRetry(ctx context.Context, retryAt float64, payload []byte) error
	SendToMorgue(ctx context.Context, now float64, payload []byte) error
}

// deadCap and deadTTL implement the morgue capping rule: keep at most
// the 10,000 most recent dead entries, and drop anything older than
// six months regardless of count.
const (
	deadCap = 10000
	deadTTL = 6 * 30 * 24 * time.Hour
)

// RedisStore is the production Store backed by go-redis.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) ScheduleRetry(ctx context.Context, retryAt float64, payload []byte) error {
	err := s.client.ZAdd(ctx, "retry", redis.Z{Score: retryAt, Member: payload}).Err()
	if err != nil {
		return fmt.Errorf("retry: schedule retry: %w", err)
	}
	return nil
}

func (s *RedisStore) SendToMorgue(ctx context.Context, now float64, payload []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, "dead", redis.Z{Score: now, Member: payload})
		pipe.ZRemRangeByScore(ctx, "dead", "-inf", fmt.Sprintf("%f", now-deadTTL.Seconds()))
		pipe.ZRemRangeByRank(ctx, "dead", 0, -(deadCap+1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("retry: send to morgue: %w", err)
	}
	return nil
}
