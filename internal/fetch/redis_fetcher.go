package fetch

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueueClient is the minimal slice of *redis.Client this package
// exercises. Keeping it narrow lets tests fake BRPOP without standing
// up a real Redis server.
type QueueClient interface {
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error)
}

// RedisFetcher implements Fetcher with a priority BRPOP across the
// "queue:<name>" lists, sampling the shared stopping flag right before
// each blocking call so shutdown is observed at the next idle poll
// boundary without ever dropping a payload already popped.
type RedisFetcher struct {
	client   QueueClient
	stopping *atomic.Bool
}

func NewRedisFetcher(client QueueClient, stopping *atomic.Bool) *RedisFetcher {
	return &RedisFetcher{client: client, stopping: stopping}
}

func (f *RedisFetcher) Fetch(ctx context.Context, queues []string, timeout time.Duration) (string, []byte, bool, error) {
	if f.stopping != nil && f.stopping.Load() {
		return "", nil, false, nil
	}

	keys := make([]string, len(queues))
	for i, q := range queues {
		keys[i] = "queue:" + q
	}

	res, err := f.client.BRPop(ctx, timeout, keys...)
	if err != nil {
		if isNoResult(err) {
			return "", nil, false, nil
		}
		return "", nil, false, err
	}
	if len(res) != 2 {
		return "", nil, false, errors.New("fetch: unexpected BRPOP reply shape")
	}
	queue := strings.TrimPrefix(res[0], "queue:")
	return queue, []byte(res[1]), true, nil
}

func isNoResult(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil)
}

// redisQueueClient adapts *redis.Client to QueueClient.
type redisQueueClient struct {
	c *redis.Client
}

func NewRedisQueueClient(c *redis.Client) QueueClient {
	return &redisQueueClient{c: c}
}

func (a *redisQueueClient) BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error) {
	return a.c.BRPop(ctx, timeout, keys...).Result()
}
