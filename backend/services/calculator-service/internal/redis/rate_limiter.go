package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per key in fixed windows.
type RateLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per key per window. A limit of 0 disables it.
func NewRateLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (l *RateLimiter) key(id string) string {
	bucket := l.now().UTC().Truncate(l.window).Unix()
	return fmt.Sprintf("%s:%s:%d", l.prefix, id, bucket)
}

// Allow increments the counter for id and reports whether it is still within the limit.
func (l *RateLimiter) Allow(ctx context.Context, id string) (bool, error) {
	if l == nil || l.limit <= 0 {
		return true, nil
	}
	key := l.key(id)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return incr.Val() <= l.limit, nil
}
