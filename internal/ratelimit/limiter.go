package ratelimit

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/auth-service/internal/config"
)

const keyPrefix = "auth:signin:fail:"

// Limiter throttles repeated failed signins per username using Redis
// counters with a cooldown TTL.
type Limiter struct {
	rdb redis.UniversalClient
	cfg config.LimiterConfig
}

// New creates a limiter backed by the given Redis client.
func New(rdb redis.UniversalClient, cfg config.LimiterConfig) *Limiter {
	return &Limiter{rdb: rdb, cfg: cfg}
}

// Allow reports whether the username is still within its failed-attempt
// budget. Missing keys count as zero, so it never reveals whether an
// account exists.
func (l *Limiter) Allow(ctx context.Context, username string) (bool, error) {
	if !l.cfg.Enabled {
		return true, nil
	}

	count, err := l.rdb.Get(ctx, key(username)).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return count < int64(l.cfg.MaxAttempts), nil
}

// RecordFailure increments the failed-attempt counter, starting the
// cooldown window on the first failure.
func (l *Limiter) RecordFailure(ctx context.Context, username string) error {
	if !l.cfg.Enabled {
		return nil
	}

	pipe := l.rdb.TxPipeline()
	pipe.Incr(ctx, key(username))
	pipe.ExpireNX(ctx, key(username), l.cfg.Cooldown)
	_, err := pipe.Exec(ctx)
	return err
}

// Reset clears the counter after a successful signin.
func (l *Limiter) Reset(ctx context.Context, username string) error {
	if !l.cfg.Enabled {
		return nil
	}
	return l.rdb.Del(ctx, key(username)).Err()
}

func key(username string) string {
	return keyPrefix + strings.ToLower(username)
}
