package throttle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"capturesque/internal/common"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle locks an email out of login after too many consecutive
// failures.
type LoginThrottle interface {
	// Check returns common.ErrTooManyRequests while email is locked out.
	Check(ctx context.Context, email string) error
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

const keyPrefix = "login:fail:"

// RedisLoginThrottle counts failures in Redis so the lockout is shared by
// every API instance. The counter expires lockout after the first failure.
type RedisLoginThrottle struct {
	rdb         redis.Cmdable
	maxFailures int
	lockout     time.Duration
}

func NewRedisLoginThrottle(rdb redis.Cmdable, maxFailures int, lockout time.Duration) *RedisLoginThrottle {
	return &RedisLoginThrottle{rdb: rdb, maxFailures: maxFailures, lockout: lockout}
}

func failureKey(email string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(email))
}

func (t *RedisLoginThrottle) Check(ctx context.Context, email string) error {
	if t.maxFailures <= 0 {
		return nil
	}
	n, err := t.rdb.Get(ctx, failureKey(email)).Int()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read login failures: %w", err)
	}
	if n >= t.maxFailures {
		return fmt.Errorf("login locked for %s: %w", t.lockout, common.ErrTooManyRequests)
	}
	return nil
}

func (t *RedisLoginThrottle) RecordFailure(ctx context.Context, email string) error {
	key := failureKey(email)
	n, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("count login failure: %w", err)
	}
	if n == 1 {
		if err := t.rdb.Expire(ctx, key, t.lockout).Err(); err != nil {
			return fmt.Errorf("expire login failures: %w", err)
		}
	}
	return nil
}

func (t *RedisLoginThrottle) Reset(ctx context.Context, email string) error {
	if err := t.rdb.Del(ctx, failureKey(email)).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}

// Noop is used when no Redis address is configured.
type Noop struct{}

func (Noop) Check(context.Context, string) error         { return nil }
func (Noop) RecordFailure(context.Context, string) error { return nil }
func (Noop) Reset(context.Context, string) error         { return nil }
