// AngelaMos | 2026
// attempts.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginAttemptsPrefix = "auth:login_attempts:"

// AttemptLimiter counts failed logins per e-mail in a fixed Redis window.
// Redis failures are logged and let the login through.
type AttemptLimiter struct {
	redis  redis.UniversalClient
	max    int
	window time.Duration
}

func NewAttemptLimiter(
	rdb redis.UniversalClient,
	maxAttempts int,
	window time.Duration,
) *AttemptLimiter {
	return &AttemptLimiter{
		redis:  rdb,
		max:    maxAttempts,
		window: window,
	}
}

// Check fails with ErrTooManyAttempts once the window holds max failures.
// A counter left without an expiry gets one here, so a lockout always ends.
func (l *AttemptLimiter) Check(ctx context.Context, email string) error {
	if l == nil || l.max <= 0 {
		return nil
	}

	key := attemptKey(email)
	var (
		get *redis.StringCmd
		ttl *redis.DurationCmd
	)
	_, err := l.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "login attempt check failed, allowing", "error", err)
		}
		return nil
	}

	count, err := get.Int()
	if err != nil {
		slog.WarnContext(ctx, "login attempt counter unreadable, allowing", "error", err)
		return nil
	}

	if ttl.Val() == -1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			slog.WarnContext(ctx, "restore login attempt expiry", "error", err)
		}
	}

	if count >= l.max {
		return ErrTooManyAttempts
	}
	return nil
}

func (l *AttemptLimiter) RecordFailure(ctx context.Context, email string) {
	if l == nil || l.max <= 0 {
		return
	}

	if err := l.recordFailure(ctx, attemptKey(email)); err != nil {
		slog.WarnContext(ctx, "record login failure", "error", err)
	}
}

// recordFailure increments and arms the window in one MULTI, so the
// counter never exists without an expiry. NX keeps the window fixed.
func (l *AttemptLimiter) recordFailure(ctx context.Context, key string) error {
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("incr with expiry: %w", err)
	}
	return nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, email string) {
	if l == nil {
		return
	}

	if err := l.redis.Del(ctx, attemptKey(email)).Err(); err != nil {
		slog.WarnContext(ctx, "reset login attempts", "error", err)
	}
}

func attemptKey(email string) string {
	return loginAttemptsPrefix + strings.ToLower(strings.TrimSpace(email))
}
