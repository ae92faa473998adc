// Package ratelimit provides rate limiting for the two places it matters:
// the HTTP surface (redis-backed fixed window, shared across instances) and
// outbound connector calls (in-process budgets that block instead of
// rejecting).
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule describes one limit: at most Limit requests per Window per key.
type Rule struct {
	Prefix string
	Limit  int
	Window time.Duration
}

// Result reports the outcome of a limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// FormatHeaders renders the standard X-RateLimit response headers.
func (r Result) FormatHeaders() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(r.ResetAt.Unix(), 10),
	}
}

// Limiter enforces rules against redis using a fixed window per (rule, key).
// With a nil redis client it runs in noop mode and allows everything, so
// deployments without redis lose rate limiting but nothing else.
type Limiter struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func New(rdb *redis.Client, logger *slog.Logger) *Limiter {
	return &Limiter{rdb: rdb, logger: logger}
}

// Allow counts the request against the rule's window. Limiter malfunctions
// fail open: traffic is never blocked by a broken redis.
func (l *Limiter) Allow(ctx context.Context, rule Rule, key string) Result {
	if l.rdb == nil {
		return Result{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit, ResetAt: time.Now().Add(rule.Window)}
	}

	window := time.Now().UnixMilli() / rule.Window.Milliseconds()
	redisKey := fmt.Sprintf("rl:%s:%s:%d", rule.Prefix, key, window)
	resetAt := time.UnixMilli((window + 1) * rule.Window.Milliseconds())

	pipe := l.rdb.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limiter unavailable, failing open", "error", err)
		return Result{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit, ResetAt: resetAt}
	}

	used := int(count.Val())
	remaining := rule.Limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   used <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
