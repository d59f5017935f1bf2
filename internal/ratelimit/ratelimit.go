package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// CounterStore increments a named counter and reports the new value. The
// counter expires once its fixed window ends, so a fresh window starts at
// zero. Implementations must make the increment atomic.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Limiter enforces per-client daily and hourly conversion quotas over fixed
// wall-clock windows. With a Redis-backed store the quota holds across
// server instances and restarts.
type Limiter struct {
	store   CounterStore
	perDay  int
	perHour int
}

func NewLimiter(store CounterStore, perDay, perHour int) *Limiter {
	if perDay <= 0 {
		perDay = 25
	}
	if perHour <= 0 {
		perHour = 5
	}
	return &Limiter{store: store, perDay: perDay, perHour: perHour}
}

// Allow consumes one conversion for ip, returning a human-readable reason
// when the quota is exhausted.
func (l *Limiter) Allow(ctx context.Context, ip string) (bool, string, error) {
	now := time.Now()

	dayKey := fmt.Sprintf("rl:%s:d:%s", ip, now.Format("2006-01-02"))
	dayCount, err := l.store.Incr(ctx, dayKey, endOfDay(now))
	if err != nil {
		return false, "", fmt.Errorf("rate limit store: %w", err)
	}
	if dayCount > int64(l.perDay) {
		return false, fmt.Sprintf("Daily conversion limit reached (%d per day). Please try again tomorrow.", l.perDay), nil
	}

	hourKey := fmt.Sprintf("rl:%s:h:%s", ip, now.Format("2006-01-02T15"))
	hourCount, err := l.store.Incr(ctx, hourKey, endOfHour(now))
	if err != nil {
		return false, "", fmt.Errorf("rate limit store: %w", err)
	}
	if hourCount > int64(l.perHour) {
		return false, fmt.Sprintf("Hourly conversion limit reached (%d per hour). Please try again later.", l.perHour), nil
	}

	return true, "", nil
}

func endOfDay(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
	return next.Sub(now)
}

func endOfHour(now time.Time) time.Duration {
	next := now.Truncate(time.Hour).Add(time.Hour)
	return next.Sub(now)
}
