package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const defaultLocalLimitPerSec = 10

var _ RateLimiter = (*LocalRateLimiter)(nil)

// LocalRateLimiter is an in-process token bucket per scope. It is used when no
// Redis instance is configured.
type LocalRateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewLocalRateLimiter(limitPerSec int) *LocalRateLimiter {
	if limitPerSec <= 0 {
		limitPerSec = defaultLocalLimitPerSec
	}
	return &LocalRateLimiter{
		limit:    rate.Limit(limitPerSec),
		burst:    limitPerSec,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *LocalRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	lim, err := l.get(scope)
	if err != nil {
		return false, err
	}
	return lim.Allow(), nil
}

func (l *LocalRateLimiter) Wait(ctx context.Context, scope string) error {
	lim, err := l.get(scope)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return lim.Wait(ctx)
}

func (l *LocalRateLimiter) get(scope string) (*rate.Limiter, error) {
	normalized := strings.ToLower(strings.TrimSpace(scope))
	if normalized == "" {
		return nil, fmt.Errorf("scope is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[normalized]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[normalized] = lim
	}
	return lim, nil
}
