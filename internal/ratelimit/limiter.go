package ratelimit

import "context"

// RateLimiter controls outbound exchange throughput per scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}

// ScopeIssuance is the limiter scope shared by all issuance exchanges.
const ScopeIssuance = "issuance"
