package registry

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles fetches against a remote backend.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited allows rps fetches per second with the given burst.
// A non-positive rps disables limiting.
func NewRateLimited(next Provider, rps float64, burst int) *RateLimited {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) LoadJSON(ctx context.Context, name, version string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("registry: rate limit: %w", err)
	}
	return r.next.LoadJSON(ctx, name, version)
}
