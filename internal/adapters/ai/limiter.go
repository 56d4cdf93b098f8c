package ai

import (
	"context"

	"golang.org/x/time/rate"

	"tiergate/pkg/errors"
)

// Limiter throttles requests to a provider
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter allows perSecond requests with the given burst.
// A non-positive rate disables limiting.
func NewLimiter(name string, perSecond float64, burst int) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		name:    name,
	}
}

// Wait blocks until the limiter allows the request
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(errors.ErrTimeout, "rate limiter %s: %v", l.name, err)
	}
	return nil
}

// Allow checks if a request is allowed without blocking
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
