package fetch

import (
	"context"
	"time"

	"pricepulse/helpers"
	"pricepulse/pkg/errors"
)

// DirectStrategy fetches the listing page with a plain GET and randomized
// browser headers. Cheapest, most likely to be blocked; last in the chain.
type DirectStrategy struct {
	cooldown time.Duration
}

// NewDirectStrategy creates a direct-request strategy
func NewDirectStrategy(cooldown time.Duration) *DirectStrategy {
	return &DirectStrategy{cooldown: cooldown}
}

// Name identifies the strategy
func (s *DirectStrategy) Name() string { return "direct" }

// Cooldown returns the block cooldown duration
func (s *DirectStrategy) Cooldown() time.Duration { return s.cooldown }

// Attempt performs one fetch
func (s *DirectStrategy) Attempt(ctx context.Context, url string) Attempt {
	body, err := helpers.FetchWithRandomHeaders(ctx, url)
	if err == nil {
		return success(body)
	}

	switch errors.KindOf(err) {
	case errors.KindRateLimited:
		return rateLimited(errors.RetryAfterOf(err), err)
	case errors.KindBlocked:
		return blocked(err)
	default:
		return transient(err)
	}
}
