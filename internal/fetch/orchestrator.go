package fetch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"pricepulse/logger"
	"pricepulse/pkg/errors"
)

// Orchestrator tries an ordered list of fetch strategies until one returns
// content or all are exhausted. It is the single owner of the shared
// ProviderState.
type Orchestrator struct {
	strategies []Strategy
	state      *ProviderState
	timeout    time.Duration
	maxRetries int
	log        *logger.Logger
}

// NewOrchestrator creates an orchestrator over strategies in priority order.
// maxRetries is the number of extra attempts granted to a strategy after a
// transient failure.
func NewOrchestrator(strategies []Strategy, state *ProviderState, timeout time.Duration, maxRetries int) *Orchestrator {
	return &Orchestrator{
		strategies: strategies,
		state:      state,
		timeout:    timeout,
		maxRetries: maxRetries,
		log:        logger.ForComponent("orchestrator"),
	}
}

// Fetch walks the strategy chain for a URL. Strategies inside a cooldown
// window are skipped without being invoked. The first success short-circuits.
// When nothing succeeds the returned error wraps the most specific failure
// observed, preferring block/rate-limit signals over transport errors.
func (o *Orchestrator) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for _, strategy := range o.strategies {
		name := strategy.Name()

		if remaining, cooling := o.state.CoolingDown(name, time.Now()); cooling {
			o.log.Debug().
				Str("strategy", name).
				Dur("remaining", remaining).
				Msg("Strategy cooling down, skipping")
			continue
		}

		body, err := o.attemptWithRetry(ctx, strategy, url)
		if err == nil {
			o.state.Reset(name)
			o.log.Debug().Str("strategy", name).Str("url", url).Msg("Fetch succeeded")
			return body, nil
		}

		switch errors.KindOf(err) {
		case errors.KindRateLimited:
			cooldown := errors.RetryAfterOf(err)
			if cooldown <= 0 {
				cooldown = strategy.Cooldown()
			}
			o.state.SetCooldown(name, cooldown, time.Now())
			o.log.Warn().Str("strategy", name).Dur("cooldown", cooldown).Msg("Strategy rate limited")
		case errors.KindBlocked:
			o.state.SetCooldown(name, strategy.Cooldown(), time.Now())
			o.log.Warn().Str("strategy", name).Dur("cooldown", strategy.Cooldown()).Msg("Strategy blocked")
		default:
			o.state.RecordFailure(name)
			o.log.Debug().Str("strategy", name).Err(err).Msg("Strategy failed")
		}

		lastErr = preferSpecific(lastErr, err)
	}

	return nil, errors.NewExhausted(lastErr)
}

// attemptWithRetry invokes one strategy with a bounded per-call timeout,
// retrying transient failures with exponential backoff. Block and rate-limit
// signals are returned immediately.
func (o *Orchestrator) attemptWithRetry(ctx context.Context, strategy Strategy, url string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		result := strategy.Attempt(attemptCtx, url)
		cancel()

		switch result.Outcome {
		case OutcomeSuccess:
			return result.Body, nil
		case OutcomeBlocked:
			return nil, errors.NewBlocked(strategy.Name(), errText(result.Err, "bot block detected"))
		case OutcomeRateLimited:
			return nil, errors.NewRateLimited(strategy.Name(), result.RetryAfter)
		case OutcomeTransient:
			lastErr = errors.NewNetwork(strategy.Name(), "transient fetch failure", result.Err)
		}

		if attempt == o.maxRetries {
			break
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.NewNetwork(strategy.Name(), "fetch cancelled", ctx.Err())
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

// preferSpecific keeps the more actionable of two errors: block and
// rate-limit signals win over generic transport failures.
func preferSpecific(current, candidate error) error {
	if current == nil {
		return candidate
	}
	switch errors.KindOf(current) {
	case errors.KindBlocked, errors.KindRateLimited:
		return current
	}
	switch errors.KindOf(candidate) {
	case errors.KindBlocked, errors.KindRateLimited:
		return candidate
	}
	return candidate
}

func errText(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
