package fetch

import (
	"context"
	"time"
)

// Outcome classifies a single strategy invocation.
type Outcome int

const (
	// OutcomeSuccess means the strategy returned page content
	OutcomeSuccess Outcome = iota
	// OutcomeBlocked means the target served a bot-block interstitial
	OutcomeBlocked
	// OutcomeRateLimited means the target or provider signalled a rate limit
	OutcomeRateLimited
	// OutcomeTransient covers timeouts and other retryable transport errors
	OutcomeTransient
)

// Attempt is the result of one strategy invocation.
type Attempt struct {
	Outcome    Outcome
	Body       []byte
	RetryAfter time.Duration
	Err        error
}

// Strategy is one fetch technique in the orchestrator's ordered fallback
// chain. Implementations must be safe for concurrent use.
type Strategy interface {
	// Name identifies the strategy in logs and cooldown state
	Name() string

	// Cooldown is how long the strategy sits out after a block or an
	// unhinted rate limit
	Cooldown() time.Duration

	// Attempt fetches the URL once; the context carries the per-call timeout
	Attempt(ctx context.Context, url string) Attempt
}

func success(body []byte) Attempt {
	return Attempt{Outcome: OutcomeSuccess, Body: body}
}

func blocked(err error) Attempt {
	return Attempt{Outcome: OutcomeBlocked, Err: err}
}

func rateLimited(retryAfter time.Duration, err error) Attempt {
	return Attempt{Outcome: OutcomeRateLimited, RetryAfter: retryAfter, Err: err}
}

func transient(err error) Attempt {
	return Attempt{Outcome: OutcomeTransient, Err: err}
}
