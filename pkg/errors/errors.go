package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a tracking error
type Kind string

const (
	// KindInvalidURL represents a URL that is not a recognized listing URL
	KindInvalidURL Kind = "invalid_url"
	// KindNetwork represents transport-level fetch errors
	KindNetwork Kind = "network"
	// KindBlocked represents a bot-block or CAPTCHA interstitial
	KindBlocked Kind = "blocked"
	// KindRateLimited represents an explicit rate-limit signal
	KindRateLimited Kind = "rate_limited"
	// KindExhausted means every fetch strategy was cooling down or failed
	KindExhausted Kind = "strategies_exhausted"
	// KindParse represents a page-structure extraction failure
	KindParse Kind = "parse"
	// KindTooSoon rejects a manual refresh inside the minimum interval
	KindTooSoon Kind = "too_soon"
	// KindPersistence represents store errors
	KindPersistence Kind = "persistence"
)

// TrackError is the error type shared across the refresh pipeline
type TrackError struct {
	Kind         Kind
	Strategy     string
	Message      string
	Err          error
	RetryAfter   time.Duration
	MissingField string
	Time         time.Time
}

// Error implements the error interface
func (e *TrackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *TrackError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if a later attempt could succeed without waiting
func (e *TrackError) IsRetryable() bool {
	switch e.Kind {
	case KindNetwork:
		return true
	default:
		return false
	}
}

// New creates a new TrackError
func New(kind Kind, message string, err error) *TrackError {
	return &TrackError{
		Kind:    kind,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewInvalidURL creates an invalid-URL error
func NewInvalidURL(url string) *TrackError {
	return New(KindInvalidURL, fmt.Sprintf("not a recognized listing URL: %s", url), nil)
}

// NewNetwork creates a network error
func NewNetwork(strategy, message string, err error) *TrackError {
	e := New(KindNetwork, message, err)
	e.Strategy = strategy
	return e
}

// NewBlocked creates a bot-block error
func NewBlocked(strategy, message string) *TrackError {
	e := New(KindBlocked, message, nil)
	e.Strategy = strategy
	return e
}

// NewRateLimited creates a rate-limit error carrying the retry hint
func NewRateLimited(strategy string, retryAfter time.Duration) *TrackError {
	e := New(KindRateLimited, fmt.Sprintf("rate limited for %v", retryAfter), nil)
	e.Strategy = strategy
	e.RetryAfter = retryAfter
	return e
}

// NewExhausted wraps the most specific error observed after every strategy
// was cooling down or failed
func NewExhausted(lastErr error) *TrackError {
	return New(KindExhausted, "all fetch strategies exhausted", lastErr)
}

// NewParse creates a parse failure naming the field that could not be extracted
func NewParse(missingField string) *TrackError {
	e := New(KindParse, fmt.Sprintf("could not extract %q from page", missingField), nil)
	e.MissingField = missingField
	return e
}

// NewTooSoon rejects a manual refresh with the remaining wait time
func NewTooSoon(retryAfter time.Duration) *TrackError {
	e := New(KindTooSoon, fmt.Sprintf("refreshed too recently, retry in %v", retryAfter), nil)
	e.RetryAfter = retryAfter
	return e
}

// NewPersistence creates a store error
func NewPersistence(message string, err error) *TrackError {
	return New(KindPersistence, message, err)
}

// KindOf returns the Kind of err, or an empty Kind for foreign errors
func KindOf(err error) Kind {
	var te *TrackError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// RetryAfterOf returns the retry hint carried by err, if any
func RetryAfterOf(err error) time.Duration {
	var te *TrackError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}
