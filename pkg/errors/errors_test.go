package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	inner := NewBlocked("direct", "captcha page")
	wrapped := fmt.Errorf("refresh failed: %w", inner)

	assert.Equal(t, KindBlocked, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain error")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestExhaustedKeepsCause(t *testing.T) {
	cause := NewRateLimited("extract_api", 90*time.Second)
	err := NewExhausted(cause)

	assert.Equal(t, KindExhausted, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 90*time.Second, RetryAfterOf(cause))
}

func TestRetryAfterOf(t *testing.T) {
	assert.Equal(t, 45*time.Second, RetryAfterOf(NewTooSoon(45*time.Second)))
	assert.Equal(t, time.Duration(0), RetryAfterOf(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, NewNetwork("direct", "timeout", nil).IsRetryable())
	assert.False(t, NewBlocked("direct", "captcha").IsRetryable())
	assert.False(t, NewTooSoon(time.Minute).IsRetryable())
}

func TestParseCarriesMissingField(t *testing.T) {
	err := NewParse("name")
	assert.Equal(t, "name", err.MissingField)
	assert.Contains(t, err.Error(), "name")
}
