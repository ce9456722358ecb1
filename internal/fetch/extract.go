package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ExtractAPIStrategy proxies the fetch through a structured extraction API
// (ScraperAPI-style): the service renders the listing on its side and returns
// the raw HTML body. Highest success rate against bot defenses, so it runs
// first in the chain.
type ExtractAPIStrategy struct {
	baseURL  string
	apiKey   string
	cooldown time.Duration
	client   *http.Client
}

// NewExtractAPIStrategy creates an extraction-API strategy
func NewExtractAPIStrategy(baseURL, apiKey string, cooldown time.Duration) *ExtractAPIStrategy {
	return &ExtractAPIStrategy{
		baseURL:  baseURL,
		apiKey:   apiKey,
		cooldown: cooldown,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Name identifies the strategy
func (s *ExtractAPIStrategy) Name() string { return "extract_api" }

// Cooldown returns the block cooldown duration
func (s *ExtractAPIStrategy) Cooldown() time.Duration { return s.cooldown }

// Attempt performs one fetch through the extraction API
func (s *ExtractAPIStrategy) Attempt(ctx context.Context, target string) Attempt {
	query := url.Values{}
	query.Set("api_key", s.apiKey)
	query.Set("url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return transient(err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return transient(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return rateLimited(retryAfterHeader(resp), fmt.Errorf("extraction API rate limited"))
	case http.StatusForbidden:
		return blocked(fmt.Errorf("extraction API refused the target URL"))
	default:
		return transient(fmt.Errorf("extraction API status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transient(err)
	}
	if !looksLikeHTML(body) {
		return transient(fmt.Errorf("extraction API response is not HTML (%d bytes)", len(body)))
	}
	return success(body)
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := time.ParseDuration(v + "s"); err == nil && seconds > 0 {
			return seconds
		}
	}
	return 0
}
