package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RenderAPIStrategy drives a headless-browser rendering service. The service
// loads the page in a real browser and returns the final DOM, which gets past
// script-based bot checks that defeat the direct strategy.
type RenderAPIStrategy struct {
	addr     string
	cooldown time.Duration
	client   *http.Client
}

// NewRenderAPIStrategy creates a rendering-service strategy
func NewRenderAPIStrategy(addr string, cooldown time.Duration) *RenderAPIStrategy {
	return &RenderAPIStrategy{
		addr:     strings.TrimRight(addr, "/"),
		cooldown: cooldown,
		client:   &http.Client{Timeout: 90 * time.Second},
	}
}

// Name identifies the strategy
func (s *RenderAPIStrategy) Name() string { return "render_api" }

// Cooldown returns the block cooldown duration
func (s *RenderAPIStrategy) Cooldown() time.Duration { return s.cooldown }

// Attempt renders the page once
func (s *RenderAPIStrategy) Attempt(ctx context.Context, url string) Attempt {
	payload := map[string]interface{}{
		"url": url,
		"gotoOptions": map[string]interface{}{
			"waitUntil": "networkidle0",
			"timeout":   45000,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return transient(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.addr+"/content", bytes.NewReader(data))
	if err != nil {
		return transient(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PricePulseWorker/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return transient(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return rateLimited(retryAfterHeader(resp), fmt.Errorf("rendering service rate limited"))
	default:
		return transient(fmt.Errorf("rendering service status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transient(err)
	}
	if !looksLikeHTML(body) {
		return transient(fmt.Errorf("rendered response is not HTML (%d bytes)", len(body)))
	}
	return success(body)
}

// looksLikeHTML rejects empty or obviously non-HTML payloads before they
// reach the parser.
func looksLikeHTML(data []byte) bool {
	if len(data) < 50 {
		return false
	}
	lower := strings.ToLower(string(data[:min(len(data), 2048)]))
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<!doctype") ||
		strings.Contains(lower, "<body")
}
