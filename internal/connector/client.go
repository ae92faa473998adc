package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/ratelimit"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	baseBackoff    = 500 * time.Millisecond
)

// httpBase is the shared transport under every HTTP connector: per-connector
// rate budget, bounded retries with exponential backoff, and UpstreamError
// wrapping once the retry budget is spent.
type httpBase struct {
	name       string
	httpClient *http.Client
	budget     *ratelimit.Budget
	backoff    time.Duration
	log        *slog.Logger
}

func newHTTPBase(name string, budget *ratelimit.Budget, log *slog.Logger) httpBase {
	return httpBase{
		name:       name,
		httpClient: &http.Client{Timeout: defaultTimeout},
		budget:     budget,
		backoff:    baseBackoff,
		log:        log,
	}
}

func (b *httpBase) rateLimitStatus() RateLimitStatus {
	limit, remaining, window := b.budget.Status()
	return RateLimitStatus{Limit: limit, Remaining: remaining, Window: window}
}

// doJSON issues one request (with retries) and decodes the JSON response
// into out. body, when non-nil, is marshalled as the JSON request body.
func (b *httpBase) doJSON(ctx context.Context, method, url string, headers map[string]string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("connector %s: marshal request: %w", b.name, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := b.backoff << (attempt - 1)
			b.log.Debug("retrying connector call",
				"connector", b.name, "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return &model.UpstreamError{Connector: b.name, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		if err := b.budget.Wait(ctx); err != nil {
			return &model.UpstreamError{Connector: b.name, Err: err}
		}

		retriable, err := b.attempt(ctx, method, url, headers, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retriable {
			break
		}
	}
	return &model.UpstreamError{Connector: b.name, Err: lastErr}
}

// attempt runs one HTTP exchange. The bool reports whether the failure is
// worth retrying (network errors, 429, 5xx).
func (b *httpBase) attempt(ctx context.Context, method, url string, headers map[string]string, payload []byte, out any) (bool, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return true, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}
