// Package llm is a chat-completions client for OpenAI-compatible endpoints.
// It classifies failures into sentinel errors so callers can map them to
// distinct outcomes, and retries only served 5xx responses.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/forecastqa/forecastqa/internal/observability"
)

var (
	// ErrTimeout covers deadline expiry on the request.
	ErrTimeout = errors.New("llm: request timed out")
	// ErrAuth covers 401 and 403 from the provider. Never retried.
	ErrAuth = errors.New("llm: authentication rejected")
	// ErrRateLimited covers 429 from the provider. Never retried; retrying
	// a rate-limited endpoint only digs the hole deeper.
	ErrRateLimited = errors.New("llm: provider rate limit")
	// ErrUnavailable covers 5xx responses and transport failures. Only the
	// former are retried; a connection that cannot be established will not
	// be fixed by asking again immediately.
	ErrUnavailable = errors.New("llm: provider unavailable")
)

// retryableError marks the one failure class the retry loop may run again,
// a served 5xx response. It unwraps to ErrUnavailable so callers classify
// it the same either way.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

// Prompt is one chat exchange. System carries the instructions, User the
// question material.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Client is the surface the orchestrator depends on. CompleteJSON returns
// the first JSON object found in the reply; CompleteText returns the
// trimmed reply verbatim.
type Client interface {
	CompleteJSON(ctx context.Context, prompt Prompt) (json.RawMessage, error)
	CompleteText(ctx context.Context, prompt Prompt) (string, error)
}

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
}

type HTTPClient struct {
	baseURL      string
	apiKey       string
	model        string
	timeout      time.Duration
	retries      int
	retryBackoff time.Duration
	client       *http.Client
	clock        clockwork.Clock
}

func NewHTTPClient(cfg Config, clock clockwork.Clock) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HTTPClient{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		model:        model,
		timeout:      timeout,
		retries:      cfg.Retries,
		retryBackoff: cfg.RetryBackoff,
		client:       &http.Client{},
		clock:        clock,
	}, nil
}

func (c *HTTPClient) CompleteJSON(ctx context.Context, prompt Prompt) (json.RawMessage, error) {
	started := time.Now()
	content, err := c.complete(ctx, prompt)
	observability.ObserveLLMRequest("intent", time.Since(started))
	if err != nil {
		return nil, err
	}
	return ExtractJSON(content)
}

func (c *HTTPClient) CompleteText(ctx context.Context, prompt Prompt) (string, error) {
	started := time.Now()
	content, err := c.complete(ctx, prompt)
	observability.ObserveLLMRequest("answer", time.Since(started))
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", fmt.Errorf("model returned empty content")
	}
	return trimmed, nil
}

// complete runs the chat request with the retry policy: served 5xx
// responses are retried up to the budget with a fixed backoff; 4xx classes,
// transport failures and deadline expiry fail immediately.
func (c *HTTPClient) complete(ctx context.Context, prompt Prompt) (string, error) {
	body, err := json.Marshal(c.payload(prompt))
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			observability.IncrementLLMRetries()
			if c.retryBackoff > 0 {
				select {
				case <-c.clock.After(c.retryBackoff):
				case <-ctx.Done():
					return "", classifyContextErr(ctx.Err())
				}
			}
		}

		content, err := c.completeOnce(ctx, body)
		if err == nil {
			return content, nil
		}
		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

func (c *HTTPClient) completeOnce(ctx context.Context, body []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := reqCtx.Err(); ctxErr != nil {
			return "", classifyContextErr(ctxErr)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: status=%d", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: status=%d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return "", &retryableError{err: fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return "", fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, truncate(raw, 256))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *HTTPClient) payload(prompt Prompt) map[string]any {
	body := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": prompt.System},
			{"role": "user", "content": prompt.User},
		},
		"temperature": prompt.Temperature,
	}
	if prompt.MaxTokens > 0 {
		body["max_tokens"] = prompt.MaxTokens
	}
	return body
}

func classifyContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func truncate(raw []byte, limit int) string {
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
