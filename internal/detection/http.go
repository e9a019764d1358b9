package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

type httpClient struct {
	base    string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewHTTP creates a REST client for the detection service. Calls are
// throttled to the configured request rate before they leave the process,
// since the service enforces its own limits with 429 responses.
func NewHTTP(cfg *Config, logger *slog.Logger) Client {
	return &httpClient{
		base:    cfg.BaseURL,
		apiKey:  cfg.APIKey(),
		client:  &http.Client{Timeout: cfg.RequestTimeoutDuration()},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger.With("system", "detection"),
	}
}

func (c *httpClient) Submit(ctx context.Context, req SubmitRequest) (Handle, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshal submit request: %w", ErrPermanent, err)
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/detect", body, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("%w: submit returned empty job id", ErrTransient)
	}

	c.logger.Info(
		"detection job submitted",
		"job", resp.JobID,
		"mode", req.Mode,
		"documents", len(req.Documents),
	)
	return Handle(resp.JobID), nil
}

func (c *httpClient) Poll(ctx context.Context, handle Handle) (*Poll, error) {
	var poll Poll
	if err := c.do(ctx, http.MethodGet, "/detect/"+string(handle), nil, &poll); err != nil {
		return nil, err
	}
	return &poll, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrTransient, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug(
		"detection request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrTransient, err)
	}
	return nil
}

func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrJobNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, code)
	default:
		return fmt.Errorf("%w: status %d", ErrPermanent, code)
	}
}
