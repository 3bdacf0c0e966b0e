// Package analyzer talks to the service that inspects a page and returns
// per-category compliance results.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/raysh454/comply/internal/logging"
	"github.com/raysh454/comply/internal/model"
)

// Analyzer produces category results for a URL. Implementations must honor
// ctx cancellation.
type Analyzer interface {
	Analyze(ctx context.Context, url string, categories []model.Category) (*model.CategoryResults, error)
}

// StatusError is returned for a non-2xx reply from the analyzer service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analyzer returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// HTTPAnalyzer is an Analyzer backed by a remote JSON service.
type HTTPAnalyzer struct {
	cfg    Config
	client *http.Client
	clock  clock.Clock
	logger logging.Logger
}

var _ Analyzer = (*HTTPAnalyzer)(nil)

// NewHTTPAnalyzer returns an HTTPAnalyzer. A nil httpClient gets a client
// with cfg.Timeout (30s when unset).
func NewHTTPAnalyzer(cfg Config, logger logging.Logger, clk clock.Clock, httpClient *http.Client) (*HTTPAnalyzer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("analyzer base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if clk == nil {
		clk = clock.NewClock()
	}

	componentLogger := logger.With(logging.Field{Key: "component", Value: "analyzer"})
	componentLogger.Info("created http analyzer",
		logging.Field{Key: "base_url", Value: cfg.BaseURL},
		logging.Field{Key: "retries", Value: cfg.Retries})

	return &HTTPAnalyzer{
		cfg:    cfg,
		client: httpClient,
		clock:  clk,
		logger: componentLogger,
	}, nil
}

// Analyze POSTs the request and retries transient failures.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, url string, categories []model.Category) (*model.CategoryResults, error) {
	body, err := json.Marshal(AnalyzeRequest{URL: url, Categories: categories})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.cfg.Retries; attempt++ {
		if attempt > 0 {
			delay := a.backoff(attempt)
			a.logger.Debug("retrying analyze",
				logging.Field{Key: "url", Value: url},
				logging.Field{Key: "attempt", Value: attempt},
				logging.Field{Key: "delay", Value: delay.String()})
			select {
			case <-a.clock.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		results, err := a.do(ctx, body)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
		a.logger.Warn("analyze attempt failed",
			logging.Field{Key: "url", Value: url},
			logging.Field{Key: "attempt", Value: attempt},
			logging.Field{Key: "error", Value: err})
	}
	return nil, lastErr
}

func (a *HTTPAnalyzer) do(ctx context.Context, body []byte) (*model.CategoryResults, error) {
	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("http do: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out AnalyzeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	return &out.Results, nil
}

func (a *HTTPAnalyzer) backoff(attempt int) time.Duration {
	d := a.cfg.Backoff << (attempt - 1)
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var te *transportError
	return errors.As(err, &te)
}

// transportError marks failures below HTTP status handling.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }
