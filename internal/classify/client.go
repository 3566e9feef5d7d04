// Package classify submits parameter records to the remote classification service.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

const (
	DefaultEndpoint     = "http://localhost:5000"
	DefaultTimeout      = 30 * time.Second
	DefaultBatchTimeout = 300 * time.Second

	analyzePath      = "/api/analyze"
	analyzeBatchPath = "/api/analyze_csv"
)

// Config holds the service location and default budgets.
type Config struct {
	// Endpoint is the service base URL.
	Endpoint string
	// BatchEndpoint overrides Endpoint for batch calls when set.
	BatchEndpoint string
	Timeout       time.Duration
	BatchTimeout  time.Duration
	// HTTPClient is used when set; otherwise the client owns its transport.
	HTTPClient *http.Client
}

// Client is stateless between calls and safe for concurrent use.
type Client struct {
	endpoint      string
	batchEndpoint string
	timeout       time.Duration
	batchTimeout  time.Duration
	http          *http.Client
	owned         *http.Transport
}

// New builds a client, filling unset fields with defaults.
func New(cfg Config) *Client {
	c := &Client{
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		batchEndpoint: strings.TrimRight(cfg.BatchEndpoint, "/"),
		timeout:       cfg.Timeout,
		batchTimeout:  cfg.BatchTimeout,
		http:          cfg.HTTPClient,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.batchEndpoint == "" {
		c.batchEndpoint = c.endpoint
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.batchTimeout <= 0 {
		c.batchTimeout = DefaultBatchTimeout
	}
	if c.http == nil {
		c.owned = http.DefaultTransport.(*http.Transport).Clone()
		c.http = &http.Client{Transport: c.owned}
	}
	return c
}

// Close releases idle connections held by a client-owned transport.
func (c *Client) Close() {
	if c.owned != nil {
		c.owned.CloseIdleConnections()
	}
}

// ClassifyOne submits a single record and normalizes the answer.
// A budget <= 0 uses the configured single-call default.
func (c *Client) ClassifyOne(ctx context.Context, rec schema.Record, budget time.Duration) (verdict.Verdict, error) {
	if budget <= 0 {
		budget = c.timeout
	}

	body, err := c.post(ctx, c.endpoint+analyzePath, rec, budget)
	if err != nil {
		return verdict.Verdict{}, err
	}

	raw, err := verdict.DecodeOne(body)
	if err != nil {
		return verdict.Verdict{}, &Error{Kind: KindService, StatusCode: http.StatusOK, Detail: err.Error(), Err: err}
	}

	v := verdict.NormalizeOne(raw)
	if v.Coerced {
		slog.Warn("Service returned an unrecognized category", "raw", raw)
	}
	return v, nil
}

// ClassifyMany submits records as one batch and returns the raw per-record results.
// A budget <= 0 uses the configured batch default.
func (c *Client) ClassifyMany(ctx context.Context, records []schema.Record, budget time.Duration) ([]verdict.RawServiceResult, error) {
	if budget <= 0 {
		budget = c.batchTimeout
	}
	if records == nil {
		records = []schema.Record{}
	}

	body, err := c.post(ctx, c.batchEndpoint+analyzeBatchPath, records, budget)
	if err != nil {
		return nil, err
	}

	raws, err := verdict.DecodeBatch(body)
	if err != nil {
		return nil, &Error{Kind: KindService, StatusCode: http.StatusOK, Detail: err.Error(), Err: err}
	}
	if len(raws) != len(records) {
		slog.Warn("Batch result count differs from submitted records", "submitted", len(records), "received", len(raws))
	}
	return raws, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, budget time.Duration) ([]byte, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	slog.Debug("Sending classification request", "url", url, "bytes", len(requestBody), "budget", budget)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, budget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, budget, err)
	}

	slog.Debug("Classification response received", "url", url, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindService, StatusCode: resp.StatusCode, Detail: serviceDetail(body)}
	}
	return body, nil
}

func (c *Client) transportError(ctx context.Context, budget time.Duration, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Detail: fmt.Sprintf("no response within %s", budget), Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return &Error{Kind: KindCanceled, Err: err}
	default:
		return &Error{Kind: KindTransport, Detail: err.Error(), Err: err}
	}
}
