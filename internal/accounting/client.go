// Package accounting talks to the Zoho Books REST API: items, contacts,
// estimates and estimate attachments.
package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"estimatesync/internal"
	"estimatesync/internal/config"
	"estimatesync/internal/logging"
	"estimatesync/internal/metrics"
	"estimatesync/internal/util"
)

const service = "zoho"

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.Recorder
	maxBackoff time.Duration
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = r }
}

// WithHTTPClient replaces the token-refreshing client, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a client whose requests carry a Zoho access token
// refreshed from ZOHO_REFRESH_TOKEN.
func NewClient(ctx context.Context, cfg config.Config, opts ...Option) *Client {
	rps := cfg.ZohoRateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	c := &Client{
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = NewTokenHTTPClient(ctx, cfg)
	}
	c.logger = logging.OrDefault(c.logger)
	return c
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type pageContext struct {
	Page        int  `json:"page"`
	HasMorePage bool `json:"has_more_page"`
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

// do sends req with rate limiting and retries 429/5xx with exponential
// backoff. A successful body is decoded into out.
func (c *Client) do(ctx context.Context, req request, out any) (err error) {
	defer func() { c.metrics.ExternalCall(service, req.op, err) }()

	u, err := url.Parse(strings.TrimRight(c.cfg.ZohoAPIBaseURL, "/") + "/" + strings.TrimLeft(req.path, "/"))
	if err != nil {
		return err
	}
	q := u.Query()
	for k, vs := range req.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if c.cfg.ZohoOrganizationID != "" {
		q.Set("organization_id", c.cfg.ZohoOrganizationID)
	}
	u.RawQuery = q.Encode()

	maxAttempts := max(c.cfg.ZohoMaxRetries, 1)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var body io.Reader
		if req.body != nil {
			body = bytes.NewReader(req.body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
		if err != nil {
			return err
		}
		httpReq.Header.Set("Accept", "application/json")
		if req.contentType != "" {
			httpReq.Header.Set("Content-Type", req.contentType)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &internal.ExternalServiceError{Service: service, Op: req.op, Err: err}
			if attempt < maxAttempts {
				if err := c.sleep(ctx, c.backoff(attempt, nil)); err != nil {
					return err
				}
			}
			continue
		}

		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = &internal.ExternalServiceError{Service: service, Op: req.op, Status: resp.StatusCode, Err: readErr}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &internal.ExternalServiceError{
				Service: service,
				Op:      req.op,
				Status:  resp.StatusCode,
				Err:     errors.New(errorMessage(payload)),
			}
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				wait := c.backoff(attempt, resp)
				c.logger.Warn("zoho request retry", "op", req.op, "status", resp.StatusCode, "attempt", attempt, "wait_ms", wait.Milliseconds())
				lastErr = apiErr
				if err := c.sleep(ctx, wait); err != nil {
					return err
				}
				continue
			}
			return apiErr
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return &internal.ExternalServiceError{Service: service, Op: req.op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		if env.Code != 0 {
			return &internal.ExternalServiceError{Service: service, Op: req.op, Status: resp.StatusCode, Err: fmt.Errorf("code %d: %s", env.Code, env.Message)}
		}
		if out != nil {
			if err := json.Unmarshal(payload, out); err != nil {
				return &internal.ExternalServiceError{Service: service, Op: req.op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = &internal.ExternalServiceError{Service: service, Op: req.op, Err: errors.New("request failed")}
	}
	return lastErr
}

func (c *Client) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, c.maxBackoff)
		}
	}
	wait := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
	return min(wait, c.maxBackoff)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func errorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return fmt.Sprintf("code %d: %s", env.Code, env.Message)
	}
	return util.Truncate(strings.TrimSpace(string(body)), 300)
}

func jsonRequest(op, method, path string, body any) (request, error) {
	blob, err := json.Marshal(body)
	if err != nil {
		return request{}, err
	}
	return request{op: op, method: method, path: path, body: blob, contentType: "application/json"}, nil
}

func multipartRequest(op, path, field, filename string, content []byte) (request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return request{}, err
	}
	if _, err := part.Write(content); err != nil {
		return request{}, err
	}
	if err := w.Close(); err != nil {
		return request{}, err
	}
	return request{op: op, method: http.MethodPost, path: path, body: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}
