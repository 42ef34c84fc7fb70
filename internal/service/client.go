package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	anonymizePath = "/api/anonymize"
	healthPath    = "/api/health"

	// maxResponseBytes bounds how much of a response body is read
	maxResponseBytes = 16 << 20
)

// Client talks to the remote anonymization service
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a client for the service rooted at cfg.BaseURL
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid service base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid service base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	return &Client{
		baseURL: base,
		timeout: cfg.Timeout,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// BaseURL returns the configured service root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Anonymize posts req to the service and returns the anonymized text.
// Every failure is reported as *Error.
func (c *Client) Anonymize(ctx context.Context, req Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+anonymizePath, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("creating request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("Anonymization request failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindTransport, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	c.logger.Debug("Anonymization response received",
		zap.Int("status_code", httpResp.StatusCode),
		zap.Int("response_size", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &Error{
			Kind:       KindStatus,
			StatusCode: httpResp.StatusCode,
			Message:    errorField(body),
		}
	}

	text := gjson.GetBytes(body, "anonymized_text")
	if !gjson.ValidBytes(body) || text.Type != gjson.String {
		return nil, &Error{
			Kind:       KindMalformed,
			StatusCode: httpResp.StatusCode,
			Message:    errorField(body),
			Err:        fmt.Errorf("response has no anonymized_text string"),
		}
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Kind: KindMalformed, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return &resp, nil
}

// Health checks GET /api/health
func (c *Client) Health(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if status := gjson.GetBytes(body, "status").String(); status != "ok" {
		return fmt.Errorf("health: unexpected status %q", status)
	}
	return nil
}

// errorField extracts a string "error" field from a JSON body
func errorField(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	field := gjson.GetBytes(body, "error")
	if field.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(field.String())
}
