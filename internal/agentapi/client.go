package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every call when no explicit timeout is configured.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4 << 10

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("agent service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("agent service returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the agent service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-call ceiling. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: missing host", baseURL)
	}

	c := &Client{
		baseURL: base,
		// The per-call context carries the deadline, so the client itself
		// has no Timeout.
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string { return c.baseURL }

// Timeout returns the per-call ceiling.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Invoke posts req to the endpoint for target and decodes the reply. A
// response without messages is not an error here; the caller decides.
func (c *Client) Invoke(ctx context.Context, target Target, req Request) (*Response, error) {
	endpoint, ok := target.Endpoint()
	if !ok {
		return nil, fmt.Errorf("unknown target %q", target)
	}
	var resp Response
	if err := c.do(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	return &resp, nil
}

// DownloadURL returns the address the generated report is served from.
func (c *Client) DownloadURL(report string) string {
	return c.baseURL + EndpointDownloadReportPDF + "/" + url.PathEscape(report)
}

// ReportURL returns the address of a stored report listed by ListReports.
func (c *Client) ReportURL(name string) string {
	return c.baseURL + EndpointDownloadReport + "/" + url.PathEscape(name)
}

// ChooseAgents asks the service to run the selected agents in order.
func (c *Client) ChooseAgents(ctx context.Context, agents []string) (*ChooseResult, error) {
	var result ChooseResult
	if err := c.do(ctx, http.MethodPost, EndpointChooseAgent, ChooseRequest{SelectedAgents: agents}, &result); err != nil {
		return nil, fmt.Errorf("%s: %w", EndpointChooseAgent, err)
	}
	return &result, nil
}

// ListReports returns the report filenames known to the service. Both a bare
// JSON array and an object with a "reports" key are accepted.
func (c *Client) ListReports(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, EndpointGetReports, nil, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", EndpointGetReports, err)
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Reports []string `json:"reports"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", EndpointGetReports, err)
	}
	return wrapped.Reports, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id := RequestIDFrom(ctx); id != "" {
		httpReq.Header.Set(RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("request timed out after %s: %w", c.timeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("agent service responded",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("request timed out after %s: %w", c.timeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
