// Package siteaudit provides a client for the headless-browser site audit
// service. The service loads a page, measures load time, checks the TLS
// certificate, counts h1 elements, and harvests mailto/contact emails.
package siteaudit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/resilience"
)

const defaultBaseURL = "http://localhost:3001"

// Report holds the measurements for one audited site.
type Report struct {
	SSL      bool     `json:"ssl"`
	LoadTime float64  `json:"load_time"`
	H1Count  int      `json:"h1_count"`
	Emails   []string `json:"emails"`
}

// Client audits websites via the headless-browser service.
type Client interface {
	Audit(ctx context.Context, siteURL string) (*Report, error)
	Health(ctx context.Context) error
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default service base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the default audit retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	retry   resilience.Policy
}

// NewClient creates a site audit client. Transient failures are retried
// three times with exponential backoff starting at 2s.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 45 * time.Second,
		},
		retry: resilience.AuditPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type auditRequest struct {
	URL string `json:"url"`
}

type auditResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *httpClient) Audit(ctx context.Context, siteURL string) (*Report, error) {
	policy := c.retry
	policy.OnRetry = resilience.RetryLogger("siteaudit", "audit")

	return resilience.DoVal(ctx, policy, func(ctx context.Context) (*Report, error) {
		return c.auditOnce(ctx, siteURL)
	})
}

func (c *httpClient) auditOnce(ctx context.Context, siteURL string) (*Report, error) {
	body, err := json.Marshal(auditRequest{URL: siteURL})
	if err != nil {
		return nil, eris.Wrap(err, "siteaudit: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audit", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "siteaudit: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "siteaudit: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "siteaudit: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("siteaudit: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var envelope auditResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, eris.Wrap(err, "siteaudit: unmarshal response")
	}
	if !envelope.Success {
		return nil, eris.Errorf("siteaudit: audit failed: %s", envelope.Error)
	}
	if len(envelope.Data) == 0 {
		return nil, eris.New("siteaudit: success response missing data")
	}

	// Pointer fields so absent keys are distinguishable from zero values.
	var data struct {
		SSL      *bool    `json:"ssl"`
		LoadTime *float64 `json:"load_time"`
		H1Count  *int     `json:"h1_count"`
		Emails   []string `json:"emails"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, eris.Wrap(err, "siteaudit: unmarshal data")
	}
	if data.SSL == nil || data.LoadTime == nil || data.H1Count == nil {
		return nil, eris.New("siteaudit: response missing required fields")
	}

	return &Report{
		SSL:      *data.SSL,
		LoadTime: *data.LoadTime,
		H1Count:  *data.H1Count,
		Emails:   data.Emails,
	}, nil
}

func (c *httpClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return eris.Wrap(err, "siteaudit: create health request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "siteaudit: health check")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("siteaudit: health status %d", resp.StatusCode)
	}
	return nil
}
