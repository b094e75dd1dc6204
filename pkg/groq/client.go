// Package groq generates personalized outreach openers via the Groq
// chat completions API (OpenAI-compatible).
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "llama-3.3-70b-versatile"
)

const systemPrompt = `You are a professional business development representative. ` +
	`Write a personalized opening line (maximum 2 sentences) for a cold outreach email. ` +
	`Reference the specific website issues mentioned in the audit notes. ` +
	`Be helpful and direct, never salesy. Return only the opening line.`

// Client generates personalized email openers.
type Client interface {
	// Personalize turns audit notes into a short opening line. Empty notes
	// and degenerate model replies (under five words) are errors; callers
	// fall back to a generic opener.
	Personalize(ctx context.Context, auditNotes string) (string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a Groq API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func (c *httpClient) Personalize(ctx context.Context, auditNotes string) (string, error) {
	if strings.TrimSpace(auditNotes) == "" {
		return "", eris.New("groq: empty audit notes")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Audit notes: " + auditNotes},
		},
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		return "", eris.Wrap(err, "groq: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "groq: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "groq: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "groq: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("groq: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", eris.Wrap(err, "groq: unmarshal response")
	}
	if len(result.Choices) == 0 {
		return "", eris.New("groq: no completion choices")
	}

	opener := strings.TrimSpace(result.Choices[0].Message.Content)
	if len(strings.Fields(opener)) < 5 {
		return "", eris.Errorf("groq: degenerate completion: %q", opener)
	}
	return opener, nil
}
