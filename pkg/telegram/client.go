// Package telegram sends campaign notifications through the Telegram Bot API.
package telegram

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

const defaultBaseURL = "https://api.telegram.org"

// alertMarkers are prefixes that already style a message as an alert.
var alertMarkers = []string{"❌", "⚠️", "🚨"}

// Client sends messages to a fixed Telegram chat.
type Client interface {
	SendMessage(ctx context.Context, text string) error
	SendAlert(ctx context.Context, text string) error
	// Me verifies the bot token by calling getMe and returns the bot username.
	Me(ctx context.Context) (string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
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

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *httpClient) {
		c.now = now
	}
}

type httpClient struct {
	botToken string
	chatID   string
	baseURL  string
	http     *http.Client
	now      func() time.Time
}

// NewClient creates a Telegram Bot API client bound to one chat.
func NewClient(botToken, chatID string, opts ...Option) Client {
	c := &httpClient{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *httpClient) SendMessage(ctx context.Context, text string) error {
	stamp := c.now().UTC().Format("2006-01-02 15:04 UTC")
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    c.chatID,
		Text:      text + "\n\n<i>" + stamp + "</i>",
		ParseMode: "HTML",
	})
	if err != nil {
		return eris.Wrap(err, "telegram: marshal request")
	}

	resp, err := c.call(ctx, "sendMessage", body)
	if err != nil {
		return err
	}
	if !resp.OK {
		return eris.Errorf("telegram: send failed: %s", resp.Description)
	}
	return nil
}

func (c *httpClient) SendAlert(ctx context.Context, text string) error {
	styled := false
	for _, m := range alertMarkers {
		if strings.HasPrefix(text, m) {
			styled = true
			break
		}
	}
	if !styled {
		text = "⚠️ " + text
	}
	return c.SendMessage(ctx, text)
}

func (c *httpClient) Me(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, "getMe", nil)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", eris.Errorf("telegram: getMe failed: %s", resp.Description)
	}

	var result struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", eris.Wrap(err, "telegram: unmarshal getMe")
	}
	return result.Username, nil
}

func (c *httpClient) call(ctx context.Context, method string, body []byte) (*apiResponse, error) {
	url := c.baseURL + "/bot" + c.botToken + "/" + method

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "telegram: call %s", method)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: read response")
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrapf(err, "telegram: unmarshal %s response", method)
	}
	return &result, nil
}
