// Package telegram implements the transport Adapter for the Telegram Bot
// API, plus the direct API client used by the webhook-mode control plane.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

const defaultBaseURL = "https://api.telegram.org"

// tokenRe is the shape of a BotFather token: 123456789:ABCdef...
var tokenRe = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// ValidToken reports whether token has the BotFather token shape.
func ValidToken(token string) bool {
	return tokenRe.MatchString(token)
}

// Client is a minimal Telegram Bot API client. Every method authenticates
// with the bot's own token, so replies appear to originate from the
// correct bot identity.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	Token   string
	BaseURL string       // for testing; defaults to the public API
	Client  *http.Client // for testing; defaults to http.DefaultClient
}

// NewClient creates a Telegram API client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	c := &Client{
		token:   opts.Token,
		baseURL: opts.BaseURL,
		client:  opts.Client,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	return c, nil
}

// apiResponse is the Bot API envelope shared by every method.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// call POSTs a JSON payload to a Bot API method and unmarshals the result.
// result may be nil when the caller only cares about success.
func (c *Client) call(ctx context.Context, method string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("telegram: decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !envelope.OK {
		desc := envelope.Description
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("telegram: %s: %s (status %d)", method, desc, resp.StatusCode)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("telegram: decode %s result: %w", method, err)
		}
	}
	return nil
}

// BotInfo is the bot account identity returned by getMe.
type BotInfo struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// GetMe verifies the bot token and returns the bot identity.
func (c *Client) GetMe(ctx context.Context) (BotInfo, error) {
	var info BotInfo
	if err := c.call(ctx, "getMe", struct{}{}, &info); err != nil {
		return BotInfo{}, err
	}
	if !info.IsBot {
		return BotInfo{}, fmt.Errorf("telegram: token does not belong to a bot account")
	}
	return info, nil
}

// SendMessage delivers plain reply text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	payload := struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}{ChatID: chatID, Text: text}
	return c.call(ctx, "sendMessage", payload, nil)
}

// GetUpdates long-polls for new updates past offset, waiting up to
// timeoutSec server-side before returning an empty batch.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	payload := struct {
		Offset         int64    `json:"offset"`
		Timeout        int      `json:"timeout"`
		AllowedUpdates []string `json:"allowed_updates"`
	}{Offset: offset, Timeout: timeoutSec, AllowedUpdates: []string{"message"}}

	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SetWebhook registers url as the push delivery target for this bot.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	payload := struct {
		URL            string   `json:"url"`
		AllowedUpdates []string `json:"allowed_updates"`
	}{URL: url, AllowedUpdates: []string{"message", "callback_query"}}
	return c.call(ctx, "setWebhook", payload, nil)
}

// DeleteWebhook detaches push delivery, re-enabling long polling.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", struct{}{}, nil)
}
