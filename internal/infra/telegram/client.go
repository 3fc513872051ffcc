// Package telegram is a minimal Telegram Bot API client: long polling for
// updates and sending formatted messages.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.telegram.org"

// Config contains Bot API settings
type Config struct {
	Token       string
	BaseURL     string        // empty uses api.telegram.org
	PollTimeout time.Duration // long polling wait per getUpdates call
}

// Update is one entry of a getUpdates response
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is the subset of the Bot API Message object the capture path reads
type Message struct {
	MessageID       int64          `json:"message_id"`
	MessageThreadID int64          `json:"message_thread_id"`
	IsTopicMessage  bool           `json:"is_topic_message"`
	From            *User          `json:"from"`
	Chat            Chat           `json:"chat"`
	Date            int64          `json:"date"`
	Text            string         `json:"text"`
	Caption         string         `json:"caption"`
	ForwardOrigin   *ForwardOrigin `json:"forward_origin"`
	ForwardFromChat *Chat          `json:"forward_from_chat"` // pre-7.0 Bot API
}

// User is a Telegram user or bot
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	IsBot     bool   `json:"is_bot"`
}

// Chat is a Telegram chat
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"` // private, group, supergroup, channel
	Title string `json:"title"`
}

// ForwardOrigin describes the source of a forwarded message
type ForwardOrigin struct {
	Type string `json:"type"` // user, hidden_user, chat, channel
}

// Time returns the message send time
func (m *Message) Time() time.Time {
	return time.Unix(m.Date, 0)
}

// ChatIDString returns the chat id as the string form used in config
func (m *Message) ChatIDString() string {
	return strconv.FormatInt(m.Chat.ID, 10)
}

// OriginType returns the forward origin type, or "" for an original message
func (m *Message) OriginType() string {
	if m.ForwardOrigin != nil {
		return m.ForwardOrigin.Type
	}
	if m.ForwardFromChat != nil {
		return m.ForwardFromChat.Type
	}
	return ""
}

// DisplayName joins first and last name
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Client talks to the Telegram Bot API over HTTPS
type Client struct {
	baseURL     string
	http        *http.Client
	pollTimeout time.Duration
	logger      zerolog.Logger
}

// NewClient creates a new Bot API client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(base, "/") + "/bot" + cfg.Token,
		http:        &http.Client{Timeout: cfg.PollTimeout + 15*time.Second},
		pollTimeout: cfg.PollTimeout,
		logger:      logger.With().Str("component", "telegram").Logger(),
	}
}

// GetUpdates long-polls for message updates starting at offset
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	data, err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"limit":           100,
		"timeout":         int(c.pollTimeout / time.Second),
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, errors.Wrap(err, "parse updates")
	}
	return updates, nil
}

// SendMessage sends text to chatID, into threadID when non-empty.
// parseMode is passed through as-is; empty sends plain text.
func (c *Client) SendMessage(ctx context.Context, chatID, threadID, text, parseMode string) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	if threadID != "" {
		id, err := strconv.ParseInt(threadID, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid thread id %q", threadID)
		}
		payload["message_thread_id"] = id
	}

	if _, err := c.call(ctx, "sendMessage", payload); err != nil {
		return err
	}
	c.logger.Debug().Str("chat_id", chatID).Str("thread_id", threadID).Msg("message sent")
	return nil
}

// Listen runs the getUpdates loop until ctx is done, handing every message to handler.
// Errors back off exponentially up to 30s.
func (c *Client) Listen(ctx context.Context, handler func(ctx context.Context, msg *Message)) error {
	c.logger.Info().Msg("polling started")
	var offset int64
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			c.logger.Info().Msg("polling stopped")
			return nil
		}

		updates, err := c.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Warn().Err(err).Dur("backoff", backoff).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message != nil {
				handler(ctx, u.Message)
			}
		}
	}
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "create %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s request failed", method)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrapf(err, "decode %s response (status %d)", method, resp.StatusCode)
	}
	if !result.OK {
		return nil, errors.Errorf("%s: %s", method, result.Description)
	}
	return result.Result, nil
}
