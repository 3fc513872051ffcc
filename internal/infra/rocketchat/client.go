// Package rocketchat reads room history from the Rocket.Chat REST API.
package rocketchat

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Room types understood by the history endpoints
const (
	RoomTypeGroup   = "group"   // private group, groups.messages
	RoomTypeChannel = "channel" // public channel, channels.messages
)

// Config contains REST API credentials
type Config struct {
	BaseURL   string
	UserID    string
	AuthToken string
	Count     int // messages per fetch, 0 uses the server default
	Timeout   time.Duration
}

// Message is one history entry
type Message struct {
	ID       string
	Text     string
	Username string
	SentAt   time.Time
	ThreadID string // tmid, set on thread replies
}

// Client is a Rocket.Chat REST client
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a new REST client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

// RoomMessages returns the messages currently returned by the room's history endpoint
func (c *Client) RoomMessages(ctx context.Context, roomType, roomID string) ([]Message, error) {
	var endpoint string
	switch roomType {
	case RoomTypeGroup:
		endpoint = "/api/v1/groups.messages"
	case RoomTypeChannel:
		endpoint = "/api/v1/channels.messages"
	default:
		return nil, errors.Errorf("unknown room type %q", roomType)
	}

	params := url.Values{"roomId": {roomID}}
	if c.config.Count > 0 {
		params.Set("count", strconv.Itoa(c.config.Count))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("X-Auth-Token", c.config.AuthToken)
	req.Header.Set("X-User-Id", c.config.UserID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s %s", roomType, roomID)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch %s %s: status %d: %s", roomType, roomID, resp.StatusCode, gjson.GetBytes(body, "error").String())
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.Errorf("fetch %s %s: invalid JSON", roomType, roomID)
	}

	result := gjson.ParseBytes(body)
	if !result.Get("success").Bool() {
		return nil, errors.Errorf("fetch %s %s: %s", roomType, roomID, result.Get("error").String())
	}

	var messages []Message
	result.Get("messages").ForEach(func(_, m gjson.Result) bool {
		messages = append(messages, Message{
			ID:       m.Get("_id").String(),
			Text:     m.Get("msg").String(),
			Username: m.Get("u.username").String(),
			SentAt:   parseTimestamp(m.Get("ts")),
			ThreadID: m.Get("tmid").String(),
		})
		return true
	})
	return messages, nil
}

// parseTimestamp accepts the ISO string form and the {"$date": ms} form
func parseTimestamp(v gjson.Result) time.Time {
	if d := v.Get("$date"); d.Exists() {
		return time.UnixMilli(d.Int())
	}
	t, err := time.Parse(time.RFC3339Nano, v.String())
	if err != nil {
		return time.Time{}
	}
	return t
}
