package feishu

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Message is a Feishu message, either pushed over the websocket or listed from history
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, post, image, ...
	ChatType   string // p2p, group; empty for history items
	Content    string // extracted text
	RootID     string // root message of the thread the message replies in
	SenderID   string
	SenderType string // user, app
	CreateTime time.Time
}

// IsFromApp reports whether the message was sent by a bot
func (m *Message) IsFromApp() bool {
	return m.SenderType == "app" || m.SenderType == "bot"
}

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID string
	Name     string
}

// MessageHandler is the callback for pushed messages
type MessageHandler func(ctx context.Context, msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	logger    zerolog.Logger
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, logger zerolog.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		logger:    logger.With().Str("component", "feishu").Logger(),
	}
}

// Listen connects over WebSocket and hands every received message to handler
// until ctx is done
func (c *Client) Listen(ctx context.Context, handler MessageHandler) error {
	// the SDK needs a quick return to ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			if msg := convertEvent(event); msg != nil {
				go handler(ctx, msg)
			}
			return nil
		})

	wsCli := larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelWarn),
	)

	c.logger.Info().Msg("starting websocket connection")

	errCh := make(chan error, 1)
	go func() {
		errCh <- wsCli.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "feishu websocket")
	}
}

// convertEvent maps a receive event to a Message, or nil when it carries no message
func convertEvent(event *larkim.P2MessageReceiveV1) *Message {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil
	}
	raw := event.Event.Message

	msg := &Message{
		ChatID:   deref(raw.ChatId),
		MsgID:    deref(raw.MessageId),
		MsgType:  deref(raw.MessageType),
		ChatType: deref(raw.ChatType),
		RootID:   deref(raw.RootId),
	}

	if raw.CreateTime != nil {
		if ms, err := strconv.ParseInt(*raw.CreateTime, 10, 64); err == nil {
			msg.CreateTime = time.UnixMilli(ms)
		}
	}

	if sender := event.Event.Sender; sender != nil {
		msg.SenderType = deref(sender.SenderType)
		if sender.SenderId != nil {
			msg.SenderID = deref(sender.SenderId.OpenId)
		}
	}

	mentionMap := make(map[string]string)
	for _, mention := range raw.Mentions {
		if mention.Key != nil && mention.Name != nil {
			mentionMap[*mention.Key] = *mention.Name
		}
	}
	msg.Content = parseContent(msg.MsgType, deref(raw.Content), mentionMap)
	return msg
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return errors.Wrap(err, "send message")
	}
	if !resp.Success() {
		return errors.Errorf("send message error: %s", resp.Msg)
	}

	c.logger.Debug().Str("chat_id", chatID).Msg("message sent")
	return nil
}

// ReplyText replies to messageID, which places the reply in that message's thread
func (c *Client) ReplyText(ctx context.Context, messageID, text string) error {
	req := larkim.NewReplyMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(ctx, req)
	if err != nil {
		return errors.Wrap(err, "reply message")
	}
	if !resp.Success() {
		return errors.Errorf("reply message error: %s", resp.Msg)
	}

	c.logger.Debug().Str("root_id", messageID).Msg("reply sent")
	return nil
}

// ListMessages retrieves the latest pageSize messages of a chat (max 50),
// oldest first
func (c *Client) ListMessages(ctx context.Context, chatID string, pageSize int) ([]*Message, error) {
	if pageSize > 50 {
		pageSize = 50
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	// descending so the page holds the newest messages, not the oldest ones
	req := larkim.NewListMessageReqBuilder().
		ContainerIdType("chat").
		ContainerId(chatID).
		SortType("ByCreateTimeDesc").
		PageSize(pageSize).
		Build()

	resp, err := c.larkCli.Im.Message.List(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	if !resp.Success() {
		return nil, errors.Errorf("list messages error: %s", resp.Msg)
	}

	var messages []*Message
	for _, item := range resp.Data.Items {
		msg := &Message{
			ChatID:  chatID,
			MsgID:   deref(item.MessageId),
			MsgType: deref(item.MsgType),
			RootID:  deref(item.RootId),
		}

		if item.CreateTime != nil {
			if ms, err := strconv.ParseInt(*item.CreateTime, 10, 64); err == nil {
				msg.CreateTime = time.UnixMilli(ms)
			}
		}

		mentionMap := make(map[string]string)
		for _, mention := range item.Mentions {
			if mention.Key != nil && mention.Name != nil {
				mentionMap[*mention.Key] = *mention.Name
			}
		}
		if item.Body != nil {
			msg.Content = parseContent(msg.MsgType, deref(item.Body.Content), mentionMap)
		}

		if item.Sender != nil {
			msg.SenderID = deref(item.Sender.Id)
			msg.SenderType = deref(item.Sender.SenderType)
		}

		messages = append(messages, msg)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	c.logger.Debug().Str("chat_id", chatID).Int("count", len(messages)).Msg("messages listed")
	return messages, nil
}

// GetChatMembers retrieves all members of a chat
func (c *Client) GetChatMembers(ctx context.Context, chatID string) ([]*ChatMember, error) {
	var members []*ChatMember
	var pageToken string

	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, errors.Wrap(err, "get chat members")
		}
		if !resp.Success() {
			return nil, errors.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			members = append(members, &ChatMember{
				MemberID: deref(item.MemberId),
				Name:     deref(item.Name),
			})
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	return members, nil
}

func textContent(text string) string {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})
	return string(contentJSON)
}

// parseContent extracts readable text from a message body.
// Non-text types yield "" so callers can treat them as empty.
func parseContent(msgType, raw string, mentionMap map[string]string) string {
	switch msgType {
	case "text":
		return parseTextContent(raw, mentionMap)
	case "post":
		return parsePostContent(raw, mentionMap)
	default:
		return ""
	}
}

// parseTextContent extracts text from a text message and resolves @_user_N placeholders
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent flattens a rich text message into lines of text
func parsePostContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var lines []string
	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}
	for _, line := range parsed.Content {
		var b strings.Builder
		for _, elem := range line {
			switch elem.Tag {
			case "text", "a":
				b.WriteString(elem.Text)
			case "at":
				if name, ok := mentionMap[elem.UserID]; ok {
					b.WriteString("@" + name)
				} else if elem.UserID != "" {
					b.WriteString("@" + elem.UserID)
				}
			}
		}
		if b.Len() > 0 {
			lines = append(lines, b.String())
		}
	}

	return replaceMentions(strings.Join(lines, "\n"), mentionMap)
}

// replaceMentions replaces mention placeholders (@_user_1, ...) with real names
func replaceMentions(text string, mentionMap map[string]string) string {
	for key, name := range mentionMap {
		text = strings.ReplaceAll(text, key, "@"+name)
	}
	return text
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
