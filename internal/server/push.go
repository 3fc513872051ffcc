package server

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/usecase"
	"github.com/devricklin/chatdigest/internal/infra/feishu"
	"github.com/devricklin/chatdigest/internal/infra/telegram"
)

// TelegramListener delivers pushed Telegram messages
type TelegramListener interface {
	Listen(ctx context.Context, handler func(ctx context.Context, msg *telegram.Message)) error
}

// FeishuListener delivers pushed Feishu messages
type FeishuListener interface {
	Listen(ctx context.Context, handler feishu.MessageHandler) error
}

// AuthorResolver maps a Feishu sender open_id to a display name
type AuthorResolver interface {
	AuthorName(ctx context.Context, chatID, senderID string) string
}

// PushServer converts pushed platform messages into inbound events for capture
type PushServer struct {
	captureUC *usecase.CaptureUsecase
	listen    func(ctx context.Context) error
	logger    zerolog.Logger
}

func newPushServer(captureUC *usecase.CaptureUsecase, platform string, logger zerolog.Logger) *PushServer {
	return &PushServer{
		captureUC: captureUC,
		logger:    logger.With().Str("component", "push").Str("platform", platform).Logger(),
	}
}

// NewTelegramPushServer creates a push server fed by Telegram long polling
func NewTelegramPushServer(listener TelegramListener, captureUC *usecase.CaptureUsecase, logger zerolog.Logger) *PushServer {
	s := newPushServer(captureUC, "telegram", logger)
	s.listen = func(ctx context.Context) error {
		return listener.Listen(ctx, func(ctx context.Context, msg *telegram.Message) {
			s.Handle(ctx, TelegramEvent(msg))
		})
	}
	return s
}

// NewFeishuPushServer creates a push server fed by the Feishu websocket
func NewFeishuPushServer(listener FeishuListener, authors AuthorResolver, captureUC *usecase.CaptureUsecase, logger zerolog.Logger) *PushServer {
	s := newPushServer(captureUC, "feishu", logger)
	s.listen = func(ctx context.Context) error {
		return listener.Listen(ctx, func(ctx context.Context, msg *feishu.Message) {
			// bot output, including our own published digests, is not chat activity
			if msg.IsFromApp() {
				return
			}
			name := ""
			if authors != nil {
				name = authors.AuthorName(ctx, msg.ChatID, msg.SenderID)
			}
			s.Handle(ctx, FeishuEvent(msg, name))
		})
	}
	return s
}

// Run listens until ctx is done
func (s *PushServer) Run(ctx context.Context) error {
	s.logger.Info().Msg("push listener started")
	err := s.listen(ctx)
	s.logger.Info().Msg("push listener stopped")
	return err
}

// Handle passes ev to capture. Redelivered messages are absorbed by the
// event store, which ignores a repeated message id.
func (s *PushServer) Handle(ctx context.Context, ev *domain.InboundEvent) bool {
	if ev == nil {
		return false
	}
	return s.captureUC.OnEvent(ctx, ev)
}

// TelegramEvent maps a Bot API message to an inbound event
func TelegramEvent(msg *telegram.Message) *domain.InboundEvent {
	if msg == nil {
		return nil
	}

	ev := &domain.InboundEvent{
		MessageID:     strconv.FormatInt(msg.MessageID, 10),
		ChatID:        msg.ChatIDString(),
		ChatKind:      domain.ChatKind(msg.Chat.Type),
		Text:          msg.Text,
		Caption:       msg.Caption,
		Timestamp:     msg.Time(),
		ForwardOrigin: domain.ForwardOrigin(msg.OriginType()),
	}
	if msg.IsTopicMessage || msg.MessageThreadID != 0 {
		ev.ThreadID = domain.StringPtr(strconv.FormatInt(msg.MessageThreadID, 10))
	}
	if msg.From != nil {
		ev.AuthorHandle = msg.From.Username
		ev.AuthorName = msg.From.DisplayName()
	}
	return ev
}

// FeishuEvent maps a pushed Feishu message to an inbound event. Feishu has no
// handles, so the resolved name is used and the open_id is the fallback.
func FeishuEvent(msg *feishu.Message, authorName string) *domain.InboundEvent {
	if msg == nil {
		return nil
	}

	kind := domain.ChatKindPrivate
	if msg.ChatType == "group" {
		kind = domain.ChatKindGroup
	}
	if authorName == "" {
		authorName = msg.SenderID
	}

	return &domain.InboundEvent{
		MessageID:  msg.MsgID,
		ChatID:     msg.ChatID,
		ChatKind:   kind,
		Text:       msg.Content,
		AuthorName: authorName,
		Timestamp:  msg.CreateTime,
		ThreadID:   domain.StringPtr(msg.RootID),
	}
}
