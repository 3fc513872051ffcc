package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/repo"
)

// CaptureConfig contains push capture filter settings
type CaptureConfig struct {
	TargetChatID     string
	IgnoredThreadIDs []string
	CommandPrefix    string // events whose text starts with this are bot commands
	MaxTextLength    int    // in runes, 0 disables the cap
}

// DefaultCaptureConfig returns default capture configuration
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		CommandPrefix: "/",
	}
}

// Rejection reasons reported by Check
const (
	RejectWrongChat     = "wrong_chat"
	RejectChannelRepost = "channel_repost"
	RejectNotGroup      = "not_group"
	RejectCommand       = "command"
	RejectIgnoredThread = "ignored_thread"
	RejectEmptyText     = "empty_text"
	RejectTooLong       = "too_long"
)

// CaptureUsecase filters pushed events and stores the accepted ones
type CaptureUsecase struct {
	eventRepo repo.EventRepo
	config    CaptureConfig
	ignored   map[string]struct{}
	logger    zerolog.Logger
}

// NewCaptureUsecase creates a new capture usecase
func NewCaptureUsecase(eventRepo repo.EventRepo, config CaptureConfig, logger zerolog.Logger) *CaptureUsecase {
	ignored := make(map[string]struct{}, len(config.IgnoredThreadIDs))
	for _, id := range config.IgnoredThreadIDs {
		ignored[id] = struct{}{}
	}
	return &CaptureUsecase{
		eventRepo: eventRepo,
		config:    config,
		ignored:   ignored,
		logger:    logger.With().Str("component", "capture").Logger(),
	}
}

// Check applies the capture filters in order and returns the first failing reason.
// Duplicates are not checked here; the event store absorbs them.
func (uc *CaptureUsecase) Check(ev *domain.InboundEvent) (bool, string) {
	// 1. Only the configured chat
	if ev.ChatID != uc.config.TargetChatID {
		return false, RejectWrongChat
	}

	// 2. Reposts out of broadcast channels
	if ev.IsBroadcastRepost() {
		return false, RejectChannelRepost
	}

	// 3. Group rooms only
	if !ev.ChatKind.IsMultiParty() {
		return false, RejectNotGroup
	}

	// 4. Bot commands
	if uc.config.CommandPrefix != "" && strings.HasPrefix(ev.Text, uc.config.CommandPrefix) {
		return false, RejectCommand
	}

	// 5. Ignored topics
	if ev.ThreadID != nil {
		if _, ok := uc.ignored[*ev.ThreadID]; ok {
			return false, RejectIgnoredThread
		}
	}

	// 6. Something to read
	text := ev.ResolvedText()
	if strings.TrimSpace(text) == "" {
		return false, RejectEmptyText
	}

	// 7. Optional length cap
	if uc.config.MaxTextLength > 0 && utf8.RuneCountInString(text) > uc.config.MaxTextLength {
		return false, RejectTooLong
	}

	return true, ""
}

// OnEvent filters ev and stores it when accepted. A store failure is logged and
// does not change the filter decision.
func (uc *CaptureUsecase) OnEvent(ctx context.Context, ev *domain.InboundEvent) bool {
	ok, reason := uc.Check(ev)
	if !ok {
		uc.logger.Debug().
			Str("msg_id", ev.MessageID).
			Str("chat_id", ev.ChatID).
			Str("reason", reason).
			Msg("event rejected")
		return false
	}

	msg := domain.NewCapturedMessage(ev)
	if err := uc.eventRepo.Put(ctx, msg); err != nil {
		uc.logger.Error().Err(err).Str("msg_id", msg.ID).Msg("failed to store message")
		return true
	}

	uc.logger.Info().Str("msg_id", msg.ID).Str("author", msg.Author).Msg("message saved")
	return true
}
