package usecase

import (
	"context"
	stderrors "errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/repo"
	"github.com/devricklin/chatdigest/internal/markup"
)

// ErrDigestTooLarge is returned when a digest exceeds the publish size limit
var ErrDigestTooLarge = stderrors.New("digest too large to publish")

// PublishConfig contains digest publishing settings
type PublishConfig struct {
	ChatID   string
	ThreadID string
	MaxSize  int    // in runes, 0 disables the check
	Header   string // supports {{date}} as DD.MM
	Mode     domain.FormatMode
	Location *time.Location
}

// DefaultPublishConfig returns default publish configuration
func DefaultPublishConfig() PublishConfig {
	return PublishConfig{
		MaxSize:  4000,
		Header:   "Discussed today {{date}}:",
		Mode:     domain.FormatMarkdownV2,
		Location: time.UTC,
	}
}

// PublishUsecase sends a day's digest to the destination chat
type PublishUsecase struct {
	artifactRepo repo.ArtifactRepo
	chatRepo     repo.ChatRepo
	config       PublishConfig
	logger       zerolog.Logger
}

// NewPublishUsecase creates a new publish usecase
func NewPublishUsecase(artifactRepo repo.ArtifactRepo, chatRepo repo.ChatRepo, config PublishConfig, logger zerolog.Logger) *PublishUsecase {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Mode == "" {
		config.Mode = domain.FormatMarkdownV2
	}
	return &PublishUsecase{
		artifactRepo: artifactRepo,
		chatRepo:     chatRepo,
		config:       config,
		logger:       logger.With().Str("component", "publish").Logger(),
	}
}

// Publish sends the digest of day. A missing digest is skipped with a warning and
// returns ErrArtifactMissing; an oversized one is kept on disk and not sent.
func (uc *PublishUsecase) Publish(ctx context.Context, day string) error {
	text, ok, err := uc.artifactRepo.ReadDigest(ctx, day)
	if err != nil {
		return errors.Wrapf(err, "read digest for %s", day)
	}
	if !ok {
		uc.logger.Warn().Str("day", day).Msg("no digest for day, skipping publish")
		return errors.Wrapf(ErrArtifactMissing, "digest for %s", day)
	}

	size := utf8.RuneCountInString(text)
	if uc.config.MaxSize > 0 && size > uc.config.MaxSize {
		uc.logger.Warn().Str("day", day).Int("size", size).Int("max", uc.config.MaxSize).Msg("digest too large, not publishing")
		return errors.Wrapf(ErrDigestTooLarge, "%d > %d runes", size, uc.config.MaxSize)
	}

	msg, err := uc.Render(day, text)
	if err != nil {
		return err
	}

	if err := uc.chatRepo.Send(ctx, msg); err != nil {
		return errors.Wrapf(err, "send digest for %s", day)
	}

	uc.logger.Info().Str("day", day).Int("size", size).Msg("digest published")
	return nil
}

// Render builds the outbound message for a digest: header line, then the digest,
// escaped for the destination when MarkdownV2 is selected
func (uc *PublishUsecase) Render(day, text string) (*domain.OutboundMessage, error) {
	d, err := time.ParseInLocation(domain.DateLayout, day, uc.config.Location)
	if err != nil {
		return nil, errors.Wrapf(err, "parse day %q", day)
	}

	body := strings.TrimSpace(text)
	if header := strings.ReplaceAll(uc.config.Header, "{{date}}", d.Format("02.01")); header != "" {
		body = header + "\n" + body
	}
	if uc.config.Mode == domain.FormatMarkdownV2 {
		body = markup.Escape(body)
	}

	return &domain.OutboundMessage{
		ChatID:   uc.config.ChatID,
		ThreadID: uc.config.ThreadID,
		Text:     body,
		Mode:     uc.config.Mode,
	}, nil
}
