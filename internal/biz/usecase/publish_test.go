package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/chatdigest/internal/biz/domain"
)

func newTestPublish(artifacts *mockArtifactRepo, chat *mockChatRepo, maxSize int) *PublishUsecase {
	cfg := DefaultPublishConfig()
	cfg.ChatID = "-100"
	cfg.ThreadID = "5"
	cfg.MaxSize = maxSize
	cfg.Header = "Discussed on {{date}}:"
	return NewPublishUsecase(artifacts, chat, cfg, zerolog.Nop())
}

func TestPublishUsecase_Publish(t *testing.T) {
	ctx := context.Background()
	artifacts := newMockArtifactRepo()
	chat := &mockChatRepo{}
	uc := newTestPublish(artifacts, chat, 100)

	require.NoError(t, artifacts.WriteDigest(ctx, "2024-03-01", "Hello *world*!\n"))
	require.NoError(t, uc.Publish(ctx, "2024-03-01"))

	require.Len(t, chat.sent, 1)
	msg := chat.sent[0]
	assert.Equal(t, "-100", msg.ChatID)
	assert.Equal(t, "5", msg.ThreadID)
	assert.Equal(t, domain.FormatMarkdownV2, msg.Mode)
	assert.Equal(t, "Discussed on 01\\.03:\nHello *world*\\!", msg.Text)
}

func TestPublishUsecase_MissingDigestSkips(t *testing.T) {
	chat := &mockChatRepo{}
	uc := newTestPublish(newMockArtifactRepo(), chat, 100)

	err := uc.Publish(context.Background(), "2024-03-01")
	assert.ErrorIs(t, err, ErrArtifactMissing)
	assert.Empty(t, chat.sent)
}

func TestPublishUsecase_TooLarge(t *testing.T) {
	ctx := context.Background()
	artifacts := newMockArtifactRepo()
	chat := &mockChatRepo{}
	uc := newTestPublish(artifacts, chat, 10)

	// 10 runes but 20 bytes: the limit counts characters
	require.NoError(t, artifacts.WriteDigest(ctx, "2024-03-01", strings.Repeat("ж", 10)))
	require.NoError(t, uc.Publish(ctx, "2024-03-01"))

	require.NoError(t, artifacts.WriteDigest(ctx, "2024-03-02", strings.Repeat("ж", 11)))
	err := uc.Publish(ctx, "2024-03-02")
	assert.ErrorIs(t, err, ErrDigestTooLarge)

	assert.Len(t, chat.sent, 1)
	_, kept, _ := artifacts.ReadDigest(ctx, "2024-03-02")
	assert.True(t, kept, "oversized digest stays on disk")
}

func TestPublishUsecase_PlainMode(t *testing.T) {
	cfg := DefaultPublishConfig()
	cfg.Mode = domain.FormatPlain
	cfg.Header = ""
	uc := NewPublishUsecase(newMockArtifactRepo(), &mockChatRepo{}, cfg, zerolog.Nop())

	msg, err := uc.Render("2024-03-01", "a.b!")
	require.NoError(t, err)
	assert.Equal(t, "a.b!", msg.Text)
}

// Capture nothing, export, digest and publish one day end to end.
func TestQuietDayEndToEnd(t *testing.T) {
	ctx := context.Background()
	loc := mustLocation(t, "Europe/Moscow")
	events := &mockEventRepo{}
	artifacts := newMockArtifactRepo()
	summary := &mockSummaryRepo{}
	chat := &mockChatRepo{}

	exportCfg := DefaultExportConfig()
	exportCfg.ChatID = "-100"
	exportCfg.Location = loc
	exporter := NewExportUsecase(events, artifacts, exportCfg, zerolog.Nop())

	digestCfg := DefaultDigestConfig()
	digestCfg.QuietTemplate = "Day {{days}}. Nothing happened."
	digestCfg.Epoch = time.Date(2024, 3, 1, 0, 0, 0, 0, loc)
	digestCfg.Location = loc
	digester := NewDigestUsecase(artifacts, summary, digestCfg, zerolog.Nop())

	publishCfg := DefaultPublishConfig()
	publishCfg.ChatID = "-100"
	publishCfg.Header = "Today {{date}}:"
	publishCfg.Location = loc
	publisher := NewPublishUsecase(artifacts, chat, publishCfg, zerolog.Nop())

	res, err := exporter.Export(ctx, time.Date(2024, 3, 3, 21, 0, 0, 0, loc))
	require.NoError(t, err)
	require.True(t, res.Empty())

	digest, err := digester.Generate(ctx, res.Day)
	require.NoError(t, err)
	assert.Equal(t, "Day 2. Nothing happened.", artifacts.digests["2024-03-03"])
	assert.True(t, digest.Quiet)

	require.NoError(t, publisher.Publish(ctx, res.Day))
	assert.Equal(t, []string{"Today 03\\.03:\nDay 2\\. Nothing happened\\."}, chat.texts())
	assert.Empty(t, summary.prompts)
}
