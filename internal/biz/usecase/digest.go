package usecase

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/repo"
)

// ErrArtifactMissing is returned when the export for a day has not been written
var ErrArtifactMissing = stderrors.New("export artifact missing")

// ErrEmptySummary is returned when the summarizer produced no text for any chunk
var ErrEmptySummary = stderrors.New("summarizer returned no text")

// DigestConfig contains digest generation settings
type DigestConfig struct {
	Preamble      string    // prepended to every chunk sent to the summarizer
	QuietTemplate string    // supports {{days}}
	Epoch         time.Time // day zero of the quiet-day counter
	Location      *time.Location
}

// DefaultDigestConfig returns default digest configuration
func DefaultDigestConfig() DigestConfig {
	return DigestConfig{
		Preamble:      "Summarize the following chat log as a short list of discussed topics:",
		QuietTemplate: "Day {{days}}: nothing was discussed.",
		Location:      time.UTC,
	}
}

// DigestUsecase turns a day's export chunks into a digest
type DigestUsecase struct {
	artifactRepo repo.ArtifactRepo
	summaryRepo  repo.SummaryRepo
	config       DigestConfig
	logger       zerolog.Logger
}

// NewDigestUsecase creates a new digest usecase
func NewDigestUsecase(artifactRepo repo.ArtifactRepo, summaryRepo repo.SummaryRepo, config DigestConfig, logger zerolog.Logger) *DigestUsecase {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &DigestUsecase{
		artifactRepo: artifactRepo,
		summaryRepo:  summaryRepo,
		config:       config,
		logger:       logger.With().Str("component", "digest").Logger(),
	}
}

// Generate summarizes the chunks of day and writes the digest.
// A day without chunks gets the quiet-day text and no summarizer call is made.
func (uc *DigestUsecase) Generate(ctx context.Context, day string) (*domain.Digest, error) {
	if !uc.artifactRepo.DayExists(day) {
		return nil, errors.Wrapf(ErrArtifactMissing, "day %s", day)
	}

	chunks, err := uc.artifactRepo.ListChunks(ctx, day)
	if err != nil {
		return nil, errors.Wrapf(err, "list chunks for %s", day)
	}

	digest := &domain.Digest{Day: day}
	if len(chunks) == 0 {
		text, err := uc.QuietDay(day)
		if err != nil {
			return nil, err
		}
		digest.Text = text
		digest.Quiet = true
	} else {
		parts := make([]string, 0, len(chunks))
		for _, path := range chunks {
			content, err := uc.artifactRepo.ReadChunk(ctx, path)
			if err != nil {
				return nil, errors.Wrapf(err, "read chunk %s", path)
			}

			summary, err := uc.summaryRepo.Summarize(ctx, uc.prompt(content))
			if err != nil {
				uc.logger.Error().Err(err).Str("day", day).Str("chunk", path).Msg("summarizer failed, no digest written")
				return nil, errors.Wrapf(err, "summarize %s", path)
			}
			if s := strings.TrimSpace(summary); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			uc.logger.Error().Str("day", day).Int("chunks", len(chunks)).Msg("summarizer returned only blank text, no digest written")
			return nil, errors.Wrapf(ErrEmptySummary, "day %s", day)
		}
		digest.Text = strings.Join(parts, "\n\n")
	}

	if err := uc.artifactRepo.WriteDigest(ctx, day, digest.Text); err != nil {
		return nil, errors.Wrapf(err, "write digest for %s", day)
	}

	uc.logger.Info().
		Str("day", day).
		Int("chunks", len(chunks)).
		Bool("quiet", digest.Quiet).
		Msg("digest written")
	return digest, nil
}

// QuietDay renders the placeholder digest for a day without messages
func (uc *DigestUsecase) QuietDay(day string) (string, error) {
	d, err := time.ParseInLocation(domain.DateLayout, day, uc.config.Location)
	if err != nil {
		return "", errors.Wrapf(err, "parse day %q", day)
	}
	n := domain.DaysSince(uc.config.Epoch, d, uc.config.Location)
	return strings.ReplaceAll(uc.config.QuietTemplate, "{{days}}", strconv.Itoa(n)), nil
}

func (uc *DigestUsecase) prompt(chunk string) string {
	if uc.config.Preamble == "" {
		return chunk
	}
	return uc.config.Preamble + "\n\n" + chunk
}
