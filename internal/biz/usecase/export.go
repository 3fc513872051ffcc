package usecase

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/repo"
)

// ExportConfig contains windowed export settings
type ExportConfig struct {
	ChatID            string
	ExcludedThreadIDs []string
	MaxChunkSize      int  // bytes per chunk file
	Consolidated      bool // write a single file regardless of size
	IncludeIDs        bool // prefix each line with the message id
	Location          *time.Location
}

// DefaultExportConfig returns default export configuration
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		MaxChunkSize: 100_000,
		IncludeIDs:   true,
		Location:     time.UTC,
	}
}

// ExportUsecase renders the trailing day of captured messages into chunk files
type ExportUsecase struct {
	eventRepo    repo.EventRepo
	artifactRepo repo.ArtifactRepo
	config       ExportConfig
	logger       zerolog.Logger
}

// NewExportUsecase creates a new export usecase
func NewExportUsecase(eventRepo repo.EventRepo, artifactRepo repo.ArtifactRepo, config ExportConfig, logger zerolog.Logger) *ExportUsecase {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &ExportUsecase{
		eventRepo:    eventRepo,
		artifactRepo: artifactRepo,
		config:       config,
		logger:       logger.With().Str("component", "export").Logger(),
	}
}

// Export writes the window [anchor-24h, anchor) into the directory of the window's end date.
// An empty window still succeeds; the result then reports zero lines.
func (uc *ExportUsecase) Export(ctx context.Context, anchor time.Time) (*domain.ExportResult, error) {
	window := domain.TrailingDay(anchor)
	day := window.Day(uc.config.Location)

	msgs, err := uc.eventRepo.Query(ctx, uc.config.ChatID, window.From, window.To, uc.config.ExcludedThreadIDs)
	if err != nil {
		return nil, errors.Wrapf(err, "query messages for %s", day)
	}

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Line(uc.config.IncludeIDs))
	}

	chunks := Chunk(lines, uc.config.MaxChunkSize, uc.config.Consolidated)
	texts := make([]string, 0, len(chunks))
	total := 0
	for i := range chunks {
		texts = append(texts, chunks[i].Text())
		total += chunks[i].Size
	}

	files, err := uc.artifactRepo.WriteChunks(ctx, day, texts)
	if err != nil {
		return nil, errors.Wrapf(err, "write chunks for %s", day)
	}

	uc.logger.Info().
		Str("day", day).
		Int("messages", len(lines)).
		Int("files", len(files)).
		Str("size", humanize.Bytes(uint64(total))).
		Msg("export finished")

	return &domain.ExportResult{
		Window:    window,
		Day:       day,
		Dir:       uc.artifactRepo.DayDir(day),
		Files:     files,
		LineCount: len(lines),
	}, nil
}

// Chunk partitions lines into chunks of at most maxSize bytes (one newline per line
// included). A line larger than maxSize is never split and forms its own chunk.
// With consolidated set, or maxSize <= 0, all lines go into a single chunk.
func Chunk(lines []string, maxSize int, consolidated bool) []domain.ExportChunk {
	if len(lines) == 0 {
		return nil
	}

	if consolidated || maxSize <= 0 {
		chunk := domain.ExportChunk{Index: 1, Lines: lines}
		for _, l := range lines {
			chunk.Size += domain.LineSize(l)
		}
		return []domain.ExportChunk{chunk}
	}

	var chunks []domain.ExportChunk
	cur := domain.ExportChunk{Index: 1}
	for _, line := range lines {
		size := domain.LineSize(line)
		if len(cur.Lines) > 0 && cur.Size+size > maxSize {
			chunks = append(chunks, cur)
			cur = domain.ExportChunk{Index: cur.Index + 1}
		}
		cur.Lines = append(cur.Lines, line)
		cur.Size += size
	}
	chunks = append(chunks, cur)
	return chunks
}
