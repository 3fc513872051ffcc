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

// line returns a line occupying size bytes in a chunk
func line(size int) string {
	return strings.Repeat("x", size-1)
}

func chunkSizes(chunks []domain.ExportChunk) []int {
	sizes := make([]int, 0, len(chunks))
	for _, c := range chunks {
		sizes = append(sizes, c.Size)
	}
	return sizes
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name         string
		sizes        []int
		max          int
		consolidated bool
		want         []int
	}{
		{"greedy", []int{10, 10, 10}, 25, false, []int{20, 10}},
		{"exact fit", []int{10, 15}, 25, false, []int{25}},
		{"oversize alone", []int{30}, 25, false, []int{30}},
		{"oversize between", []int{10, 30, 10}, 25, false, []int{10, 30, 10}},
		{"consolidated", []int{10, 10, 10}, 25, true, []int{30}},
		{"no limit", []int{10, 10, 10}, 0, false, []int{30}},
		{"empty", nil, 25, false, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lines []string
			for _, s := range tt.sizes {
				lines = append(lines, line(s))
			}
			chunks := Chunk(lines, tt.max, tt.consolidated)
			assert.Equal(t, tt.want, chunkSizes(chunks))

			var rejoined []string
			for i, c := range chunks {
				assert.Equal(t, i+1, c.Index)
				rejoined = append(rejoined, c.Lines...)
			}
			assert.Equal(t, lines, rejoined, "chunking must keep every line in order")
		})
	}
}

func TestExportUsecase_Export(t *testing.T) {
	ctx := context.Background()
	anchor := time.Date(2024, 3, 2, 21, 0, 0, 0, time.UTC)

	events := &mockEventRepo{}
	put := func(id, thread string, at time.Time) {
		require.NoError(t, events.Put(ctx, &domain.CapturedMessage{
			ID: id, ChatID: "-100", ThreadID: domain.StringPtr(thread),
			Author: "alice", Text: "msg " + id + "\nsecond line", Timestamp: at,
		}))
	}
	put("before", "", anchor.Add(-24*time.Hour-time.Second))
	put("first", "", anchor.Add(-24*time.Hour))
	put("ignored", "9", anchor.Add(-time.Hour))
	put("last", "3", anchor.Add(-time.Second))
	put("at-anchor", "", anchor)

	artifacts := newMockArtifactRepo()
	cfg := DefaultExportConfig()
	cfg.ChatID = "-100"
	cfg.ExcludedThreadIDs = []string{"9"}
	uc := NewExportUsecase(events, artifacts, cfg, zerolog.Nop())

	res, err := uc.Export(ctx, anchor)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", res.Day)
	assert.Equal(t, 2, res.LineCount)
	assert.Equal(t, "/exports/2024-03-02", res.Dir)
	require.Len(t, res.Files, 1)

	assert.Equal(t, []string{
		"first | alice: msg first second line\nlast | alice: msg last second line",
	}, artifacts.days["2024-03-02"])
}

func TestExportUsecase_EmptyWindowCreatesDay(t *testing.T) {
	artifacts := newMockArtifactRepo()
	cfg := DefaultExportConfig()
	cfg.ChatID = "-100"
	uc := NewExportUsecase(&mockEventRepo{}, artifacts, cfg, zerolog.Nop())

	res, err := uc.Export(context.Background(), time.Date(2024, 3, 2, 21, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Empty(t, res.Files)
	assert.True(t, artifacts.DayExists("2024-03-02"))
}

func TestExportUsecase_DayFollowsLocation(t *testing.T) {
	artifacts := newMockArtifactRepo()
	cfg := DefaultExportConfig()
	cfg.ChatID = "-100"
	cfg.Location = mustLocation(t, "Europe/Moscow")
	uc := NewExportUsecase(&mockEventRepo{}, artifacts, cfg, zerolog.Nop())

	// 22:30 UTC is already the next day in Moscow
	res, err := uc.Export(context.Background(), time.Date(2024, 3, 2, 22, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-03", res.Day)
}

func TestExportUsecase_WriteFailure(t *testing.T) {
	artifacts := newMockArtifactRepo()
	artifacts.failOn = "write_chunks"
	uc := NewExportUsecase(&mockEventRepo{}, artifacts, DefaultExportConfig(), zerolog.Nop())

	_, err := uc.Export(context.Background(), time.Now())
	assert.Error(t, err)
}

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}
