package repo

import "context"

// ArtifactRepo persists per-day export chunks and digests
type ArtifactRepo interface {
	// DayDir returns the directory holding the artifacts of day
	DayDir(day string) string

	// DayExists reports whether an export has been written for day
	DayExists(day string) bool

	// WriteChunks replaces the day's chunk files with chunks and returns their paths.
	// An empty chunks slice still creates the day directory.
	WriteChunks(ctx context.Context, day string, chunks []string) ([]string, error)

	// ListChunks returns the day's chunk files in order
	ListChunks(ctx context.Context, day string) ([]string, error)

	// ReadChunk reads one chunk file
	ReadChunk(ctx context.Context, path string) (string, error)

	// WriteDigest atomically writes the day's digest
	WriteDigest(ctx context.Context, day, text string) error

	// ReadDigest reads the day's digest. ok is false when no digest exists.
	ReadDigest(ctx context.Context, day string) (text string, ok bool, err error)
}
