package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/devricklin/chatdigest/internal/biz/repo"
)

const (
	chunkPrefix = "messages_part"
	chunkSuffix = ".txt"
	digestFile  = "summary.txt"
)

// artifactRepo keeps export chunks and digests in one directory per day
type artifactRepo struct {
	root string
}

// NewArtifactRepo creates a filesystem artifact repository rooted at root
func NewArtifactRepo(root string) repo.ArtifactRepo {
	return &artifactRepo{root: root}
}

func (r *artifactRepo) DayDir(day string) string {
	return filepath.Join(r.root, day)
}

func (r *artifactRepo) DayExists(day string) bool {
	info, err := os.Stat(r.DayDir(day))
	return err == nil && info.IsDir()
}

// WriteChunks removes the day's previous chunks and writes chunks as messages_part1.txt ...
func (r *artifactRepo) WriteChunks(ctx context.Context, day string, chunks []string) ([]string, error) {
	dir := r.DayDir(day)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create day directory")
	}

	stale, err := r.ListChunks(ctx, day)
	if err != nil {
		return nil, err
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "remove stale chunk %s", path)
		}
	}

	paths := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		path := filepath.Join(dir, fmt.Sprintf("%s%d%s", chunkPrefix, i+1, chunkSuffix))
		if err := writeFileAtomic(path, []byte(chunk)); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ListChunks returns the day's chunk files ordered by part number
func (r *artifactRepo) ListChunks(ctx context.Context, day string) ([]string, error) {
	entries, err := os.ReadDir(r.DayDir(day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read day directory")
	}

	type part struct {
		n    int
		path string
	}
	var parts []part
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, chunkPrefix) || !strings.HasSuffix(name, chunkSuffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, chunkPrefix), chunkSuffix))
		if err != nil {
			continue
		}
		parts = append(parts, part{n: n, path: filepath.Join(r.DayDir(day), name)})
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })

	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		paths = append(paths, p.path)
	}
	return paths, nil
}

func (r *artifactRepo) ReadChunk(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read chunk %s", path)
	}
	return string(data), nil
}

func (r *artifactRepo) WriteDigest(ctx context.Context, day, text string) error {
	dir := r.DayDir(day)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create day directory")
	}
	return writeFileAtomic(filepath.Join(dir, digestFile), []byte(text))
}

func (r *artifactRepo) ReadDigest(ctx context.Context, day string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(r.DayDir(day), digestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "read digest")
	}
	return string(data), true, nil
}

// writeFileAtomic writes data to a temp file next to path and renames it into place
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "close %s", path)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "chmod %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "rename into %s", path)
	}
	return nil
}
