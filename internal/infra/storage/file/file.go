// Package file stores batches as JSON documents on the local filesystem,
// one file per batch at <dir>/<rootID>/<index>.json.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

var ErrInvalidRootID = errors.New("invalid root id")

// Sink writes batches below a base directory.
type Sink struct {
	dir string
}

var (
	_ storage.Sink          = (*Sink)(nil)
	_ storage.BatchLister   = (*Sink)(nil)
	_ storage.ThreadLocator = (*Sink)(nil)
)

// NewSink creates the base directory if needed.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &Sink{dir: dir}, nil
}

// Path returns the file a batch is stored at.
func (s *Sink) Path(rootID string, index int) string {
	return filepath.Join(s.dir, rootID, strconv.Itoa(index)+".json")
}

func (s *Sink) Write(ctx context.Context, rootID string, index int, threads []domain.Thread) error {
	if err := validRootID(rootID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(domain.Batch{RootID: rootID, Index: index, Threads: threads})
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	rootDir := filepath.Join(s.dir, rootID)
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return fmt.Errorf("failed to create root dir: %w", err)
	}

	// Temp file + rename: readers never see a partial batch.
	tmp, err := os.CreateTemp(rootDir, ".batch-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write batch: %w", err)
	}
	// CreateTemp uses 0600.
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to chmod batch: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close batch: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(rootID, index)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to rename batch: %w", err)
	}
	return nil
}

// Read loads a stored batch.
func (s *Sink) Read(rootID string, index int) (domain.Batch, error) {
	var b domain.Batch
	data, err := os.ReadFile(s.Path(rootID, index))
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("failed to decode batch: %w", err)
	}
	return b, nil
}

func (s *Sink) Prune(ctx context.Context, rootID string, keep int) error {
	if err := validRootID(rootID); err != nil {
		return err
	}
	entries, err := s.entries(rootID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.index < keep {
			continue
		}
		if err := os.Remove(s.Path(rootID, e.index)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove batch %d: %w", e.index, err)
		}
	}
	return nil
}

func (s *Sink) ListBatches(ctx context.Context, rootID string) ([]domain.BatchInfo, error) {
	if err := validRootID(rootID); err != nil {
		return nil, err
	}
	entries, err := s.entries(rootID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.BatchInfo, 0, len(entries))
	for _, e := range entries {
		b, err := s.Read(rootID, e.index)
		if err != nil {
			return nil, err
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.BatchInfo{
			RootID:      rootID,
			Index:       e.index,
			ThreadCount: len(b.Threads),
			WrittenAt:   info.ModTime(),
		})
	}
	return out, nil
}

func (s *Sink) FindThread(ctx context.Context, rootID, threadID string) (int, error) {
	if err := validRootID(rootID); err != nil {
		return -1, err
	}
	entries, err := s.entries(rootID)
	if err != nil {
		return -1, err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		b, err := s.Read(rootID, e.index)
		if err != nil {
			return -1, err
		}
		if slices.ContainsFunc(b.Threads, func(t domain.Thread) bool { return t.ID == threadID }) {
			return e.index, nil
		}
	}
	return -1, nil
}

type batchEntry struct {
	os.DirEntry
	index int
}

// entries returns the batch files of a root ordered by index.
func (s *Sink) entries(rootID string) ([]batchEntry, error) {
	dirEntries, err := os.ReadDir(filepath.Join(s.dir, rootID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read root dir: %w", err)
	}

	var out []batchEntry
	for _, e := range dirEntries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		out = append(out, batchEntry{DirEntry: e, index: index})
	}
	slices.SortFunc(out, func(a, b batchEntry) int { return a.index - b.index })
	return out, nil
}

func (s *Sink) Close() error { return nil }

func validRootID(rootID string) error {
	if rootID == "" || rootID == "." || rootID == ".." || strings.ContainsAny(rootID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidRootID, rootID)
	}
	return nil
}
