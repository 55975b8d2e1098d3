// Package sqlite stores batches in a single SQLite file using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Sink is a storage.Sink backed by SQLite.
type Sink struct {
	db *sqlx.DB
}

var (
	_ storage.Sink          = (*Sink)(nil)
	_ storage.BatchLister   = (*Sink)(nil)
	_ storage.ThreadLocator = (*Sink)(nil)
)

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}

	return &Sink{db: db}, nil
}

func (s *Sink) Write(ctx context.Context, rootID string, index int, threads []domain.Thread) error {
	payload, err := json.Marshal(threads)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	query := `
		INSERT INTO batches (root_id, batch_index, thread_count, payload, written_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (root_id, batch_index) DO UPDATE SET
			thread_count = excluded.thread_count,
			payload      = excluded.payload,
			written_at   = excluded.written_at
	`
	_, err = s.db.ExecContext(ctx, query, rootID, index, len(threads), string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write batch %s/%d: %w", rootID, index, err)
	}
	return nil
}

func (s *Sink) Prune(ctx context.Context, rootID string, keep int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM batches WHERE root_id = ? AND batch_index >= ?`, rootID, keep)
	if err != nil {
		return fmt.Errorf("failed to prune batches of %s: %w", rootID, err)
	}
	return nil
}

// Read loads a stored batch.
func (s *Sink) Read(ctx context.Context, rootID string, index int) (domain.Batch, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload,
		`SELECT payload FROM batches WHERE root_id = ? AND batch_index = ?`, rootID, index)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("failed to read batch %s/%d: %w", rootID, index, err)
	}

	b := domain.Batch{RootID: rootID, Index: index}
	if err := json.Unmarshal([]byte(payload), &b.Threads); err != nil {
		return domain.Batch{}, fmt.Errorf("failed to decode batch: %w", err)
	}
	return b, nil
}

func (s *Sink) ListBatches(ctx context.Context, rootID string) ([]domain.BatchInfo, error) {
	var rows []struct {
		Index       int   `db:"batch_index"`
		ThreadCount int   `db:"thread_count"`
		WrittenAt   int64 `db:"written_at"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT batch_index, thread_count, written_at
		FROM batches
		WHERE root_id = ?
		ORDER BY batch_index ASC
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	out := make([]domain.BatchInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.BatchInfo{
			RootID:      rootID,
			Index:       r.Index,
			ThreadCount: r.ThreadCount,
			WrittenAt:   time.UnixMilli(r.WrittenAt),
		})
	}
	return out, nil
}

func (s *Sink) FindThread(ctx context.Context, rootID, threadID string) (int, error) {
	var index sql.NullInt64
	err := s.db.GetContext(ctx, &index, `
		SELECT MIN(b.batch_index)
		FROM batches b, json_each(b.payload) t
		WHERE b.root_id = ? AND json_extract(t.value, '$.id') = ?
	`, rootID, threadID)
	if err != nil {
		return -1, fmt.Errorf("failed to find thread: %w", err)
	}
	if !index.Valid {
		return -1, nil
	}
	return int(index.Int64), nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}
