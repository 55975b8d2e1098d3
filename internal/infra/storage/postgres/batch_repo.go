package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

// BatchRepo implements storage.Sink using PostgreSQL.
type BatchRepo struct {
	db *DB
}

var (
	_ storage.Sink          = (*BatchRepo)(nil)
	_ storage.BatchLister   = (*BatchRepo)(nil)
	_ storage.ThreadLocator = (*BatchRepo)(nil)
)

// NewBatchRepo creates a new PostgreSQL batch repository.
func NewBatchRepo(db *DB) *BatchRepo {
	return &BatchRepo{db: db}
}

// Write upserts one batch keyed by (root_id, batch_index).
func (r *BatchRepo) Write(ctx context.Context, rootID string, index int, threads []domain.Thread) error {
	payload, err := json.Marshal(threads)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	ids := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}

	query := `
		INSERT INTO batches (root_id, batch_index, thread_count, thread_ids, payload, written_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (root_id, batch_index) DO UPDATE SET
			thread_count = EXCLUDED.thread_count,
			thread_ids = EXCLUDED.thread_ids,
			payload = EXCLUDED.payload,
			written_at = EXCLUDED.written_at
	`
	_, err = r.db.ExecContext(ctx, query, rootID, index, len(threads), pq.Array(ids), payload)
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	return nil
}

// Prune deletes the batches of a root from index keep onwards.
func (r *BatchRepo) Prune(ctx context.Context, rootID string, keep int) error {
	query := `DELETE FROM batches WHERE root_id = $1 AND batch_index >= $2`
	if _, err := r.db.ExecContext(ctx, query, rootID, keep); err != nil {
		return fmt.Errorf("failed to prune batches: %w", err)
	}
	return nil
}

// ListBatches returns the stored batches of a root.
func (r *BatchRepo) ListBatches(ctx context.Context, rootID string) ([]domain.BatchInfo, error) {
	query := `
		SELECT batch_index, thread_count, written_at
		FROM batches
		WHERE root_id = $1
		ORDER BY batch_index ASC
	`

	var rows []struct {
		Index       int       `db:"batch_index"`
		ThreadCount int       `db:"thread_count"`
		WrittenAt   time.Time `db:"written_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, rootID); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	infos := make([]domain.BatchInfo, 0, len(rows))
	for _, row := range rows {
		infos = append(infos, domain.BatchInfo{
			RootID:      rootID,
			Index:       row.Index,
			ThreadCount: row.ThreadCount,
			WrittenAt:   row.WrittenAt,
		})
	}
	return infos, nil
}

// FindThread returns the batch index holding a thread, or -1.
func (r *BatchRepo) FindThread(ctx context.Context, rootID, threadID string) (int, error) {
	query := `
		SELECT batch_index
		FROM batches
		WHERE root_id = $1 AND thread_ids @> $2
		ORDER BY batch_index ASC
		LIMIT 1
	`
	var index []int
	if err := r.db.SelectContext(ctx, &index, query, rootID, pq.Array([]string{threadID})); err != nil {
		return -1, fmt.Errorf("failed to find thread: %w", err)
	}
	if len(index) == 0 {
		return -1, nil
	}
	return index[0], nil
}

// Close closes the underlying connection pool.
func (r *BatchRepo) Close() error {
	return r.db.Close()
}
