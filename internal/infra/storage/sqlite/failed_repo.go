package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

// FailedRootRepo keeps the failure ledger in the same database as the batches.
type FailedRootRepo struct {
	sink *Sink
}

var _ storage.FailedRootRepository = (*FailedRootRepo)(nil)

func NewFailedRootRepo(sink *Sink) *FailedRootRepo {
	return &FailedRootRepo{sink: sink}
}

func (r *FailedRootRepo) Record(ctx context.Context, fr *domain.FailedRoot) error {
	failedAt := fr.FailedAt
	if failedAt.IsZero() {
		failedAt = time.Now()
	}
	_, err := r.sink.db.ExecContext(ctx, `
		INSERT INTO failed_roots (root_id, run_id, error_msg, attempts, failed_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (root_id) DO UPDATE SET
			run_id    = excluded.run_id,
			error_msg = excluded.error_msg,
			attempts  = failed_roots.attempts + 1,
			failed_at = excluded.failed_at
	`, fr.RootID, fr.RunID, fr.Error, failedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record failed root: %w", err)
	}
	return nil
}

func (r *FailedRootRepo) Resolve(ctx context.Context, rootID string) error {
	_, err := r.sink.db.ExecContext(ctx, `DELETE FROM failed_roots WHERE root_id = ?`, rootID)
	return err
}

func (r *FailedRootRepo) List(ctx context.Context) ([]*domain.FailedRoot, error) {
	var rows []struct {
		RootID   string `db:"root_id"`
		RunID    string `db:"run_id"`
		ErrorMsg string `db:"error_msg"`
		Attempts int    `db:"attempts"`
		FailedAt int64  `db:"failed_at"`
	}
	err := r.sink.db.SelectContext(ctx, &rows, `
		SELECT root_id, run_id, error_msg, attempts, failed_at
		FROM failed_roots
		ORDER BY root_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed roots: %w", err)
	}

	roots := make([]*domain.FailedRoot, 0, len(rows))
	for _, row := range rows {
		roots = append(roots, &domain.FailedRoot{
			RootID:   row.RootID,
			RunID:    row.RunID,
			Error:    row.ErrorMsg,
			Attempts: row.Attempts,
			FailedAt: time.UnixMilli(row.FailedAt),
		})
	}
	return roots, nil
}
