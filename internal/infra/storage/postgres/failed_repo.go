package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

// FailedRootRepo implements storage.FailedRootRepository using PostgreSQL.
type FailedRootRepo struct {
	db *DB
}

var _ storage.FailedRootRepository = (*FailedRootRepo)(nil)

// NewFailedRootRepo creates a new PostgreSQL failed root repository.
func NewFailedRootRepo(db *DB) *FailedRootRepo {
	return &FailedRootRepo{db: db}
}

// Record adds a failed root or bumps its attempt count.
func (r *FailedRootRepo) Record(ctx context.Context, fr *domain.FailedRoot) error {
	query := `
		INSERT INTO failed_roots (root_id, run_id, error_msg, attempts, failed_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (root_id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			error_msg = EXCLUDED.error_msg,
			attempts = failed_roots.attempts + 1,
			failed_at = EXCLUDED.failed_at
	`
	_, err := r.db.ExecContext(ctx, query, fr.RootID, fr.RunID, fr.Error)
	if err != nil {
		return fmt.Errorf("failed to record failed root: %w", err)
	}
	return nil
}

// Resolve removes a root from the ledger.
func (r *FailedRootRepo) Resolve(ctx context.Context, rootID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM failed_roots WHERE root_id = $1`, rootID)
	return err
}

// List returns all failed roots.
func (r *FailedRootRepo) List(ctx context.Context) ([]*domain.FailedRoot, error) {
	query := `
		SELECT root_id, run_id, error_msg, attempts, failed_at
		FROM failed_roots
		ORDER BY root_id ASC
	`

	var rows []struct {
		RootID   string    `db:"root_id"`
		RunID    string    `db:"run_id"`
		ErrorMsg string    `db:"error_msg"`
		Attempts int       `db:"attempts"`
		FailedAt time.Time `db:"failed_at"`
	}

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list failed roots: %w", err)
	}

	var roots []*domain.FailedRoot
	for _, row := range rows {
		roots = append(roots, &domain.FailedRoot{
			RootID:   row.RootID,
			RunID:    row.RunID,
			Error:    row.ErrorMsg,
			Attempts: row.Attempts,
			FailedAt: row.FailedAt,
		})
	}
	return roots, nil
}
