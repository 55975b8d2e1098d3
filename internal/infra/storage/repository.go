package storage

import (
	"context"

	"github.com/vietddude/harvester/internal/core/domain"
)

// Sink persists harvested batches.
// Writing the same (rootID, index) again overwrites the previous batch.
type Sink interface {
	// Write persists one batch of threads
	Write(ctx context.Context, rootID string, index int, threads []domain.Thread) error

	// Prune deletes the batches of a root with index >= keep
	Prune(ctx context.Context, rootID string, keep int) error

	// Close releases the underlying resources
	Close() error
}

// BatchLister is implemented by sinks that can enumerate stored batches.
type BatchLister interface {
	// ListBatches returns the stored batches of a root ordered by index
	ListBatches(ctx context.Context, rootID string) ([]domain.BatchInfo, error)
}

// ThreadLocator is implemented by sinks that can find the batch holding a thread.
type ThreadLocator interface {
	// FindThread returns the batch index containing the thread, or -1
	FindThread(ctx context.Context, rootID, threadID string) (int, error)
}

// FailedRootRepository records roots whose harvest failed fatally,
// so that they can be re-run later.
type FailedRootRepository interface {
	// Record adds or updates a failed root, incrementing its attempt count
	Record(ctx context.Context, failed *domain.FailedRoot) error

	// Resolve removes a root after it was harvested successfully
	Resolve(ctx context.Context, rootID string) error

	// List returns all failed roots ordered by root id
	List(ctx context.Context) ([]*domain.FailedRoot, error)
}
