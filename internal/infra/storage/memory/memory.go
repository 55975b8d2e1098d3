package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

type batchKey struct {
	rootID string
	index  int
}

type MemoryStorage struct {
	batches map[batchKey]domain.Batch
	written map[batchKey]time.Time
	failed  map[string]*domain.FailedRoot
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		batches: make(map[batchKey]domain.Batch),
		written: make(map[batchKey]time.Time),
		failed:  make(map[string]*domain.FailedRoot),
	}
}

// -----------------------------------------------------------------------------
// Batch Sink
// -----------------------------------------------------------------------------

type BatchRepo struct {
	store *MemoryStorage
}

var (
	_ storage.Sink          = (*BatchRepo)(nil)
	_ storage.BatchLister   = (*BatchRepo)(nil)
	_ storage.ThreadLocator = (*BatchRepo)(nil)
)

func NewBatchRepo(store *MemoryStorage) *BatchRepo {
	return &BatchRepo{store: store}
}

func (r *BatchRepo) Write(ctx context.Context, rootID string, index int, threads []domain.Thread) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	k := batchKey{rootID: rootID, index: index}
	r.store.batches[k] = domain.Batch{
		RootID:  rootID,
		Index:   index,
		Threads: slices.Clone(threads),
	}
	r.store.written[k] = time.Now()
	return nil
}

func (r *BatchRepo) Prune(ctx context.Context, rootID string, keep int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for k := range r.store.batches {
		if k.rootID == rootID && k.index >= keep {
			delete(r.store.batches, k)
			delete(r.store.written, k)
		}
	}
	return nil
}

// Get returns a stored batch.
func (r *BatchRepo) Get(rootID string, index int) (domain.Batch, bool) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	b, ok := r.store.batches[batchKey{rootID: rootID, index: index}]
	return b, ok
}

func (r *BatchRepo) ListBatches(ctx context.Context, rootID string) ([]domain.BatchInfo, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []domain.BatchInfo
	for k, b := range r.store.batches {
		if k.rootID != rootID {
			continue
		}
		out = append(out, domain.BatchInfo{
			RootID:      rootID,
			Index:       k.index,
			ThreadCount: len(b.Threads),
			WrittenAt:   r.store.written[k],
		})
	}
	slices.SortFunc(out, func(a, b domain.BatchInfo) int { return a.Index - b.Index })
	return out, nil
}

func (r *BatchRepo) FindThread(ctx context.Context, rootID, threadID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	found := -1
	for k, b := range r.store.batches {
		if k.rootID != rootID || (found >= 0 && k.index > found) {
			continue
		}
		if slices.ContainsFunc(b.Threads, func(t domain.Thread) bool { return t.ID == threadID }) {
			found = k.index
		}
	}
	return found, nil
}

func (r *BatchRepo) Close() error { return nil }

// -----------------------------------------------------------------------------
// Failed Root Repository
// -----------------------------------------------------------------------------

type FailedRootRepo struct {
	store *MemoryStorage
}

var _ storage.FailedRootRepository = (*FailedRootRepo)(nil)

func NewFailedRootRepo(store *MemoryStorage) *FailedRootRepo {
	return &FailedRootRepo{store: store}
}

func (r *FailedRootRepo) Record(ctx context.Context, f *domain.FailedRoot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec := *f
	rec.Attempts = 1
	if prev, ok := r.store.failed[f.RootID]; ok {
		rec.Attempts = prev.Attempts + 1
	}
	r.store.failed[f.RootID] = &rec
	return nil
}

func (r *FailedRootRepo) Resolve(ctx context.Context, rootID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.failed, rootID)
	return nil
}

func (r *FailedRootRepo) List(ctx context.Context) ([]*domain.FailedRoot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.FailedRoot, 0, len(r.store.failed))
	for _, f := range r.store.failed {
		rec := *f
		out = append(out, &rec)
	}
	slices.SortFunc(out, func(a, b *domain.FailedRoot) int { return strings.Compare(a.RootID, b.RootID) })
	return out, nil
}
