package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

// DefaultFailedRootsKey is the hash holding one JSON FailedRoot per root id.
const DefaultFailedRootsKey = "harvester:failed_roots"

// FailedRootRepo implements storage.FailedRootRepository using a Redis hash.
type FailedRootRepo struct {
	rdb *redis.Client
	key string
}

var _ storage.FailedRootRepository = (*FailedRootRepo)(nil)

// NewFailedRootRepo creates a Redis-backed ledger. An empty key uses
// DefaultFailedRootsKey.
func NewFailedRootRepo(client *Client, key string) *FailedRootRepo {
	if key == "" {
		key = DefaultFailedRootsKey
	}
	return &FailedRootRepo{rdb: client.rdb, key: key}
}

// Record stores the failure, bumping Attempts when the root is already present.
func (r *FailedRootRepo) Record(ctx context.Context, fr *domain.FailedRoot) error {
	// Optimistic lock on the hash.
	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		rec := *fr
		rec.Attempts = 1
		if rec.FailedAt.IsZero() {
			rec.FailedAt = time.Now()
		}

		prev, err := tx.HGet(ctx, r.key, fr.RootID).Result()
		switch {
		case err == redis.Nil:
		case err != nil:
			return fmt.Errorf("hget failed: %w", err)
		default:
			var old domain.FailedRoot
			if err := json.Unmarshal([]byte(prev), &old); err == nil {
				rec.Attempts = old.Attempts + 1
			}
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal failed root: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key, fr.RootID, data)
			return nil
		})
		return err
	}, r.key)
}

// Resolve removes a root from the ledger.
func (r *FailedRootRepo) Resolve(ctx context.Context, rootID string) error {
	if err := r.rdb.HDel(ctx, r.key, rootID).Err(); err != nil {
		return fmt.Errorf("hdel failed: %w", err)
	}
	return nil
}

// List returns all failed roots ordered by root id.
func (r *FailedRootRepo) List(ctx context.Context) ([]*domain.FailedRoot, error) {
	all, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}

	roots := make([]*domain.FailedRoot, 0, len(all))
	for id, raw := range all {
		var fr domain.FailedRoot
		if err := json.Unmarshal([]byte(raw), &fr); err != nil {
			return nil, fmt.Errorf("corrupt ledger entry %s: %w", id, err)
		}
		roots = append(roots, &fr)
	}
	slices.SortFunc(roots, func(a, b *domain.FailedRoot) int { return strings.Compare(a.RootID, b.RootID) })
	return roots, nil
}
