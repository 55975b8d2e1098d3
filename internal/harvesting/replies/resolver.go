// Package replies completes the reply lists of comment threads.
package replies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvesting/metrics"
	"github.com/vietddude/harvester/internal/harvesting/pager"
	"github.com/vietddude/harvester/internal/infra/rpc"
	"github.com/vietddude/harvester/internal/infra/source"
)

var (
	// ErrResolveReplies wraps every failure of reply resolution.
	ErrResolveReplies = errors.New("resolve replies")

	// ErrReplyCountMismatch is returned when the fetched replies never match
	// the count declared by the parent thread.
	ErrReplyCountMismatch = errors.New("reply count mismatch")
)

// Config holds reply resolution settings.
type Config struct {
	PageSize int64
	MaxPages int
	// RefetchAttempts is how many extra full fetches are made when the
	// fetched count differs from the declared count.
	RefetchAttempts int
}

// DefaultConfig returns the default reply resolution settings.
func DefaultConfig() Config {
	return Config{
		PageSize:        100,
		MaxPages:        10000,
		RefetchAttempts: 2,
	}
}

// Resolver fetches missing replies for threads.
type Resolver struct {
	src    source.Source
	caller *rpc.Caller
	cfg    Config
}

// NewResolver creates a new Resolver.
func NewResolver(src source.Source, caller *rpc.Caller, cfg Config) *Resolver {
	return &Resolver{src: src, caller: caller, cfg: cfg}
}

// Resolve returns t with a complete reply list.
//
// Threads without replies, and threads whose embedded list already matches
// the declared count, are returned unchanged without any remote call.
func (r *Resolver) Resolve(ctx context.Context, t domain.Thread) (domain.Thread, error) {
	if t.TotalReplyCount == 0 || t.RepliesComplete() {
		return t, nil
	}

	replies, err := r.fetch(ctx, t.ID)
	for attempt := 1; err == nil && !matches(replies, t) && attempt <= r.cfg.RefetchAttempts; attempt++ {
		slog.Warn("Reply count differs from declared count, refetching",
			"thread", t.ID,
			"declared", t.TotalReplyCount,
			"fetched", len(replies),
			"attempt", attempt,
		)
		replies, err = r.fetch(ctx, t.ID)
	}
	if err != nil {
		return t, fmt.Errorf("%w for thread %s: %w", ErrResolveReplies, t.ID, err)
	}
	if !matches(replies, t) {
		return t, fmt.Errorf("%w for thread %s: %w (declared %d, fetched %d)",
			ErrResolveReplies, t.ID, ErrReplyCountMismatch, t.TotalReplyCount, len(replies))
	}

	metrics.RepliesResolved.Inc()
	t.Replies = replies
	return t, nil
}

// ResolveAll resolves threads one after another, preserving order.
func (r *Resolver) ResolveAll(ctx context.Context, threads []domain.Thread) ([]domain.Thread, error) {
	out := make([]domain.Thread, 0, len(threads))
	for _, t := range threads {
		resolved, err := r.Resolve(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func (r *Resolver) fetch(ctx context.Context, threadID string) ([]domain.Comment, error) {
	slog.Debug("Fetching replies", "thread", threadID)

	spec := pager.Spec[*source.CommentPage, domain.Comment]{
		Name:     "comments.list",
		Fetch:    r.src.ListReplies,
		Items:    func(p *source.CommentPage) []domain.Comment { return p.Comments },
		Cursor:   func(p *source.CommentPage) string { return p.NextPageToken },
		MaxPages: r.cfg.MaxPages,
	}
	return pager.Paginate(ctx, r.caller, spec, source.ListParams{
		ParentID: threadID,
		PageSize: r.cfg.PageSize,
	})
}

func matches(replies []domain.Comment, t domain.Thread) bool {
	return int64(len(replies)) == t.TotalReplyCount
}
