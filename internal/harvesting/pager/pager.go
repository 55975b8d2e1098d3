// Package pager drives cursor-paginated remote listings.
package pager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/harvester/internal/harvesting/metrics"
	"github.com/vietddude/harvester/internal/infra/rpc"
	"github.com/vietddude/harvester/internal/infra/source"
)

// ErrPageLimitExceeded is returned when a listing keeps returning next-page
// cursors beyond the configured page ceiling.
var ErrPageLimitExceeded = errors.New("page limit exceeded")

// Spec describes one paginated listing.
// R is the page response type and T the item type.
type Spec[R, T any] struct {
	// Name labels logs, metrics and errors.
	Name string
	// Fetch performs a single page request.
	Fetch func(ctx context.Context, params source.ListParams) (R, error)
	// Items extracts the items of a page.
	Items func(page R) []T
	// Cursor extracts the next page token; "" means no more pages.
	Cursor func(page R) string
	// Transform, if set, is applied to each page's items before they are
	// accumulated. The next page is not fetched until it returns.
	Transform func(ctx context.Context, items []T) ([]T, error)
	// MaxPages bounds the number of pages. 0 means unbounded.
	MaxPages int
}

// Paginate fetches every page of spec starting from base and returns the
// items in page order. Partial results are discarded on error.
func Paginate[R, T any](
	ctx context.Context,
	caller *rpc.Caller,
	spec Spec[R, T],
	base source.ListParams,
) ([]T, error) {
	var (
		acc    []T
		cursor string
	)

	for page := 1; ; page++ {
		if spec.MaxPages > 0 && page > spec.MaxPages {
			return nil, fmt.Errorf("%s %s: %w (%d pages)", spec.Name, base.ParentID, ErrPageLimitExceeded, spec.MaxPages)
		}

		params := base.WithPageToken(cursor)
		slog.Debug("Fetching page", "operation", spec.Name, "parent", base.ParentID, "page", page)

		resp, err := rpc.Call(ctx, caller, spec.Name, func(ctx context.Context) (R, error) {
			return spec.Fetch(ctx, params)
		})
		if err != nil {
			return nil, fmt.Errorf("%s %s page %d: %w", spec.Name, base.ParentID, page, err)
		}
		metrics.PagesFetched.WithLabelValues(spec.Name).Inc()

		items := spec.Items(resp)
		if spec.Transform != nil {
			items, err = spec.Transform(ctx, items)
			if err != nil {
				return nil, err
			}
		}
		acc = append(acc, items...)

		cursor = spec.Cursor(resp)
		if cursor == "" {
			return acc, nil
		}
	}
}
