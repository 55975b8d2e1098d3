// Package playlist expands playlists into the video ids to harvest.
package playlist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/harvester/internal/harvesting/pager"
	"github.com/vietddude/harvester/internal/infra/rpc"
	"github.com/vietddude/harvester/internal/infra/source"
)

// DefaultPageSize is the largest page the playlist endpoint serves.
const DefaultPageSize = 50

// Expander lists the videos of playlists.
type Expander struct {
	src      source.Source
	caller   *rpc.Caller
	pageSize int64
	maxPages int
}

// NewExpander creates a new Expander. A zero pageSize uses DefaultPageSize.
func NewExpander(src source.Source, caller *rpc.Caller, pageSize int64, maxPages int) *Expander {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Expander{src: src, caller: caller, pageSize: pageSize, maxPages: maxPages}
}

// Videos returns the video ids of playlistID in playlist order.
func (e *Expander) Videos(ctx context.Context, playlistID string) ([]string, error) {
	slog.Info("Listing playlist videos", "playlist", playlistID)

	spec := pager.Spec[*source.VideoPage, string]{
		Name:     "playlistItems.list",
		Fetch:    e.src.ListPlaylistVideos,
		Items:    func(p *source.VideoPage) []string { return p.VideoIDs },
		Cursor:   func(p *source.VideoPage) string { return p.NextPageToken },
		MaxPages: e.maxPages,
	}
	ids, err := pager.Paginate(ctx, e.caller, spec, source.ListParams{
		ParentID: playlistID,
		PageSize: e.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list playlist %s: %w", playlistID, err)
	}

	slog.Info("Listed playlist videos", "playlist", playlistID, "videos", len(ids))
	return ids, nil
}

// ExpandAll concatenates the videos of every playlist. A video listed more
// than once is kept only at its first position.
func (e *Expander) ExpandAll(ctx context.Context, playlistIDs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, id := range playlistIDs {
		videos, err := e.Videos(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, v := range videos {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out, nil
}
