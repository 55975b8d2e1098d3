// Package source defines the remote paginated data source the harvester reads from.
package source

import (
	"context"

	"github.com/vietddude/harvester/internal/core/domain"
)

// ListParams are the request parameters for a single page fetch.
// Values are immutable: derive per-call variants with the With* methods.
type ListParams struct {
	// ParentID is the video id for threads, the thread id for replies
	// and the playlist id for playlist items.
	ParentID  string
	PageSize  int64
	PageToken string
}

// WithPageToken returns a copy of p carrying token.
// An empty token leaves the copy without a page token.
func (p ListParams) WithPageToken(token string) ListParams {
	if token != "" {
		p.PageToken = token
	}
	return p
}

// ThreadPage is one page of comment threads.
type ThreadPage struct {
	Threads       []domain.Thread
	NextPageToken string
}

// CommentPage is one page of replies.
type CommentPage struct {
	Comments      []domain.Comment
	NextPageToken string
}

// VideoPage is one page of playlist entries reduced to video ids.
type VideoPage struct {
	VideoIDs      []string
	NextPageToken string
}

// Source is the boundary between the harvester and the upstream API.
// Implementations return *Error for structured upstream failures.
type Source interface {
	// ListThreads lists top-level comment threads of a video.
	ListThreads(ctx context.Context, params ListParams) (*ThreadPage, error)

	// ListReplies lists the replies of a top-level comment.
	ListReplies(ctx context.Context, params ListParams) (*CommentPage, error)

	// ListPlaylistVideos lists the videos of a playlist.
	ListPlaylistVideos(ctx context.Context, params ListParams) (*VideoPage, error)
}
