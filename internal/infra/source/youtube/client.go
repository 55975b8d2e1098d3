// Package youtube implements source.Source on top of the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/source"
)

var (
	threadParts   = []string{"id", "replies", "snippet"}
	commentParts  = []string{"id", "snippet"}
	playlistParts = []string{"contentDetails"}
)

// Config holds YouTube client settings.
type Config struct {
	APIKey     string
	TextFormat string        // "html" or "plainText"
	Timeout    time.Duration // per request, 0 = none
}

// Client implements source.Source.
type Client struct {
	svc        *yt.Service
	textFormat string
	timeout    time.Duration
}

var _ source.Source = (*Client)(nil)

// NewClient creates a YouTube client. Extra options are appended after the
// API key option, which lets tests point the client at a local server.
func NewClient(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	var all []option.ClientOption
	if cfg.APIKey != "" {
		all = append(all, option.WithAPIKey(cfg.APIKey))
	}
	all = append(all, opts...)

	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}

	textFormat := cfg.TextFormat
	if textFormat == "" {
		textFormat = "html"
	}

	return &Client{svc: svc, textFormat: textFormat, timeout: cfg.Timeout}, nil
}

// ListThreads lists one page of comment threads for a video.
func (c *Client) ListThreads(ctx context.Context, params source.ListParams) (*source.ThreadPage, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	call := c.svc.CommentThreads.List(threadParts).
		VideoId(params.ParentID).
		TextFormat(c.textFormat).
		Context(ctx)
	if params.PageSize > 0 {
		call = call.MaxResults(params.PageSize)
	}
	if params.PageToken != "" {
		call = call.PageToken(params.PageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, convertError("commentThreads.list", err)
	}

	page := &source.ThreadPage{
		Threads:       make([]domain.Thread, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
	}
	for _, item := range resp.Items {
		page.Threads = append(page.Threads, toThread(item))
	}
	return page, nil
}

// ListReplies lists one page of replies to a top-level comment.
func (c *Client) ListReplies(ctx context.Context, params source.ListParams) (*source.CommentPage, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	call := c.svc.Comments.List(commentParts).
		ParentId(params.ParentID).
		TextFormat(c.textFormat).
		Context(ctx)
	if params.PageSize > 0 {
		call = call.MaxResults(params.PageSize)
	}
	if params.PageToken != "" {
		call = call.PageToken(params.PageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, convertError("comments.list", err)
	}

	page := &source.CommentPage{
		Comments:      make([]domain.Comment, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
	}
	for _, item := range resp.Items {
		page.Comments = append(page.Comments, toComment(item))
	}
	return page, nil
}

// ListPlaylistVideos lists one page of playlist entries as video ids.
func (c *Client) ListPlaylistVideos(ctx context.Context, params source.ListParams) (*source.VideoPage, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	call := c.svc.PlaylistItems.List(playlistParts).
		PlaylistId(params.ParentID).
		Context(ctx)
	if params.PageSize > 0 {
		call = call.MaxResults(params.PageSize)
	}
	if params.PageToken != "" {
		call = call.PageToken(params.PageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, convertError("playlistItems.list", err)
	}

	page := &source.VideoPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
			continue
		}
		page.VideoIDs = append(page.VideoIDs, item.ContentDetails.VideoId)
	}
	return page, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// convertError maps googleapi errors to *source.Error so that callers can
// classify on reason codes without importing the API client.
func convertError(op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	serr := &source.Error{Code: gerr.Code, Message: gerr.Message}
	for _, item := range gerr.Errors {
		serr.Reasons = append(serr.Reasons, item.Reason)
	}
	return fmt.Errorf("%s: %w", op, serr)
}

func toThread(item *yt.CommentThread) domain.Thread {
	t := domain.Thread{ID: item.Id}
	if s := item.Snippet; s != nil {
		t.VideoID = s.VideoId
		t.TotalReplyCount = s.TotalReplyCount
		if s.TopLevelComment != nil {
			t.TopLevel = toComment(s.TopLevelComment)
		}
	}
	if item.Replies != nil {
		for _, r := range item.Replies.Comments {
			t.Replies = append(t.Replies, toComment(r))
		}
	}
	return t
}

func toComment(c *yt.Comment) domain.Comment {
	out := domain.Comment{ID: c.Id}
	s := c.Snippet
	if s == nil {
		return out
	}
	out.ParentID = s.ParentId
	out.VideoID = s.VideoId
	out.AuthorName = s.AuthorDisplayName
	if s.AuthorChannelId != nil {
		out.AuthorChannelID = s.AuthorChannelId.Value
	}
	out.TextDisplay = s.TextDisplay
	out.TextOriginal = s.TextOriginal
	out.LikeCount = s.LikeCount
	out.PublishedAt = s.PublishedAt
	out.UpdatedAt = s.UpdatedAt
	return out
}
