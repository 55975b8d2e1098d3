// Package sourcetest provides a scripted in-memory source.Source for tests.
package sourcetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/vietddude/harvester/internal/infra/source"
)

// Operation names used by Calls.
const (
	OpThreads = "threads"
	OpReplies = "replies"
	OpVideos  = "videos"
)

type pageKey struct {
	op     string
	parent string
	token  string
}

// Fake serves pre-registered pages and scripted failures.
// Unregistered pages are reported as errors so test mistakes surface.
type Fake struct {
	mu    sync.Mutex
	pages map[pageKey]any
	fails map[string][]error // op:parent -> errors returned before any page
	calls map[string]int     // op:parent -> number of calls
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{
		pages: make(map[pageKey]any),
		fails: make(map[string][]error),
		calls: make(map[string]int),
	}
}

var _ source.Source = (*Fake)(nil)

// AddThreadPage registers a thread page for video parent at token.
func (f *Fake) AddThreadPage(parent, token string, page *source.ThreadPage) {
	f.add(OpThreads, parent, token, page)
}

// AddReplyPage registers a reply page for thread parent at token.
func (f *Fake) AddReplyPage(parent, token string, page *source.CommentPage) {
	f.add(OpReplies, parent, token, page)
}

// AddVideoPage registers a playlist page for playlist parent at token.
func (f *Fake) AddVideoPage(parent, token string, page *source.VideoPage) {
	f.add(OpVideos, parent, token, page)
}

// Fail queues errors returned by the next calls of op for parent,
// in order, before registered pages are served again.
func (f *Fake) Fail(op, parent string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := op + ":" + parent
	f.fails[k] = append(f.fails[k], errs...)
}

// Calls returns how many times op was invoked for parent.
func (f *Fake) Calls(op, parent string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+":"+parent]
}

// ListThreads implements source.Source.
func (f *Fake) ListThreads(ctx context.Context, params source.ListParams) (*source.ThreadPage, error) {
	page, err := f.get(OpThreads, params)
	if err != nil {
		return nil, err
	}
	return page.(*source.ThreadPage), nil
}

// ListReplies implements source.Source.
func (f *Fake) ListReplies(ctx context.Context, params source.ListParams) (*source.CommentPage, error) {
	page, err := f.get(OpReplies, params)
	if err != nil {
		return nil, err
	}
	return page.(*source.CommentPage), nil
}

// ListPlaylistVideos implements source.Source.
func (f *Fake) ListPlaylistVideos(ctx context.Context, params source.ListParams) (*source.VideoPage, error) {
	page, err := f.get(OpVideos, params)
	if err != nil {
		return nil, err
	}
	return page.(*source.VideoPage), nil
}

func (f *Fake) add(op, parent, token string, page any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[pageKey{op: op, parent: parent, token: token}] = page
}

func (f *Fake) get(op string, params source.ListParams) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := op + ":" + params.ParentID
	f.calls[k]++

	if errs := f.fails[k]; len(errs) > 0 {
		f.fails[k] = errs[1:]
		return nil, errs[0]
	}

	page, ok := f.pages[pageKey{op: op, parent: params.ParentID, token: params.PageToken}]
	if !ok {
		return nil, fmt.Errorf("sourcetest: no %s page for %q at token %q", op, params.ParentID, params.PageToken)
	}
	return page, nil
}
