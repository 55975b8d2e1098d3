// Package comments harvests the complete comment tree of a video.
package comments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvesting/metrics"
	"github.com/vietddude/harvester/internal/harvesting/pager"
	"github.com/vietddude/harvester/internal/harvesting/replies"
	"github.com/vietddude/harvester/internal/infra/rpc"
	"github.com/vietddude/harvester/internal/infra/source"
)

// ErrRestartsExhausted is returned when MaxRestarts is set and the upstream
// keeps reporting processing failures.
var ErrRestartsExhausted = errors.New("processing failure restarts exhausted")

// Config holds harvest settings.
type Config struct {
	PageSize int64
	MaxPages int
	// ProcessingFailureDelay is the wait before restarting a harvest after
	// the upstream reported a processing failure.
	ProcessingFailureDelay time.Duration
	// MaxRestarts bounds processing-failure restarts. 0 means unbounded.
	MaxRestarts int
}

// DefaultConfig returns the default harvest settings.
func DefaultConfig() Config {
	return Config{
		PageSize:               100,
		MaxPages:               10000,
		ProcessingFailureDelay: 10 * time.Second,
	}
}

// Harvester collects every thread of a video with complete replies.
type Harvester struct {
	src      source.Source
	caller   *rpc.Caller
	resolver *replies.Resolver
	cfg      Config
	sleep    rpc.SleepFunc
}

// NewHarvester creates a new Harvester.
func NewHarvester(
	src source.Source,
	caller *rpc.Caller,
	resolver *replies.Resolver,
	cfg Config,
) *Harvester {
	return &Harvester{
		src:      src,
		caller:   caller,
		resolver: resolver,
		cfg:      cfg,
		sleep:    rpc.Sleep,
	}
}

// SetSleep replaces the function used to wait before a restart.
func (h *Harvester) SetSleep(fn rpc.SleepFunc) {
	h.sleep = fn
}

// Harvest returns the threads of rootID in page order, each with its
// replies resolved.
//
// A video with comments disabled yields an empty result. A processing
// failure restarts the whole harvest after ProcessingFailureDelay; with
// MaxRestarts == 0 this repeats for as long as the upstream keeps failing.
func (h *Harvester) Harvest(ctx context.Context, rootID string) ([]domain.Thread, error) {
	slog.Info("Harvesting comments", "root", rootID)

	for restarts := 0; ; restarts++ {
		threads, err := h.harvestOnce(ctx, rootID)
		if err == nil {
			slog.Info("Harvested comments", "root", rootID, "threads", len(threads))
			return threads, nil
		}

		switch ClassifyError(err) {
		case ActionSkip:
			slog.Info("Comments disabled, nothing to harvest", "root", rootID)
			return []domain.Thread{}, nil

		case ActionRestart:
			if h.cfg.MaxRestarts > 0 && restarts >= h.cfg.MaxRestarts {
				return nil, fmt.Errorf("harvest %s: %w after %d restarts: %w",
					rootID, ErrRestartsExhausted, restarts, err)
			}
			metrics.RootRestarts.Inc()
			slog.Warn("Upstream processing failure, restarting harvest",
				"root", rootID,
				"restart", restarts+1,
				"delay", h.cfg.ProcessingFailureDelay,
			)
			if err := h.sleep(ctx, h.cfg.ProcessingFailureDelay); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("harvest %s: %w", rootID, err)
		}
	}
}

// harvestOnce runs a single pass over every page. Replies of a page are
// resolved before the next page is requested.
func (h *Harvester) harvestOnce(ctx context.Context, rootID string) ([]domain.Thread, error) {
	spec := pager.Spec[*source.ThreadPage, domain.Thread]{
		Name:      "commentThreads.list",
		Fetch:     h.src.ListThreads,
		Items:     func(p *source.ThreadPage) []domain.Thread { return p.Threads },
		Cursor:    func(p *source.ThreadPage) string { return p.NextPageToken },
		Transform: h.resolver.ResolveAll,
		MaxPages:  h.cfg.MaxPages,
	}
	return pager.Paginate(ctx, h.caller, spec, source.ListParams{
		ParentID: rootID,
		PageSize: h.cfg.PageSize,
	})
}
