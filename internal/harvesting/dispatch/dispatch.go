// Package dispatch drives a harvest run: one root at a time, in input
// order, slicing each harvested collection into batches for the sink.
//
// A root that fails fatally is logged and recorded in the failure ledger;
// the run continues with the next root.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvesting/metrics"
	"github.com/vietddude/harvester/internal/infra/storage"
)

// Harvester returns the complete thread collection of a root.
type Harvester interface {
	Harvest(ctx context.Context, rootID string) ([]domain.Thread, error)
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Roots     int
	Succeeded int
	Failed    int
	Threads   int
	Batches   int
}

// Dispatcher harvests roots sequentially and writes their batches.
type Dispatcher struct {
	harvester Harvester
	sink      storage.Sink
	ledger    storage.FailedRootRepository
	batchSize int
}

// NewDispatcher creates a dispatcher. ledger may be nil. A batchSize <= 0
// uses domain.DefaultBatchSize.
func NewDispatcher(
	harvester Harvester,
	sink storage.Sink,
	ledger storage.FailedRootRepository,
	batchSize int,
) *Dispatcher {
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}
	return &Dispatcher{
		harvester: harvester,
		sink:      sink,
		ledger:    ledger,
		batchSize: batchSize,
	}
}

// Split cuts threads into consecutive batches of at most size threads.
// The last batch holds the remainder; an empty input yields no batches.
func Split(rootID string, threads []domain.Thread, size int) []domain.Batch {
	if size <= 0 {
		size = domain.DefaultBatchSize
	}
	batches := make([]domain.Batch, 0, (len(threads)+size-1)/size)
	for start := 0; start < len(threads); start += size {
		end := min(start+size, len(threads))
		batches = append(batches, domain.Batch{
			RootID:  rootID,
			Index:   len(batches),
			Threads: threads[start:end],
		})
	}
	return batches
}

// DispatchAll processes every root in order and returns the run summary.
// Cancelling ctx stops the run before the next root.
func (d *Dispatcher) DispatchAll(ctx context.Context, rootIDs []string) Summary {
	sum := Summary{RunID: uuid.NewString(), Roots: len(rootIDs)}
	slog.Info("Starting harvest run", "run_id", sum.RunID, "roots", len(rootIDs), "batch_size", d.batchSize)

	for _, rootID := range rootIDs {
		if ctx.Err() != nil {
			slog.Warn("Run cancelled", "run_id", sum.RunID, "remaining", sum.Roots-sum.Succeeded-sum.Failed)
			break
		}

		threads, batches, err := d.dispatchRoot(ctx, rootID)
		if err != nil {
			sum.Failed++
			metrics.RootsProcessed.WithLabelValues("failed").Inc()
			slog.Error("Root failed", "root", rootID, "run_id", sum.RunID, "error", err)
			d.recordFailure(ctx, sum.RunID, rootID, err)
			continue
		}

		sum.Succeeded++
		sum.Threads += threads
		sum.Batches += batches
		if threads == 0 {
			metrics.RootsProcessed.WithLabelValues("empty").Inc()
		} else {
			metrics.RootsProcessed.WithLabelValues("ok").Inc()
		}
		if d.ledger != nil {
			if err := d.ledger.Resolve(ctx, rootID); err != nil {
				slog.Warn("Failed to clear ledger entry", "root", rootID, "error", err)
			}
		}
	}

	slog.Info("Harvest run finished",
		"run_id", sum.RunID,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"threads", sum.Threads,
		"batches", sum.Batches,
	)
	return sum
}

func (d *Dispatcher) dispatchRoot(ctx context.Context, rootID string) (threads, batches int, err error) {
	collection, err := d.harvester.Harvest(ctx, rootID)
	if err != nil {
		return 0, 0, err
	}
	metrics.ThreadsHarvested.Add(float64(len(collection)))

	for _, b := range Split(rootID, collection, d.batchSize) {
		if err := d.sink.Write(ctx, b.RootID, b.Index, b.Threads); err != nil {
			return len(collection), b.Index, fmt.Errorf("write batch %d: %w", b.Index, err)
		}
		metrics.BatchesWritten.Inc()
		batches++
		slog.Debug("Batch written", "root", rootID, "batch", b.Index, "threads", len(b.Threads))
	}

	// Drop batches left over from an earlier, larger run of this root.
	if err := d.sink.Prune(ctx, rootID, batches); err != nil {
		return len(collection), batches, fmt.Errorf("prune batches: %w", err)
	}
	return len(collection), batches, nil
}

func (d *Dispatcher) recordFailure(ctx context.Context, runID, rootID string, cause error) {
	if d.ledger == nil {
		return
	}
	// Record even when the run context is already cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := d.ledger.Record(ctx, &domain.FailedRoot{
		RootID:   rootID,
		RunID:    runID,
		Error:    cause.Error(),
		FailedAt: time.Now(),
	})
	if err != nil {
		slog.Error("Failed to record failed root", "root", rootID, "error", err)
	}
}
