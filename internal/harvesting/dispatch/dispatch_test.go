package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage/file"
	"github.com/vietddude/harvester/internal/infra/storage/memory"
)

type mockHarvester struct {
	results map[string][]domain.Thread
	errs    map[string]error
	calls   []string
	onCall  func(rootID string)
}

func (m *mockHarvester) Harvest(ctx context.Context, rootID string) ([]domain.Thread, error) {
	m.calls = append(m.calls, rootID)
	if m.onCall != nil {
		m.onCall(rootID)
	}
	if err := m.errs[rootID]; err != nil {
		return nil, err
	}
	return m.results[rootID], nil
}

type failingSink struct {
	*memory.BatchRepo
	failAt int
}

func (s *failingSink) Write(ctx context.Context, rootID string, index int, threads []domain.Thread) error {
	if index == s.failAt {
		return errors.New("disk full")
	}
	return s.BatchRepo.Write(ctx, rootID, index, threads)
}

func makeThreads(n int) []domain.Thread {
	threads := make([]domain.Thread, n)
	for i := range threads {
		threads[i] = domain.Thread{ID: fmt.Sprintf("t%d", i)}
	}
	return threads
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{"empty", 0, 100, nil},
		{"single partial", 3, 100, []int{3}},
		{"exact", 200, 100, []int{100, 100}},
		{"remainder kept", 250, 100, []int{100, 100, 50}},
		{"default size", 150, 0, []int{100, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := Split("v1", makeThreads(tt.n), tt.size)
			if len(batches) != len(tt.sizes) {
				t.Fatalf("expected %d batches, got %d", len(tt.sizes), len(batches))
			}
			next := 0
			for i, b := range batches {
				if b.Index != i || b.RootID != "v1" {
					t.Errorf("batch %d: unexpected header %s/%d", i, b.RootID, b.Index)
				}
				if len(b.Threads) != tt.sizes[i] {
					t.Errorf("batch %d: expected %d threads, got %d", i, tt.sizes[i], len(b.Threads))
				}
				for _, th := range b.Threads {
					if th.ID != fmt.Sprintf("t%d", next) {
						t.Fatalf("batch %d: expected t%d, got %s", i, next, th.ID)
					}
					next++
				}
			}
		})
	}
}

func TestDispatchAll_WritesBatchesInOrder(t *testing.T) {
	store := memory.NewMemoryStorage()
	sink := memory.NewBatchRepo(store)
	h := &mockHarvester{results: map[string][]domain.Thread{
		"v1": makeThreads(250),
		"v2": makeThreads(3),
	}}

	sum := NewDispatcher(h, sink, nil, 100).DispatchAll(context.Background(), []string{"v1", "v2"})

	if sum.RunID == "" {
		t.Error("expected run id")
	}
	if sum.Succeeded != 2 || sum.Failed != 0 || sum.Threads != 253 || sum.Batches != 4 {
		t.Errorf("unexpected summary %+v", sum)
	}

	infos, _ := sink.ListBatches(context.Background(), "v1")
	if len(infos) != 3 || infos[2].ThreadCount != 50 {
		t.Errorf("unexpected v1 batches %+v", infos)
	}
	b, ok := sink.Get("v2", 0)
	if !ok || len(b.Threads) != 3 {
		t.Errorf("expected single batch for v2, got %+v", b)
	}
}

func TestDispatchAll_EmptyRootWritesNothing(t *testing.T) {
	sink := memory.NewBatchRepo(memory.NewMemoryStorage())
	h := &mockHarvester{results: map[string][]domain.Thread{"v1": {}}}

	sum := NewDispatcher(h, sink, nil, 100).DispatchAll(context.Background(), []string{"v1"})

	if sum.Succeeded != 1 || sum.Batches != 0 {
		t.Errorf("unexpected summary %+v", sum)
	}
	infos, _ := sink.ListBatches(context.Background(), "v1")
	if len(infos) != 0 {
		t.Errorf("expected no batches, got %d", len(infos))
	}
}

func TestDispatchAll_RerunPrunesStaleBatches(t *testing.T) {
	ctx := context.Background()
	sink, err := file.NewSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}
	h := &mockHarvester{results: map[string][]domain.Thread{"v1": makeThreads(250)}}
	d := NewDispatcher(h, sink, nil, 100)

	d.DispatchAll(ctx, []string{"v1"})
	if infos, _ := sink.ListBatches(ctx, "v1"); len(infos) != 3 {
		t.Fatalf("expected 3 batches after first run, got %d", len(infos))
	}

	tests := []struct {
		name    string
		threads int
		batches int
	}{
		{"fewer threads", 120, 2},
		{"no threads", 0, 0},
	}
	for _, tt := range tests {
		h.results["v1"] = makeThreads(tt.threads)
		sum := d.DispatchAll(ctx, []string{"v1"})
		if sum.Succeeded != 1 {
			t.Fatalf("%s: unexpected summary %+v", tt.name, sum)
		}
		infos, err := sink.ListBatches(ctx, "v1")
		if err != nil {
			t.Fatalf("%s: ListBatches failed: %v", tt.name, err)
		}
		if len(infos) != tt.batches {
			t.Errorf("%s: expected %d batches, got %+v", tt.name, tt.batches, infos)
		}
	}
}

type pruneFailingSink struct {
	*memory.BatchRepo
}

func (s *pruneFailingSink) Prune(ctx context.Context, rootID string, keep int) error {
	return errors.New("read-only")
}

func TestDispatchAll_PruneErrorFailsRoot(t *testing.T) {
	store := memory.NewMemoryStorage()
	ledger := memory.NewFailedRootRepo(store)
	sink := &pruneFailingSink{BatchRepo: memory.NewBatchRepo(store)}
	h := &mockHarvester{results: map[string][]domain.Thread{"v1": makeThreads(5)}}

	sum := NewDispatcher(h, sink, ledger, 100).DispatchAll(context.Background(), []string{"v1"})

	if sum.Failed != 1 || sum.Succeeded != 0 {
		t.Errorf("expected prune failure to fail the root, got %+v", sum)
	}
	roots, _ := ledger.List(context.Background())
	if len(roots) != 1 || roots[0].RootID != "v1" {
		t.Errorf("expected v1 in ledger, got %+v", roots)
	}
}

func TestDispatchAll_ContinuesAfterFailure(t *testing.T) {
	store := memory.NewMemoryStorage()
	sink := memory.NewBatchRepo(store)
	ledger := memory.NewFailedRootRepo(store)
	h := &mockHarvester{
		results: map[string][]domain.Thread{"v1": makeThreads(1), "v3": makeThreads(2)},
		errs:    map[string]error{"v2": errors.New("quota exceeded")},
	}

	sum := NewDispatcher(h, sink, ledger, 100).DispatchAll(context.Background(), []string{"v1", "v2", "v3"})

	if sum.Succeeded != 2 || sum.Failed != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if len(h.calls) != 3 || h.calls[2] != "v3" {
		t.Errorf("expected all roots harvested in order, got %v", h.calls)
	}

	failed, _ := ledger.List(context.Background())
	if len(failed) != 1 || failed[0].RootID != "v2" || failed[0].RunID != sum.RunID {
		t.Fatalf("unexpected ledger %+v", failed)
	}
	if failed[0].Error != "quota exceeded" {
		t.Errorf("unexpected ledger error %q", failed[0].Error)
	}
}

func TestDispatchAll_ResolvesOnSuccess(t *testing.T) {
	store := memory.NewMemoryStorage()
	ledger := memory.NewFailedRootRepo(store)
	_ = ledger.Record(context.Background(), &domain.FailedRoot{RootID: "v1", Error: "old"})

	h := &mockHarvester{results: map[string][]domain.Thread{"v1": makeThreads(1)}}
	NewDispatcher(h, memory.NewBatchRepo(store), ledger, 100).
		DispatchAll(context.Background(), []string{"v1"})

	failed, _ := ledger.List(context.Background())
	if len(failed) != 0 {
		t.Errorf("expected ledger entry cleared, got %+v", failed)
	}
}

func TestDispatchAll_SinkErrorFailsRoot(t *testing.T) {
	store := memory.NewMemoryStorage()
	sink := &failingSink{BatchRepo: memory.NewBatchRepo(store), failAt: 1}
	ledger := memory.NewFailedRootRepo(store)
	h := &mockHarvester{results: map[string][]domain.Thread{
		"v1": makeThreads(250),
		"v2": makeThreads(1),
	}}

	sum := NewDispatcher(h, sink, ledger, 100).DispatchAll(context.Background(), []string{"v1", "v2"})

	if sum.Failed != 1 || sum.Succeeded != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	infos, _ := sink.ListBatches(context.Background(), "v1")
	if len(infos) != 1 {
		t.Errorf("expected remaining batches skipped after sink error, got %d", len(infos))
	}
	failed, _ := ledger.List(context.Background())
	if len(failed) != 1 || failed[0].RootID != "v1" {
		t.Errorf("unexpected ledger %+v", failed)
	}
}

func TestDispatchAll_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &mockHarvester{
		results: map[string][]domain.Thread{"v1": makeThreads(1), "v2": makeThreads(1)},
		onCall:  func(string) { cancel() },
	}

	sum := NewDispatcher(h, memory.NewBatchRepo(memory.NewMemoryStorage()), nil, 100).
		DispatchAll(ctx, []string{"v1", "v2"})

	if len(h.calls) != 1 {
		t.Errorf("expected run to stop after first root, got %v", h.calls)
	}
	if sum.Roots != 2 || sum.Succeeded != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
}
