package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vietddude/harvester/internal/core/domain"
)

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := Open(context.Background(), filepath.Join(t.TempDir(), "harvest.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func TestSink_WriteRead(t *testing.T) {
	ctx := context.Background()
	sink := openTestSink(t)

	threads := []domain.Thread{
		{ID: "t1", VideoID: "v1", TopLevel: domain.Comment{ID: "t1", TextDisplay: "hi"}},
		{ID: "t2", VideoID: "v1", TotalReplyCount: 1, Replies: []domain.Comment{{ID: "r1", ParentID: "t2"}}},
	}
	if err := sink.Write(ctx, "v1", 0, threads); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	b, err := sink.Read(ctx, "v1", 0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(b.Threads) != 2 || b.Threads[0].TopLevel.TextDisplay != "hi" || b.Threads[1].Replies[0].ParentID != "t2" {
		t.Errorf("unexpected batch %+v", b)
	}
}

func TestSink_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	sink := openTestSink(t)

	_ = sink.Write(ctx, "v1", 0, []domain.Thread{{ID: "a"}})
	_ = sink.Write(ctx, "v1", 1, []domain.Thread{{ID: "c"}})
	if err := sink.Write(ctx, "v1", 0, []domain.Thread{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	_ = sink.Write(ctx, "v2", 0, []domain.Thread{{ID: "x"}})

	infos, err := sink.ListBatches(ctx, "v1")
	if err != nil {
		t.Fatalf("ListBatches failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(infos))
	}
	if infos[0].Index != 0 || infos[0].ThreadCount != 2 {
		t.Errorf("expected upserted batch 0 with 2 threads, got %+v", infos[0])
	}
	if infos[1].Index != 1 || infos[1].ThreadCount != 1 {
		t.Errorf("unexpected batch 1: %+v", infos[1])
	}
}

func TestSink_PruneDropsTrailingBatches(t *testing.T) {
	ctx := context.Background()
	sink := openTestSink(t)

	for i := 0; i < 3; i++ {
		_ = sink.Write(ctx, "v1", i, []domain.Thread{{ID: "t"}})
	}
	_ = sink.Write(ctx, "v2", 1, []domain.Thread{{ID: "x"}})

	if err := sink.Prune(ctx, "v1", 1); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	infos, _ := sink.ListBatches(ctx, "v1")
	if len(infos) != 1 || infos[0].Index != 0 {
		t.Errorf("expected only batch 0 to remain, got %+v", infos)
	}
	if other, _ := sink.ListBatches(ctx, "v2"); len(other) != 1 {
		t.Errorf("prune must not touch other roots, got %+v", other)
	}
}

func TestSink_FindThread(t *testing.T) {
	ctx := context.Background()
	sink := openTestSink(t)

	_ = sink.Write(ctx, "v1", 0, []domain.Thread{{ID: "a"}, {ID: "b"}})
	_ = sink.Write(ctx, "v1", 1, []domain.Thread{{ID: "c"}})

	if idx, err := sink.FindThread(ctx, "v1", "c"); err != nil || idx != 1 {
		t.Errorf("expected c in batch 1, got %d, %v", idx, err)
	}
	if idx, err := sink.FindThread(ctx, "v1", "b"); err != nil || idx != 0 {
		t.Errorf("expected b in batch 0, got %d, %v", idx, err)
	}
	if idx, err := sink.FindThread(ctx, "v2", "a"); err != nil || idx != -1 {
		t.Errorf("expected -1 for unknown root, got %d, %v", idx, err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "harvest.db")

	sink, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = sink.Write(ctx, "v1", 0, []domain.Thread{{ID: "a"}})
	_ = sink.Close()

	sink, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer sink.Close()

	infos, _ := sink.ListBatches(ctx, "v1")
	if len(infos) != 1 {
		t.Errorf("expected batch to survive reopen, got %d", len(infos))
	}
}

func TestFailedRootRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewFailedRootRepo(openTestSink(t))

	_ = repo.Record(ctx, &domain.FailedRoot{RootID: "v2", RunID: "r1", Error: "boom"})
	_ = repo.Record(ctx, &domain.FailedRoot{RootID: "v1", RunID: "r1", Error: "x"})
	if err := repo.Record(ctx, &domain.FailedRoot{RootID: "v2", RunID: "r2", Error: "boom again"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	roots, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(roots) != 2 || roots[0].RootID != "v1" {
		t.Fatalf("unexpected roots %+v", roots)
	}
	if roots[1].Attempts != 2 || roots[1].RunID != "r2" || roots[1].Error != "boom again" {
		t.Errorf("unexpected v2 entry %+v", roots[1])
	}

	_ = repo.Resolve(ctx, "v2")
	roots, _ = repo.List(ctx)
	if len(roots) != 1 {
		t.Errorf("expected 1 root after resolve, got %d", len(roots))
	}
}
