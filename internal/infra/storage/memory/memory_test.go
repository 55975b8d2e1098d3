package memory

import (
	"context"
	"testing"

	"github.com/vietddude/harvester/internal/core/domain"
)

func TestBatchRepo_WriteOverwritesAndLists(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepo(NewMemoryStorage())

	_ = repo.Write(ctx, "v1", 1, []domain.Thread{{ID: "c"}})
	_ = repo.Write(ctx, "v1", 0, []domain.Thread{{ID: "a"}})
	_ = repo.Write(ctx, "v1", 0, []domain.Thread{{ID: "a"}, {ID: "b"}})
	_ = repo.Write(ctx, "v2", 0, []domain.Thread{{ID: "x"}})

	infos, err := repo.ListBatches(ctx, "v1")
	if err != nil {
		t.Fatalf("ListBatches failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(infos))
	}
	if infos[0].Index != 0 || infos[0].ThreadCount != 2 {
		t.Errorf("expected overwritten batch 0 with 2 threads, got %+v", infos[0])
	}
	if infos[1].Index != 1 || infos[1].ThreadCount != 1 {
		t.Errorf("unexpected batch 1: %+v", infos[1])
	}

	b, ok := repo.Get("v2", 0)
	if !ok || len(b.Threads) != 1 || b.Threads[0].ID != "x" {
		t.Errorf("unexpected batch v2/0: %+v", b)
	}
}

func TestFailedRootRepo_RecordResolve(t *testing.T) {
	ctx := context.Background()
	repo := NewFailedRootRepo(NewMemoryStorage())

	_ = repo.Record(ctx, &domain.FailedRoot{RootID: "b", Error: "first"})
	_ = repo.Record(ctx, &domain.FailedRoot{RootID: "a", Error: "x"})
	_ = repo.Record(ctx, &domain.FailedRoot{RootID: "b", Error: "second"})

	list, _ := repo.List(ctx)
	if len(list) != 2 || list[0].RootID != "a" || list[1].RootID != "b" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[1].Attempts != 2 || list[1].Error != "second" {
		t.Errorf("expected b to have 2 attempts and the latest error, got %+v", list[1])
	}

	_ = repo.Resolve(ctx, "b")
	list, _ = repo.List(ctx)
	if len(list) != 1 || list[0].RootID != "a" {
		t.Errorf("expected only a after resolve, got %+v", list)
	}
}

func TestBatchRepo_PruneKeepsLowerIndexes(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepo(NewMemoryStorage())

	for i := 0; i < 3; i++ {
		_ = repo.Write(ctx, "v1", i, []domain.Thread{{ID: "t"}})
	}
	_ = repo.Write(ctx, "v2", 2, []domain.Thread{{ID: "other"}})

	if err := repo.Prune(ctx, "v1", 1); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	infos, _ := repo.ListBatches(ctx, "v1")
	if len(infos) != 1 || infos[0].Index != 0 {
		t.Errorf("expected only batch 0 to remain, got %+v", infos)
	}
	if _, ok := repo.Get("v2", 2); !ok {
		t.Error("prune must not touch other roots")
	}

	_ = repo.Prune(ctx, "v1", 0)
	if infos, _ := repo.ListBatches(ctx, "v1"); len(infos) != 0 {
		t.Errorf("expected no batches after prune to 0, got %+v", infos)
	}
}

func TestBatchRepo_FindThread(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepo(NewMemoryStorage())

	_ = repo.Write(ctx, "v1", 0, []domain.Thread{{ID: "a"}, {ID: "b"}})
	_ = repo.Write(ctx, "v1", 1, []domain.Thread{{ID: "c"}})

	tests := []struct {
		root, thread string
		want         int
	}{
		{"v1", "b", 0},
		{"v1", "c", 1},
		{"v1", "missing", -1},
		{"v2", "a", -1},
	}
	for _, tt := range tests {
		got, err := repo.FindThread(ctx, tt.root, tt.thread)
		if err != nil {
			t.Fatalf("FindThread(%s, %s) failed: %v", tt.root, tt.thread, err)
		}
		if got != tt.want {
			t.Errorf("FindThread(%s, %s) = %d, want %d", tt.root, tt.thread, got, tt.want)
		}
	}
}
