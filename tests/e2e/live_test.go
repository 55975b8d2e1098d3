package e2e

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/harvester/internal/control"
	"github.com/vietddude/harvester/internal/core/config"
)

func TestHarvest_Live(t *testing.T) {
	if os.Getenv("E2E_LIVE") == "" {
		t.Skip("Skipping live E2E test. Set E2E_LIVE=true, YOUTUBE_API_KEY and E2E_VIDEO_ID to run.")
	}
	videoID := os.Getenv("E2E_VIDEO_ID")
	if videoID == "" || os.Getenv("YOUTUBE_API_KEY") == "" {
		t.Fatal("E2E_VIDEO_ID and YOUTUBE_API_KEY must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg.Output.Driver = config.DriverSQLite
	cfg.Output.SQLitePath = filepath.Join(t.TempDir(), "live.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Invalid config: %v", err)
	}

	app, err := control.New(ctx, cfg, control.Options{})
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	defer app.Close()

	sum, err := app.Run(ctx, []string{videoID})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Succeeded != 1 {
		t.Fatalf("expected video to be harvested, got %+v", sum)
	}

	infos, err := app.Batches(ctx, videoID)
	if err != nil {
		t.Fatalf("Failed to list batches: %v", err)
	}
	if len(infos) != sum.Batches {
		t.Errorf("expected %d stored batches, got %d", sum.Batches, len(infos))
	}

	total := 0
	for i, b := range infos {
		if b.Index != i {
			t.Errorf("batch %d stored with index %d", i, b.Index)
		}
		if b.ThreadCount > cfg.Batch.Size {
			t.Errorf("batch %d holds %d threads, above %d", i, b.ThreadCount, cfg.Batch.Size)
		}
		total += b.ThreadCount
	}
	if total != sum.Threads {
		t.Errorf("expected %d threads across batches, got %d", sum.Threads, total)
	}
	t.Logf("Harvested %d threads into %d batches", sum.Threads, sum.Batches)
}
