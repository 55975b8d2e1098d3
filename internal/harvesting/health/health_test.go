package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage/memory"
)

func TestMonitor_CheckHealth(t *testing.T) {
	tests := []struct {
		name       string
		checkErr   error
		failed     int
		wantStatus SystemStatus
	}{
		{"all healthy", nil, 0, StatusHealthy},
		{"failed roots degrade", nil, 2, StatusDegraded},
		{"dependency down is critical", errors.New("connection refused"), 1, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := memory.NewFailedRootRepo(memory.NewMemoryStorage())
			for i := 0; i < tt.failed; i++ {
				_ = ledger.Record(context.Background(), &domain.FailedRoot{RootID: string(rune('a' + i))})
			}

			m := NewMonitor(ledger)
			m.AddCheck("database", func(ctx context.Context) error { return tt.checkErr })

			report := m.CheckHealth(context.Background())
			if report.SystemStatus != tt.wantStatus {
				t.Errorf("expected %s, got %s", tt.wantStatus, report.SystemStatus)
			}
			if report.FailedRoots != tt.failed {
				t.Errorf("expected %d failed roots, got %d", tt.failed, report.FailedRoots)
			}
			if tt.checkErr != nil && report.Components["database"].Error == "" {
				t.Error("expected component error to be reported")
			}
		})
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	calls := 0
	m := NewMonitor(nil)
	m.AddCheck("redis", func(ctx context.Context) error {
		calls++
		return nil
	})

	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())

	if calls != 1 {
		t.Errorf("expected cached second check, got %d calls", calls)
	}
}

func TestServer_Endpoints(t *testing.T) {
	m := NewMonitor(nil)
	m.AddCheck("database", func(ctx context.Context) error { return errors.New("down") })
	srv := httptest.NewServer(NewServer(m, 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != string(StatusCritical) {
		t.Errorf("unexpected body %v", body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("unexpected /metrics response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}
