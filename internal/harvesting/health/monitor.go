package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/harvester/internal/infra/storage"
)

// CheckFunc pings a dependency.
type CheckFunc func(ctx context.Context) error

// Monitor aggregates health status from the storage dependencies and the
// failure ledger.
type Monitor struct {
	checks     map[string]CheckFunc
	ledger     storage.FailedRootRepository
	cacheFor   time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. ledger may be nil.
func NewMonitor(ledger storage.FailedRootRepository) *Monitor {
	return &Monitor{
		checks:   make(map[string]CheckFunc),
		ledger:   ledger,
		cacheFor: 10 * time.Second,
	}
}

// AddCheck registers a named dependency check.
func (m *Monitor) AddCheck(name string, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = fn
	m.lastReport = nil
}

// CheckHealth runs every check. Results are cached for cacheFor.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheFor {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.checks)),
	}

	for name, check := range m.checks {
		c := ComponentHealth{Name: name, Status: StatusHealthy}
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := check(checkCtx); err != nil {
			c.Status = StatusCritical
			c.Error = err.Error()
			report.SystemStatus = StatusCritical
		}
		cancel()
		report.Components[name] = c
	}

	if m.ledger != nil {
		failed, err := m.ledger.List(ctx)
		switch {
		case err != nil:
			report.Components["ledger"] = ComponentHealth{Name: "ledger", Status: StatusDegraded, Error: err.Error()}
			if report.SystemStatus == StatusHealthy {
				report.SystemStatus = StatusDegraded
			}
		case len(failed) > 0:
			report.FailedRoots = len(failed)
			if report.SystemStatus == StatusHealthy {
				report.SystemStatus = StatusDegraded
			}
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}
