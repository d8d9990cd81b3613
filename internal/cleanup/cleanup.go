// Package cleanup periodically prunes expired login sessions and sweeps
// expired entries out of process-local caches.
package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/metrics"
)

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = 5 * time.Minute

// SessionPruner deletes sessions whose expiry is before now.
type SessionPruner interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// CacheSweeper drops expired entries that were never read again.
type CacheSweeper interface {
	Sweep() int
}

// Config contains the cleanup manager configuration.
type Config struct {
	Interval time.Duration
}

// Stats contains cleanup statistics.
type Stats struct {
	TotalRuns       int           `json:"total_runs"`
	TotalPruned     int64         `json:"total_pruned"`
	LastRunAt       time.Time     `json:"last_run_at"`
	LastRunDuration time.Duration `json:"last_run_duration"`
	TotalSwept      int64         `json:"total_swept"`
	LastError       string        `json:"last_error,omitempty"`
}

// Manager handles periodic pruning of expired sessions.
type Manager struct {
	store   SessionPruner
	sweeper CacheSweeper
	config  Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}

	statsMu sync.RWMutex
	stats   Stats
}

// NewManager creates a new cleanup manager.
func NewManager(config Config, s SessionPruner, logger *logging.Logger, m *metrics.Metrics) *Manager {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Manager{
		store:   s,
		config:  config,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// SetClock overrides the clock used to decide expiry.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// SetCacheSweeper adds a cache swept on every run.
func (m *Manager) SetCacheSweeper(c CacheSweeper) {
	m.sweeper = c
}

// Start starts the cleanup loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("cleanup manager is already running")
	}
	m.running = true
	m.done = make(chan struct{})
	m.stopped = make(chan struct{})

	go m.loop(ctx, m.done, m.stopped)
	m.logger.Info("session cleanup started", "interval", m.config.Interval.String())
	return nil
}

// Stop stops the cleanup loop and waits for a run in progress.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.done)
	stopped := m.stopped
	m.mu.Unlock()

	<-stopped
	return nil
}

// Shutdown is Stop bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- m.Stop() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) loop(ctx context.Context, done, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.RunOnce(ctx); err != nil {
				m.logger.Warn("session cleanup failed", "error", err)
			}
		}
	}
}

// RunOnce prunes expired sessions immediately and returns how many were
// removed. The cache sweeper, if any, runs even when pruning fails.
func (m *Manager) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := m.store.DeleteExpiredSessions(ctx, m.now().UTC())

	swept := 0
	if m.sweeper != nil {
		swept = m.sweeper.Sweep()
	}

	m.statsMu.Lock()
	m.stats.TotalRuns++
	m.stats.LastRunAt = start
	m.stats.LastRunDuration = time.Since(start)
	m.stats.TotalSwept += int64(swept)
	m.stats.LastError = ""
	if err != nil {
		m.stats.LastError = err.Error()
	} else {
		m.stats.TotalPruned += n
	}
	m.statsMu.Unlock()

	if swept > 0 {
		m.logger.Debug("expired cache entries swept", "count", swept)
	}
	if err != nil {
		return 0, err
	}
	m.metrics.AddSessionsPruned(n)
	if n > 0 {
		m.logger.Debug("expired sessions pruned", "count", n)
	}
	return n, nil
}

// GetStats returns a copy of the cleanup statistics.
func (m *Manager) GetStats() Stats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return m.stats
}

// IsRunning reports whether the loop is active.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
