package cleanup

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pokedi/edfc/internal/cache"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/metrics"
	"github.com/pokedi/edfc/internal/models"
	"github.com/pokedi/edfc/internal/store"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *logging.Logger {
	return logging.NewLogger(logging.WithOutput(io.Discard))
}

func addSession(t *testing.T, s store.SessionStore, id string, expiresAt *time.Time) {
	t.Helper()
	require.NoError(t, s.CreateSession(context.Background(), &models.AuthSession{
		ID:           id,
		UserID:       "u1",
		State:        "state-" + id,
		CodeVerifier: "verifier-" + id,
		RedirectURI:  "https://bot.example/edfc/" + id + "/callback",
		CreatedAt:    epoch.Add(-time.Hour),
		ExpiresAt:    expiresAt,
	}))
}

func at(d time.Duration) *time.Time {
	t := epoch.Add(d)
	return &t
}

type countingPruner struct {
	calls atomic.Int64
	err   error
}

func (p *countingPruner) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	p.calls.Add(1)
	return 0, p.err
}

func TestRunOnce_MemoryStore(t *testing.T) {
	s := store.NewMemoryStore()
	addSession(t, s, "expired", at(-time.Minute))
	addSession(t, s, "boundary", at(0))
	addSession(t, s, "live", at(time.Minute))
	addSession(t, s, "forever", nil)

	m := metrics.NewMetrics("edfc")
	mgr := NewManager(Config{}, s, quietLogger(), m)
	mgr.SetClock(func() time.Time { return epoch })

	n, err := mgr.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for id, want := range map[string]bool{"expired": false, "boundary": false, "live": true, "forever": true} {
		sess, err := s.GetSession(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want, sess != nil, id)
	}

	var metric dto.Metric
	require.NoError(t, m.SessionsPruned.Write(&metric))
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())

	stats := mgr.GetStats()
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, int64(2), stats.TotalPruned)
	assert.Empty(t, stats.LastError)
}

func TestRunOnce_SQLiteStore(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "edfc.db"))
	require.NoError(t, err)
	defer s.Close()

	addSession(t, s, "expired", at(-time.Second))
	addSession(t, s, "live", at(time.Hour))

	mgr := NewManager(Config{}, s, quietLogger(), nil)
	mgr.SetClock(func() time.Time { return epoch })

	n, err := mgr.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = mgr.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunOnce_Error(t *testing.T) {
	pruner := &countingPruner{err: errors.New("database is locked")}
	mgr := NewManager(Config{}, pruner, quietLogger(), nil)

	_, err := mgr.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, "database is locked", mgr.GetStats().LastError)
}

func TestStartStop(t *testing.T) {
	pruner := &countingPruner{}
	mgr := NewManager(Config{Interval: 10 * time.Millisecond}, pruner, quietLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, mgr.Start(ctx))
	assert.True(t, mgr.IsRunning())
	assert.Error(t, mgr.Start(ctx), "second start")

	assert.Eventually(t, func() bool { return pruner.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, mgr.Stop())
	assert.False(t, mgr.IsRunning())
	calls := pruner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, pruner.calls.Load(), "no runs after stop")

	assert.NoError(t, mgr.Stop(), "stop is idempotent")
	require.NoError(t, mgr.Start(ctx), "restart after stop")
	require.NoError(t, mgr.Shutdown(context.Background()))
}

func TestDefaultInterval(t *testing.T) {
	mgr := NewManager(Config{}, &countingPruner{}, nil, nil)
	assert.Equal(t, DefaultInterval, mgr.config.Interval)
}

func TestRunOnce_SweepsUnreadCacheEntries(t *testing.T) {
	c := cache.NewMemoryCache()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		require.NoError(t, c.Set(ctx, "edfc:u1:"+strconv.Itoa(i)+":live:profile", []byte("{}"), time.Millisecond))
	}
	require.NoError(t, c.Set(ctx, "edfc:u2:1:live:profile", []byte("{}"), time.Hour))
	time.Sleep(5 * time.Millisecond)

	mgr := NewManager(Config{}, &countingPruner{}, quietLogger(), nil)
	mgr.SetCacheSweeper(c)
	_, err := mgr.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len(), "only the live entry survives, without any Get")
	assert.EqualValues(t, 1000, mgr.GetStats().TotalSwept)
}

func TestRunOnce_SweepsWhenPruningFails(t *testing.T) {
	c := cache.NewMemoryCache()
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	mgr := NewManager(Config{}, &countingPruner{err: errors.New("db down")}, quietLogger(), nil)
	mgr.SetCacheSweeper(c)
	_, err := mgr.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}
