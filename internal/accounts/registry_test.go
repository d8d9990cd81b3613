package accounts

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pokedi/edfc/internal/cache"
	"github.com/pokedi/edfc/internal/errors"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/models"
	"github.com/pokedi/edfc/internal/store"
	"github.com/pokedi/edfc/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*Registry, *store.MemoryStore, *cache.MemoryCache) {
	t.Helper()
	s := store.NewMemoryStore()
	c := cache.NewMemoryCache()
	logger := logging.NewLogger(logging.WithOutput(io.Discard))
	return NewRegistry(s, c, logger), s, c
}

func link(t *testing.T, s *store.MemoryStore, userID, customerID string) int64 {
	t.Helper()
	acc := &models.LinkedAccount{
		UserID:       userID,
		CustomerID:   customerID,
		AccessToken:  "access-" + customerID,
		RefreshToken: "refresh-" + customerID,
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	_, err := s.UpsertAccount(context.Background(), acc)
	require.NoError(t, err)
	return acc.ID
}

func TestGetDefaultAccountID_NoAccounts(t *testing.T) {
	r, _, _ := newRegistry(t)
	id, err := r.GetDefaultAccountID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestGetDefaultAccountID_FallsBackToOldest(t *testing.T) {
	r, s, _ := newRegistry(t)
	first := link(t, s, "u1", "c1")
	link(t, s, "u1", "c2")

	id, err := r.GetDefaultAccountID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, first, id)
}

func TestGetDefaultAccountID_IgnoresDanglingDefault(t *testing.T) {
	r, s, _ := newRegistry(t)
	ctx := context.Background()
	first := link(t, s, "u1", "c1")
	missing := int64(999)
	require.NoError(t, s.SetDefaultAccount(ctx, "u1", &missing))

	id, err := r.GetDefaultAccountID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, id)
}

func TestSetDefaultAccount(t *testing.T) {
	r, s, c := newRegistry(t)
	ctx := context.Background()
	link(t, s, "u1", "c1")
	second := link(t, s, "u1", "c2")
	other := link(t, s, "u2", "c3")

	defaultKey := cache.Key(models.ResourceProfile, "u1", 0, models.EnvLive)
	require.NoError(t, c.Set(ctx, defaultKey, []byte("{}"), time.Minute))

	require.NoError(t, r.SetDefaultAccount(ctx, "u1", second))
	id, err := r.GetDefaultAccountID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, second, id)

	_, ok, _ := c.Get(ctx, defaultKey)
	assert.False(t, ok, "default-keyed entries are stale after a default change")

	err = r.SetDefaultAccount(ctx, "u1", other)
	assert.ErrorIs(t, err, errors.ErrInvalidAccount)
}

func TestRemoveAccount_LastAccount(t *testing.T) {
	r, s, _ := newRegistry(t)
	ctx := context.Background()
	only := link(t, s, "u1", "c1")

	err := r.RemoveAccount(ctx, "u1", only)
	assert.ErrorIs(t, err, errors.ErrLastAccount)

	acc, err := s.GetAccount(ctx, "u1", only)
	require.NoError(t, err)
	assert.NotNil(t, acc, "account must be untouched")
}

func TestRemoveAccount_NotOwned(t *testing.T) {
	r, s, _ := newRegistry(t)
	link(t, s, "u1", "c1")
	link(t, s, "u1", "c2")
	other := link(t, s, "u2", "c3")

	err := r.RemoveAccount(context.Background(), "u1", other)
	assert.ErrorIs(t, err, errors.ErrInvalidAccount)
}

func TestRemoveAccount_ReassignsDefault(t *testing.T) {
	r, s, c := newRegistry(t)
	ctx := context.Background()
	first := link(t, s, "u1", "c1")
	second := link(t, s, "u1", "c2")
	third := link(t, s, "u1", "c3")
	require.NoError(t, r.SetDefaultAccount(ctx, "u1", second))

	key := cache.Key(models.ResourceFleetCarrier, "u1", second, models.EnvBeta)
	require.NoError(t, c.Set(ctx, key, []byte("{}"), time.Minute))

	require.NoError(t, r.RemoveAccount(ctx, "u1", second))

	settings, err := s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, settings.DefaultAccountID)
	assert.Equal(t, first, *settings.DefaultAccountID)

	accounts, err := r.ListAccounts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int64{first, third}, accounts.IDs())

	_, ok, _ := c.Get(ctx, key)
	assert.False(t, ok)
}

func TestRemoveAccount_NonDefaultKeepsDefault(t *testing.T) {
	r, s, _ := newRegistry(t)
	ctx := context.Background()
	first := link(t, s, "u1", "c1")
	second := link(t, s, "u1", "c2")
	require.NoError(t, r.SetDefaultAccount(ctx, "u1", first))

	require.NoError(t, r.RemoveAccount(ctx, "u1", second))

	id, err := r.GetDefaultAccountID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, id)
}

func TestDetach_LastAccountClearsDefault(t *testing.T) {
	r, s, _ := newRegistry(t)
	ctx := context.Background()
	only := link(t, s, "u1", "c1")
	require.NoError(t, r.SetDefaultAccount(ctx, "u1", only))

	removed, err := r.Detach(ctx, "u1", only)
	require.NoError(t, err)
	assert.True(t, removed)

	settings, err := s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, settings.DefaultAccountID)

	removed, err = r.Detach(ctx, "u1", only)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDetach_CacheFailureIsSwallowed(t *testing.T) {
	s := store.NewMemoryStore()
	failing := &mocks.FailingCache{}
	r := NewRegistry(s, failing, logging.NewLogger(logging.WithOutput(io.Discard)))
	id := link(t, s, "u1", "c1")

	removed, err := r.Detach(context.Background(), "u1", id)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, int64(1), failing.Calls())
}

func TestEnsureDefault(t *testing.T) {
	r, s, _ := newRegistry(t)
	ctx := context.Background()
	first := link(t, s, "u1", "c1")
	second := link(t, s, "u1", "c2")

	changed, err := r.EnsureDefault(ctx, "u1", first)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.EnsureDefault(ctx, "u1", second)
	require.NoError(t, err)
	assert.False(t, changed)

	id, err := r.GetDefaultAccountID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, id)
}

func TestHasMultipleAccounts(t *testing.T) {
	r, s, _ := newRegistry(t)
	ctx := context.Background()

	multi, err := r.HasMultipleAccounts(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, multi)

	link(t, s, "u1", "c1")
	multi, err = r.HasMultipleAccounts(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, multi)

	link(t, s, "u1", "c2")
	multi, err = r.HasMultipleAccounts(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, multi)
}
