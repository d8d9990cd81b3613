package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pokedi/edfc/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// storeFactories runs every contract test against both implementations.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store { return newTestSQLiteStore(t) },
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
	}
}

func newAccount(userID, customerID string) *models.LinkedAccount {
	return &models.LinkedAccount{
		UserID:        userID,
		CustomerID:    customerID,
		CommanderName: "Jameson",
		AccessToken:   "access-" + customerID,
		RefreshToken:  "refresh-" + customerID,
		TokenType:     "Bearer",
		ExpiresAt:     time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		Scope:         "auth capi",
	}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "edfc.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file should exist")
	require.NoError(t, s.Ping(context.Background()))
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "edfc.db")

	first, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	_, err = first.UpsertAccount(context.Background(), newAccount("u1", "c1"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer second.Close()

	count, err := second.CountAccounts(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPathFromURL(t *testing.T) {
	assert.Equal(t, "/var/lib/edfc.db", PathFromURL("sqlite:///var/lib/edfc.db"))
	assert.Equal(t, "data/edfc.db", PathFromURL("file:data/edfc.db?mode=rwc"))
	assert.Equal(t, "edfc.db", PathFromURL("edfc.db"))
}

func TestStore_Sessions(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)
			expires := now.Add(10 * time.Minute)

			sess := &models.AuthSession{
				ID: "sess-1", UserID: "u1", State: "state", CodeVerifier: "verifier",
				RedirectURI: "https://example.test/edfc/sess-1/callback", CreatedAt: now, ExpiresAt: &expires,
			}
			require.NoError(t, s.CreateSession(ctx, sess))

			got, err := s.GetSession(ctx, "sess-1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "state", got.State)
			assert.Equal(t, "verifier", got.CodeVerifier)
			require.NotNil(t, got.ExpiresAt)
			assert.True(t, got.ExpiresAt.Equal(expires))

			missing, err := s.GetSession(ctx, "nope")
			require.NoError(t, err)
			assert.Nil(t, missing)

			deleted, err := s.DeleteSession(ctx, "sess-1")
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = s.DeleteSession(ctx, "sess-1")
			require.NoError(t, err)
			assert.False(t, deleted, "a session can only be consumed once")
		})
	}
}

func TestStore_DeleteExpiredSessions(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()
			now := time.Now().UTC()
			past := now.Add(-time.Minute)
			future := now.Add(time.Minute)

			for _, sess := range []*models.AuthSession{
				{ID: "old", UserID: "u", State: "s", CodeVerifier: "v", RedirectURI: "r", CreatedAt: now, ExpiresAt: &past},
				{ID: "new", UserID: "u", State: "s", CodeVerifier: "v", RedirectURI: "r", CreatedAt: now, ExpiresAt: &future},
				{ID: "forever", UserID: "u", State: "s", CodeVerifier: "v", RedirectURI: "r", CreatedAt: now},
			} {
				require.NoError(t, s.CreateSession(ctx, sess))
			}

			n, err := s.DeleteExpiredSessions(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			got, err := s.GetSession(ctx, "forever")
			require.NoError(t, err)
			assert.NotNil(t, got, "sessions without expiry are kept")
		})
	}
}

func TestStore_AccountLifecycle(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			first := newAccount("u1", "c1")
			created, err := s.UpsertAccount(ctx, first)
			require.NoError(t, err)
			assert.True(t, created)
			assert.NotZero(t, first.ID)

			second := newAccount("u1", "c2")
			_, err = s.UpsertAccount(ctx, second)
			require.NoError(t, err)

			accounts, err := s.ListAccounts(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, accounts, 2)
			assert.Equal(t, first.ID, accounts[0].ID, "oldest account first")
			assert.Equal(t, "access-c1", accounts[0].AccessToken)

			other, err := s.GetAccount(ctx, "u2", first.ID)
			require.NoError(t, err)
			assert.Nil(t, other, "accounts are scoped to their owner")

			relink := newAccount("u1", "c1")
			relink.AccessToken = "rotated"
			created, err = s.UpsertAccount(ctx, relink)
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, first.ID, relink.ID)

			count, err := s.CountAccounts(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 2, count)

			got, err := s.GetAccount(ctx, "u1", first.ID)
			require.NoError(t, err)
			assert.Equal(t, "rotated", got.AccessToken)

			deleted, err := s.DeleteAccount(ctx, "u2", first.ID)
			require.NoError(t, err)
			assert.False(t, deleted)

			deleted, err = s.DeleteAccount(ctx, "u1", first.ID)
			require.NoError(t, err)
			assert.True(t, deleted)
		})
	}
}

func TestStore_AccountsWithoutCustomerIDAreDistinct(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			_, err := s.UpsertAccount(ctx, newAccount("u1", ""))
			require.NoError(t, err)
			_, err = s.UpsertAccount(ctx, newAccount("u1", ""))
			require.NoError(t, err)

			count, err := s.CountAccounts(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 2, count)
		})
	}
}

func TestStore_UpdateTokensAndCarrier(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			acc := newAccount("u1", "c1")
			_, err := s.UpsertAccount(ctx, acc)
			require.NoError(t, err)

			acc.AccessToken = "new-access"
			acc.RefreshToken = "new-refresh"
			acc.ExpiresAt = time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
			acc.UpdatedAt = time.Now().UTC()
			require.NoError(t, s.UpdateTokens(ctx, acc))
			require.NoError(t, s.UpdateCarrier(ctx, "u1", acc.ID, "Starlight", "K7Q-1HT"))

			got, err := s.GetAccount(ctx, "u1", acc.ID)
			require.NoError(t, err)
			assert.Equal(t, "new-access", got.AccessToken)
			assert.Equal(t, "new-refresh", got.RefreshToken)
			assert.True(t, got.ExpiresAt.Equal(acc.ExpiresAt))
			assert.Equal(t, "Starlight", got.CarrierName)
			assert.Equal(t, "K7Q-1HT", got.CarrierID)
		})
	}
}

func TestStore_Settings(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			settings, err := s.GetSettings(ctx, "u1")
			require.NoError(t, err)
			assert.Nil(t, settings)

			acc := newAccount("u1", "c1")
			_, err = s.UpsertAccount(ctx, acc)
			require.NoError(t, err)

			require.NoError(t, s.SetDefaultAccount(ctx, "u1", &acc.ID))
			settings, err = s.GetSettings(ctx, "u1")
			require.NoError(t, err)
			require.NotNil(t, settings.DefaultAccountID)
			assert.Equal(t, acc.ID, *settings.DefaultAccountID)

			_, err = s.DeleteAccount(ctx, "u1", acc.ID)
			require.NoError(t, err)
			settings, err = s.GetSettings(ctx, "u1")
			require.NoError(t, err)
			assert.Nil(t, settings.DefaultAccountID, "default is cleared with its account")

			require.NoError(t, s.SetDefaultAccount(ctx, "u1", nil))
		})
	}
}

func TestStore_Stats(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			_, err := s.UpsertAccount(ctx, newAccount("u1", "c1"))
			require.NoError(t, err)
			_, err = s.UpsertAccount(ctx, newAccount("u1", "c2"))
			require.NoError(t, err)
			_, err = s.UpsertAccount(ctx, newAccount("u2", "c3"))
			require.NoError(t, err)

			stats, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, stats.AccountCount)
			assert.Equal(t, 2, stats.UserCount)
			assert.Equal(t, 0, stats.SessionCount)
		})
	}
}
