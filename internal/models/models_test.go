package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkedAccount_Validate(t *testing.T) {
	a := LinkedAccount{UserID: "u1", AccessToken: "tok", ExpiresAt: time.Now()}
	require.NoError(t, a.Validate())

	a.UserID = ""
	assert.Error(t, a.Validate())

	b := LinkedAccount{UserID: "u1", AccessToken: "tok"}
	assert.Error(t, b.Validate())
}

func TestLinkedAccount_ExpiresWithin(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := LinkedAccount{ExpiresAt: now.Add(10 * time.Minute)}

	assert.False(t, a.ExpiresWithin(now, 5*time.Minute))
	assert.True(t, a.ExpiresWithin(now, 10*time.Minute))
	assert.True(t, a.ExpiresWithin(now.Add(11*time.Minute), 0))
}

func TestLinkedAccount_ApplyTokenKeepsRefreshWhenMissing(t *testing.T) {
	now := time.Now()
	a := LinkedAccount{AccessToken: "old", RefreshToken: "r1", Scope: "auth capi"}

	a.ApplyToken(&TokenSet{AccessToken: "new", TokenType: "Bearer", Expiry: now.Add(time.Hour)}, now)
	assert.Equal(t, "new", a.AccessToken)
	assert.Equal(t, "r1", a.RefreshToken)
	assert.Equal(t, "auth capi", a.Scope)

	a.ApplyToken(&TokenSet{AccessToken: "newer", RefreshToken: "r2", Expiry: now.Add(time.Hour)}, now)
	assert.Equal(t, "r2", a.RefreshToken)
	assert.Equal(t, now, a.UpdatedAt)
}

func TestLinkedAccount_DisplayName(t *testing.T) {
	assert.Equal(t, "Account 4", (&LinkedAccount{ID: 4}).DisplayName())
	assert.Equal(t, "CMDR Jameson", (&LinkedAccount{CommanderName: "Jameson"}).DisplayName())
	assert.Equal(t, "CMDR Jameson (Starlight)", (&LinkedAccount{CommanderName: "Jameson", CarrierName: "Starlight"}).DisplayName())
}

func TestAccountSlice(t *testing.T) {
	as := AccountSlice{{ID: 1}, {ID: 5}}
	got, ok := as.FindByID(5)
	require.True(t, ok)
	assert.Equal(t, int64(5), got.ID)
	_, ok = as.FindByID(9)
	assert.False(t, ok)
	assert.Equal(t, []int64{1, 5}, as.IDs())
}

func TestAuthSession(t *testing.T) {
	now := time.Now()
	s := AuthSession{ID: "s", UserID: "u", State: "st", CodeVerifier: "cv", RedirectURI: "https://x/cb"}
	require.NoError(t, s.Validate())
	assert.False(t, s.IsExpired(now), "sessions without expiry never expire")

	past := now.Add(-time.Second)
	s.ExpiresAt = &past
	assert.True(t, s.IsExpired(now))

	s.State = ""
	assert.Error(t, s.Validate())
}

func TestResources(t *testing.T) {
	assert.True(t, ResourceProfile.Cacheable())
	assert.False(t, ResourceJournal.Cacheable())

	r, err := ParseResource("market")
	require.NoError(t, err)
	assert.Equal(t, ResourceMarket, r)

	_, err = ParseResource("engineers")
	assert.Error(t, err)

	assert.Equal(t, EnvBeta, EnvironmentFor(true))
	assert.Equal(t, EnvLive, EnvironmentFor(false))
}
