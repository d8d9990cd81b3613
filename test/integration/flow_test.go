package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoginAndProfileFlow walks a user from /login through the Frontier
// redirect to a deferred /profile answered from the seeded cache.
func TestLoginAndProfileFlow(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	resp := ts.command(t, "u1", "login")
	u := loginURL(t, resp)
	q := u.Query()
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("state"))

	redirect := q.Get("redirect_uri")
	require.True(t, strings.HasPrefix(redirect, "https://bot.example/edfc/"), redirect)
	callbackPath := strings.TrimPrefix(redirect, "https://bot.example")

	w := httptest.NewRecorder()
	ts.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, callbackPath+"?code=abc&state="+q.Get("state"), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "CMDR Jameson")

	linked, err := ts.Store.ListAccounts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "Jameson", linked[0].CommanderName)

	// the session is single use
	w = httptest.NewRecorder()
	ts.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, callbackPath+"?code=abc&state="+q.Get("state"), nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	profileCalls := ts.Frontier.CountRequests("/profile")
	resp = ts.command(t, "u1", "profile")
	assert.EqualValues(t, 5, resp["type"], "deferred channel message")

	require.Eventually(t, func() bool { return ts.Responder.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	edit := ts.Responder.last()
	require.NotNil(t, edit.Embeds)
	require.NotEmpty(t, *edit.Embeds)
	assert.Equal(t, "CMDR Jameson", (*edit.Embeds)[0].Title)
	assert.Equal(t, profileCalls, ts.Frontier.CountRequests("/profile"), "served from the cache seeded at login")
}

func TestStateMismatchDoesNotLink(t *testing.T) {
	ts := setupTestServer(t)

	u := loginURL(t, ts.command(t, "u1", "login"))
	callbackPath := strings.TrimPrefix(u.Query().Get("redirect_uri"), "https://bot.example")

	w := httptest.NewRecorder()
	ts.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, callbackPath+"?code=abc&state=forged", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, ts.Frontier.CountRequests("/token"), "no exchange on state mismatch")

	linked, err := ts.Store.ListAccounts(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, linked)
}

func TestProfileRequiresLogin(t *testing.T) {
	ts := setupTestServer(t)

	ts.command(t, "u2", "profile")
	require.Eventually(t, func() bool { return ts.Responder.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	edit := ts.Responder.last()
	require.NotNil(t, edit.Content)
	assert.Contains(t, *edit.Content, "/login")
	assert.Equal(t, 0, ts.Frontier.CountRequests("/profile"))
}
