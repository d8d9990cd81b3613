package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/pokedi/edfc/internal/accounts"
	"github.com/pokedi/edfc/internal/cache"
	"github.com/pokedi/edfc/internal/commands"
	"github.com/pokedi/edfc/internal/config"
	"github.com/pokedi/edfc/internal/discord"
	"github.com/pokedi/edfc/internal/errors"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/metrics"
	"github.com/pokedi/edfc/internal/session"
	"github.com/pokedi/edfc/internal/store"
	"github.com/pokedi/edfc/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	result *session.Result
	err    error
	calls  []string
}

func (f *fakeSessions) CompleteSession(_ context.Context, id, code, state string) (*session.Result, error) {
	f.calls = append(f.calls, id+"|"+code+"|"+state)
	return f.result, f.err
}

type fakeInteractions struct {
	valid  bool
	resp   *discordgo.InteractionResponse
	err    error
	bodies []string
	waited atomic.Bool
}

func (f *fakeInteractions) Verify(*http.Request) bool { return f.valid }

func (f *fakeInteractions) Handle(_ context.Context, body []byte) (*discordgo.InteractionResponse, error) {
	f.bodies = append(f.bodies, string(body))
	return f.resp, f.err
}

func (f *fakeInteractions) Wait() { f.waited.Store(true) }

func setupTestServer(deps Deps) *Server {
	gin.SetMode(gin.TestMode)
	if deps.Logger == nil {
		deps.Logger = logging.NewLogger(logging.WithOutput(io.Discard))
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics("edfc")
	}
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 3000, BasePath: "/edfc"}
	return NewServer(cfg, deps)
}

func serve(s *Server, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s := setupTestServer(Deps{Store: store.NewMemoryStore(), Cache: cache.NewMemoryCache()})

	w := serve(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["cache"])
	assert.Contains(t, body["store"], "account_count")
}

func TestHandleHealth_CacheDownIsDegraded(t *testing.T) {
	s := setupTestServer(Deps{Store: store.NewMemoryStore(), Cache: &mocks.FailingCache{}})

	w := serve(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(Deps{})
	serve(s, http.MethodGet, "/health", nil)

	w := serve(s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "edfc_")
}

func TestCorrelationIDHeader(t *testing.T) {
	s := setupTestServer(Deps{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Correlation-ID"))

	w = serve(s, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestCallback_Success(t *testing.T) {
	sessions := &fakeSessions{result: &session.Result{UserID: "u1", AccountID: 1, CommanderName: "Jameson"}}
	s := setupTestServer(Deps{Sessions: sessions})

	w := serve(s, http.MethodGet, "/edfc/sess-1/callback?code=abc&state=xyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Login successful")
	assert.Contains(t, w.Body.String(), "CMDR Jameson")
	assert.Equal(t, []string{"sess-1|abc|xyz"}, sessions.calls)
}

func TestCallback_Failure(t *testing.T) {
	sessions := &fakeSessions{err: errors.ErrSessionNotFound}
	s := setupTestServer(Deps{Sessions: sessions})

	w := serve(s, http.MethodGet, "/edfc/sess-1/callback?code=abc&state=xyz", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "This login link is no longer valid.")
}

func TestCallback_StateMismatchHidesDetail(t *testing.T) {
	sessions := &fakeSessions{err: errors.ErrStateMismatch}
	s := setupTestServer(Deps{Sessions: sessions})

	w := serve(s, http.MethodGet, "/edfc/sess-1/callback?code=abc&state=forged", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Authentication failed. Please try again.")
	assert.NotContains(t, w.Body.String(), "forged")
}

func TestCallback_DeniedOrMissingCode(t *testing.T) {
	sessions := &fakeSessions{}
	s := setupTestServer(Deps{Sessions: sessions})

	w := serve(s, http.MethodGet, "/edfc/sess-1/callback?error=access_denied", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization was denied.")

	w = serve(s, http.MethodGet, "/edfc/sess-1/callback?state=xyz", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Missing authorization code.")

	assert.Empty(t, sessions.calls)
}

func TestCallback_EscapesMessage(t *testing.T) {
	sessions := &fakeSessions{err: &errors.ErrUpstream{Resource: "<script>", Status: 500}}
	s := setupTestServer(Deps{Sessions: sessions})

	w := serve(s, http.MethodGet, "/edfc/sess-1/callback?code=abc&state=xyz", nil)
	assert.NotContains(t, w.Body.String(), "<script>")
}

func TestInteractions_NotConfigured(t *testing.T) {
	s := setupTestServer(Deps{})
	w := serve(s, http.MethodPost, "/edfc/interactions", strings.NewReader(`{"type":1}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInteractions_BadSignature(t *testing.T) {
	h := &fakeInteractions{valid: false}
	s := setupTestServer(Deps{Interactions: h})

	w := serve(s, http.MethodPost, "/edfc/interactions", strings.NewReader(`{"type":1}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, h.bodies)
}

func TestInteractions_Dispatch(t *testing.T) {
	h := &fakeInteractions{valid: true, resp: &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong}}
	s := setupTestServer(Deps{Interactions: h})

	w := serve(s, http.MethodPost, "/edfc/interactions", strings.NewReader(`{"type":1}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":1}`, w.Body.String())
	assert.Equal(t, []string{`{"type":1}`}, h.bodies)

	h.resp, h.err = nil, assert.AnError
	w = serve(s, http.MethodPost, "/edfc/interactions", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInteractions_SignedPingThroughDiscordHandler(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	logger := logging.NewLogger(logging.WithOutput(io.Discard))
	registry := commands.NewRegistry(accounts.NewRegistry(store.NewMemoryStore(), cache.NewMemoryCache(), logger), logger)
	handler, err := discord.NewHandler(discord.Config{PublicKey: hex.EncodeToString(pub)}, registry, nil, logger, nil)
	require.NoError(t, err)
	s := setupTestServer(Deps{Interactions: handler})

	body := `{"id":"1","type":1}`
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/edfc/interactions", bytes.NewBufferString(body))
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(ed25519.Sign(priv, []byte(ts+body))))
	req.Header.Set("X-Signature-Timestamp", ts)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":1}`, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/edfc/interactions", bytes.NewBufferString(body))
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(ed25519.Sign(priv, []byte(ts+"tampered"))))
	req.Header.Set("X-Signature-Timestamp", ts)
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBodyLimit(t *testing.T) {
	h := &fakeInteractions{valid: true, resp: &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong}}
	s := setupTestServer(Deps{Interactions: h})

	big := bytes.Repeat([]byte("a"), maxBodyBytes+1)
	w := serve(s, http.MethodPost, "/edfc/interactions", bytes.NewReader(big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, h.bodies)
}

func TestRateLimiter(t *testing.T) {
	l := newIPRateLimiter(time.Second, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.allow("1.2.3.4", now))
	assert.True(t, l.allow("1.2.3.4", now))
	assert.False(t, l.allow("1.2.3.4", now))
	assert.True(t, l.allow("5.6.7.8", now), "buckets are per ip")

	assert.True(t, l.allow("1.2.3.4", now.Add(time.Second)))
	assert.False(t, l.allow("1.2.3.4", now.Add(time.Second)))
	assert.True(t, l.allow("1.2.3.4", now.Add(5*time.Second)))
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(config.ServerConfig{BasePath: "/edfc", RateLimit: config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1}},
		Deps{Logger: logging.NewLogger(logging.WithOutput(io.Discard))})

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(s, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(s, http.MethodGet, "/edfc/abc/callback?code=x&state=y", nil).Code)
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	l := newIPRateLimiter(time.Second, 5)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5000; i++ {
		l.allow("10.0."+strconv.Itoa(i/256)+"."+strconv.Itoa(i%256), now)
	}
	assert.Equal(t, 5000, l.Len())

	assert.True(t, l.allow("192.0.2.1", now.Add(24*time.Hour)))
	assert.Equal(t, 1, l.Len(), "idle buckets are dropped")
}

func TestRateLimiter_EvictionMatchesRefill(t *testing.T) {
	l := newIPRateLimiter(time.Second, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.allow("1.2.3.4", now))
	assert.True(t, l.allow("1.2.3.4", now))
	assert.False(t, l.allow("1.2.3.4", now))

	// not idle yet: kept with one refilled token
	assert.True(t, l.allow("5.6.7.8", now.Add(time.Second)))
	assert.Equal(t, 2, l.Len())
	assert.True(t, l.allow("1.2.3.4", now.Add(time.Second)))
	assert.False(t, l.allow("1.2.3.4", now.Add(time.Second)))

	// idle for burst*rate: evicted, and a new bucket grants the full burst
	later := now.Add(3 * time.Second)
	assert.True(t, l.allow("1.2.3.4", later))
	assert.True(t, l.allow("1.2.3.4", later))
	assert.False(t, l.allow("1.2.3.4", later))
}

func TestInteractionsNotRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &fakeInteractions{valid: true, resp: &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong}}
	s := NewServer(config.ServerConfig{BasePath: "/edfc", RateLimit: config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1}},
		Deps{Interactions: h, Logger: logging.NewLogger(logging.WithOutput(io.Discard))})

	for i := 0; i < 5; i++ {
		w := serve(s, http.MethodPost, "/edfc/interactions", bytes.NewBufferString(`{"type":1}`))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestShutdown_WaitsForInteractions(t *testing.T) {
	h := &fakeInteractions{valid: true}
	s := setupTestServer(Deps{Interactions: h, Store: store.NewMemoryStore(), Cache: cache.NewMemoryCache()})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.True(t, h.waited.Load())
}
