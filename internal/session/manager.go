// Package session runs the PKCE login flow: it creates login sessions and
// completes them when Frontier redirects back.
package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pokedi/edfc/internal/accounts"
	"github.com/pokedi/edfc/internal/cache"
	"github.com/pokedi/edfc/internal/errors"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/models"
	"github.com/pokedi/edfc/internal/oauth"
	"github.com/pokedi/edfc/internal/store"
)

// DefaultTTL is how long a login link stays usable.
const DefaultTTL = 10 * time.Minute

// Authorizer is the authorization-server side of the flow.
type Authorizer interface {
	AuthorizationURL(state, challenge, redirectURI string) string
	Exchange(ctx context.Context, code, verifier, redirectURI string) (*models.TokenSet, error)
}

// IdentityResolver looks up who a fresh token belongs to.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, accessToken string) (*models.Identity, error)
}

// Store is the subset of the relational store the manager needs.
type Store interface {
	store.SessionStore
	store.AccountStore
}

// Config holds the manager settings.
type Config struct {
	// CallbackBaseURL is prefixed to "/{sessionId}/callback".
	CallbackBaseURL string
	// TTL of a login session. Zero means sessions never expire on their own.
	TTL time.Duration
	// CacheTTL applies to payloads fetched during identity resolution.
	CacheTTL time.Duration
}

// Login is returned to the user who asked to log in.
type Login struct {
	SessionID        string
	AuthorizationURL string
	ExpiresAt        *time.Time
}

// Result describes a completed login.
type Result struct {
	UserID        string
	AccountID     int64
	CommanderName string
	Created       bool
	IsDefault     bool
}

// Manager is the PKCE session manager.
type Manager struct {
	cfg        Config
	store      Store
	registry   *accounts.Registry
	authorizer Authorizer
	identity   IdentityResolver
	cache      cache.Cache
	logger     *logging.Logger
	now        func() time.Time
}

// NewManager creates a Manager. identity and c may be nil.
func NewManager(cfg Config, s Store, registry *accounts.Registry, authorizer Authorizer, identity IdentityResolver, c cache.Cache, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewLogger()
	}
	cfg.CallbackBaseURL = strings.TrimSuffix(cfg.CallbackBaseURL, "/")
	return &Manager{
		cfg:        cfg,
		store:      s,
		registry:   registry,
		authorizer: authorizer,
		identity:   identity,
		cache:      c,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces time.Now.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// RedirectURI is the callback URL for a session.
func (m *Manager) RedirectURI(sessionID string) string {
	return fmt.Sprintf("%s/%s/callback", m.cfg.CallbackBaseURL, sessionID)
}

// CreateSession starts a login for userID. An empty redirectURI uses the
// default callback for the new session.
func (m *Manager) CreateSession(ctx context.Context, userID, redirectURI string) (*Login, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		return nil, err
	}
	state, err := oauth.GenerateState()
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	sess := &models.AuthSession{
		ID:           uuid.New().String(),
		UserID:       userID,
		State:        state,
		CodeVerifier: pkce.Verifier,
		CreatedAt:    now,
	}
	sess.RedirectURI = redirectURI
	if sess.RedirectURI == "" {
		sess.RedirectURI = m.RedirectURI(sess.ID)
	}
	if m.cfg.TTL > 0 {
		expires := now.Add(m.cfg.TTL)
		sess.ExpiresAt = &expires
	}

	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	m.logger.Audit(ctx, logging.NewAuditEvent(logging.LoginStarted, userID).WithDetail("session_id", sess.ID))

	return &Login{
		SessionID:        sess.ID,
		AuthorizationURL: m.authorizer.AuthorizationURL(state, pkce.Challenge, sess.RedirectURI),
		ExpiresAt:        sess.ExpiresAt,
	}, nil
}

// CompleteSession finishes the login identified by sessionID. The state is
// checked before anything else happens. The session is claimed before the
// code is exchanged so concurrent callbacks exchange at most once, and put
// back if the exchange fails so the same login link can be retried until it
// expires.
func (m *Manager) CompleteSession(ctx context.Context, sessionID, code, state string) (*Result, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errors.ErrSessionNotFound
	}
	if sess.IsExpired(m.now()) {
		_, _ = m.store.DeleteSession(ctx, sessionID)
		return nil, errors.ErrSessionNotFound
	}

	if subtle.ConstantTimeCompare([]byte(sess.State), []byte(state)) != 1 {
		m.logger.Audit(ctx, logging.NewAuditEvent(logging.LoginFailure, sess.UserID).
			WithDetail("session_id", sessionID).
			WithError(errors.ErrStateMismatch))
		return nil, errors.ErrStateMismatch
	}

	consumed, err := m.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, errors.ErrSessionNotFound
	}

	set, err := m.authorizer.Exchange(ctx, code, sess.CodeVerifier, sess.RedirectURI)
	if err != nil {
		m.logger.Audit(ctx, logging.NewAuditEvent(logging.LoginFailure, sess.UserID).
			WithDetail("session_id", sessionID).
			WithError(err))
		m.restore(ctx, sess)
		return nil, err
	}

	now := m.now().UTC()
	acc := &models.LinkedAccount{UserID: sess.UserID}
	acc.ApplyToken(set, now)

	identity := m.resolveIdentity(ctx, sess.UserID, acc.AccessToken)
	if identity != nil {
		acc.CustomerID = identity.CustomerID
		acc.CommanderName = identity.CommanderName
		acc.CarrierName = identity.CarrierName
		acc.CarrierID = identity.CarrierID
	}

	created, err := m.store.UpsertAccount(ctx, acc)
	if err != nil {
		return nil, err
	}

	isDefault, err := m.registry.EnsureDefault(ctx, sess.UserID, acc.ID)
	if err != nil {
		return nil, err
	}
	if !isDefault {
		def, err := m.registry.GetDefaultAccountID(ctx, sess.UserID)
		if err != nil {
			return nil, err
		}
		isDefault = def == acc.ID
	}

	if identity != nil {
		m.seedCache(ctx, sess.UserID, acc.ID, isDefault, identity.Payloads)
	}

	m.logger.Audit(ctx, logging.NewAuditEvent(logging.AccountLinked, sess.UserID).
		WithAccount(acc.ID).
		WithDetail("created", created).
		WithDetail("default", isDefault))

	return &Result{
		UserID:        sess.UserID,
		AccountID:     acc.ID,
		CommanderName: acc.CommanderName,
		Created:       created,
		IsDefault:     isDefault,
	}, nil
}

// restore puts a claimed session back after a failed exchange.
func (m *Manager) restore(ctx context.Context, sess *models.AuthSession) {
	if err := m.store.CreateSession(context.WithoutCancel(ctx), sess); err != nil {
		m.logger.WarnWithContext(ctx, "failed to restore login session", "session_id", sess.ID, "error", err)
	}
}

func (m *Manager) resolveIdentity(ctx context.Context, userID, accessToken string) *models.Identity {
	if m.identity == nil {
		return nil
	}
	identity, err := m.identity.ResolveIdentity(ctx, accessToken)
	if err != nil {
		m.logger.WarnWithContext(ctx, "could not resolve account identity", "user_id", userID, "error", err)
		return nil
	}
	return identity
}

func (m *Manager) seedCache(ctx context.Context, userID string, accountID int64, isDefault bool, payloads map[models.Resource][]byte) {
	if m.cache == nil || m.cfg.CacheTTL <= 0 {
		return
	}
	for resource, payload := range payloads {
		keys := []string{cache.Key(resource, userID, accountID, models.EnvLive)}
		if isDefault {
			keys = append(keys, cache.Key(resource, userID, 0, models.EnvLive))
		}
		for _, key := range keys {
			if err := m.cache.Set(ctx, key, payload, m.cfg.CacheTTL); err != nil {
				m.logger.WarnWithContext(ctx, "cache seed failed", "key", key, "error", err)
			}
		}
	}
}
