// Package tokens hands out valid Frontier access tokens, refreshing them
// before they expire.
package tokens

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/pokedi/edfc/internal/accounts"
	"github.com/pokedi/edfc/internal/errors"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/metrics"
	"github.com/pokedi/edfc/internal/models"
	"github.com/pokedi/edfc/internal/store"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshMargin is how close to expiry a token is refreshed.
const DefaultRefreshMargin = 5 * time.Minute

// Refresher rotates a refresh token at the authorization server.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.TokenSet, error)
}

// Manager is the token store and refresher.
type Manager struct {
	store     store.AccountStore
	registry  *accounts.Registry
	refresher Refresher
	logger    *logging.Logger
	metrics   *metrics.Metrics
	margin    time.Duration
	now       func() time.Time

	// one refresh in flight per account id
	flights singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithMargin overrides DefaultRefreshMargin.
func WithMargin(margin time.Duration) Option {
	return func(m *Manager) {
		if margin > 0 {
			m.margin = margin
		}
	}
}

// WithMetrics records refresh outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager.
func NewManager(s store.AccountStore, registry *accounts.Registry, refresher Refresher, logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewLogger()
	}
	m := &Manager{
		store:     s,
		registry:  registry,
		refresher: refresher,
		logger:    logger,
		margin:    DefaultRefreshMargin,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Margin returns the refresh safety margin.
func (m *Manager) Margin() time.Duration {
	return m.margin
}

// GetValidAccessToken returns an access token valid for at least the margin,
// or "" when the user has no usable account. accountID 0 means the default.
// Refresh failures yield ""; only store failures are returned as errors.
func (m *Manager) GetValidAccessToken(ctx context.Context, userID string, accountID int64) (string, error) {
	if accountID == 0 {
		id, err := m.registry.GetDefaultAccountID(ctx, userID)
		if err != nil {
			return "", err
		}
		if id == 0 {
			return "", nil
		}
		accountID = id
	}

	acc, err := m.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", nil
	}
	if !acc.ExpiresWithin(m.now(), m.margin) {
		return acc.AccessToken, nil
	}

	v, err, shared := m.flights.Do(strconv.FormatInt(accountID, 10), func() (interface{}, error) {
		return m.refresh(context.WithoutCancel(ctx), userID, accountID)
	})
	if shared {
		m.logger.DebugWithContext(ctx, "joined in-flight token refresh", "account_id", accountID)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh runs at most once at a time per account.
func (m *Manager) refresh(ctx context.Context, userID string, accountID int64) (string, error) {
	// A flight that just finished may already have rotated the token.
	acc, err := m.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", nil
	}
	now := m.now()
	if !acc.ExpiresWithin(now, m.margin) {
		return acc.AccessToken, nil
	}

	set, err := m.refresher.Refresh(ctx, acc.RefreshToken)
	if err != nil {
		m.handleRefreshError(ctx, acc, err)
		return "", nil
	}

	acc.ApplyToken(set, m.now().UTC())
	if err := m.store.UpdateTokens(ctx, acc); err != nil {
		m.metrics.RecordTokenRefresh("failed")
		return "", err
	}

	m.logger.Audit(ctx, logging.NewAuditEvent(logging.TokenRefreshed, userID).WithAccount(accountID))

	if acc.ExpiresWithin(m.now(), m.margin) {
		m.metrics.RecordTokenRefresh("stale")
		m.logger.WarnWithContext(ctx, "refreshed token expires within safety margin",
			"account_id", accountID,
			"expires_at", acc.ExpiresAt,
		)
		return "", nil
	}

	m.metrics.RecordTokenRefresh("success")
	return acc.AccessToken, nil
}

func (m *Manager) handleRefreshError(ctx context.Context, acc *models.LinkedAccount, err error) {
	var refreshErr *errors.ErrTokenRefresh
	if stderrors.As(err, &refreshErr) {
		refreshErr.AccountID = acc.ID
	}

	if refreshErr == nil || !refreshErr.Rejected {
		m.metrics.RecordTokenRefresh("failed")
		m.logger.WarnWithContext(ctx, "token refresh failed",
			"user_id", acc.UserID,
			"account_id", acc.ID,
			"error", err,
		)
		return
	}

	m.metrics.RecordTokenRefresh("rejected")
	m.logger.Audit(ctx, logging.NewAuditEvent(logging.TokenRejected, acc.UserID).
		WithAccount(acc.ID).
		WithDetail("status", refreshErr.Status).
		WithError(err))

	if _, derr := m.registry.Detach(ctx, acc.UserID, acc.ID); derr != nil {
		m.logger.ErrorWithContext(ctx, "failed to delete account after refresh rejection",
			"user_id", acc.UserID,
			"account_id", acc.ID,
			"error", derr,
		)
	}
}

// Revoke deletes the account (the default one when accountID is 0) and purges
// its cache entries. It returns the targeted account id and whether it was removed.
func (m *Manager) Revoke(ctx context.Context, userID string, accountID int64) (int64, bool, error) {
	if accountID == 0 {
		id, err := m.registry.GetDefaultAccountID(ctx, userID)
		if err != nil {
			return 0, false, err
		}
		if id == 0 {
			return 0, false, nil
		}
		accountID = id
	}

	removed, err := m.registry.Detach(ctx, userID, accountID)
	if err != nil {
		return accountID, removed, err
	}
	if removed {
		m.logger.Audit(ctx, logging.NewAuditEvent(logging.TokenRevoked, userID).WithAccount(accountID))
	}
	return accountID, removed, nil
}
