package store

import (
	"context"
	"time"

	"github.com/pokedi/edfc/internal/models"
)

// SessionStore persists in-flight login attempts.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *models.AuthSession) error
	// GetSession returns nil, nil when the session does not exist.
	GetSession(ctx context.Context, id string) (*models.AuthSession, error)
	// DeleteSession reports whether a row was removed. Only one concurrent
	// caller can observe true for a given id.
	DeleteSession(ctx context.Context, id string) (bool, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// AccountStore persists linked accounts and their tokens.
type AccountStore interface {
	// UpsertAccount inserts acc, or updates the existing row owned by the same
	// user with the same non-empty CustomerID. acc.ID is set on return.
	UpsertAccount(ctx context.Context, acc *models.LinkedAccount) (created bool, err error)
	// GetAccount returns nil, nil when the user does not own the account.
	GetAccount(ctx context.Context, userID string, accountID int64) (*models.LinkedAccount, error)
	// ListAccounts returns the user's accounts oldest first.
	ListAccounts(ctx context.Context, userID string) ([]models.LinkedAccount, error)
	CountAccounts(ctx context.Context, userID string) (int, error)
	UpdateTokens(ctx context.Context, acc *models.LinkedAccount) error
	UpdateCarrier(ctx context.Context, userID string, accountID int64, carrierName, carrierID string) error
	DeleteAccount(ctx context.Context, userID string, accountID int64) (bool, error)
}

// UserSettingsStore persists per-user preferences.
type UserSettingsStore interface {
	// GetSettings returns nil, nil when the user has no settings row.
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	// SetDefaultAccount stores accountID as the default; nil clears it.
	SetDefaultAccount(ctx context.Context, userID string, accountID *int64) error
}

// StoreStats holds row counts for health and operator output.
type StoreStats struct {
	SessionCount int `json:"session_count"`
	AccountCount int `json:"account_count"`
	UserCount    int `json:"user_count"`
}

// Store is the relational store used by the bot.
type Store interface {
	SessionStore
	AccountStore
	UserSettingsStore

	Ping(ctx context.Context) error
	Stats(ctx context.Context) (StoreStats, error)
	Close() error
}
