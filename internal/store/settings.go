package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pokedi/edfc/internal/errors"
	"github.com/pokedi/edfc/internal/models"
)

// GetSettings retrieves a user's settings row.
func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var settings models.UserSettings
	var defaultID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, default_account_id, updated_at FROM user_settings WHERE user_id = ?", userID,
	).Scan(&settings.UserID, &defaultID, &settings.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get settings", Err: err}
	}
	if defaultID.Valid {
		id := defaultID.Int64
		settings.DefaultAccountID = &id
	}
	return &settings, nil
}

// SetDefaultAccount stores the default account, creating the row lazily.
func (s *SQLiteStore) SetDefaultAccount(ctx context.Context, userID string, accountID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value interface{}
	if accountID != nil {
		value = *accountID
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, default_account_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			default_account_id = excluded.default_account_id,
			updated_at = excluded.updated_at
	`, userID, value, now)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "set default account", Err: err}
	}
	return nil
}
