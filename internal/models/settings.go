package models

import "time"

// UserSettings holds per-user preferences.
type UserSettings struct {
	UserID           string    `json:"user_id"`
	DefaultAccountID *int64    `json:"default_account_id,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}
