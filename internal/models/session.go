package models

import (
	"fmt"
	"time"
)

// AuthSession is one in-flight login attempt.
type AuthSession struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	State        string     `json:"-"`
	CodeVerifier string     `json:"-"`
	RedirectURI  string     `json:"redirect_uri"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Validate checks if the session is valid.
func (s *AuthSession) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if s.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if s.State == "" || s.CodeVerifier == "" {
		return fmt.Errorf("state and code verifier are required")
	}
	if s.RedirectURI == "" {
		return fmt.Errorf("redirect URI is required")
	}
	return nil
}

// IsExpired reports whether the session has passed its expiry.
// Sessions without an expiry stay valid until consumed or pruned.
func (s *AuthSession) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
