package models

import (
	"fmt"
	"time"
)

// LinkedAccount is one Frontier account linked to one Discord user,
// together with its current token pair.
type LinkedAccount struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	CustomerID    string    `json:"customer_id,omitempty"`
	CommanderName string    `json:"commander_name,omitempty"`
	CarrierName   string    `json:"carrier_name,omitempty"`
	CarrierID     string    `json:"carrier_id,omitempty"`
	AccessToken   string    `json:"-"`
	RefreshToken  string    `json:"-"`
	TokenType     string    `json:"token_type"`
	ExpiresAt     time.Time `json:"expires_at"`
	Scope         string    `json:"scope,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks if the account is valid.
func (a *LinkedAccount) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if a.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}
	if a.ExpiresAt.IsZero() {
		return fmt.Errorf("expiry is required")
	}
	return nil
}

// ExpiresWithin reports whether the access token expires before now+margin.
func (a *LinkedAccount) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return !a.ExpiresAt.After(now.Add(margin))
}

// ApplyToken overwrites the token fields in place. Refresh tokens rotate,
// so an empty refresh token keeps the previous one.
func (a *LinkedAccount) ApplyToken(t *TokenSet, now time.Time) {
	a.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		a.RefreshToken = t.RefreshToken
	}
	a.TokenType = t.TokenType
	a.ExpiresAt = t.Expiry
	if t.Scope != "" {
		a.Scope = t.Scope
	}
	a.UpdatedAt = now
}

// DisplayName is the label shown in account pickers.
func (a *LinkedAccount) DisplayName() string {
	if a.CommanderName == "" {
		return fmt.Sprintf("Account %d", a.ID)
	}
	if a.CarrierName != "" {
		return fmt.Sprintf("CMDR %s (%s)", a.CommanderName, a.CarrierName)
	}
	return "CMDR " + a.CommanderName
}

// AccountSlice is a slice of accounts with helper methods.
type AccountSlice []LinkedAccount

// FindByID returns an account by ID.
func (as AccountSlice) FindByID(id int64) (*LinkedAccount, bool) {
	for i := range as {
		if as[i].ID == id {
			return &as[i], true
		}
	}
	return nil, false
}

// IDs returns account ids in slice order.
func (as AccountSlice) IDs() []int64 {
	ids := make([]int64, len(as))
	for i := range as {
		ids[i] = as[i].ID
	}
	return ids
}
