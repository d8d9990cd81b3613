// Package accounts maps one Discord user to the Frontier accounts they linked
// and tracks which one is the default.
package accounts

import (
	"context"
	"fmt"

	"github.com/pokedi/edfc/internal/cache"
	"github.com/pokedi/edfc/internal/errors"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/models"
	"github.com/pokedi/edfc/internal/store"
)

// Store is the subset of the relational store the registry needs.
type Store interface {
	store.AccountStore
	store.UserSettingsStore
}

// Registry answers account-selection questions for a user.
type Registry struct {
	store  Store
	cache  cache.Cache
	logger *logging.Logger
}

// NewRegistry creates a registry. c may be nil when nothing is cached.
func NewRegistry(s Store, c cache.Cache, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Registry{store: s, cache: c, logger: logger}
}

// ListAccounts returns the user's accounts in link order.
func (r *Registry) ListAccounts(ctx context.Context, userID string) (models.AccountSlice, error) {
	accounts, err := r.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return models.AccountSlice(accounts), nil
}

// GetAccount returns the account, or ErrInvalidAccount if the user does not own it.
func (r *Registry) GetAccount(ctx context.Context, userID string, accountID int64) (*models.LinkedAccount, error) {
	acc, err := r.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, errors.ErrInvalidAccount
	}
	return acc, nil
}

// GetDefaultAccountID returns the stored default if it still exists, else the
// oldest linked account, else 0.
func (r *Registry) GetDefaultAccountID(ctx context.Context, userID string) (int64, error) {
	settings, err := r.store.GetSettings(ctx, userID)
	if err != nil {
		return 0, err
	}
	if settings != nil && settings.DefaultAccountID != nil {
		acc, err := r.store.GetAccount(ctx, userID, *settings.DefaultAccountID)
		if err != nil {
			return 0, err
		}
		if acc != nil {
			return acc.ID, nil
		}
	}

	accounts, err := r.store.ListAccounts(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(accounts) == 0 {
		return 0, nil
	}
	return accounts[0].ID, nil
}

// SetDefaultAccount makes accountID the user's default.
func (r *Registry) SetDefaultAccount(ctx context.Context, userID string, accountID int64) error {
	acc, err := r.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return err
	}
	if acc == nil {
		return errors.ErrInvalidAccount
	}
	if err := r.store.SetDefaultAccount(ctx, userID, &accountID); err != nil {
		return err
	}
	// "default" cache entries belong to the previous default now.
	r.purge(ctx, userID, 0)
	r.logger.Audit(ctx, logging.NewAuditEvent(logging.DefaultChanged, userID).WithAccount(accountID))
	return nil
}

// EnsureDefault sets accountID as default when the user has no valid default.
// It reports whether the default was changed.
func (r *Registry) EnsureDefault(ctx context.Context, userID string, accountID int64) (bool, error) {
	settings, err := r.store.GetSettings(ctx, userID)
	if err != nil {
		return false, err
	}
	if settings != nil && settings.DefaultAccountID != nil {
		acc, err := r.store.GetAccount(ctx, userID, *settings.DefaultAccountID)
		if err != nil {
			return false, err
		}
		if acc != nil {
			return false, nil
		}
	}
	if err := r.store.SetDefaultAccount(ctx, userID, &accountID); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveAccount unlinks one of several accounts. The user's only account
// cannot be removed this way.
func (r *Registry) RemoveAccount(ctx context.Context, userID string, accountID int64) error {
	acc, err := r.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return err
	}
	if acc == nil {
		return errors.ErrInvalidAccount
	}

	count, err := r.store.CountAccounts(ctx, userID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return errors.ErrLastAccount
	}

	_, err = r.Detach(ctx, userID, accountID)
	return err
}

// Detach deletes the account without the last-account check, moves the
// default to the oldest remaining account (or clears it) and purges cached
// resources for the account.
func (r *Registry) Detach(ctx context.Context, userID string, accountID int64) (bool, error) {
	settings, err := r.store.GetSettings(ctx, userID)
	if err != nil {
		return false, err
	}
	wasDefault := settings != nil && settings.DefaultAccountID != nil && *settings.DefaultAccountID == accountID

	removed, err := r.store.DeleteAccount(ctx, userID, accountID)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}

	if wasDefault {
		remaining, err := r.store.ListAccounts(ctx, userID)
		if err != nil {
			return true, err
		}
		var next *int64
		if len(remaining) > 0 {
			next = &remaining[0].ID
		}
		if err := r.store.SetDefaultAccount(ctx, userID, next); err != nil {
			return true, fmt.Errorf("failed to reassign default account: %w", err)
		}
	}

	r.purge(ctx, userID, accountID)
	r.logger.Audit(ctx, logging.NewAuditEvent(logging.AccountUnlinked, userID).
		WithAccount(accountID).
		WithDetail("was_default", wasDefault))
	return true, nil
}

// HasMultipleAccounts reports whether an account picker is worth showing.
func (r *Registry) HasMultipleAccounts(ctx context.Context, userID string) (bool, error) {
	count, err := r.store.CountAccounts(ctx, userID)
	if err != nil {
		return false, err
	}
	return count > 1, nil
}

// purge drops cached resources for the account. Cache failures are logged only.
func (r *Registry) purge(ctx context.Context, userID string, accountID int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, cache.AccountKeys(userID, accountID)...); err != nil {
		r.logger.WarnWithContext(ctx, "cache purge failed",
			"user_id", userID,
			"account_id", accountID,
			"error", err,
		)
	}
}
