package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pokedi/edfc/internal/models"
)

// MemoryStore is an in-memory Store for tests and local runs.
// Expired sessions are removed by DeleteExpiredSessions like the SQLite store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.AuthSession
	accounts map[int64]models.LinkedAccount
	settings map[string]models.UserSettings
	nextID   int64 // ids are monotonic, so id order is link order
	clock    func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.AuthSession),
		accounts: make(map[int64]models.LinkedAccount),
		settings: make(map[string]models.UserSettings),
		clock:    time.Now,
	}
}

// Session operations

func (s *MemoryStore) CreateSession(_ context.Context, sess *models.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*models.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *MemoryStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.IsExpired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Account operations

func (s *MemoryStore) UpsertAccount(_ context.Context, acc *models.LinkedAccount) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()
	if acc.CustomerID != "" {
		for id, existing := range s.accounts {
			if existing.UserID == acc.UserID && existing.CustomerID == acc.CustomerID {
				updated := *acc
				updated.ID = id
				updated.CreatedAt = existing.CreatedAt
				updated.UpdatedAt = now
				s.accounts[id] = updated
				acc.ID = id
				acc.CreatedAt = existing.CreatedAt
				acc.UpdatedAt = now
				return false, nil
			}
		}
	}

	s.nextID++
	acc.ID = s.nextID
	acc.CreatedAt = now
	acc.UpdatedAt = now
	s.accounts[acc.ID] = *acc
	return true, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, userID string, accountID int64) (*models.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[accountID]
	if !ok || acc.UserID != userID {
		return nil, nil
	}
	return &acc, nil
}

func (s *MemoryStore) ListAccounts(_ context.Context, userID string) ([]models.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := []models.LinkedAccount{}
	for _, acc := range s.accounts {
		if acc.UserID == userID {
			accounts = append(accounts, acc)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID < accounts[j].ID
	})
	return accounts, nil
}

func (s *MemoryStore) CountAccounts(ctx context.Context, userID string) (int, error) {
	accounts, err := s.ListAccounts(ctx, userID)
	return len(accounts), err
}

func (s *MemoryStore) UpdateTokens(_ context.Context, acc *models.LinkedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.accounts[acc.ID]
	if !ok || existing.UserID != acc.UserID {
		return nil
	}
	existing.AccessToken = acc.AccessToken
	existing.RefreshToken = acc.RefreshToken
	existing.TokenType = acc.TokenType
	existing.ExpiresAt = acc.ExpiresAt
	existing.Scope = acc.Scope
	existing.UpdatedAt = acc.UpdatedAt
	s.accounts[acc.ID] = existing
	return nil
}

func (s *MemoryStore) UpdateCarrier(_ context.Context, userID string, accountID int64, carrierName, carrierID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.accounts[accountID]
	if !ok || existing.UserID != userID {
		return nil
	}
	existing.CarrierName = carrierName
	existing.CarrierID = carrierID
	existing.UpdatedAt = s.clock().UTC()
	s.accounts[accountID] = existing
	return nil
}

// DeleteAccount removes the account and clears any default pointing at it,
// matching the ON DELETE SET NULL behaviour of the SQLite schema.
func (s *MemoryStore) DeleteAccount(_ context.Context, userID string, accountID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.accounts[accountID]
	if !ok || existing.UserID != userID {
		return false, nil
	}
	delete(s.accounts, accountID)
	if settings, ok := s.settings[userID]; ok && settings.DefaultAccountID != nil && *settings.DefaultAccountID == accountID {
		settings.DefaultAccountID = nil
		s.settings[userID] = settings
	}
	return true, nil
}

// Settings operations

func (s *MemoryStore) GetSettings(_ context.Context, userID string) (*models.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	if settings.DefaultAccountID != nil {
		id := *settings.DefaultAccountID
		settings.DefaultAccountID = &id
	}
	return &settings, nil
}

func (s *MemoryStore) SetDefaultAccount(_ context.Context, userID string, accountID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings := models.UserSettings{UserID: userID, UpdatedAt: s.clock().UTC()}
	if accountID != nil {
		id := *accountID
		settings.DefaultAccountID = &id
	}
	s.settings[userID] = settings
	return nil
}

// Management

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Stats(context.Context) (StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make(map[string]struct{})
	for _, acc := range s.accounts {
		users[acc.UserID] = struct{}{}
	}
	return StoreStats{
		SessionCount: len(s.sessions),
		AccountCount: len(s.accounts),
		UserCount:    len(users),
	}, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
