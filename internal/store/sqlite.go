package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pokedi/edfc/internal/errors"
	"github.com/pokedi/edfc/internal/models"
	_ "modernc.org/sqlite"
)

const sqlitePragmas = "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=cache_size(2000)&_pragma=busy_timeout(5000)"

// PoolOptions bounds the connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolOptions allows at most 10 concurrent connections.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour}
}

// SQLiteStore provides SQLite-backed storage with WAL mode.
// It is thread-safe; writes are serialized in-process.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// PathFromURL accepts "sqlite://path", "file:path" or a bare path.
func PathFromURL(url string) string {
	path := strings.TrimPrefix(url, "sqlite://")
	path = strings.TrimPrefix(path, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	return path
}

// NewSQLiteStore opens the database at dbPath with default pool limits.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithPool(dbPath, DefaultPoolOptions())
}

// NewSQLiteStoreWithPool opens the database and runs migrations.
func NewSQLiteStoreWithPool(dbPath string, pool PoolOptions) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+sqlitePragmas)
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS auth_sessions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					state TEXT NOT NULL,
					code_verifier TEXT NOT NULL,
					redirect_uri TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					expires_at DATETIME
				);

				CREATE TABLE IF NOT EXISTS linked_accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					customer_id TEXT,
					commander_name TEXT NOT NULL DEFAULT '',
					carrier_name TEXT NOT NULL DEFAULT '',
					carrier_id TEXT NOT NULL DEFAULT '',
					access_token TEXT NOT NULL,
					refresh_token TEXT NOT NULL,
					token_type TEXT NOT NULL DEFAULT 'Bearer',
					expires_at DATETIME NOT NULL,
					scope TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				);

				CREATE TABLE IF NOT EXISTS user_settings (
					user_id TEXT PRIMARY KEY,
					default_account_id INTEGER,
					updated_at DATETIME NOT NULL,
					FOREIGN KEY (default_account_id) REFERENCES linked_accounts(id) ON DELETE SET NULL
				);

				CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires_at ON auth_sessions(expires_at);
				CREATE INDEX IF NOT EXISTS idx_linked_accounts_user_id ON linked_accounts(user_id, created_at, id);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_linked_accounts_identity
					ON linked_accounts(user_id, customer_id) WHERE customer_id IS NOT NULL;
			`,
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Session operations

// CreateSession stores a new login attempt.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *models.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt interface{}
	if sess.ExpiresAt != nil {
		expiresAt = sess.ExpiresAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, state, code_verifier, redirect_uri, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.UserID, sess.State, sess.CodeVerifier, sess.RedirectURI, sess.CreatedAt.UTC(), expiresAt)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create session", Err: err}
	}
	return nil
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sess models.AuthSession
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, state, code_verifier, redirect_uri, created_at, expires_at
		FROM auth_sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.UserID, &sess.State, &sess.CodeVerifier, &sess.RedirectURI, &sess.CreatedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get session", Err: err}
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		sess.ExpiresAt = &t
	}
	return &sess, nil
}

// DeleteSession removes a session and reports whether it existed.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM auth_sessions WHERE id = ?", id)
	if err != nil {
		return false, &errors.ErrDatabaseQuery{Operation: "delete session", Err: err}
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// DeleteExpiredSessions prunes sessions whose expiry has passed.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM auth_sessions WHERE expires_at IS NOT NULL AND expires_at <= ?", now.UTC())
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "delete expired sessions", Err: err}
	}
	return result.RowsAffected()
}

// Account operations

const accountColumns = `id, user_id, customer_id, commander_name, carrier_name, carrier_id,
	access_token, refresh_token, token_type, expires_at, scope, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.LinkedAccount, error) {
	var acc models.LinkedAccount
	var customerID sql.NullString
	err := row.Scan(&acc.ID, &acc.UserID, &customerID, &acc.CommanderName, &acc.CarrierName, &acc.CarrierID,
		&acc.AccessToken, &acc.RefreshToken, &acc.TokenType, &acc.ExpiresAt, &acc.Scope, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	acc.CustomerID = customerID.String
	return &acc, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// UpsertAccount inserts an account or updates the one with the same identity.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, acc *models.LinkedAccount) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, &errors.ErrDatabaseQuery{Operation: "begin upsert account", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var existingID int64
	if acc.CustomerID != "" {
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM linked_accounts WHERE user_id = ? AND customer_id = ?",
			acc.UserID, acc.CustomerID).Scan(&existingID)
		if err != nil && err != sql.ErrNoRows {
			return false, &errors.ErrDatabaseQuery{Operation: "find account identity", Err: err}
		}
	}

	created := existingID == 0
	if created {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO linked_accounts (user_id, customer_id, commander_name, carrier_name, carrier_id,
				access_token, refresh_token, token_type, expires_at, scope, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, acc.UserID, nullString(acc.CustomerID), acc.CommanderName, acc.CarrierName, acc.CarrierID,
			acc.AccessToken, acc.RefreshToken, acc.TokenType, acc.ExpiresAt.UTC(), acc.Scope, now, now)
		if err != nil {
			return false, &errors.ErrDatabaseQuery{Operation: "insert account", Err: err}
		}
		if acc.ID, err = result.LastInsertId(); err != nil {
			return false, &errors.ErrDatabaseQuery{Operation: "insert account id", Err: err}
		}
		acc.CreatedAt = now
	} else {
		_, err := tx.ExecContext(ctx, `
			UPDATE linked_accounts SET
				commander_name = ?, carrier_name = ?, carrier_id = ?,
				access_token = ?, refresh_token = ?, token_type = ?, expires_at = ?, scope = ?,
				updated_at = ?
			WHERE id = ?
		`, acc.CommanderName, acc.CarrierName, acc.CarrierID,
			acc.AccessToken, acc.RefreshToken, acc.TokenType, acc.ExpiresAt.UTC(), acc.Scope, now, existingID)
		if err != nil {
			return false, &errors.ErrDatabaseQuery{Operation: "update account", Err: err}
		}
		acc.ID = existingID
	}
	acc.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return false, &errors.ErrDatabaseQuery{Operation: "commit upsert account", Err: err}
	}
	return created, nil
}

// GetAccount retrieves an account owned by userID.
func (s *SQLiteStore) GetAccount(ctx context.Context, userID string, accountID int64) (*models.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM linked_accounts WHERE id = ? AND user_id = ?", accountID, userID)
	acc, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get account", Err: err}
	}
	return acc, nil
}

// ListAccounts returns the user's accounts in link order.
func (s *SQLiteStore) ListAccounts(ctx context.Context, userID string) ([]models.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM linked_accounts WHERE user_id = ? ORDER BY created_at, id", userID)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list accounts", Err: err}
	}
	defer rows.Close()

	accounts := []models.LinkedAccount{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan account", Err: err}
		}
		accounts = append(accounts, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list accounts", Err: err}
	}
	return accounts, nil
}

// CountAccounts returns how many accounts the user has linked.
func (s *SQLiteStore) CountAccounts(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM linked_accounts WHERE user_id = ?", userID).Scan(&count); err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "count accounts", Err: err}
	}
	return count, nil
}

// UpdateTokens overwrites the token fields of an account in place.
func (s *SQLiteStore) UpdateTokens(ctx context.Context, acc *models.LinkedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE linked_accounts SET
			access_token = ?, refresh_token = ?, token_type = ?, expires_at = ?, scope = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, acc.AccessToken, acc.RefreshToken, acc.TokenType, acc.ExpiresAt.UTC(), acc.Scope, acc.UpdatedAt.UTC(), acc.ID, acc.UserID)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update tokens", Err: err}
	}
	return nil
}

// UpdateCarrier refreshes the denormalized carrier identity.
func (s *SQLiteStore) UpdateCarrier(ctx context.Context, userID string, accountID int64, carrierName, carrierID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE linked_accounts SET carrier_name = ?, carrier_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, carrierName, carrierID, time.Now().UTC(), accountID, userID)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update carrier", Err: err}
	}
	return nil
}

// DeleteAccount removes an account owned by userID.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, userID string, accountID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM linked_accounts WHERE id = ? AND user_id = ?", accountID, userID)
	if err != nil {
		return false, &errors.ErrDatabaseQuery{Operation: "delete account", Err: err}
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Stats returns statistics about the store
func (s *SQLiteStore) Stats(ctx context.Context) (StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats StoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM auth_sessions),
			(SELECT COUNT(*) FROM linked_accounts),
			(SELECT COUNT(DISTINCT user_id) FROM linked_accounts)
	`).Scan(&stats.SessionCount, &stats.AccountCount, &stats.UserCount)
	if err != nil {
		return StoreStats{}, &errors.ErrDatabaseQuery{Operation: "stats", Err: err}
	}
	return stats, nil
}

// Ensure SQLiteStore implements the Store interface
var _ Store = (*SQLiteStore)(nil)
