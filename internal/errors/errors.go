package errors

import (
	stderrors "errors"
	"fmt"
)

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

// Login and account errors

var (
	// ErrSessionNotFound means the callback references an unknown, expired or consumed session.
	ErrSessionNotFound = stderrors.New("oauth session not found")
	// ErrStateMismatch means the returned state does not match the stored one.
	ErrStateMismatch = stderrors.New("oauth state mismatch")
	// ErrInvalidAccount means the account does not belong to the user.
	ErrInvalidAccount = stderrors.New("invalid account")
	// ErrLastAccount means the user tried to remove their only linked account.
	ErrLastAccount = stderrors.New("cannot remove last linked account")
)

type ErrTokenExchange struct {
	Status int
	Body   string
	Err    error
}

func (e *ErrTokenExchange) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	}
	return fmt.Sprintf("token exchange failed: status=%d body=%s", e.Status, e.Body)
}

func (e *ErrTokenExchange) Unwrap() error {
	return e.Err
}

// ErrTokenRefresh describes a failed refresh. Rejected is set when the
// authorization server answered with a 4xx, i.e. the refresh token is unusable.
type ErrTokenRefresh struct {
	AccountID int64
	Status    int
	Body      string
	Rejected  bool
	Err       error
}

func (e *ErrTokenRefresh) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refresh failed for account %d: %v", e.AccountID, e.Err)
	}
	return fmt.Sprintf("token refresh failed for account %d: status=%d body=%s", e.AccountID, e.Status, e.Body)
}

func (e *ErrTokenRefresh) Unwrap() error {
	return e.Err
}

// Upstream errors

type ErrUpstream struct {
	Resource string
	Status   int
	Body     string
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("upstream %s request failed: status=%d body=%s", e.Resource, e.Status, e.Body)
}

// ErrCircuitOpen is returned without calling upstream while a CAPI server is
// failing.
type ErrCircuitOpen struct {
	Server   string
	Resource string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit for %s is open, %s request rejected", e.Server, e.Resource)
}

// UserMessage maps an error to the text shown to the chat user.
// State mismatches deliberately carry no detail.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var upstream *ErrUpstream
	var exchange *ErrTokenExchange
	var refresh *ErrTokenRefresh
	var open *ErrCircuitOpen

	switch {
	case stderrors.Is(err, ErrSessionNotFound):
		return "This login link is no longer valid. Please restart login with /login."
	case stderrors.Is(err, ErrStateMismatch):
		return "Authentication failed. Please try again."
	case stderrors.Is(err, ErrInvalidAccount):
		return "That account is not linked to you."
	case stderrors.Is(err, ErrLastAccount):
		return "You cannot remove your only linked account. Use /logout instead."
	case stderrors.As(err, &open):
		return "Frontier's servers are not responding right now. Please try again in a minute."
	case stderrors.As(err, &upstream):
		return fmt.Sprintf("Unable to fetch %s, please try again.", upstream.Resource)
	case stderrors.As(err, &exchange):
		return "Frontier rejected the login. Please restart login with /login."
	case stderrors.As(err, &refresh):
		return "Your Frontier session has expired. Please log in again with /login."
	default:
		return "Something went wrong, please try again."
	}
}
