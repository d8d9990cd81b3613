package logging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Login flow
	LoginStarted AuditEventType = "LOGIN_STARTED"
	LoginFailure AuditEventType = "LOGIN_FAILURE"

	// Account lifecycle
	AccountLinked   AuditEventType = "ACCOUNT_LINKED"
	AccountUnlinked AuditEventType = "ACCOUNT_UNLINKED"
	DefaultChanged  AuditEventType = "DEFAULT_ACCOUNT_CHANGED"

	// Token lifecycle
	TokenRefreshed AuditEventType = "TOKEN_REFRESHED"
	TokenRejected  AuditEventType = "TOKEN_REJECTED"
	TokenRevoked   AuditEventType = "TOKEN_REVOKED"

	// Operator commands
	AdminAction AuditEventType = "ADMIN_ACTION"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	StatusSuccess AuditStatus = "success"
	StatusFailure AuditStatus = "failure"
)

// AuditEvent is a security-relevant event. Token values never go in here.
type AuditEvent struct {
	ID           string
	Timestamp    time.Time
	EventType    AuditEventType
	UserID       string
	AccountID    int64
	Status       AuditStatus
	Details      map[string]interface{}
	ErrorMessage string
}

// NewAuditEvent creates a new audit event with a generated ID and timestamp
func NewAuditEvent(eventType AuditEventType, userID string) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Status:    StatusSuccess,
	}
}

func (e *AuditEvent) WithAccount(accountID int64) *AuditEvent {
	e.AccountID = accountID
	return e
}

func (e *AuditEvent) WithDetail(key string, value interface{}) *AuditEvent {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithError marks the event as failed.
func (e *AuditEvent) WithError(err error) *AuditEvent {
	if err == nil {
		return e
	}
	e.ErrorMessage = err.Error()
	e.Status = StatusFailure
	return e
}

// Audit writes the event as a SECURITY_AUDIT entry. Failures log at warn.
func (l *Logger) Audit(ctx context.Context, event *AuditEvent) {
	fields := []interface{}{
		"audit_id", event.ID,
		"event_type", string(event.EventType),
		"user_id", event.UserID,
		"status", string(event.Status),
		"at", event.Timestamp.Format(time.RFC3339),
	}
	if event.AccountID != 0 {
		fields = append(fields, "account_id", event.AccountID)
	}
	for k, v := range event.Details {
		fields = append(fields, k, v)
	}
	if event.ErrorMessage != "" {
		fields = append(fields, "error", event.ErrorMessage)
		l.WarnWithContext(ctx, "SECURITY_AUDIT", fields...)
		return
	}
	l.InfoWithContext(ctx, "SECURITY_AUDIT", fields...)
}
