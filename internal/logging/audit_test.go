package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestAuditEventLifecycle(t *testing.T) {
	event := NewAuditEvent(AccountLinked, "user").
		WithAccount(3).
		WithDetail("commander", "Jameson")

	if event.UserID != "user" || event.AccountID != 3 {
		t.Fatalf("expected user and account to be set")
	}
	if event.Status != StatusSuccess {
		t.Fatalf("expected success status by default")
	}
	if event.Details["commander"] != "Jameson" {
		t.Fatalf("expected detail to be recorded")
	}

	event.WithError(errors.New("boom"))
	if event.Status != StatusFailure || event.ErrorMessage != "boom" {
		t.Fatalf("expected failure status with message")
	}

	unchanged := NewAuditEvent(TokenRevoked, "user").WithError(nil)
	if unchanged.Status != StatusSuccess {
		t.Fatalf("nil error must not mark failure")
	}
}

func TestLoggerAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelInfo))
	ctx := WithCorrelationID(context.Background(), "cid")

	logger.Audit(ctx, NewAuditEvent(TokenRejected, "u1").WithAccount(9).WithError(errors.New("invalid_grant")))
	entry := decodeLastLog(t, buf.Bytes())

	if entry["message"] != "SECURITY_AUDIT" {
		t.Fatalf("unexpected message: %v", entry["message"])
	}
	if entry["level"] != "warn" {
		t.Fatalf("failed audit events should log at warn, got %v", entry["level"])
	}
	if entry["correlation_id"] != "cid" {
		t.Fatalf("expected correlation id from context")
	}
	fields := entry["fields"].(map[string]interface{})
	if fields["event_type"] != string(TokenRejected) {
		t.Fatalf("unexpected event type: %v", fields["event_type"])
	}
	if int(fields["account_id"].(float64)) != 9 {
		t.Fatalf("expected account id field")
	}
}
