package authcore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAction enumerates the lifecycle actions the orchestrator records.
type AuditAction string

const (
	AuditActionSignup        AuditAction = "SIGNUP"
	AuditActionLogin         AuditAction = "LOGIN"
	AuditActionLogout        AuditAction = "LOGOUT"
	AuditActionEmailVerified AuditAction = "EMAIL_VERIFIED"
	AuditActionPasswordReset AuditAction = "PASSWORD_RESET"
	AuditActionProfileUpdate AuditAction = "PROFILE_UPDATE"
)

// AuditEvent captures audit-friendly information about an auth action.
// UserID is nil for anonymous attempts, e.g. a failed password reset.
type AuditEvent struct {
	Action     AuditAction
	UserID     *uuid.UUID
	IPAddress  string
	UserAgent  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// AuditSink consumes audit events. Sink failures never affect the
// outcome of the action that produced the event.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// AuditSinkFunc adapts a function to the AuditSink interface.
type AuditSinkFunc func(ctx context.Context, event AuditEvent) error

// Record implements AuditSink.
func (f AuditSinkFunc) Record(ctx context.Context, event AuditEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopAuditSink struct{}

func (noopAuditSink) Record(context.Context, AuditEvent) error {
	return nil
}

func normalizeAuditSink(s AuditSink) AuditSink {
	if s == nil {
		return noopAuditSink{}
	}
	return s
}
