package authcore

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuditTrail is the append-only store of security events. Rows are never
// mutated or deleted by this core.
type AuditTrail interface {
	Append(ctx context.Context, record *AuditEntry) (*AuditEntry, error)
}

type auditTrail struct {
	repository.Repository[*AuditEntry]
}

var _ AuditTrail = (*auditTrail)(nil)

func NewAuditTrailRepository(db *bun.DB) AuditTrail {
	repo := repository.NewRepository[*AuditEntry](db, repository.ModelHandlers[*AuditEntry]{
		NewRecord: func() *AuditEntry { return &AuditEntry{} },
		GetID: func(e *AuditEntry) uuid.UUID {
			if e == nil {
				return uuid.Nil
			}
			return e.ID
		},
		SetID: func(e *AuditEntry, id uuid.UUID) {
			if e != nil {
				e.ID = id
			}
		},
	})

	return &auditTrail{Repository: repo}
}

func (a *auditTrail) Append(ctx context.Context, record *AuditEntry) (*AuditEntry, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.Create(ctx, record)
}

// TrailAuditSink adapts the AuditTrail repository to the AuditSink interface
// consumed by the orchestrator.
type TrailAuditSink struct {
	trail AuditTrail
}

var _ AuditSink = (*TrailAuditSink)(nil)

func NewTrailAuditSink(trail AuditTrail) *TrailAuditSink {
	return &TrailAuditSink{trail: trail}
}

// Record implements AuditSink. Metadata is serialized to JSON; a nil map
// leaves the column empty.
func (s *TrailAuditSink) Record(ctx context.Context, event AuditEvent) error {
	record := &AuditEntry{
		Action:    string(event.Action),
		UserID:    event.UserID,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
	}

	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return err
		}
		record.Metadata = string(raw)
	}

	_, err := s.trail.Append(ctx, record)
	return err
}
