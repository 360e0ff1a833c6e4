package authcore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions is the durable refresh token store. Every check is a fresh read;
// there is no caching layer in front of it.
type Sessions interface {
	// Create always inserts a new row, never updates an existing one, so a
	// user can hold concurrent sessions across devices.
	Create(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) (*Session, error)
	// FindActive returns the matching active, non-expired session or nil.
	FindActive(ctx context.Context, refreshToken string, userID uuid.UUID) (*Session, error)
	// Revoke is idempotent: revoking an already revoked or unknown token is
	// a no-op, not an error.
	Revoke(ctx context.Context, refreshToken string) error
	// RevokeAll revokes every active session a user holds.
	RevokeAll(ctx context.Context, userID uuid.UUID) error
	// Claim atomically transitions one active, non-expired session to
	// REVOKED. It reports whether this caller performed the transition;
	// under concurrent rotation of the same token exactly one caller wins.
	Claim(ctx context.Context, refreshToken string) (bool, error)
}

type sessions struct {
	repository.Repository[*Session]
	db  *bun.DB
	now func() time.Time
}

var _ Sessions = (*sessions)(nil)

type SessionsOption func(*sessions)

// WithSessionsClock injects a custom clock (useful for tests).
func WithSessionsClock(clock func() time.Time) SessionsOption {
	return func(s *sessions) {
		if clock != nil {
			s.now = clock
		}
	}
}

func NewSessionsRepository(db *bun.DB, opts ...SessionsOption) Sessions {
	repo := repository.NewRepository[*Session](db, repository.ModelHandlers[*Session]{
		NewRecord: func() *Session { return &Session{} },
		GetID: func(s *Session) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Session, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	repoSessions := &sessions{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoSessions)
		}
	}

	return repoSessions
}

func (a *sessions) Create(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) (*Session, error) {
	record := &Session{
		ID:           uuid.New(),
		UserID:       userID,
		RefreshToken: refreshToken,
		Status:       SessionActive,
		ExpiresAt:    expiresAt,
	}

	return a.Repository.Create(ctx, record)
}

func (a *sessions) FindActive(ctx context.Context, refreshToken string, userID uuid.UUID) (*Session, error) {
	record := &Session{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.refresh_token = ?", refreshToken).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.status = ?", SessionActive).
		Where("?TableAlias.expires_at >= ?", a.now()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return record, nil
}

func (a *sessions) Revoke(ctx context.Context, refreshToken string) error {
	_, err := a.db.NewRaw(`
		UPDATE "sessions" AS "ses"
		SET "status" = ?
		WHERE ("ses".refresh_token = ?)
		AND "ses"."status" = ?;
	`, SessionRevoked, refreshToken, SessionActive).Exec(ctx)

	return err
}

func (a *sessions) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	_, err := a.db.NewRaw(`
		UPDATE "sessions" AS "ses"
		SET "status" = ?
		WHERE ("ses".user_id = ?)
		AND "ses"."status" = ?;
	`, SessionRevoked, userID, SessionActive).Exec(ctx)

	return err
}

func (a *sessions) Claim(ctx context.Context, refreshToken string) (bool, error) {
	// Single conditional update guarded by current status; the rows-affected
	// count decides the winner under concurrent rotation.
	res, err := a.db.NewRaw(`
		UPDATE "sessions" AS "ses"
		SET "status" = ?
		WHERE ("ses".refresh_token = ?)
		AND "ses"."status" = ?
		AND "ses"."expires_at" >= ?;
	`, SessionRevoked, refreshToken, SessionActive, a.now()).Exec(ctx)

	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
