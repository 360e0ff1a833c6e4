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

var markUserVerifiedSQL = `UPDATE "users" AS "usr"
SET
	"is_verified" = TRUE,
	"verification_token" = NULL,
	"verification_expires" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var setUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"reset_token" = NULL,
	"reset_expires" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// Users is the user record store consumed by the orchestrator and the
// ephemeral token registry. Lookups are keyed by unique email (case
// sensitive) or id; email uniqueness is enforced at the store.
type Users interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*User, error)
	Create(ctx context.Context, record *User) (*User, error)
	Update(ctx context.Context, record *User) (*User, error)

	MarkVerified(ctx context.Context, id uuid.UUID) error
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	LinkGoogleID(ctx context.Context, id uuid.UUID, googleID string) error

	StoreEphemeralToken(ctx context.Context, id uuid.UUID, purpose TokenPurpose, token string, expires time.Time) error
	// ClearEphemeralToken nulls the pending token of a purpose only when the
	// stored value still matches current. The boolean reports whether this
	// caller performed the clear; a false result means a concurrent consumer
	// (or a reissue) got there first.
	ClearEphemeralToken(ctx context.Context, id uuid.UUID, purpose TokenPurpose, current string) (bool, error)
	GetByEphemeralToken(ctx context.Context, purpose TokenPurpose, token string) (*User, error)
	ListWithPendingToken(ctx context.Context, purpose TokenPurpose) ([]*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.getByColumn(ctx, "email", email)
}

func (a *users) GetByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return a.getByColumn(ctx, "google_id", googleID)
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.getByColumn(ctx, "id", id.String())
}

func (a *users) getByColumn(ctx context.Context, column, value string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errorsIsNoRows(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.Create(ctx, record)
}

func (a *users) Update(ctx context.Context, record *User) (*User, error) {
	return a.Repository.Update(ctx, record, repository.UpdateByID(record.ID.String()))
}

func (a *users) MarkVerified(ctx context.Context, id uuid.UUID) error {
	res, err := a.Repository.RawTx(ctx, a.db, markUserVerifiedSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, a.db, setUserPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) LinkGoogleID(ctx context.Context, id uuid.UUID, googleID string) error {
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET "google_id" = ?
		WHERE ("usr".id = ?)
		AND "usr"."deleted_at" IS NULL;
	`, googleID, id).Exec(ctx)

	return err
}

func (a *users) StoreEphemeralToken(ctx context.Context, id uuid.UUID, purpose TokenPurpose, token string, expires time.Time) error {
	tokenCol, expiresCol := ephemeralColumns(purpose)

	// Plain overwrite: issuing a new token invalidates any prior pending one.
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET "`+tokenCol+`" = ?, "`+expiresCol+`" = ?
		WHERE ("usr".id = ?)
		AND "usr"."deleted_at" IS NULL;
	`, token, expires, id).Exec(ctx)

	return err
}

func (a *users) ClearEphemeralToken(ctx context.Context, id uuid.UUID, purpose TokenPurpose, current string) (bool, error) {
	tokenCol, expiresCol := ephemeralColumns(purpose)

	res, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET "`+tokenCol+`" = NULL, "`+expiresCol+`" = NULL
		WHERE ("usr".id = ?)
		AND "usr"."`+tokenCol+`" = ?
		AND "usr"."deleted_at" IS NULL;
	`, id, current).Exec(ctx)

	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (a *users) GetByEphemeralToken(ctx context.Context, purpose TokenPurpose, token string) (*User, error) {
	tokenCol, _ := ephemeralColumns(purpose)
	return a.getByColumn(ctx, tokenCol, token)
}

func (a *users) ListWithPendingToken(ctx context.Context, purpose TokenPurpose) ([]*User, error) {
	tokenCol, _ := ephemeralColumns(purpose)

	var records []*User
	q := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias." + tokenCol + " IS NOT NULL")

	if purpose == PurposeVerification {
		q = q.Where("?TableAlias.is_verified = ?", false)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}

func ephemeralColumns(purpose TokenPurpose) (string, string) {
	if purpose == PurposePasswordReset {
		return "reset_token", "reset_expires"
	}
	return "verification_token", "verification_expires"
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func errorsIsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}
