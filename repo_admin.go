package authcore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AdminRecords stamps sign-in metadata on the admin settings side record.
type AdminRecords interface {
	// TouchLastLogin updates last_login_at for the user's settings row. A
	// missing row is a no-op: the side record is owned by back-office
	// provisioning, not by this core.
	TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
}

type adminRecords struct {
	db *bun.DB
}

var _ AdminRecords = (*adminRecords)(nil)

func NewAdminRecordsRepository(db *bun.DB) AdminRecords {
	return &adminRecords{db: db}
}

func (a *adminRecords) TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := a.db.NewRaw(`
		UPDATE "admin_settings" AS "adm"
		SET "last_login_at" = ?, "updated_at" = ?
		WHERE ("adm".user_id = ?);
	`, at, at, userID).Exec(ctx)

	return err
}
