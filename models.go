package authcore

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is a regular customer account
	RoleUser UserRole = "USER"
	// RoleAdmin is a privileged back-office account
	RoleAdmin UserRole = "ADMIN"
)

// TokenPurpose selects which pending ephemeral token a flow operates on.
type TokenPurpose string

const (
	// PurposeVerification is the email verification pending action
	PurposeVerification TokenPurpose = "verification"
	// PurposePasswordReset is the password reset pending action
	PurposePasswordReset TokenPurpose = "password_reset"
)

// User is the identity anchor. A user carries at most one pending ephemeral
// token per purpose; the token columns are nulled when the pending action is
// consumed or superseded.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string    `bun:"password_hash,nullzero" json:"-"`
	Role          UserRole  `bun:"role,notnull" json:"role,omitempty"`
	IsVerified    bool      `bun:"is_verified" json:"is_verified"`
	GoogleID      string    `bun:"google_id,nullzero,unique" json:"google_id,omitempty"`
	FirstName     string    `bun:"first_name" json:"first_name,omitempty"`
	LastName      string    `bun:"last_name" json:"last_name,omitempty"`
	Phone         string    `bun:"phone_number" json:"phone_number,omitempty"`

	VerificationToken   string     `bun:"verification_token,nullzero" json:"-"`
	VerificationExpires *time.Time `bun:"verification_expires,nullzero" json:"-"`
	ResetToken          string     `bun:"reset_token,nullzero" json:"-"`
	ResetExpires        *time.Time `bun:"reset_expires,nullzero" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasCredentials reports whether the account is reachable: it must carry
// either a password hash or a linked federated identity.
func (u *User) HasCredentials() bool {
	return u.PasswordHash != "" || u.GoogleID != ""
}

// PendingToken returns the stored ephemeral token and expiry for a purpose.
func (u *User) PendingToken(purpose TokenPurpose) (string, *time.Time) {
	switch purpose {
	case PurposePasswordReset:
		return u.ResetToken, u.ResetExpires
	default:
		return u.VerificationToken, u.VerificationExpires
	}
}

// SessionStatus is the lifecycle state of a refresh token session.
type SessionStatus = string

const (
	// SessionActive means the refresh token can still be exchanged
	SessionActive SessionStatus = "ACTIVE"
	// SessionRevoked is terminal; a revoked session never reactivates
	SessionRevoked SessionStatus = "REVOKED"
)

// Session is the durable record of one refresh token issuance. A user holds
// many concurrent sessions, one per device/sign-in.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID     `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User         `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	RefreshToken  string        `bun:"refresh_token,notnull" json:"-"`
	Status        SessionStatus `bun:"status,notnull" json:"status,omitempty"`
	ExpiresAt     time.Time     `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsActive reports whether the session can still validate refresh tokens.
func (s *Session) IsActive(now time.Time) bool {
	return s.Status == SessionActive && s.ExpiresAt.After(now)
}

// AuditEntry is an immutable security event. The user reference is weak: the
// row survives user deletion and may carry a nil actor (failed logins with
// unknown identity).
type AuditEntry struct {
	bun.BaseModel `bun:"table:audit_entries,alias:aud"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Action        string     `bun:"action,notnull" json:"action,omitempty"`
	UserID        *uuid.UUID `bun:"user_id,nullzero,type:uuid" json:"user_id,omitempty"`
	IPAddress     string     `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent     string     `bun:"user_agent" json:"user_agent,omitempty"`
	Metadata      string     `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// AdminSettings is the side record stamped on privileged sign-ins.
type AdminSettings struct {
	bun.BaseModel `bun:"table:admin_settings,alias:adm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
