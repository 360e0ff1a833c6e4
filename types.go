package authcore

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes that end up in token claims
type Identity interface {
	ID() string
	Email() string
	Role() string
}

// TokenIssuer mints and validates access/refresh token pairs
type TokenIssuer interface {
	Issue(ctx context.Context, identity Identity) (*TokenPair, error)
	ValidateAccess(tokenString string) (AuthClaims, error)
	ValidateRefresh(ctx context.Context, tokenString string) (AuthClaims, error)
}

// Config holds auth options
type Config interface {
	GetAccessSigningKey() string
	GetRefreshSigningKey() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetVerificationTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetIssuer() string
	GetAudience() []string
}

// RequestContext carries caller metadata into orchestrator operations. It is
// passed by value; there is no hidden request decoration.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
