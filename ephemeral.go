package authcore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const ephemeralTokenBytes = 32

// EphemeralTokens issues and consumes the single-use tokens that back
// email verification and password reset flows.
type EphemeralTokens interface {
	// Issue mints a fresh token for the user and purpose, replacing any
	// pending token of the same purpose. The returned IssuedToken carries
	// both the full token and its derived short code.
	Issue(ctx context.Context, userID uuid.UUID, purpose TokenPurpose) (*IssuedToken, error)
	// Consume resolves presented (a full token or a short code) to its
	// owner and atomically clears it. Expiry is checked here, at the
	// moment of consumption. Guards run after the expiry check and
	// before the clear; a guard error leaves the token usable.
	Consume(ctx context.Context, purpose TokenPurpose, presented string, guards ...ConsumeGuard) (*User, error)
}

// ConsumeGuard vets the resolved owner before the token is cleared.
type ConsumeGuard func(*User) error

// IssuedToken is a freshly minted ephemeral token. Token is what goes in
// a link, Code is the short form a user can type.
type IssuedToken struct {
	Token     string
	Code      string
	ExpiresAt time.Time
}

type ephemeralTokens struct {
	users  Users
	ttl    map[TokenPurpose]time.Duration
	logger Logger
	now    func() time.Time
}

var _ EphemeralTokens = (*ephemeralTokens)(nil)

// NewEphemeralTokens builds the registry on top of the Users store.
func NewEphemeralTokens(users Users, cfg Config, logger Logger) EphemeralTokens {
	if logger == nil {
		logger = defLogger{}
	}
	return &ephemeralTokens{
		users: users,
		ttl: map[TokenPurpose]time.Duration{
			PurposeVerification:  cfg.GetVerificationTokenTTL(),
			PurposePasswordReset: cfg.GetResetTokenTTL(),
		},
		logger: logger,
		now:    time.Now,
	}
}

func (e *ephemeralTokens) Issue(ctx context.Context, userID uuid.UUID, purpose TokenPurpose) (*IssuedToken, error) {
	if !purpose.IsValid() {
		return nil, errors.New("unknown token purpose", errors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": string(purpose)})
	}

	token, err := randomHexToken()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to mint ephemeral token")
	}

	expires := e.now().Add(e.ttl[purpose])
	if err := e.users.StoreEphemeralToken(ctx, userID, purpose, token, expires); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to store ephemeral token")
	}

	return &IssuedToken{
		Token:     token,
		Code:      DeriveCode(token),
		ExpiresAt: expires,
	}, nil
}

func (e *ephemeralTokens) Consume(ctx context.Context, purpose TokenPurpose, presented string, guards ...ConsumeGuard) (*User, error) {
	if presented == "" {
		return nil, ErrTokenNotFound
	}

	user, token, err := e.resolve(ctx, purpose, presented)
	if err != nil {
		return nil, err
	}

	_, expires := user.PendingToken(purpose)
	if expires == nil || e.now().After(*expires) {
		return nil, ErrTokenExpired
	}

	for _, guard := range guards {
		if err := guard(user); err != nil {
			return nil, err
		}
	}

	cleared, err := e.users.ClearEphemeralToken(ctx, user.ID, purpose, token)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to clear ephemeral token")
	}

	if !cleared {
		// lost the race to a concurrent consumer or a reissue
		return nil, ErrTokenNotFound
	}

	return user, nil
}

// resolve maps the presented value to the owning user and the stored
// token. A short code requires scanning candidates with a pending token
// and rederiving their code.
func (e *ephemeralTokens) resolve(ctx context.Context, purpose TokenPurpose, presented string) (*User, string, error) {
	if !isShortCode(presented) {
		user, err := e.users.GetByEphemeralToken(ctx, purpose, presented)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, "", ErrTokenNotFound
			}
			return nil, "", errors.Wrap(err, errors.CategoryInternal, "ephemeral token lookup failed")
		}
		return user, presented, nil
	}

	candidates, err := e.users.ListWithPendingToken(ctx, purpose)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "ephemeral code scan failed")
	}

	for _, user := range candidates {
		token, _ := user.PendingToken(purpose)
		if token == "" {
			continue
		}
		if DeriveCode(token) == presented {
			return user, token, nil
		}
	}

	return nil, "", ErrTokenNotFound
}

// DeriveCode maps a full token to its 6 digit short code: the first 8 hex
// characters of sha256(token), taken modulo 1e6.
func DeriveCode(token string) string {
	sum := sha256.Sum256([]byte(token))
	digest := hex.EncodeToString(sum[:])

	n, err := strconv.ParseInt(digest[:8], 16, 64)
	if err != nil {
		// digest is always valid hex; keep the compiler honest
		return "000000"
	}

	return fmt.Sprintf("%06d", n%1_000_000)
}

func randomHexToken() (string, error) {
	buf := make([]byte, ephemeralTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func isShortCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
