package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenPair is the result of one token mint: a short-lived stateless access
// token and a long-lived refresh token backed by a session row.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// TokenServiceImpl implements the TokenIssuer interface
type TokenServiceImpl struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	sessions   Sessions
	logger     Logger
	now        func() time.Time
}

var _ TokenIssuer = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance. The access and
// refresh signing keys must differ: a shared secret would let an access token
// masquerade as a refresh token.
func NewTokenService(cfg Config, sessions Sessions, logger Logger) (*TokenServiceImpl, error) {
	if logger == nil {
		logger = defLogger{}
	}

	accessKey := []byte(cfg.GetAccessSigningKey())
	refreshKey := []byte(cfg.GetRefreshSigningKey())

	if len(accessKey) == 0 || len(refreshKey) == 0 {
		return nil, errors.New("signing keys must not be empty", errors.CategoryValidation)
	}

	if string(accessKey) == string(refreshKey) {
		return nil, ErrSecretsNotDistinct
	}

	return &TokenServiceImpl{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		sessions:   sessions,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// WithClock overrides the time source, useful for expiry tests.
func (ts *TokenServiceImpl) WithClock(clock func() time.Time) *TokenServiceImpl {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// Issue mints an access/refresh pair for an identity and records the refresh
// token as a new session row. Every mint creates a fresh session; concurrent
// sign-ins across devices each get their own row.
func (ts *TokenServiceImpl) Issue(ctx context.Context, identity Identity) (*TokenPair, error) {
	now := ts.now()

	accessToken, err := ts.sign(identity, ts.accessKey, now, ts.accessTTL)
	if err != nil {
		return nil, err
	}

	refreshExpires := now.Add(ts.refreshTTL)
	refreshToken, err := ts.sign(identity, ts.refreshKey, now, ts.refreshTTL)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "identity has a non-uuid id")
	}

	if _, err := ts.sessions.Create(ctx, userID, refreshToken, refreshExpires); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist session")
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(ts.accessTTL / time.Second),
	}, nil
}

// ValidateAccess parses and validates an access token. Validation is
// stateless: signature and expiry only.
func (ts *TokenServiceImpl) ValidateAccess(tokenString string) (AuthClaims, error) {
	return ts.parse(tokenString, ts.accessKey)
}

// ValidateRefresh validates a refresh token: signature, expiry, and the
// session row. Signature failures, missing sessions, revoked sessions and
// expired sessions all surface the same uniform error so a caller cannot
// probe session history.
func (ts *TokenServiceImpl) ValidateRefresh(ctx context.Context, tokenString string) (AuthClaims, error) {
	claims, err := ts.parseWithKey(tokenString, ts.refreshKey)
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}

	session, err := ts.sessions.FindActive(ctx, tokenString, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up session")
	}

	if session == nil || !session.IsActive(ts.now()) {
		return nil, ErrRefreshTokenInvalid
	}

	return claims, nil
}

func (ts *TokenServiceImpl) sign(identity Identity, key []byte, now time.Time, ttl time.Duration) (string, error) {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:       identity.ID(),
		UserEmail: identity.Email(),
		UserRole:  identity.Role(),
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// parse validates against the access taxonomy: expired vs malformed.
func (ts *TokenServiceImpl) parse(tokenString string, key []byte) (AuthClaims, error) {
	claims, err := ts.parseWithKey(tokenString, key)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}
	return claims, nil
}

func (ts *TokenServiceImpl) parseWithKey(tokenString string, key []byte) (*JWTClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrTokenMalformed
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
