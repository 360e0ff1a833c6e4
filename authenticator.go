package authcore

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// Auther orchestrates the account lifecycle: signup, verification,
// sign-in, token refresh, password reset and profile changes. It owns no
// storage of its own; everything goes through the RepositoryManager.
type Auther struct {
	repo             RepositoryManager
	tokens           TokenIssuer
	ephemeral        EphemeralTokens
	notifier         Notifier
	auditSink        AuditSink
	federated        FederatedValidator
	logger           Logger
	deterministicIDs bool
	now              func() time.Time
}

// NewAuthenticator wires the orchestrator from config and repositories.
func NewAuthenticator(repo RepositoryManager, cfg Config) (*Auther, error) {
	tokens, err := NewTokenService(cfg, repo.Sessions(), defLogger{})
	if err != nil {
		return nil, err
	}

	return &Auther{
		repo:      repo,
		tokens:    tokens,
		ephemeral: NewEphemeralTokens(repo.Users(), cfg, defLogger{}),
		notifier:  noopNotifier{},
		auditSink: noopAuditSink{},
		logger:    defLogger{},
		now:       time.Now,
	}, nil
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithAuditSink configures an AuditSink for recording auth events.
func (s *Auther) WithAuditSink(sink AuditSink) *Auther {
	s.auditSink = normalizeAuditSink(sink)
	return s
}

// WithNotifier configures delivery of verification and reset tokens.
func (s *Auther) WithNotifier(n Notifier) *Auther {
	s.notifier = normalizeNotifier(n)
	return s
}

// WithFederatedValidator enables FederatedLogin against an external
// identity provider.
func (s *Auther) WithFederatedValidator(v FederatedValidator) *Auther {
	s.federated = v
	return s
}

// WithDeterministicIDs derives user ids from the email at signup instead
// of generating random UUIDs.
func (s *Auther) WithDeterministicIDs() *Auther {
	s.deterministicIDs = true
	return s
}

// WithTokenIssuer overrides the built-in token service.
func (s *Auther) WithTokenIssuer(issuer TokenIssuer) *Auther {
	if issuer != nil {
		s.tokens = issuer
	}
	return s
}

// TokenIssuer returns the token issuer used by this orchestrator.
func (s *Auther) TokenIssuer() TokenIssuer {
	return s.tokens
}

// SignupRequest carries the attributes of a new account.
type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone_number"`
}

func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 120)),
		validation.Field(&r.Phone, validation.By(validPhoneNumber)),
	)
}

// Signup creates a new unverified account and sends it a verification
// token. The caller signs in only after verifying the email.
func (s *Auther) Signup(ctx context.Context, req SignupRequest, rctx RequestContext) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid signup request")
	}

	email := normalizeEmail(req.Email)

	if existing, err := s.repo.Users().GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.IsNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "signup lookup failed")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
	}

	if s.deterministicIDs {
		if id, err := DeterministicUserID(email); err == nil {
			user.ID = id
		}
	}

	user, err = s.repo.Users().Create(ctx, user)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) && richErr.Category == errors.CategoryConflict {
			return nil, ErrEmailTaken
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create user")
	}

	s.issueAndNotify(ctx, user, PurposeVerification)

	s.emitAuditEvent(ctx, AuditActionSignup, &user.ID, rctx, map[string]any{
		"email": user.Email,
	})

	return user, nil
}

// VerifyEmail consumes a verification token or short code, marks the
// account verified and signs the user in.
func (s *Auther) VerifyEmail(ctx context.Context, tokenOrCode string, rctx RequestContext) (*User, *TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := s.ephemeral.Consume(ctx, PurposeVerification, tokenOrCode, func(u *User) error {
		// an already verified account keeps the token intact
		if u.IsVerified {
			return ErrAlreadyVerified
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.Users().MarkVerified(ctx, user.ID); err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to mark user verified")
	}
	user.IsVerified = true

	pair, err := s.tokens.Issue(ctx, userIdentity{user})
	if err != nil {
		return nil, nil, err
	}

	s.emitAuditEvent(ctx, AuditActionEmailVerified, &user.ID, rctx, nil)

	return user, pair, nil
}

// ResendVerification reissues the verification token. Unknown emails get
// the same generic reply as hits; an already verified account is the one
// explicit failure.
func (s *Auther) ResendVerification(ctx context.Context, email string, rctx RequestContext) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := s.repo.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil || user == nil {
		if err != nil && !errors.IsNotFound(err) {
			s.logger.Error("resend verification lookup error: %v", err)
		}
		return GenericResendMessage, nil
	}

	if user.IsVerified {
		return "", ErrAlreadyVerified
	}

	s.issueAndNotify(ctx, user, PurposeVerification)

	s.emitAuditEvent(ctx, AuditActionSignup, &user.ID, rctx, map[string]any{
		"action": "resend_verification",
	})

	return GenericResendMessage, nil
}

// SignInRequest carries password sign-in credentials.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// SignIn authenticates email and password. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Auther) SignIn(ctx context.Context, req SignInRequest, rctx RequestContext) (*User, *TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := req.Validate(); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	user, err := s.repo.Users().GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil || user == nil {
		if err != nil && !errors.IsNotFound(err) {
			s.logger.Error("sign-in lookup error: %v", err)
		}
		s.auditLoginFailure(ctx, nil, rctx)
		return nil, nil, ErrInvalidCredentials
	}

	if user.PasswordHash == "" {
		// federated-only account, no password to compare
		s.auditLoginFailure(ctx, &user.ID, rctx)
		return nil, nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(req.Password, user.PasswordHash); err != nil {
		s.auditLoginFailure(ctx, &user.ID, rctx)
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		s.auditLoginFailure(ctx, &user.ID, rctx)
		return nil, nil, ErrAccountNotVerified
	}

	pair, err := s.tokens.Issue(ctx, userIdentity{user})
	if err != nil {
		return nil, nil, err
	}

	s.stampAdminLogin(ctx, user)

	s.emitAuditEvent(ctx, AuditActionLogin, &user.ID, rctx, map[string]any{
		"success": true,
	})

	return user, pair, nil
}

// FederatedLogin verifies a provider ID token and signs the asserted
// identity in, creating or linking the local account as needed.
func (s *Auther) FederatedLogin(ctx context.Context, idToken string, rctx RequestContext) (*User, *TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if s.federated == nil {
		return nil, nil, errors.New("federated login is not configured", errors.CategoryOperation)
	}

	profile, err := s.federated.Validate(idToken)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	return s.signInFederated(ctx, profile, rctx)
}

// FederatedProfileLogin signs in a profile the caller already validated,
// for deployments that exchange and verify the provider token upstream.
func (s *Auther) FederatedProfileLogin(ctx context.Context, profile *FederatedProfile, rctx RequestContext) (*User, *TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if profile == nil || profile.ProviderID == "" || profile.Email == "" {
		return nil, nil, ErrInvalidCredentials
	}

	return s.signInFederated(ctx, profile, rctx)
}

func (s *Auther) signInFederated(ctx context.Context, profile *FederatedProfile, rctx RequestContext) (*User, *TokenPair, error) {
	user, err := s.resolveFederatedUser(ctx, profile)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.tokens.Issue(ctx, userIdentity{user})
	if err != nil {
		return nil, nil, err
	}

	s.stampAdminLogin(ctx, user)

	s.emitAuditEvent(ctx, AuditActionLogin, &user.ID, rctx, map[string]any{
		"provider": "google",
	})

	return user, pair, nil
}

func (s *Auther) resolveFederatedUser(ctx context.Context, profile *FederatedProfile) (*User, error) {
	user, err := s.repo.Users().GetByGoogleID(ctx, profile.ProviderID)
	if err == nil && user != nil {
		return user, nil
	}
	if err != nil && !errors.IsNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "federated lookup failed")
	}

	email := normalizeEmail(profile.Email)

	user, err = s.repo.Users().GetByEmail(ctx, email)
	if err == nil && user != nil {
		// existing password account for the same address, link it
		if err := s.repo.Users().LinkGoogleID(ctx, user.ID, profile.ProviderID); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to link federated identity")
		}
		user.GoogleID = profile.ProviderID
		if !user.IsVerified {
			if err := s.repo.Users().MarkVerified(ctx, user.ID); err != nil {
				return nil, errors.Wrap(err, errors.CategoryInternal, "failed to mark user verified")
			}
			user.IsVerified = true
		}
		return user, nil
	}
	if err != nil && !errors.IsNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "federated lookup failed")
	}

	first, last := splitName(profile.Name)

	created := &User{
		Email:      email,
		Role:       RoleUser,
		GoogleID:   profile.ProviderID,
		IsVerified: true,
		FirstName:  first,
		LastName:   last,
	}

	if s.deterministicIDs {
		if id, err := DeterministicUserID(email); err == nil {
			created.ID = id
		}
	}

	created, err = s.repo.Users().Create(ctx, created)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create federated user")
	}

	s.emitAuditEvent(ctx, AuditActionSignup, &created.ID, RequestContext{}, map[string]any{
		"email":    created.Email,
		"provider": "google",
	})

	return created, nil
}

// ForgotPassword starts a password reset. The reply is the same whether
// or not the email maps to an account; no state changes on a miss.
func (s *Auther) ForgotPassword(ctx context.Context, email string, rctx RequestContext) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := s.repo.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil || user == nil {
		if err != nil && !errors.IsNotFound(err) {
			s.logger.Error("forgot password lookup error: %v", err)
		}
		return GenericForgotPasswordMessage, nil
	}

	s.issueAndNotify(ctx, user, PurposePasswordReset)

	s.emitAuditEvent(ctx, AuditActionPasswordReset, &user.ID, rctx, map[string]any{
		"stage": "requested",
	})

	return GenericForgotPasswordMessage, nil
}

// ResetPasswordRequest carries a reset token and the replacement password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 120)),
	)
}

// ResetPassword consumes a reset token, replaces the password and revokes
// every session the user holds. All existing refresh tokens die here.
func (s *Auther) ResetPassword(ctx context.Context, req ResetPasswordRequest, rctx RequestContext) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := req.Validate(); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid password reset request")
	}

	user, err := s.ephemeral.Consume(ctx, PurposePasswordReset, req.Token)
	if err != nil {
		return err
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	if err := s.repo.Users().SetPassword(ctx, user.ID, hash); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to set password")
	}

	if err := s.repo.Sessions().RevokeAll(ctx, user.ID); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to revoke sessions")
	}

	s.emitAuditEvent(ctx, AuditActionPasswordReset, &user.ID, rctx, map[string]any{
		"stage": "completed",
	})

	return nil
}

// Refresh rotates a refresh token: the presented token is validated,
// retired and replaced by a fresh pair. A token refreshes at most once;
// concurrent rotation of the same token has exactly one winner.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	claims, err := s.tokens.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}

	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil || user == nil {
		if err != nil && !errors.IsNotFound(err) {
			return nil, errors.Wrap(err, errors.CategoryInternal, "refresh lookup failed")
		}
		return nil, ErrRefreshTokenInvalid
	}

	won, err := s.repo.Sessions().Claim(ctx, refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to claim session")
	}
	if !won {
		return nil, ErrRefreshTokenInvalid
	}

	return s.tokens.Issue(ctx, userIdentity{user})
}

// Logout revokes the presented refresh token. Revoking an already revoked
// or unknown token succeeds.
func (s *Auther) Logout(ctx context.Context, refreshToken string, rctx RequestContext) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var userID *uuid.UUID
	if claims, err := s.tokens.ValidateRefresh(ctx, refreshToken); err == nil {
		if id, err := uuid.Parse(claims.UserID()); err == nil {
			userID = &id
		}
	}

	if err := s.repo.Sessions().Revoke(ctx, refreshToken); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to revoke session")
	}

	s.emitAuditEvent(ctx, AuditActionLogout, userID, rctx, nil)

	return nil
}

// CurrentUser resolves an access token to its account record.
func (s *Auther) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrTokenMalformed
	}

	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "current user lookup failed")
	}

	return user, nil
}

// UpdateProfileRequest carries mutable profile attributes. Zero-valued
// fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone_number"`
}

func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(0, 80)),
		validation.Field(&r.LastName, validation.Length(0, 80)),
		validation.Field(&r.Phone, validation.By(validPhoneNumber)),
	)
}

// UpdateProfile applies profile changes for the user.
func (s *Auther) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest, rctx RequestContext) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid profile update")
	}

	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "profile lookup failed")
	}

	changed := map[string]any{}
	if v := strings.TrimSpace(req.FirstName); v != "" && v != user.FirstName {
		user.FirstName = v
		changed["first_name"] = v
	}
	if v := strings.TrimSpace(req.LastName); v != "" && v != user.LastName {
		user.LastName = v
		changed["last_name"] = v
	}
	if v := strings.TrimSpace(req.Phone); v != "" && v != user.Phone {
		user.Phone = v
		changed["phone_number"] = v
	}

	if len(changed) == 0 {
		return user, nil
	}

	user, err = s.repo.Users().Update(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update profile")
	}

	s.emitAuditEvent(ctx, AuditActionProfileUpdate, &user.ID, rctx, changed)

	return user, nil
}

// issueAndNotify mints an ephemeral token and hands it to the notifier.
// Delivery failures are logged, never surfaced: the flow already
// committed its state change.
func (s *Auther) issueAndNotify(ctx context.Context, user *User, purpose TokenPurpose) {
	issued, err := s.ephemeral.Issue(ctx, user.ID, purpose)
	if err != nil {
		s.logger.Error("failed to issue %s token: %v", purpose, err)
		return
	}

	kind := NotifyVerification
	if purpose == PurposePasswordReset {
		kind = NotifyPasswordReset
	}

	if err := s.notifier.Send(ctx, user.Email, Notification{
		Kind:  kind,
		Token: issued.Token,
		Code:  issued.Code,
	}); err != nil {
		s.logger.Error("notifier send error: %v", err)
	}
}

// auditLoginFailure records a failed sign-in attempt. The actor is nil when
// the email matched no account.
func (s *Auther) auditLoginFailure(ctx context.Context, userID *uuid.UUID, rctx RequestContext) {
	s.emitAuditEvent(ctx, AuditActionLogin, userID, rctx, map[string]any{
		"success": false,
	})
}

// stampAdminLogin records last_login_at for privileged accounts. Failures
// are logged and never block the sign-in.
func (s *Auther) stampAdminLogin(ctx context.Context, user *User) {
	if !IsPrivileged(user.Role) {
		return
	}
	if err := s.repo.AdminRecords().TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to stamp admin last login: %v", err)
	}
}

func (s *Auther) emitAuditEvent(ctx context.Context, action AuditAction, userID *uuid.UUID, rctx RequestContext, metadata map[string]any) {
	sink := normalizeAuditSink(s.auditSink)
	event := AuditEvent{
		Action:    action,
		UserID:    userID,
		IPAddress: rctx.IPAddress,
		UserAgent: rctx.UserAgent,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("audit sink record error: %v", err)
	}
}

// userIdentity adapts a User record to the Identity claims source.
type userIdentity struct {
	user *User
}

func (u userIdentity) ID() string    { return u.user.ID.String() }
func (u userIdentity) Email() string { return u.user.Email }
func (u userIdentity) Role() string  { return u.user.Role }

// normalizeEmail trims surrounding whitespace only. Email is a
// case-sensitive key; two addresses differing in case are distinct users.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func validPhoneNumber(value any) error {
	phone, _ := value.(string)
	if phone == "" {
		return nil
	}

	parsed, err := phonenumbers.Parse(phone, "US")
	if err != nil {
		return errors.New("invalid phone number", errors.CategoryValidation)
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return errors.New("invalid phone number", errors.CategoryValidation)
	}

	return nil
}
