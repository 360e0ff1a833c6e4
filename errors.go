package authcore

import "github.com/goliatone/go-errors"

const (
	TextCodeEmailTaken         = "auth_email_taken"
	TextCodeInvalidCreds       = "auth_invalid_credentials"
	TextCodeNotVerified        = "auth_account_not_verified"
	TextCodeAlreadyVerified    = "auth_already_verified"
	TextCodeTokenNotFound      = "auth_token_not_found"
	TextCodeTokenExpired       = "auth_token_expired"
	TextCodeTokenMalformed     = "auth_token_malformed"
	TextCodeRefreshInvalid     = "auth_refresh_invalid"
	TextCodeSecretsNotDistinct = "auth_secrets_not_distinct"
)

// ErrEmailTaken is returned when signup hits an existing email.
var ErrEmailTaken = errors.New("user with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrInvalidCredentials is the uniform sign-in failure. Unknown email and
// wrong password share this exact error so callers cannot tell them apart.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrAccountNotVerified blocks sign-in until the email is verified.
var ErrAccountNotVerified = errors.New("please verify your email before signing in", errors.CategoryAuth).
	WithTextCode(TextCodeNotVerified).
	WithCode(errors.CodeUnauthorized)

// ErrAlreadyVerified is returned when verifying an already verified account.
var ErrAlreadyVerified = errors.New("email already verified", errors.CategoryBadInput).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(errors.CodeBadRequest)

// ErrTokenNotFound is returned for unknown ephemeral tokens or codes.
var ErrTokenNotFound = errors.New("invalid verification token or code", errors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(errors.CodeNotFound)

// ErrTokenExpired is returned when a time-bound token is past its window.
// Distinct from ErrTokenNotFound so callers can prompt "resend" rather than
// "retype".
var ErrTokenExpired = errors.New("token has expired", errors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeBadRequest)

// ErrTokenMalformed covers signature and parse failures on JWTs.
var ErrTokenMalformed = errors.New("token is malformed or has an invalid signature", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrRefreshTokenInvalid is the uniform refresh failure: missing, revoked and
// expired session rows all surface this same error to prevent probing
// session history.
var ErrRefreshTokenInvalid = errors.New("invalid refresh token", errors.CategoryAuth).
	WithTextCode(TextCodeRefreshInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrSecretsNotDistinct rejects configurations that reuse the access signing
// secret for refresh tokens.
var ErrSecretsNotDistinct = errors.New("access and refresh signing secrets must differ", errors.CategoryValidation).
	WithTextCode(TextCodeSecretsNotDistinct).
	WithCode(errors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match the
// stored hash, including malformed stored hashes.
var ErrMismatchedHashAndPassword = errors.New("hashed password is not the hash of the given password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// GenericForgotPasswordMessage is returned whether or not the email exists.
const GenericForgotPasswordMessage = "If an account exists with this email, a password reset link has been sent."

// GenericResendMessage is returned whether or not the email exists.
const GenericResendMessage = "If an account exists with this email, a verification code has been sent."

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeTokenExpired
	}
	return false
}
