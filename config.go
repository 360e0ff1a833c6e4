package authcore

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// EnvConfig is the environment-backed Config implementation. Two distinct
// signing secrets are mandatory: reusing one secret would let an access
// token pass refresh validation.
type EnvConfig struct {
	AccessSigningKey  string        `env:"AUTH_ACCESS_SIGNING_KEY,required"`
	RefreshSigningKey string        `env:"AUTH_REFRESH_SIGNING_KEY,required"`
	AccessTokenTTL    time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL   time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"168h"`
	VerificationTTL   time.Duration `env:"AUTH_VERIFICATION_TOKEN_TTL" envDefault:"5m"`
	ResetTTL          time.Duration `env:"AUTH_RESET_TOKEN_TTL" envDefault:"1h"`
	Issuer            string        `env:"AUTH_ISSUER" envDefault:"authcore"`
	Audience          []string      `env:"AUTH_AUDIENCE" envSeparator:","`
}

var _ Config = (*EnvConfig)(nil)

// LoadConfig reads configuration from the environment and validates it.
func LoadConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to parse environment config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces structural constraints beyond what env parsing gives us.
func (c *EnvConfig) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.AccessSigningKey, validation.Required),
		validation.Field(&c.RefreshSigningKey, validation.Required),
		validation.Field(&c.AccessTokenTTL, validation.Required),
		validation.Field(&c.RefreshTokenTTL, validation.Required),
		validation.Field(&c.VerificationTTL, validation.Required),
		validation.Field(&c.ResetTTL, validation.Required),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid auth configuration")
	}

	if c.AccessSigningKey == c.RefreshSigningKey {
		return ErrSecretsNotDistinct
	}

	return nil
}

func (c *EnvConfig) GetAccessSigningKey() string  { return c.AccessSigningKey }
func (c *EnvConfig) GetRefreshSigningKey() string { return c.RefreshSigningKey }

func (c *EnvConfig) GetAccessTokenTTL() time.Duration       { return c.AccessTokenTTL }
func (c *EnvConfig) GetRefreshTokenTTL() time.Duration      { return c.RefreshTokenTTL }
func (c *EnvConfig) GetVerificationTokenTTL() time.Duration { return c.VerificationTTL }
func (c *EnvConfig) GetResetTokenTTL() time.Duration        { return c.ResetTTL }

func (c *EnvConfig) GetIssuer() string     { return c.Issuer }
func (c *EnvConfig) GetAudience() []string { return c.Audience }
