package authcore_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	"github.com/pricepulse/authcore"
)

// testConfig implements authcore.Config with sane test defaults.
type testConfig struct {
	accessKey       string
	refreshKey      string
	accessTTL       time.Duration
	refreshTTL      time.Duration
	verificationTTL time.Duration
	resetTTL        time.Duration
	issuer          string
	audience        []string
}

func newTestConfig() *testConfig {
	return &testConfig{
		accessKey:       "access-signing-key-for-tests",
		refreshKey:      "refresh-signing-key-for-tests",
		accessTTL:       15 * time.Minute,
		refreshTTL:      168 * time.Hour,
		verificationTTL: 5 * time.Minute,
		resetTTL:        time.Hour,
		issuer:          "authcore-test",
	}
}

func (c *testConfig) GetAccessSigningKey() string          { return c.accessKey }
func (c *testConfig) GetRefreshSigningKey() string         { return c.refreshKey }
func (c *testConfig) GetAccessTokenTTL() time.Duration     { return c.accessTTL }
func (c *testConfig) GetRefreshTokenTTL() time.Duration    { return c.refreshTTL }
func (c *testConfig) GetVerificationTokenTTL() time.Duration {
	return c.verificationTTL
}
func (c *testConfig) GetResetTokenTTL() time.Duration { return c.resetTTL }
func (c *testConfig) GetIssuer() string               { return c.issuer }
func (c *testConfig) GetAudience() []string           { return c.audience }

// MockUsers implements authcore.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*authcore.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*authcore.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByID(ctx context.Context, id uuid.UUID) (*authcore.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*authcore.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByGoogleID(ctx context.Context, googleID string) (*authcore.User, error) {
	args := m.Called(ctx, googleID)
	user, _ := args.Get(0).(*authcore.User)
	return user, args.Error(1)
}

func (m *MockUsers) Create(ctx context.Context, record *authcore.User) (*authcore.User, error) {
	args := m.Called(ctx, record)
	user, _ := args.Get(0).(*authcore.User)
	return user, args.Error(1)
}

func (m *MockUsers) Update(ctx context.Context, record *authcore.User) (*authcore.User, error) {
	args := m.Called(ctx, record)
	user, _ := args.Get(0).(*authcore.User)
	return user, args.Error(1)
}

func (m *MockUsers) MarkVerified(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUsers) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) LinkGoogleID(ctx context.Context, id uuid.UUID, googleID string) error {
	args := m.Called(ctx, id, googleID)
	return args.Error(0)
}

func (m *MockUsers) StoreEphemeralToken(ctx context.Context, id uuid.UUID, purpose authcore.TokenPurpose, token string, expires time.Time) error {
	args := m.Called(ctx, id, purpose, token, expires)
	return args.Error(0)
}

func (m *MockUsers) ClearEphemeralToken(ctx context.Context, id uuid.UUID, purpose authcore.TokenPurpose, current string) (bool, error) {
	args := m.Called(ctx, id, purpose, current)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsers) GetByEphemeralToken(ctx context.Context, purpose authcore.TokenPurpose, token string) (*authcore.User, error) {
	args := m.Called(ctx, purpose, token)
	user, _ := args.Get(0).(*authcore.User)
	return user, args.Error(1)
}

func (m *MockUsers) ListWithPendingToken(ctx context.Context, purpose authcore.TokenPurpose) ([]*authcore.User, error) {
	args := m.Called(ctx, purpose)
	users, _ := args.Get(0).([]*authcore.User)
	return users, args.Error(1)
}

// MockSessions implements authcore.Sessions
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Create(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) (*authcore.Session, error) {
	args := m.Called(ctx, userID, refreshToken, expiresAt)
	session, _ := args.Get(0).(*authcore.Session)
	return session, args.Error(1)
}

func (m *MockSessions) FindActive(ctx context.Context, refreshToken string, userID uuid.UUID) (*authcore.Session, error) {
	args := m.Called(ctx, refreshToken, userID)
	session, _ := args.Get(0).(*authcore.Session)
	return session, args.Error(1)
}

func (m *MockSessions) Revoke(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockSessions) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSessions) Claim(ctx context.Context, refreshToken string) (bool, error) {
	args := m.Called(ctx, refreshToken)
	return args.Bool(0), args.Error(1)
}

// MockAuditTrail implements authcore.AuditTrail
type MockAuditTrail struct {
	mock.Mock
}

func (m *MockAuditTrail) Append(ctx context.Context, record *authcore.AuditEntry) (*authcore.AuditEntry, error) {
	args := m.Called(ctx, record)
	entry, _ := args.Get(0).(*authcore.AuditEntry)
	return entry, args.Error(1)
}

// MockAdminRecords implements authcore.AdminRecords
type MockAdminRecords struct {
	mock.Mock
}

func (m *MockAdminRecords) TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

// MockNotifier implements authcore.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, to string, msg authcore.Notification) error {
	args := m.Called(ctx, to, msg)
	return args.Error(0)
}

// recordingAuditSink keeps every recorded event for assertions.
type recordingAuditSink struct {
	events []authcore.AuditEvent
}

func (s *recordingAuditSink) Record(_ context.Context, event authcore.AuditEvent) error {
	s.events = append(s.events, event)
	return nil
}

// mockRepoManager wires the mock repositories into a RepositoryManager.
type mockRepoManager struct {
	users        *MockUsers
	sessions     *MockSessions
	auditTrail   *MockAuditTrail
	adminRecords *MockAdminRecords
}

func newMockRepoManager() *mockRepoManager {
	return &mockRepoManager{
		users:        &MockUsers{},
		sessions:     &MockSessions{},
		auditTrail:   &MockAuditTrail{},
		adminRecords: &MockAdminRecords{},
	}
}

func (m *mockRepoManager) Validate() error { return nil }
func (m *mockRepoManager) MustValidate()   {}

func (m *mockRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *mockRepoManager) Users() authcore.Users               { return m.users }
func (m *mockRepoManager) Sessions() authcore.Sessions         { return m.sessions }
func (m *mockRepoManager) AuditTrail() authcore.AuditTrail     { return m.auditTrail }
func (m *mockRepoManager) AdminRecords() authcore.AdminRecords { return m.adminRecords }
