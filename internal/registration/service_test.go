package registration

import (
	"context"
	"sync"
	"testing"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/platform/database/testdb"
	"waste_portal_backend/internal/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type capturingSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *capturingSender) SendCode(_ context.Context, _ Channel, identifier, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = map[string]string{}
	}
	s.codes[identifier] = code
	return nil
}

func (s *capturingSender) last(identifier string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[identifier]
}

type registrationSuite struct {
	db       *gorm.DB
	service  *ServiceImplementation
	repo     Repository
	profiles user.Repository
	sender   *capturingSender
	clock    time.Time
}

func (s *registrationSuite) advance(d time.Duration) { s.clock = s.clock.Add(d) }

func setupRegistrationTestSuite(t *testing.T) *registrationSuite {
	t.Helper()
	db := testdb.New(t, &user.Profile{}, &PendingRegistration{})
	cfg := &config.Config{
		BcryptCost:             bcrypt.MinCost,
		OTPTTL:                 10 * time.Minute,
		OTPResendCooldown:      60 * time.Second,
		OTPMaxAttempts:         3,
		PendingRegistrationTTL: 24 * time.Hour,
	}
	s := &registrationSuite{
		db:       db,
		repo:     NewGORMRepository(db),
		profiles: user.NewGORMRepository(db),
		sender:   &capturingSender{},
		clock:    time.Now().UTC().Truncate(time.Microsecond),
	}
	s.service = NewService(s.repo, s.profiles, s.sender, cfg, zap.NewNop())
	s.service.now = func() time.Time { return s.clock }
	return s
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func emailSignup(email, role, area string) StartInput {
	return StartInput{Channel: ChannelEmail, Identifier: email, Name: "Ada", Password: "password123", Role: role, Area: area}
}

func TestSignupEmail_HappyPath(t *testing.T) {
	s := setupRegistrationTestSuite(t)
	ctx := context.Background()

	reg, err := s.service.Start(ctx, emailSignup("ada@x.io", common.RoleResident, "North Ward"))
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingCode, reg.State)

	profile, err := s.service.Verify(ctx, ChannelEmail, "ada@x.io", s.sender.last("ada@x.io"))
	require.NoError(t, err)
	assert.True(t, profile.IsActive)
	assert.True(t, profile.IsEmailVerified)
	assert.Equal(t, "north-ward", profile.AreaSlug)
	assert.True(t, common.CheckPasswordHash("password123", *profile.PasswordHash))

	stored, err := s.repo.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, stored.State)
	require.NotNil(t, stored.ProfileID)
	assert.Equal(t, profile.ID, *stored.ProfileID)
}

func TestSignupPhone_OfficialStartsInactive(t *testing.T) {
	s := setupRegistrationTestSuite(t)
	ctx := context.Background()
	in := StartInput{Channel: ChannelPhone, Identifier: "+15551234567", Name: "Officer", Password: "password123", Role: common.RoleOfficial}

	_, err := s.service.Start(ctx, in)
	require.NoError(t, err)
	profile, err := s.service.Verify(ctx, ChannelPhone, "+15551234567", s.sender.last("+15551234567"))
	require.NoError(t, err)
	assert.False(t, profile.IsActive)
	assert.True(t, profile.IsPhoneVerified)
	assert.Equal(t, common.RoleOfficial, profile.Role)
}

func TestStart_Rejections(t *testing.T) {
	s := setupRegistrationTestSuite(t)
	ctx := context.Background()

	_, err := s.service.Start(ctx, emailSignup("a@x.io", common.RoleAdmin, "Ward"))
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = s.service.Start(ctx, emailSignup("a@x.io", common.RoleResident, "  "))
	assert.Error(t, err)

	email := "taken@x.io"
	require.NoError(t, s.profiles.Create(ctx, &user.Profile{Name: "T", Email: &email, Role: common.RoleResident, AuthProvider: user.ProviderLocal}))
	_, err = s.service.Start(ctx, emailSignup("taken@x.io", common.RoleResident, "Ward"))
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)
}

func TestStart_ReplacesOpenRegistration(t *testing.T) {
	s := setupRegistrationTestSuite(t)
	ctx := context.Background()

	first, err := s.service.Start(ctx, emailSignup("ada@x.io", common.RoleResident, "Ward"))
	require.NoError(t, err)
	second, err := s.service.Start(ctx, emailSignup("ada@x.io", common.RoleResident, "Ward"))
	require.NoError(t, err)

	old, err := s.repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, old.State)
	assert.Equal(t, ReasonReplaced, old.FailureReason)

	open, err := s.service.FindOpen(ctx, ChannelEmail, "ada@x.io")
	require.NoError(t, err)
	assert.Equal(t, second.ID, open.ID)
}

// spyRepository counts every call so tests can prove none happened.
type spyRepository struct{ calls int }

func (r *spyRepository) Create(context.Context, *PendingRegistration) error { r.calls++; return nil }
func (r *spyRepository) FindByID(context.Context, uuid.UUID) (*PendingRegistration, error) {
	r.calls++
	return nil, common.ErrNotFound
}
func (r *spyRepository) FindOpen(context.Context, Channel, string) (*PendingRegistration, error) {
	r.calls++
	return nil, common.ErrNotFound
}
func (r *spyRepository) ExpireOpen(context.Context, Channel, string, string) (int64, error) {
	r.calls++
	return 0, nil
}
func (r *spyRepository) Transition(context.Context, *PendingRegistration, State, map[string]interface{}) error {
	r.calls++
	return nil
}
func (r *spyRepository) UpdateCode(context.Context, *PendingRegistration, string, time.Time, time.Time, time.Time) error {
	r.calls++
	return nil
}
func (r *spyRepository) Finalize(context.Context, *PendingRegistration, *user.Profile) error {
	r.calls++
	return nil
}
func (r *spyRepository) ListInState(context.Context, State, time.Time, int) ([]PendingRegistration, error) {
	r.calls++
	return nil, nil
}
func (r *spyRepository) ListExpired(context.Context, time.Time, int) ([]PendingRegistration, error) {
	r.calls++
	return nil, nil
}

func TestVerify_MalformedCodeNeverReachesRepository(t *testing.T) {
	spy := &spyRepository{}
	svc := NewService(spy, nil, &capturingSender{}, &config.Config{}, zap.NewNop())

	for _, code := range []string{"", "12345", "1234567", "abcdef", "12 345"} {
		_, err := svc.Verify(context.Background(), ChannelPhone, "+15551234567", code)
		assert.ErrorIs(t, err, common.ErrInvalidCode, code)
	}
	assert.Zero(t, spy.calls)
}

func TestVerify_WrongCodesThenFailed(t *testing.T) {
	s := setupRegistrationTestSuite(t)
	ctx := context.Background()
	reg, err := s.service.Start(ctx, emailSignup("ada@x.io", common.RoleResident, "Ward"))
	require.NoError(t, err)
	bad := wrongCode(s.sender.last("ada@x.io"))

	_, err = s.service.Verify(ctx, ChannelEmail, "ada@x.io", bad)
	assert.ErrorIs(t, err, common.ErrInvalidCode)
	_, err = s.service.Verify(ctx, ChannelEmail, "ada@x.io", bad)
	assert.ErrorIs(t, err, common.ErrInvalidCode)

	stored, err := s.repo.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingCode, stored.State)
	assert.Equal(t, 2, stored.Attempts)

	_, err = s.service.Verify(ctx, ChannelEmail, "ada@x.io", bad)
	assert.ErrorIs(t, err, common.ErrTooManyAttempts)

	stored, err = s.repo.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, stored.State)

	_, err = s.service.Verify(ctx, ChannelEmail, "ada@x.io", s.sender.last("ada@x.io"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestVerify_ExpiredCode(t *testing.T) {
	s := setupRegistrationTestSuite(t)
	ctx := context.Background()
	reg, err := s.service.Start(ctx, emailSignup("ada@x.io", common.RoleResident, "Ward"))
	require.NoError(t, err)

	s.advance(11 * time.Minute)
	_, err = s.service.Verify(ctx, ChannelEmail, "ada@x.io", s.sender.last("ada@x.io"))
	assert.ErrorIs(t, err, common.ErrCodeExpired)

	stored, err := s.repo.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingCode, stored.State)
	assert.Zero(t, stored.Attempts)
}

func TestVerify_DuplicateAtCommit(t *testing.T) {
	s := setupRegistrationTestSuite(t)
	ctx := context.Background()
	reg, err := s.service.Start(ctx, emailSignup("race@x.io", common.RoleResident, "Ward"))
	require.NoError(t, err)

	// Another signup path claims the address between start and verify.
	email := "race@x.io"
	require.NoError(t, s.profiles.Create(ctx, &user.Profile{Name: "First", Email: &email, Role: common.RoleResident, AuthProvider: user.ProviderGoogle}))

	_, err = s.service.Verify(ctx, ChannelEmail, "race@x.io", s.sender.last("race@x.io"))
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)

	stored, err := s.repo.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, stored.State)
	assert.Equal(t, ReasonDuplicate, stored.FailureReason)

	var count int64
	require.NoError(t, s.db.Model(&user.Profile{}).Where("email = ?", "race@x.io").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResend_Cooldown(t *testing.T) {
	s := setupRegistrationTestSuite(t)
	ctx := context.Background()
	_, err := s.service.Start(ctx, emailSignup("ada@x.io", common.RoleResident, "Ward"))
	require.NoError(t, err)

	s.advance(20 * time.Second)
	_, err = s.service.Resend(ctx, ChannelEmail, "ada@x.io")
	require.ErrorIs(t, err, common.ErrResendCooldown)
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"retry_after_seconds": 40}, apiErr.Details)

	s.advance(40 * time.Second)
	reg, err := s.service.Resend(ctx, ChannelEmail, "ada@x.io")
	require.NoError(t, err)
	assert.Equal(t, s.clock, reg.LastSentAt)

	_, err = s.service.Resend(ctx, ChannelEmail, "ada@x.io")
	assert.ErrorIs(t, err, common.ErrResendCooldown)

	_, err = s.service.Verify(ctx, ChannelEmail, "ada@x.io", s.sender.last("ada@x.io"))
	assert.NoError(t, err)
}

func backdate(t *testing.T, db *gorm.DB, id uuid.UUID, d time.Duration) {
	t.Helper()
	require.NoError(t, db.Model(&PendingRegistration{}).Where("id = ?", id).
		UpdateColumn("updated_at", time.Now().UTC().Add(-d)).Error)
}

func seedRegistration(t *testing.T, s *registrationSuite, identifier string, state State) *PendingRegistration {
	t.Helper()
	reg := &PendingRegistration{
		Channel:       ChannelEmail,
		Identifier:    identifier,
		Name:          "Seed",
		Role:          common.RoleResident,
		Area:          "Ward",
		PasswordHash:  "x",
		CodeHash:      "x",
		State:         state,
		LastSentAt:    s.clock,
		CodeExpiresAt: s.clock.Add(10 * time.Minute),
		ExpiresAt:     s.clock.Add(24 * time.Hour),
	}
	require.NoError(t, s.repo.Create(context.Background(), reg))
	return reg
}

func TestReconcile(t *testing.T) {
	s := setupRegistrationTestSuite(t)
	ctx := context.Background()

	crashed := seedRegistration(t, s, "crashed@x.io", StateVerified)
	backdate(t, s.db, crashed.ID, 5*time.Minute)

	lost := seedRegistration(t, s, "lost@x.io", StateVerified)
	backdate(t, s.db, lost.ID, 5*time.Minute)
	email := "lost@x.io"
	require.NoError(t, s.profiles.Create(ctx, &user.Profile{Name: "Other", Email: &email, Role: common.RoleResident, AuthProvider: user.ProviderLocal}))

	stale := seedRegistration(t, s, "stale@x.io", StateAwaitingCode)
	require.NoError(t, s.db.Model(&PendingRegistration{}).Where("id = ?", stale.ID).
		UpdateColumn("expires_at", s.clock.Add(-time.Hour)).Error)

	stuck := seedRegistration(t, s, "stuck@x.io", StateVerifying)
	backdate(t, s.db, stuck.ID, 2*time.Minute)

	fresh := seedRegistration(t, s, "fresh@x.io", StateVerifying)

	res, err := s.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Finalized: 1, Failed: 1, Expired: 1, Reset: 1}, res)

	states := map[uuid.UUID]State{
		crashed.ID: StateCompleted,
		lost.ID:    StateFailed,
		stale.ID:   StateExpired,
		stuck.ID:   StateAwaitingCode,
		fresh.ID:   StateVerifying,
	}
	for id, want := range states {
		got, err := s.repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.State, got.Identifier)
	}

	profile, err := s.profiles.FindByEmail(ctx, "crashed@x.io")
	require.NoError(t, err)
	assert.True(t, profile.IsActive)
}

func TestRepository_RefusesIllegalTransition(t *testing.T) {
	s := setupRegistrationTestSuite(t)
	ctx := context.Background()
	reg := seedRegistration(t, s, "x@x.io", StateAwaitingCode)

	err := s.repo.Transition(ctx, reg, StateCompleted, nil)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	stale := *reg
	require.NoError(t, s.repo.Transition(ctx, reg, StateVerifying, nil))
	err = s.repo.Transition(ctx, &stale, StateVerifying, nil)
	assert.ErrorIs(t, err, common.ErrConflict)
}
