package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/platform/database/testdb"
	"waste_portal_backend/internal/realtime"
	"waste_portal_backend/internal/registration"
	"waste_portal_backend/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type capturingSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *capturingSender) SendCode(_ context.Context, _ registration.Channel, identifier, code string) error {
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

type authSuite struct {
	cfg        *config.Config
	service    *ServiceImplementation
	profiles   user.Repository
	profileSvc *user.ServiceImplementation
	tokens     *JWTService
	blocklist  *InMemoryBlocklistService
	hub        *realtime.Hub
	sender     *capturingSender
}

func setupAuthServiceTestSuite(t *testing.T) *authSuite {
	t.Helper()
	db := testdb.New(t, &user.Profile{}, &registration.PendingRegistration{})
	cfg := testTokenConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.OTPTTL = 10 * time.Minute
	cfg.OTPResendCooldown = time.Minute
	cfg.OTPMaxAttempts = 5
	cfg.PendingRegistrationTTL = 24 * time.Hour
	cfg.OAuthStateCookieName = "oauth_state"

	logger := zap.NewNop()
	s := &authSuite{
		cfg:       cfg,
		profiles:  user.NewGORMRepository(db),
		tokens:    NewJWTService(cfg, logger),
		blocklist: NewInMemoryBlocklistService(InMemoryBlocklistConfig{DefaultExpiration: time.Hour, CleanupInterval: time.Hour}),
		hub:       realtime.NewHub(logger),
		sender:    &capturingSender{},
	}
	regs := registration.NewService(registration.NewGORMRepository(db), s.profiles, s.sender, cfg, logger)
	s.profileSvc = user.NewService(s.profiles, s.hub, nil, nil, cfg, logger)
	s.service = NewService(s.profiles, s.profileSvc, regs, s.tokens, s.blocklist, s.hub, cfg, logger)
	return s
}

// signUp runs the full email signup and returns the resulting session.
func (s *authSuite) signUp(t *testing.T, email, role string) *Session {
	t.Helper()
	ctx := context.Background()
	_, err := s.service.SignupWithEmail(ctx, SignupEmailRequest{
		Name: "Test User", Email: email, Password: "password123", Role: role, Area: "Riverside",
	})
	require.NoError(t, err)
	session, err := s.service.VerifyEmail(ctx, email, s.sender.last(email))
	require.NoError(t, err)
	return session
}

func TestLogin_Success(t *testing.T) {
	s := setupAuthServiceTestSuite(t)
	s.signUp(t, "res@x.io", "")

	session, err := s.service.Login(context.Background(), "  RES@x.io ", "password123")
	require.NoError(t, err)
	require.NotNil(t, session.Token)
	assert.Equal(t, common.RoleResident, session.Profile.Role)
	assert.Equal(t, "/dashboard", session.LandingRoute)

	stored, err := s.profiles.FindByEmail(context.Background(), "res@x.io")
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLogin_ErrorPrecedence(t *testing.T) {
	s := setupAuthServiceTestSuite(t)
	ctx := context.Background()

	_, err := s.service.SignupWithEmail(ctx, SignupEmailRequest{Name: "Pending", Email: "pending@x.io", Password: "password123", Area: "Riverside"})
	require.NoError(t, err)
	_, err = s.service.Login(ctx, "pending@x.io", "password123")
	assert.ErrorIs(t, err, common.ErrEmailNotConfirmed)

	_, err = s.service.SignupWithPhone(ctx, SignupPhoneRequest{Name: "Pending", Phone: "+15550001111", Password: "password123", Area: "Riverside"})
	require.NoError(t, err)
	_, err = s.service.Login(ctx, "+15550001111", "password123")
	assert.ErrorIs(t, err, common.ErrPhoneNotConfirmed)

	_, err = s.service.Login(ctx, "nobody@x.io", "password123")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	s.signUp(t, "res@x.io", "")
	_, err = s.service.Login(ctx, "res@x.io", "wrong-password")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	official := s.signUp(t, "off@x.io", common.RoleOfficial)
	assert.Nil(t, official.Token, "officials wait for activation")
	_, err = s.service.Login(ctx, "off@x.io", "wrong-password")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials, "password is checked before activation")
	_, err = s.service.Login(ctx, "off@x.io", "password123")
	assert.ErrorIs(t, err, common.ErrAccountInactive)
}

func TestVerify_RejectsMalformedCode(t *testing.T) {
	s := setupAuthServiceTestSuite(t)
	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		_, err := s.service.VerifyEmail(context.Background(), "a@x.io", code)
		assert.ErrorIs(t, err, common.ErrInvalidCode, code)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	s := setupAuthServiceTestSuite(t)
	ctx := context.Background()
	session := s.signUp(t, "res@x.io", "")

	next, err := s.service.Refresh(ctx, session.Token.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, next.Token)
	assert.NotEqual(t, session.Token.RefreshToken, next.Token.RefreshToken)

	_, err = s.service.Refresh(ctx, session.Token.RefreshToken)
	assert.ErrorIs(t, err, common.ErrUnauthorized, "a refresh token is single use")

	_, err = s.service.Refresh(ctx, session.Token.AccessToken)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestRefresh_StopsAfterPasswordChange(t *testing.T) {
	s := setupAuthServiceTestSuite(t)
	ctx := context.Background()
	session := s.signUp(t, "res@x.io", "")

	err := s.profileSvc.ChangePassword(ctx, session.Profile.Actor(), user.ChangePasswordRequest{
		CurrentPassword: "password123", NewPassword: "password456",
	})
	require.NoError(t, err)

	_, err = s.service.Refresh(ctx, session.Token.RefreshToken)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestLogout_BlocksBothTokens(t *testing.T) {
	s := setupAuthServiceTestSuite(t)
	ctx := context.Background()
	session := s.signUp(t, "res@x.io", "")
	sub := s.hub.Subscribe(realtime.ViewerFilter(session.Profile.Actor(), nil))
	defer s.hub.Unsubscribe(sub)

	claims, err := s.tokens.ValidateToken(session.Token.AccessToken)
	require.NoError(t, err)
	require.NoError(t, s.service.Logout(ctx, claims, session.Token.RefreshToken))

	blocked, err := s.blocklist.IsBlocked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, blocked)

	_, err = s.service.Refresh(ctx, session.Token.RefreshToken)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, realtime.TableSession, ev.Table)
		assert.Equal(t, "signed_out", ev.Action)
	case <-time.After(time.Second):
		t.Fatal("expected a signed_out event")
	}
}

func TestCheckExists(t *testing.T) {
	s := setupAuthServiceTestSuite(t)
	ctx := context.Background()
	s.signUp(t, "res@x.io", "")

	exists, err := s.service.CheckEmailExists(ctx, "RES@x.io")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.service.CheckPhoneExists(ctx, "+15559998888")
	require.NoError(t, err)
	assert.False(t, exists)
}
