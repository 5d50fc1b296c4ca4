package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"waste_portal_backend/internal/auth"
	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProfiles map[uuid.UUID]*user.Profile

func (s stubProfiles) GetByID(_ context.Context, id uuid.UUID) (*user.Profile, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return nil, common.ErrNotFound
}

type authFixture struct {
	router    *gin.Engine
	tokens    *auth.JWTService
	blocklist *auth.InMemoryBlocklistService
	profiles  stubProfiles
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JWTSecretKey:          "middleware-test-secret-middleware-test",
		JWTIssuer:             "waste-portal",
		JWTAccessTokenExpiry:  time.Minute,
		JWTRefreshTokenExpiry: time.Hour,
	}
	f := &authFixture{
		tokens:    auth.NewJWTService(cfg, zap.NewNop()),
		blocklist: auth.NewInMemoryBlocklistService(auth.InMemoryBlocklistConfig{DefaultExpiration: time.Hour, CleanupInterval: time.Hour}),
		profiles:  stubProfiles{},
	}
	r := gin.New()
	authMW := AuthMiddleware(f.tokens, f.blocklist, f.profiles, zap.NewNop())
	r.GET("/me", authMW, func(c *gin.Context) {
		actor, _ := common.GetActorFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role})
	})
	r.GET("/admin", authMW, RoleAuthMiddleware(common.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	f.router = r
	return f
}

func (f *authFixture) addProfile(role string) *user.Profile {
	p := &user.Profile{Role: role, IsActive: true}
	p.ID = uuid.New()
	f.profiles[p.ID] = p
	return p
}

func (f *authFixture) do(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	f := newAuthFixture(t)
	p := f.addProfile(common.RoleResident)
	token, _, err := f.tokens.GenerateAccessToken(p)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, f.do("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do("/me", "garbage").Code)
	assert.Equal(t, http.StatusOK, f.do("/me", token).Code)
	assert.Equal(t, http.StatusOK, f.do("/me?access_token="+token, "").Code)

	refresh, _, err := f.tokens.GenerateRefreshToken(p)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.do("/me", refresh).Code, "refresh token used as access token")
}

func TestAuthMiddleware_RoleFromProfileRow(t *testing.T) {
	f := newAuthFixture(t)
	p := f.addProfile(common.RoleResident)
	token, _, err := f.tokens.GenerateAccessToken(p)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, f.do("/admin", token).Code)
	p.Role = common.RoleAdmin
	assert.Equal(t, http.StatusOK, f.do("/admin", token).Code)
}

func TestAuthMiddleware_Revocation(t *testing.T) {
	f := newAuthFixture(t)
	p := f.addProfile(common.RoleResident)
	token, _, err := f.tokens.GenerateAccessToken(p)
	require.NoError(t, err)

	p.TokenVersion++
	assert.Equal(t, http.StatusUnauthorized, f.do("/me", token).Code)

	fresh, _, err := f.tokens.GenerateAccessToken(p)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, f.do("/me", fresh).Code)

	claims, err := f.tokens.ValidateToken(fresh)
	require.NoError(t, err)
	require.NoError(t, f.blocklist.Add(context.Background(), claims.ID, claims.ExpiresAt.Time))
	assert.Equal(t, http.StatusUnauthorized, f.do("/me", fresh).Code)
}

func TestAuthMiddleware_InactiveAndDeleted(t *testing.T) {
	f := newAuthFixture(t)
	p := f.addProfile(common.RoleOfficial)
	token, _, err := f.tokens.GenerateAccessToken(p)
	require.NoError(t, err)

	p.IsActive = false
	assert.Equal(t, http.StatusForbidden, f.do("/me", token).Code)

	delete(f.profiles, p.ID)
	assert.Equal(t, http.StatusUnauthorized, f.do("/me", token).Code)
}
