package firebase

import (
	"context"
	"testing"

	"waste_portal_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewFirebaseService_DisabledWithoutKey(t *testing.T) {
	svc, err := NewFirebaseService(&config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, svc)
	assert.False(t, svc.Enabled())
}

func TestNilService(t *testing.T) {
	var svc *FirebaseService

	_, err := svc.VerifyIDToken(context.Background(), "token")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, svc.RevokeRefreshTokens(context.Background(), "uid"))
}

func TestIdentityFromClaims(t *testing.T) {
	id := identityFromClaims("uid-1", map[string]interface{}{
		"email":          "a@b.co",
		"email_verified": true,
		"phone_number":   "+15551234567",
		"name":           "Ada",
	})
	assert.Equal(t, &VerifiedIdentity{
		UID: "uid-1", Email: "a@b.co", EmailVerified: true, PhoneNumber: "+15551234567", Name: "Ada",
	}, id)
}
