package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"+1 (555) 123-4567", "+15551234567", true},
		{"+254712345678", "+254712345678", true},
		{"5551234567", "", false},
		{"+0123456789", "", false},
		{"+1234", "", false},
		{"+1555abc4567", "", false},
		{"+1234567890123456", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizePhone(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", NormalizeEmail("  Jane@Example.COM "))
}

func TestAreaSlug(t *testing.T) {
	assert.Equal(t, "downtown-east", AreaSlug(" Downtown East "))
	assert.Equal(t, AreaSlug("Downtown east"), AreaSlug("downtown  EAST"))
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 4)
	assert.NoError(t, err)
	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("s3cret-pass", ""))
}

func TestRoles(t *testing.T) {
	assert.True(t, IsStaff(RoleOfficial))
	assert.True(t, IsStaff(RoleAdmin))
	assert.False(t, IsStaff(RoleResident))
	assert.False(t, IsValidRole("superuser"))
	assert.Equal(t, "/dashboard", LandingRouteForRole(RoleResident))
	assert.Equal(t, "/manage-reports", LandingRouteForRole(RoleOfficial))
}
