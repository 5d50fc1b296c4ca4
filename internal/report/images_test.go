package report

import (
	"encoding/base64"
	"testing"

	"waste_portal_backend/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImagePolicy_Boundaries(t *testing.T) {
	policy := ImagePolicy{MaxImages: 4, MaxBytes: 5 * mb}

	tests := []struct {
		name     string
		existing int
		uploads  []ImageUpload
		wantErr  *common.APIError
		rejected []int
	}{
		{"four new images", 0, []ImageUpload{pngUpload("1", 10), pngUpload("2", 10), pngUpload("3", 10), pngUpload("4", 10)}, nil, nil},
		{"fifth of a fresh batch", 0, []ImageUpload{pngUpload("1", 10), pngUpload("2", 10), pngUpload("3", 10), pngUpload("4", 10), pngUpload("5", 10)}, common.ErrImageLimitExceeded, []int{4}},
		{"one more after four", 4, []ImageUpload{pngUpload("5", 10)}, common.ErrImageLimitExceeded, []int{0}},
		{"three plus two", 3, []ImageUpload{pngUpload("4", 10), pngUpload("5", 10)}, common.ErrImageLimitExceeded, []int{1}},
		{"exactly five megabytes", 0, []ImageUpload{pngUpload("edge", 5*mb)}, nil, nil},
		{"one byte over", 0, []ImageUpload{{Name: "over", Size: 5*mb + 1, Data: pngBytes(5*mb + 1)}}, common.ErrImageTooLarge, []int{0}},
		{"not an image", 0, []ImageUpload{{Name: "doc", Size: 5, Data: []byte("hello")}}, common.ErrImageTypeInvalid, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdicts, err := policy.Check(tt.existing, tt.uploads)
			require.Len(t, verdicts, len(tt.uploads))
			if tt.wantErr == nil {
				require.NoError(t, err)
				for _, v := range verdicts {
					assert.True(t, v.Accepted)
					assert.Equal(t, "image/png", v.ContentType)
				}
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			var rejected []int
			for _, v := range verdicts {
				if !v.Accepted {
					rejected = append(rejected, v.Index)
				}
			}
			assert.Equal(t, tt.rejected, rejected)
		})
	}
}

func TestDecodeDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(pngBytes(64))

	u := DecodeDataURL("a", "data:image/png;base64,"+payload, 5*mb)
	assert.EqualValues(t, 64, u.Size)
	assert.Len(t, u.Data, 64)

	assert.Nil(t, DecodeDataURL("b", "https://example.com/x.png", 5*mb).Data)
	assert.Nil(t, DecodeDataURL("c", "data:image/png,rawbytes", 5*mb).Data)

	big := DecodeDataURL("d", "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes(2048)), 1024)
	assert.Nil(t, big.Data)
	assert.Greater(t, big.Size, int64(1024))
}

func TestParseStatusAndCoordinates(t *testing.T) {
	s, ok := ParseStatus(" Completed ")
	assert.True(t, ok)
	assert.Equal(t, StatusResolved, s)
	_, ok = ParseStatus("archived")
	assert.False(t, ok)

	lat, lng := ParseCoordinates("6.5, 3.4")
	require.NotNil(t, lat)
	assert.Equal(t, 3.4, *lng)
	lat, _ = ParseCoordinates("Market Road, Ikeja")
	assert.Nil(t, lat)
	lat, _ = ParseCoordinates("95, 3")
	assert.Nil(t, lat)
}
