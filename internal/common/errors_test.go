package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_WithDetailsDoesNotMutateSentinel(t *testing.T) {
	withDetails := ErrNotFound.WithDetails("Report not found.")

	assert.Nil(t, ErrNotFound.Details)
	assert.Equal(t, "Report not found.", withDetails.Details)
	assert.Equal(t, ErrNotFound.Code, withDetails.Code)
}

func TestAPIError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("loading report: %w", ErrNotFound.WithDetails("gone"))

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrConflict))

	apiErr, ok := IsAPIError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestIsAPIError_PlainError(t *testing.T) {
	_, ok := IsAPIError(errors.New("boom"))
	assert.False(t, ok)
}
