package common

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(25, 2, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	empty := NewPagination(0, 1, 10)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
}

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/?page=-3&page_size=500", nil)

	page, size := GetPaginationParams(c)
	assert.Equal(t, DefaultPage, page)
	assert.Equal(t, MaxPageSize, size)
}

func TestPaginationQueryOffset(t *testing.T) {
	pq := NewPaginationQuery(3, 20)
	assert.Equal(t, 40, pq.Offset())
	assert.Equal(t, 20, pq.Limit())
}
