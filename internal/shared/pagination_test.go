package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageQueryDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	page, perPage := PageQuery(req)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, perPage)
}

func TestPageQueryClampsPerPage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/clients?page=3&per_page=5000", nil)
	page, perPage := PageQuery(req)
	assert.Equal(t, 3, page)
	assert.Equal(t, 100, perPage)
	assert.Equal(t, 200, Offset(page, perPage))
}

func TestPageQueryIgnoresGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/clients?page=abc&per_page=-1", nil)
	page, perPage := PageQuery(req)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, perPage)
	assert.Equal(t, 0, Offset(page, perPage))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 45)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 20, p.PerPage)
	assert.Equal(t, 45, p.Total)
	assert.Equal(t, 3, p.TotalPages)
}

func TestNewPaginationEmpty(t *testing.T) {
	p := NewPagination(0, 0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)
	assert.Equal(t, 0, p.TotalPages)
}
