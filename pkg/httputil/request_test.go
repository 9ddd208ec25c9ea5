package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

func TestParseJSON(t *testing.T) {
	var dest struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"go"}`))
	require.NoError(t, ParseJSON(r, &dest))
	assert.Equal(t, "go", dest.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(ParseJSON(r, &dest)))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := ParseJSON(r, &dest)
	assert.Equal(t, "request body is required", apperr.MessageOf(err))

	w := httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("x", 100)+`"}`))
	r.Body = http.MaxBytesReader(w, r.Body, 10)
	err = ParseJSON(r, &dest)
	assert.Equal(t, "request body is too large", apperr.MessageOf(err))
}

func TestPathInt64(t *testing.T) {
	tests := []struct {
		value string
		want  int64
		kind  apperr.Kind
	}{
		{"42", 42, ""},
		{"", 0, apperr.KindParameterMissing},
		{"abc", 0, apperr.KindBadRequest},
		{"-3", 0, apperr.KindBadRequest},
	}
	for _, tt := range tests {
		r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": tt.value})
		got, err := PathInt64(r, "id")
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.kind, apperr.KindOf(err), tt.value)
	}
}

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&offset=10&active=true&category_id=3&bad=x", nil)

	page, err := QueryPage(r)
	require.NoError(t, err)
	assert.Equal(t, storage.Page{Limit: 5, Offset: 10}, page)

	active, err := QueryBool(r, "active", false)
	require.NoError(t, err)
	assert.True(t, active)

	id, err := QueryInt64Ptr(r, "category_id")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(3), *id)

	missing, err := QueryInt64Ptr(r, "employer_id")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = QueryBool(r, "bad", false)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	_, err = QueryInt(r, "bad", 0)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	page, err = QueryPage(httptest.NewRequest(http.MethodGet, "/?limit=1000", nil))
	require.NoError(t, err)
	assert.Equal(t, storage.MaxPageSize, page.Limit)

	_, err = QueryPage(httptest.NewRequest(http.MethodGet, "/?offset=-1", nil))
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestIsMultipart(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	assert.True(t, IsMultipart(r))
	r.Header.Set("Content-Type", "application/json")
	assert.False(t, IsMultipart(r))
}
