package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/catalog"
	"github.com/platinummonkey/jobportal/pkg/httputil"
)

type listResult[T any] struct {
	Items []T               `json:"items"`
	Page  httputil.PageMeta `json:"page"`
}

func TestCategoryCRUD(t *testing.T) {
	env := newTestEnv(t)
	_, operator := env.createUser(t, "ops@example.com", auth.RoleOperator)
	_, user := env.createUser(t, "user@example.com", auth.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/v1/categories", "", map[string]string{"name": "Backend Dev"})
	assertFailure(t, rec, http.StatusUnauthorized, apperr.KindUnauthorized)

	rec = env.do(t, http.MethodPost, "/api/v1/categories", user, map[string]string{"name": "Backend Dev"})
	assertFailure(t, rec, http.StatusForbidden, apperr.KindForbidden)

	rec = env.do(t, http.MethodPost, "/api/v1/categories", operator, map[string]string{"name": "Backend Dev", "description": "server side"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created catalog.Category
	decodeData(t, rec, &created)
	assert.Equal(t, "BACKENDDEV", created.Name)

	rec = env.do(t, http.MethodPost, "/api/v1/categories", operator, map[string]string{"name": " backend\tdev "})
	assertFailure(t, rec, http.StatusConflict, apperr.KindConflict)

	path := fmt.Sprintf("/api/v1/categories/%d", created.ID)
	rec = env.do(t, http.MethodPut, path, operator, map[string]interface{}{"name": "Platform", "is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated catalog.Category
	decodeData(t, rec, &updated)
	assert.Equal(t, "PLATFORM", updated.Name)
	assert.False(t, updated.IsActive)

	// inactive categories are hidden from the default listing
	rec = env.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	var list listResult[catalog.Category]
	decodeData(t, rec, &list)
	assert.Empty(t, list.Items)
	rec = env.do(t, http.MethodGet, "/api/v1/categories?active_only=false", "", nil)
	decodeData(t, rec, &list)
	assert.Len(t, list.Items, 1)
	assert.Equal(t, int64(1), list.Page.Total)

	rec = env.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, path, operator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, path, "", nil)
	assertFailure(t, rec, http.StatusNotFound, apperr.KindNotFound)

	rec = env.do(t, http.MethodGet, "/api/v1/categories/abc", "", nil)
	assertFailure(t, rec, http.StatusBadRequest, apperr.KindBadRequest)
}

func TestCategoryMultipartImage(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createUser(t, "admin@example.com", auth.RoleAdmin)

	rec := env.doMultipart(t, http.MethodPost, "/api/v1/categories", admin, map[string]string{
		"name":        "Design",
		"description": "visual",
	}, filePart{FieldImage, "design.png", pngData})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c catalog.Category
	decodeData(t, rec, &c)
	assert.True(t, strings.HasPrefix(c.ImageURL, "/uploads/categories/"), c.ImageURL)
	assert.Equal(t, "visual", c.Description)

	rec = env.doMultipart(t, http.MethodPost, "/api/v1/categories", admin, map[string]string{
		"name":      "Other",
		"is_active": "sometimes",
	})
	assertFailure(t, rec, http.StatusBadRequest, apperr.KindBadRequest)
}

func jobBody(title string) map[string]interface{} {
	return map[string]interface{}{
		"title":           title,
		"description":     "Build and run services",
		"skills":          []string{"go", " postgres "},
		"location":        "Remote",
		"mode":            "remote",
		"employment_type": "FULL_TIME",
		"min_experience":  2,
		"max_experience":  5,
		"min_salary":      50000,
		"max_salary":      90000,
		"openings":        2,
		"deadline":        time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
	}
}

func TestJobCRUDAndOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.createUser(t, "acme@example.com", auth.RoleEmployer)
	_, otherToken := env.createUser(t, "globex@example.com", auth.RoleEmployer)
	_, adminToken := env.createUser(t, "root@example.com", auth.RoleSuperAdmin)
	_, seekerToken := env.createUser(t, "seeker@example.com", auth.RoleEmployee)

	rec := env.do(t, http.MethodPost, "/api/v1/jobs", seekerToken, jobBody("Go Engineer"))
	assertFailure(t, rec, http.StatusForbidden, apperr.KindForbidden)

	rec = env.do(t, http.MethodPost, "/api/v1/jobs", ownerToken, jobBody("Go Engineer"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var job catalog.Job
	decodeData(t, rec, &job)
	assert.Equal(t, owner.ID, job.EmployerID)
	assert.Equal(t, catalog.ModeRemote, job.Mode)
	assert.Equal(t, []string{"go", "postgres"}, job.Skills)

	path := fmt.Sprintf("/api/v1/jobs/%d", job.ID)
	rec = env.do(t, http.MethodPut, path, otherToken, jobBody("Hijacked"))
	assertFailure(t, rec, http.StatusForbidden, apperr.KindForbidden)

	rec = env.do(t, http.MethodPut, path, adminToken, jobBody("Senior Go Engineer"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &job)
	assert.Equal(t, "Senior Go Engineer", job.Title)
	assert.Equal(t, owner.ID, job.EmployerID)

	rec = env.do(t, http.MethodGet, "/api/v1/jobs?mode=REMOTE", "", nil)
	var list listResult[catalog.Job]
	decodeData(t, rec, &list)
	require.Len(t, list.Items, 1)
	rec = env.do(t, http.MethodGet, "/api/v1/jobs?mode=ONSITE", "", nil)
	decodeData(t, rec, &list)
	assert.Empty(t, list.Items)

	rec = env.do(t, http.MethodGet, "/api/v1/jobs?category_id=x", "", nil)
	assertFailure(t, rec, http.StatusBadRequest, apperr.KindBadRequest)

	rec = env.do(t, http.MethodDelete, path, otherToken, nil)
	assertFailure(t, rec, http.StatusForbidden, apperr.KindForbidden)
	rec = env.do(t, http.MethodDelete, path, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, path, "", nil)
	assertFailure(t, rec, http.StatusNotFound, apperr.KindNotFound)
}

func TestJobValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "acme@example.com", auth.RoleEmployer)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"salary range", func(b map[string]interface{}) { b["min_salary"] = 100000 }},
		{"experience range", func(b map[string]interface{}) { b["min_experience"] = 9 }},
		{"no openings", func(b map[string]interface{}) { b["openings"] = 0 }},
		{"past deadline", func(b map[string]interface{}) { b["deadline"] = time.Now().Add(-time.Hour).Format(time.RFC3339) }},
		{"bad mode", func(b map[string]interface{}) { b["mode"] = "MOON" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := jobBody("Go Engineer")
			tt.mutate(body)
			rec := env.do(t, http.MethodPost, "/api/v1/jobs", token, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	body := jobBody("Go Engineer")
	body["category_id"] = 999
	rec := env.do(t, http.MethodPost, "/api/v1/jobs", token, body)
	assertFailure(t, rec, http.StatusNotFound, apperr.KindNotFound)
}
