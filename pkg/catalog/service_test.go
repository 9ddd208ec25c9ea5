package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/catalog"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/storage"
	"github.com/platinummonkey/jobportal/pkg/storage/memory"
)

var (
	now      = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	admin    = &auth.User{ID: 1, Role: auth.RoleAdmin}
	operator = &auth.User{ID: 2, Role: auth.RoleOperator}
	employer = &auth.User{ID: 3, Role: auth.RoleEmployer}
	rival    = &auth.User{ID: 4, Role: auth.RoleEmployer}
)

func newService() *catalog.Service {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return catalog.NewService(memory.NewCatalogStore(), logger).WithClock(func() time.Time { return now })
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateCategory_NormalizesAndRejectsDuplicates(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	c, err := svc.CreateCategory(ctx, admin, &catalog.CategoryInput{Name: "backend dev", Description: strPtr(" APIs ")})
	require.NoError(t, err)
	assert.Equal(t, "BACKENDDEV", c.Name)
	assert.Equal(t, "APIs", c.Description)
	assert.True(t, c.IsActive)
	assert.Equal(t, admin.ID, c.CreatedBy)

	for _, variant := range []string{"BACKEND DEV", " Backend\tDev ", "backenddev", "b a c k e n d d e v"} {
		_, err := svc.CreateCategory(ctx, operator, &catalog.CategoryInput{Name: variant})
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), variant)
	}

	_, err = svc.CreateCategory(ctx, admin, &catalog.CategoryInput{Name: "   "})
	assert.Equal(t, apperr.KindParameterMissing, apperr.KindOf(err))

	_, err = svc.CreateCategory(ctx, admin, &catalog.CategoryInput{Name: "design", ImageURL: "https://cdn.example.com/" + strings.Repeat("x", 2048)})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestUpdateCategory(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	a, err := svc.CreateCategory(ctx, admin, &catalog.CategoryInput{Name: "data"})
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, admin, &catalog.CategoryInput{Name: "ops"})
	require.NoError(t, err)

	_, err = svc.UpdateCategory(ctx, operator, a.ID, &catalog.CategoryInput{Name: "O p s"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// renaming to its own name is not a conflict
	updated, err := svc.UpdateCategory(ctx, operator, a.ID, &catalog.CategoryInput{Name: "Data", IsActive: boolPtr(false), ImageURL: "https://cdn.example.com/data.png"})
	require.NoError(t, err)
	assert.Equal(t, "DATA", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Equal(t, operator.ID, updated.UpdatedBy)
	assert.Equal(t, admin.ID, updated.CreatedBy)
	assert.Equal(t, "https://cdn.example.com/data.png", updated.ImageURL)

	_, err = svc.UpdateCategory(ctx, operator, 99, &catalog.CategoryInput{Name: "x"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	list, total, err := svc.ListCategories(ctx, catalog.CategoryFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "OPS", list[0].Name)

	require.NoError(t, svc.DeleteCategory(ctx, a.ID))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(svc.DeleteCategory(ctx, a.ID)))
}

func validJob() *catalog.JobInput {
	return &catalog.JobInput{
		Title:          " Backend Engineer ",
		Description:    "Build APIs",
		Requirements:   []string{"3 years Go", " "},
		Skills:         []string{"go", "postgres"},
		Location:       "Remote",
		Mode:           "remote",
		EmploymentType: "full_time",
		MinExperience:  2,
		MaxExperience:  5,
		MinSalary:      50000,
		MaxSalary:      90000,
		Openings:       2,
		Deadline:       now.Add(30 * 24 * time.Hour),
	}
}

func TestCreateJob(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, admin, &catalog.CategoryInput{Name: "engineering"})
	require.NoError(t, err)

	in := validJob()
	in.CategoryID = &cat.ID
	j, err := svc.CreateJob(ctx, employer, in)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", j.Title)
	assert.Equal(t, catalog.ModeRemote, j.Mode)
	assert.Equal(t, catalog.FullTime, j.EmploymentType)
	assert.Equal(t, []string{"3 years Go"}, j.Requirements)
	assert.Equal(t, employer.ID, j.EmployerID)
	assert.True(t, j.IsActive)

	missing := int64(404)
	in = validJob()
	in.CategoryID = &missing
	_, err = svc.CreateJob(ctx, employer, in)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

// failingJobStore passes category reads through and fails job writes with err
type failingJobStore struct {
	*memory.CatalogStore
	err error
}

func (s *failingJobStore) CreateJob(ctx context.Context, j *catalog.Job) error { return s.err }
func (s *failingJobStore) UpdateJob(ctx context.Context, j *catalog.Job) error { return s.err }

func TestCreateJob_StoreErrorsNameTheRightRecord(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	tests := []struct {
		name    string
		err     error
		kind    apperr.Kind
		message string
	}{
		{"category removed mid-write", fmt.Errorf("%w: jobs_category_id_fkey", storage.ErrMissingReference), apperr.KindNotFound, "category not found"},
		{"job row missing", storage.ErrNotFound, apperr.KindNotFound, "job not found"},
		{"duplicate job", storage.ErrConflict, apperr.KindConflict, "job already exists"},
		{"backend down", errors.New("connection reset"), apperr.KindActionFailed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &failingJobStore{CatalogStore: memory.NewCatalogStore()}
			svc := catalog.NewService(store, logger).WithClock(func() time.Time { return now })
			cat, err := svc.CreateCategory(ctx, admin, &catalog.CategoryInput{Name: "engineering"})
			require.NoError(t, err)

			store.err = tt.err
			in := validJob()
			in.CategoryID = &cat.ID
			_, err = svc.CreateJob(ctx, employer, in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestCreateJob_Validation(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*catalog.JobInput)
		kind   apperr.Kind
	}{
		{"missing title", func(in *catalog.JobInput) { in.Title = "  " }, apperr.KindParameterMissing},
		{"bad mode", func(in *catalog.JobInput) { in.Mode = "ORBITAL" }, apperr.KindBadRequest},
		{"bad type", func(in *catalog.JobInput) { in.EmploymentType = "GIG" }, apperr.KindBadRequest},
		{"no openings", func(in *catalog.JobInput) { in.Openings = 0 }, apperr.KindBadRequest},
		{"negative salary", func(in *catalog.JobInput) { in.MinSalary = -1 }, apperr.KindBadRequest},
		{"experience range", func(in *catalog.JobInput) { in.MinExperience = 6 }, apperr.KindBadRequest},
		{"salary range", func(in *catalog.JobInput) { in.MaxSalary = 10 }, apperr.KindBadRequest},
		{"past deadline", func(in *catalog.JobInput) { in.Deadline = now.Add(-time.Hour) }, apperr.KindBadRequest},
		{"missing deadline", func(in *catalog.JobInput) { in.Deadline = time.Time{} }, apperr.KindParameterMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validJob()
			tt.mutate(in)
			_, err := svc.CreateJob(ctx, employer, in)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestJobOwnership(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, employer, validJob())
	require.NoError(t, err)

	in := validJob()
	in.Title = "Staff Engineer"
	_, err = svc.UpdateJob(ctx, rival, j.ID, in)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	updated, err := svc.UpdateJob(ctx, employer, j.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Staff Engineer", updated.Title)
	assert.Equal(t, employer.ID, updated.EmployerID)

	in.IsActive = boolPtr(false)
	updated, err = svc.UpdateJob(ctx, admin, j.ID, in)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(svc.DeleteJob(ctx, rival, j.ID)))
	require.NoError(t, svc.DeleteJob(ctx, employer, j.ID))
	_, err = svc.GetJob(ctx, j.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListJobs(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	for _, mode := range []catalog.JobMode{"REMOTE", "ONSITE", "HYBRID", "REMOTE"} {
		in := validJob()
		in.Mode = mode
		_, err := svc.CreateJob(ctx, employer, in)
		require.NoError(t, err)
	}

	jobs, total, err := svc.ListJobs(ctx, catalog.JobFilter{Mode: "remote"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, jobs, 2)

	_, _, err = svc.ListJobs(ctx, catalog.JobFilter{Mode: "space"})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	_, _, err = svc.ListJobs(ctx, catalog.JobFilter{EmploymentType: "gig"})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}
