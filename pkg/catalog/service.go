package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/storage"
	"github.com/platinummonkey/jobportal/pkg/validation"
)

// MaxCategoryNameLength bounds a normalized category name
const MaxCategoryNameLength = 100

// CategoryInput creates or updates a category. On update empty or nil fields
// are left unchanged.
type CategoryInput struct {
	Name            string  `json:"name" validate:"max=200"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	IsActive        *bool   `json:"is_active,omitempty"`
	ImageURL        string  `json:"image_url,omitempty" validate:"max=2048"`
	ImagePreviewURL string  `json:"image_preview_url,omitempty" validate:"max=2048"`
}

// JobInput creates or replaces a job posting
type JobInput struct {
	Title          string         `json:"title" validate:"notblank,max=200"`
	Description    string         `json:"description" validate:"notblank,max=5000"`
	Requirements   []string       `json:"requirements" validate:"max=50"`
	Skills         []string       `json:"skills" validate:"max=50"`
	Location       string         `json:"location" validate:"max=200"`
	Mode           JobMode        `json:"mode" validate:"required,oneof=ONSITE REMOTE HYBRID"`
	EmploymentType EmploymentType `json:"employment_type" validate:"required,oneof=FULL_TIME PART_TIME CONTRACT INTERNSHIP FREELANCE"`
	MinExperience  int            `json:"min_experience" validate:"gte=0,lte=60"`
	MaxExperience  int            `json:"max_experience" validate:"gte=0,lte=60"`
	MinSalary      int64          `json:"min_salary" validate:"gte=0"`
	MaxSalary      int64          `json:"max_salary" validate:"gte=0"`
	Openings       int            `json:"openings" validate:"gte=1"`
	Deadline       time.Time      `json:"deadline" validate:"required"`
	CategoryID     *int64         `json:"category_id,omitempty"`
	IsActive       *bool          `json:"is_active,omitempty"`
}

func (in *JobInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	in.Mode = JobMode(strings.ToUpper(strings.TrimSpace(string(in.Mode))))
	in.EmploymentType = EmploymentType(strings.ToUpper(strings.TrimSpace(string(in.EmploymentType))))
	in.Requirements = validation.NormalizeList(in.Requirements)
	in.Skills = validation.NormalizeList(in.Skills)
}

func (in *JobInput) validate(now time.Time) error {
	if err := validation.Default().Struct(in); err != nil {
		return err
	}
	if in.MinExperience > in.MaxExperience {
		return apperr.BadRequest("min_experience must not exceed max_experience")
	}
	if in.MinSalary > in.MaxSalary {
		return apperr.BadRequest("min_salary must not exceed max_salary")
	}
	if !in.Deadline.After(now) {
		return apperr.BadRequest("deadline must be in the future")
	}
	return nil
}

// Service manages categories and job postings
type Service struct {
	store  Store
	logger *observability.Logger
	now    func() time.Time
}

// NewService creates a catalog service
func NewService(store Store, logger *observability.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.WithField("component", "catalog"),
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateCategory stores a category under its normalized name
func (s *Service) CreateCategory(ctx context.Context, actor *auth.User, in *CategoryInput) (*Category, error) {
	if err := validation.Default().Struct(in); err != nil {
		return nil, err
	}
	name, err := categoryName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	c := &Category{
		Name:            name,
		IsActive:        true,
		ImageURL:        in.ImageURL,
		ImagePreviewURL: in.ImagePreviewURL,
		CreatedBy:       actor.ID,
		UpdatedBy:       actor.ID,
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}

	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, storeError(err, "category")
	}
	s.logger.WithField("category_id", c.ID).WithField("name", c.Name).Info("category created")
	return c, nil
}

// UpdateCategory applies the non-empty fields of in
func (s *Service) UpdateCategory(ctx context.Context, actor *auth.User, id int64, in *CategoryInput) (*Category, error) {
	if err := validation.Default().Struct(in); err != nil {
		return nil, err
	}
	c, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Name) != "" {
		name, err := categoryName(in.Name)
		if err != nil {
			return nil, err
		}
		if name != c.Name {
			if err := s.ensureNameFree(ctx, name, id); err != nil {
				return nil, err
			}
			c.Name = name
		}
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if in.ImageURL != "" {
		c.ImageURL = in.ImageURL
		c.ImagePreviewURL = in.ImagePreviewURL
	}
	c.UpdatedBy = actor.ID

	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return nil, storeError(err, "category")
	}
	return c, nil
}

// DeleteCategory removes a category. Jobs in it become uncategorized.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return storeError(err, "category")
	}
	s.logger.WithField("category_id", id).Info("category deleted")
	return nil
}

// GetCategory fetches a category by id
func (s *Service) GetCategory(ctx context.Context, id int64) (*Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, storeError(err, "category")
	}
	return c, nil
}

// ListCategories returns one page of categories ordered by name
func (s *Service) ListCategories(ctx context.Context, filter CategoryFilter) ([]*Category, int64, error) {
	filter.Page = filter.Page.Normalize()
	items, total, err := s.store.ListCategories(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}

func categoryName(raw string) (string, error) {
	name := validation.NormalizeCategoryName(raw)
	if name == "" {
		return "", apperr.MissingParameter("name")
	}
	if len(name) > MaxCategoryNameLength {
		return "", apperr.Newf(apperr.KindBadRequest, "name must have at most %d characters", MaxCategoryNameLength)
	}
	return name, nil
}

func (s *Service) ensureNameFree(ctx context.Context, name string, self int64) error {
	existing, err := s.store.GetCategoryByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if existing.ID != self {
		return apperr.Conflict("category already exists")
	}
	return nil
}

// CreateJob posts a job owned by actor
func (s *Service) CreateJob(ctx context.Context, actor *auth.User, in *JobInput) (*Job, error) {
	in.normalize()
	if err := in.validate(s.now()); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	j := &Job{EmployerID: actor.ID, IsActive: true}
	apply(j, in)
	if err := s.store.CreateJob(ctx, j); err != nil {
		return nil, jobStoreError(err)
	}
	s.logger.WithField("job_id", j.ID).WithField("employer_id", j.EmployerID).Info("job created")
	return j, nil
}

// UpdateJob replaces a posting. Only its owner or an administrator may update it.
func (s *Service) UpdateJob(ctx context.Context, actor *auth.User, id int64, in *JobInput) (*Job, error) {
	j, err := s.ownedJob(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.validate(s.now()); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	apply(j, in)
	if err := s.store.UpdateJob(ctx, j); err != nil {
		return nil, jobStoreError(err)
	}
	return j, nil
}

// DeleteJob removes a posting. Only its owner or an administrator may delete it.
func (s *Service) DeleteJob(ctx context.Context, actor *auth.User, id int64) error {
	if _, err := s.ownedJob(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteJob(ctx, id); err != nil {
		return storeError(err, "job")
	}
	s.logger.WithField("job_id", id).WithField("actor_id", actor.ID).Info("job deleted")
	return nil
}

// GetJob fetches a job by id
func (s *Service) GetJob(ctx context.Context, id int64) (*Job, error) {
	j, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, storeError(err, "job")
	}
	return j, nil
}

// ListJobs returns one page of jobs, newest first
func (s *Service) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, int64, error) {
	filter.Mode = JobMode(strings.ToUpper(string(filter.Mode)))
	filter.EmploymentType = EmploymentType(strings.ToUpper(string(filter.EmploymentType)))
	if filter.Mode != "" {
		if err := validation.Default().Var("mode", string(filter.Mode), "oneof=ONSITE REMOTE HYBRID"); err != nil {
			return nil, 0, err
		}
	}
	if filter.EmploymentType != "" {
		if err := validation.Default().Var("employment_type", string(filter.EmploymentType), "oneof=FULL_TIME PART_TIME CONTRACT INTERNSHIP FREELANCE"); err != nil {
			return nil, 0, err
		}
	}
	filter.Page = filter.Page.Normalize()

	items, total, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}

func (s *Service) ownedJob(ctx context.Context, actor *auth.User, id int64) (*Job, error) {
	j, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.EmployerID != actor.ID && !actor.Role.IsAdmin() {
		return nil, apperr.Forbidden("only the posting's owner or an administrator may change it")
	}
	return j, nil
}

func (s *Service) ensureCategory(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := s.store.GetCategory(ctx, *id); err != nil {
		return storeError(err, "category")
	}
	return nil
}

func apply(j *Job, in *JobInput) {
	j.Title = in.Title
	j.Description = strings.TrimSpace(in.Description)
	j.Requirements = in.Requirements
	j.Skills = in.Skills
	j.Location = in.Location
	j.Mode = in.Mode
	j.EmploymentType = in.EmploymentType
	j.MinExperience = in.MinExperience
	j.MaxExperience = in.MaxExperience
	j.MinSalary = in.MinSalary
	j.MaxSalary = in.MaxSalary
	j.Openings = in.Openings
	j.Deadline = in.Deadline.UTC()
	j.CategoryID = in.CategoryID
	if in.IsActive != nil {
		j.IsActive = *in.IsActive
	}
}

// jobStoreError reports a category removed between validation and the write
// as a missing category; every other miss is the job itself.
func jobStoreError(err error) error {
	if errors.Is(err, storage.ErrMissingReference) {
		return apperr.NotFound("category not found")
	}
	return storeError(err, "job")
}

func storeError(err error, what string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound(what + " not found")
	case errors.Is(err, storage.ErrConflict):
		return apperr.Conflict(what + " already exists")
	default:
		return apperr.Internal(err)
	}
}
