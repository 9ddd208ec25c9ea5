package catalog

import (
	"context"
	"time"

	"github.com/platinummonkey/jobportal/pkg/storage"
)

// Category groups job postings. Names are stored normalized: uppercase with no whitespace.
type Category struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	IsActive        bool      `json:"is_active"`
	ImageURL        string    `json:"image_url,omitempty"`
	ImagePreviewURL string    `json:"image_preview_url,omitempty"`
	CreatedBy       int64     `json:"created_by"`
	UpdatedBy       int64     `json:"updated_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// JobMode is where the work happens
type JobMode string

const (
	ModeOnsite JobMode = "ONSITE"
	ModeRemote JobMode = "REMOTE"
	ModeHybrid JobMode = "HYBRID"
)

// EmploymentType is the contract kind of a posting
type EmploymentType string

const (
	FullTime   EmploymentType = "FULL_TIME"
	PartTime   EmploymentType = "PART_TIME"
	Contract   EmploymentType = "CONTRACT"
	Internship EmploymentType = "INTERNSHIP"
	Freelance  EmploymentType = "FREELANCE"
)

// Job is a posting owned by an employer or administrator
type Job struct {
	ID             int64          `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Requirements   []string       `json:"requirements"`
	Skills         []string       `json:"skills"`
	Location       string         `json:"location"`
	Mode           JobMode        `json:"mode"`
	EmploymentType EmploymentType `json:"employment_type"`
	MinExperience  int            `json:"min_experience"`
	MaxExperience  int            `json:"max_experience"`
	MinSalary      int64          `json:"min_salary"`
	MaxSalary      int64          `json:"max_salary"`
	Openings       int            `json:"openings"`
	Deadline       time.Time      `json:"deadline"`
	CategoryID     *int64         `json:"category_id,omitempty"`
	EmployerID     int64          `json:"employer_id"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// JobFilter narrows a job listing
type JobFilter struct {
	CategoryID     *int64
	EmployerID     *int64
	Mode           JobMode
	EmploymentType EmploymentType
	ActiveOnly     bool
	Page           storage.Page
}

// CategoryFilter narrows a category listing
type CategoryFilter struct {
	ActiveOnly bool
	Page       storage.Page
}

// Store persists categories and jobs. Lookups return storage.ErrNotFound and
// writes that break name uniqueness return storage.ErrConflict.
type Store interface {
	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id int64) (*Category, error)
	GetCategoryByName(ctx context.Context, name string) (*Category, error)
	ListCategories(ctx context.Context, filter CategoryFilter) ([]*Category, int64, error)
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id int64) error

	CreateJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id int64) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, int64, error)
	UpdateJob(ctx context.Context, j *Job) error
	DeleteJob(ctx context.Context, id int64) error
}
