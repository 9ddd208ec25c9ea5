package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/jobportal/pkg/catalog"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

const categoryColumns = `id, name, description, is_active, image_url, image_preview_url, created_by, updated_by, created_at, updated_at`

const jobColumns = `id, title, description, requirements, skills, location, mode, employment_type,
	min_experience, max_experience, min_salary, max_salary, openings, deadline, category_id, employer_id,
	is_active, created_at, updated_at`

// CatalogStore persists categories and jobs
type CatalogStore struct {
	db *sql.DB
	instrument
}

// NewCatalogStore creates a catalog store over db
func NewCatalogStore(db *sql.DB, metrics *observability.Metrics) *CatalogStore {
	return &CatalogStore{db: db, instrument: instrument{metrics: metrics}}
}

var _ catalog.Store = (*CatalogStore)(nil)

func scanCategory(row rowScanner) (*catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &c.ImageURL, &c.ImagePreviewURL,
		&c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CatalogStore) CreateCategory(ctx context.Context, c *catalog.Category) (err error) {
	ctx, done := s.start(ctx, "create_category")
	defer done(&err)

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, description, is_active, image_url, image_preview_url, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Description, c.IsActive, c.ImageURL, c.ImagePreviewURL, c.CreatedBy, c.UpdatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapError(err)
}

func (s *CatalogStore) getCategory(ctx context.Context, op, predicate string, arg interface{}) (c *catalog.Category, err error) {
	ctx, done := s.start(ctx, op)
	defer done(&err)

	c, err = scanCategory(s.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE "+predicate, arg))
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

func (s *CatalogStore) GetCategory(ctx context.Context, id int64) (*catalog.Category, error) {
	return s.getCategory(ctx, "get_category", "id = $1", id)
}

func (s *CatalogStore) GetCategoryByName(ctx context.Context, name string) (*catalog.Category, error) {
	return s.getCategory(ctx, "get_category_by_name", "name = $1", name)
}

func (s *CatalogStore) ListCategories(ctx context.Context, filter catalog.CategoryFilter) (out []*catalog.Category, total int64, err error) {
	ctx, done := s.start(ctx, "list_categories")
	defer done(&err)

	var w where
	if filter.ActiveOnly {
		w.add("is_active = $%d", true)
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count categories: %w", err)
	}

	limit, args := w.page(filter.Page)
	rows, err := s.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories"+w.String()+" ORDER BY name"+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	out = make([]*catalog.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *CatalogStore) UpdateCategory(ctx context.Context, c *catalog.Category) (err error) {
	ctx, done := s.start(ctx, "update_category")
	defer done(&err)

	err = s.db.QueryRowContext(ctx, `
		UPDATE categories
		SET name = $2, description = $3, is_active = $4, image_url = $5, image_preview_url = $6,
			updated_by = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING created_by, created_at, updated_at`,
		c.ID, c.Name, c.Description, c.IsActive, c.ImageURL, c.ImagePreviewURL, c.UpdatedBy,
	).Scan(&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return mapError(err)
}

func (s *CatalogStore) DeleteCategory(ctx context.Context, id int64) (err error) {
	ctx, done := s.start(ctx, "delete_category")
	defer done(&err)
	return s.deleteByID(ctx, "DELETE FROM categories WHERE id = $1", id)
}

func (s *CatalogStore) deleteByID(ctx context.Context, query string, id int64) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanJob(row rowScanner) (*catalog.Job, error) {
	var (
		j            catalog.Job
		requirements pq.StringArray
		skills       pq.StringArray
		categoryID   sql.NullInt64
	)
	err := row.Scan(&j.ID, &j.Title, &j.Description, &requirements, &skills, &j.Location, &j.Mode, &j.EmploymentType,
		&j.MinExperience, &j.MaxExperience, &j.MinSalary, &j.MaxSalary, &j.Openings, &j.Deadline, &categoryID, &j.EmployerID,
		&j.IsActive, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Requirements = []string(requirements)
	j.Skills = []string(skills)
	if categoryID.Valid {
		id := categoryID.Int64
		j.CategoryID = &id
	}
	return &j, nil
}

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func (s *CatalogStore) CreateJob(ctx context.Context, j *catalog.Job) (err error) {
	ctx, done := s.start(ctx, "create_job")
	defer done(&err)

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO jobs (title, description, requirements, skills, location, mode, employment_type,
			min_experience, max_experience, min_salary, max_salary, openings, deadline, category_id, employer_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`,
		j.Title, j.Description, pq.Array(j.Requirements), pq.Array(j.Skills), j.Location, string(j.Mode), string(j.EmploymentType),
		j.MinExperience, j.MaxExperience, j.MinSalary, j.MaxSalary, j.Openings, j.Deadline, nullableID(j.CategoryID), j.EmployerID, j.IsActive,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	return mapError(err)
}

func (s *CatalogStore) GetJob(ctx context.Context, id int64) (j *catalog.Job, err error) {
	ctx, done := s.start(ctx, "get_job")
	defer done(&err)

	j, err = scanJob(s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err)
	}
	return j, nil
}

func (s *CatalogStore) ListJobs(ctx context.Context, filter catalog.JobFilter) (out []*catalog.Job, total int64, err error) {
	ctx, done := s.start(ctx, "list_jobs")
	defer done(&err)

	var w where
	if filter.ActiveOnly {
		w.add("is_active = $%d", true)
	}
	if filter.CategoryID != nil {
		w.add("category_id = $%d", *filter.CategoryID)
	}
	if filter.EmployerID != nil {
		w.add("employer_id = $%d", *filter.EmployerID)
	}
	if filter.Mode != "" {
		w.add("mode = $%d", string(filter.Mode))
	}
	if filter.EmploymentType != "" {
		w.add("employment_type = $%d", string(filter.EmploymentType))
	}

	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	limit, args := w.page(filter.Page)
	rows, err := s.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs"+w.String()+" ORDER BY id DESC"+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	out = make([]*catalog.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, total, rows.Err()
}

// UpdateJob rewrites the posting but never its owner
func (s *CatalogStore) UpdateJob(ctx context.Context, j *catalog.Job) (err error) {
	ctx, done := s.start(ctx, "update_job")
	defer done(&err)

	err = s.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET title = $2, description = $3, requirements = $4, skills = $5, location = $6, mode = $7,
			employment_type = $8, min_experience = $9, max_experience = $10, min_salary = $11,
			max_salary = $12, openings = $13, deadline = $14, category_id = $15, is_active = $16,
			updated_at = NOW()
		WHERE id = $1
		RETURNING employer_id, created_at, updated_at`,
		j.ID, j.Title, j.Description, pq.Array(j.Requirements), pq.Array(j.Skills), j.Location, string(j.Mode),
		string(j.EmploymentType), j.MinExperience, j.MaxExperience, j.MinSalary,
		j.MaxSalary, j.Openings, j.Deadline, nullableID(j.CategoryID), j.IsActive,
	).Scan(&j.EmployerID, &j.CreatedAt, &j.UpdatedAt)
	return mapError(err)
}

func (s *CatalogStore) DeleteJob(ctx context.Context, id int64) (err error) {
	ctx, done := s.start(ctx, "delete_job")
	defer done(&err)
	return s.deleteByID(ctx, "DELETE FROM jobs WHERE id = $1", id)
}
