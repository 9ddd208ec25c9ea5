package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/jobportal/pkg/catalog"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

// CatalogStore keeps categories and jobs in memory
type CatalogStore struct {
	mu             sync.RWMutex
	nextCategoryID int64
	nextJobID      int64
	categories     map[int64]*catalog.Category
	jobs           map[int64]*catalog.Job
	now            func() time.Time
}

// NewCatalogStore creates an empty catalog store
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		categories: make(map[int64]*catalog.Category),
		jobs:       make(map[int64]*catalog.Job),
		now:        time.Now,
	}
}

var _ catalog.Store = (*CatalogStore)(nil)

func (s *CatalogStore) nameTaken(name string, except int64) bool {
	for id, c := range s.categories {
		if c.Name == name && id != except {
			return true
		}
	}
	return false
}

func (s *CatalogStore) CreateCategory(ctx context.Context, c *catalog.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(c.Name, 0) {
		return storage.ErrConflict
	}
	now := s.now().UTC()
	s.nextCategoryID++
	c.ID = s.nextCategoryID
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := *c
	s.categories[c.ID] = &stored
	return nil
}

func (s *CatalogStore) GetCategory(ctx context.Context, id int64) (*catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *CatalogStore) GetCategoryByName(ctx context.Context, name string) (*catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.Name == name {
			out := *c
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *CatalogStore) ListCategories(ctx context.Context, filter catalog.CategoryFilter) ([]*catalog.Category, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*catalog.Category
	for _, c := range s.categories {
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		out := *c
		matched = append(matched, &out)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return paginate(matched, filter.Page.Normalize()), int64(len(matched)), nil
}

func (s *CatalogStore) UpdateCategory(ctx context.Context, c *catalog.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.categories[c.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if s.nameTaken(c.Name, c.ID) {
		return storage.ErrConflict
	}
	c.CreatedAt = existing.CreatedAt
	c.CreatedBy = existing.CreatedBy
	c.UpdatedAt = s.now().UTC()
	stored := *c
	s.categories[c.ID] = &stored
	return nil
}

func (s *CatalogStore) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.categories, id)
	for _, j := range s.jobs {
		if j.CategoryID != nil && *j.CategoryID == id {
			j.CategoryID = nil
		}
	}
	return nil
}

func copyJob(j *catalog.Job) *catalog.Job {
	out := *j
	out.Requirements = append([]string(nil), j.Requirements...)
	out.Skills = append([]string(nil), j.Skills...)
	if j.CategoryID != nil {
		id := *j.CategoryID
		out.CategoryID = &id
	}
	return &out
}

func (s *CatalogStore) CreateJob(ctx context.Context, j *catalog.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.CategoryID != nil {
		if _, ok := s.categories[*j.CategoryID]; !ok {
			return storage.ErrMissingReference
		}
	}
	now := s.now().UTC()
	s.nextJobID++
	j.ID = s.nextJobID
	j.CreatedAt = now
	j.UpdatedAt = now
	s.jobs[j.ID] = copyJob(j)
	return nil
}

func (s *CatalogStore) GetJob(ctx context.Context, id int64) (*catalog.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyJob(j), nil
}

func (s *CatalogStore) ListJobs(ctx context.Context, filter catalog.JobFilter) ([]*catalog.Job, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*catalog.Job
	for _, j := range s.jobs {
		if filter.ActiveOnly && !j.IsActive {
			continue
		}
		if filter.CategoryID != nil && (j.CategoryID == nil || *j.CategoryID != *filter.CategoryID) {
			continue
		}
		if filter.EmployerID != nil && j.EmployerID != *filter.EmployerID {
			continue
		}
		if filter.Mode != "" && j.Mode != filter.Mode {
			continue
		}
		if filter.EmploymentType != "" && j.EmploymentType != filter.EmploymentType {
			continue
		}
		matched = append(matched, copyJob(j))
	}
	// newest first
	sort.Slice(matched, func(i, k int) bool { return matched[i].ID > matched[k].ID })
	return paginate(matched, filter.Page.Normalize()), int64(len(matched)), nil
}

func (s *CatalogStore) UpdateJob(ctx context.Context, j *catalog.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[j.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if j.CategoryID != nil {
		if _, ok := s.categories[*j.CategoryID]; !ok {
			return storage.ErrMissingReference
		}
	}
	j.CreatedAt = existing.CreatedAt
	j.EmployerID = existing.EmployerID
	j.UpdatedAt = s.now().UTC()
	s.jobs[j.ID] = copyJob(j)
	return nil
}

func (s *CatalogStore) DeleteJob(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}
