package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/jobportal/pkg/accounts"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

// AccountStore keeps users, profiles and credentials in memory
type AccountStore struct {
	mu          sync.RWMutex
	nextID      int64
	nextAddrID  int64
	users       map[int64]*auth.User
	byEmail     map[string]int64
	credentials map[int64]*auth.Credential
	now         func() time.Time
}

// NewAccountStore creates an empty account store
func NewAccountStore() *AccountStore {
	return &AccountStore{
		users:       make(map[int64]*auth.User),
		byEmail:     make(map[string]int64),
		credentials: make(map[int64]*auth.Credential),
		now:         time.Now,
	}
}

var _ accounts.Store = (*AccountStore)(nil)

func (s *AccountStore) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyUser(s.users[id]), nil
}

func (s *AccountStore) FindUserByID(ctx context.Context, id int64) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *AccountStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *auth.NewAccount) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[account.User.Email]; exists {
		return nil, storage.ErrConflict
	}

	now := s.now().UTC()
	s.nextID++
	u := copyUser(account.User)
	u.ID = s.nextID
	u.CreatedAt = now
	u.UpdatedAt = now

	if !account.Address.IsZero() {
		s.nextAddrID++
		addr := *account.Address
		addr.ID = s.nextAddrID
		u.Address = &addr
		u.AddressID = &addr.ID
	}
	if account.Employee != nil {
		p := *account.Employee
		p.UserID = u.ID
		p.Skills = append([]string(nil), p.Skills...)
		u.Employee = &p
	}
	if account.Employer != nil {
		p := *account.Employer
		p.UserID = u.ID
		u.Employer = &p
	}

	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID

	if account.PasswordHash != "" {
		s.credentials[u.ID] = &auth.Credential{
			UserID:       u.ID,
			PasswordHash: account.PasswordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	return copyUser(u), nil
}

func (s *AccountStore) LatestCredential(ctx context.Context, userID int64) (*auth.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *c
	out.PreviousHashes = append([]string(nil), c.PreviousHashes...)
	return &out, nil
}

func (s *AccountStore) SaveCredential(ctx context.Context, cred *auth.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[cred.UserID]; !ok {
		return storage.ErrNotFound
	}
	now := s.now().UTC()
	c := *cred
	c.PreviousHashes = append([]string(nil), cred.PreviousHashes...)
	if existing, ok := s.credentials[cred.UserID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.credentials[cred.UserID] = &c
	return nil
}

func (s *AccountStore) ListUsers(ctx context.Context, filter accounts.UserFilter) ([]*auth.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*auth.User
	for _, u := range s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.ActiveOnly && !u.IsActive {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	page := filter.Page.Normalize()
	matched = paginate(matched, page)

	out := make([]*auth.User, 0, len(matched))
	for _, u := range matched {
		out = append(out, copyUser(u))
	}
	return out, total, nil
}

func (s *AccountStore) SetUserActive(ctx context.Context, id int64, active bool) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = s.now().UTC()
	return copyUser(u), nil
}

func copyUser(u *auth.User) *auth.User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Address != nil {
		a := *u.Address
		out.Address = &a
	}
	if u.AddressID != nil {
		id := *u.AddressID
		out.AddressID = &id
	}
	if u.Employee != nil {
		p := *u.Employee
		p.Skills = append([]string(nil), u.Employee.Skills...)
		out.Employee = &p
	}
	if u.Employer != nil {
		p := *u.Employer
		out.Employer = &p
	}
	return &out
}

func paginate[T any](items []T, page storage.Page) []T {
	if page.Offset >= len(items) {
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
