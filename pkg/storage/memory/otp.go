package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/jobportal/pkg/otp"
)

// OTPStore keeps one-time codes in memory. The mutex makes the uniqueness
// check and the insert one atomic step.
type OTPStore struct {
	mu      sync.Mutex
	byValue map[string]*otp.Code
}

// NewOTPStore creates an empty code store
func NewOTPStore() *OTPStore {
	return &OTPStore{byValue: make(map[string]*otp.Code)}
}

var _ otp.Store = (*OTPStore)(nil)

func (s *OTPStore) InsertUnique(ctx context.Context, c *otp.Code) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byValue[c.Value]; taken {
		return false, nil
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	stored := *c
	s.byValue[c.Value] = &stored
	return true, nil
}

func (s *OTPStore) Latest(ctx context.Context, email string, action otp.Action) (*otp.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *otp.Code
	for _, c := range s.byValue {
		if c.Email != email || c.Action != action {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, otp.ErrCodeNotFound
	}
	out := *latest
	return &out, nil
}

func (s *OTPStore) Delete(ctx context.Context, c *otp.Code) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byValue[c.Value]
	if !ok || stored.ID != c.ID {
		return false, nil
	}
	delete(s.byValue, c.Value)
	return true, nil
}

func (s *OTPStore) DeleteForEmailAction(ctx context.Context, email string, action otp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for value, c := range s.byValue {
		if c.Email == email && c.Action == action {
			delete(s.byValue, value)
		}
	}
	return nil
}

func (s *OTPStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for value, c := range s.byValue {
		if c.Expired(now) {
			delete(s.byValue, value)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored codes
func (s *OTPStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byValue)
}
