package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/otp"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

// errNoCode matches both otp.ErrCodeNotFound and storage.ErrNotFound so the
// instrument treats a missing code as an answer.
var errNoCode = fmt.Errorf("%w: %w", otp.ErrCodeNotFound, storage.ErrNotFound)

// OTPStore persists one-time codes. UNIQUE(code) makes inserts atomic.
type OTPStore struct {
	db *sql.DB
	instrument
}

// NewOTPStore creates a code store over db
func NewOTPStore(db *sql.DB, metrics *observability.Metrics) *OTPStore {
	return &OTPStore{db: db, instrument: instrument{metrics: metrics}}
}

var _ otp.Store = (*OTPStore)(nil)

func (s *OTPStore) InsertUnique(ctx context.Context, c *otp.Code) (inserted bool, err error) {
	ctx, done := s.start(ctx, "insert_code")
	defer done(&err)

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO one_time_codes (id, email, code, action, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO NOTHING
		RETURNING id`,
		c.ID, c.Email, c.Value, string(c.Action), c.CreatedAt, c.ExpiresAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err)
	}
	return true, nil
}

func (s *OTPStore) Latest(ctx context.Context, email string, action otp.Action) (c *otp.Code, err error) {
	ctx, done := s.start(ctx, "latest_code")
	defer done(&err)

	c = &otp.Code{}
	err = s.db.QueryRowContext(ctx, `
		SELECT id, email, code, action, created_at, expires_at
		FROM one_time_codes
		WHERE email = $1 AND action = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		email, string(action),
	).Scan(&c.ID, &c.Email, &c.Value, &c.Action, &c.CreatedAt, &c.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNoCode
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes c. RowsAffected decides which of several concurrent
// deletes of the same row wins.
func (s *OTPStore) Delete(ctx context.Context, c *otp.Code) (deleted bool, err error) {
	ctx, done := s.start(ctx, "delete_code")
	defer done(&err)

	res, err := s.db.ExecContext(ctx, "DELETE FROM one_time_codes WHERE id = $1", c.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *OTPStore) DeleteForEmailAction(ctx context.Context, email string, action otp.Action) (err error) {
	ctx, done := s.start(ctx, "delete_codes_for_email")
	defer done(&err)

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM one_time_codes WHERE email = $1 AND action = $2", email, string(action))
	return err
}

func (s *OTPStore) DeleteExpired(ctx context.Context, now time.Time) (n int64, err error) {
	ctx, done := s.start(ctx, "delete_expired_codes")
	defer done(&err)

	res, err := s.db.ExecContext(ctx, "DELETE FROM one_time_codes WHERE expires_at <= $1", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
