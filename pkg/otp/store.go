package otp

import (
	"context"
	"time"
)

// Store persists one-time codes. Code values are unique across all stored
// codes and implementations must enforce that atomically.
type Store interface {
	// InsertUnique stores c unless another code with the same value exists.
	// It reports false, without error, on a value collision.
	InsertUnique(ctx context.Context, c *Code) (bool, error)
	// Latest returns the most recently issued code for email and action,
	// or ErrCodeNotFound.
	Latest(ctx context.Context, email string, action Action) (*Code, error)
	// Delete removes c and reports whether this call removed it. A missing
	// code yields false without error, so of several concurrent deletes of
	// one code exactly one reports true.
	Delete(ctx context.Context, c *Code) (bool, error)
	// DeleteForEmailAction removes every code for the pair
	DeleteForEmailAction(ctx context.Context, email string, action Action) error
	// DeleteExpired removes every code whose expiry is at or before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserLookup answers whether an account exists for an email
type UserLookup interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Mailer delivers a code to its recipient
type Mailer interface {
	SendCode(ctx context.Context, to, code, purpose string, ttl time.Duration) error
}
