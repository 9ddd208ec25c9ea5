package accounts

import (
	"context"

	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

// UserFilter narrows a user listing
type UserFilter struct {
	Role       auth.Role
	ActiveOnly bool
	Page       storage.Page
}

// Store persists accounts. Lookups return storage.ErrNotFound and duplicate
// emails return storage.ErrConflict. Users are returned with their address and
// role profile loaded.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*auth.User, error)
	FindUserByID(ctx context.Context, id int64) (*auth.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// CreateAccount writes the user, address, profile and credential atomically
	CreateAccount(ctx context.Context, account *auth.NewAccount) (*auth.User, error)
	LatestCredential(ctx context.Context, userID int64) (*auth.Credential, error)
	SaveCredential(ctx context.Context, cred *auth.Credential) error
	ListUsers(ctx context.Context, filter UserFilter) ([]*auth.User, int64, error)
	SetUserActive(ctx context.Context, id int64, active bool) (*auth.User, error)
}
