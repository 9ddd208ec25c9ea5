package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 30 * time.Second
)

// RoleSet is the set of roles an operation admits. An empty set admits any
// authenticated, active user.
type RoleSet []auth.Role

// Common role sets
var (
	Authenticated = RoleSet{}
	Admins        = RoleSet{auth.RoleAdmin, auth.RoleSuperAdmin}
	Elevated      = RoleSet{auth.RoleAdmin, auth.RoleSuperAdmin, auth.RoleOperator}
	JobPosters    = RoleSet{auth.RoleEmployer, auth.RoleAdmin, auth.RoleSuperAdmin}
)

// Allows reports whether role is in the set
func (s RoleSet) Allows(role auth.Role) bool {
	if len(s) == 0 {
		return true
	}
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// Decision is the outcome of an authorization check
type Decision struct {
	Allowed bool
	Role    auth.Role
	User    *auth.User
	// Reason explains a denial
	Reason string
	// Kind is UNAUTHORIZED for identity failures, FORBIDDEN for role
	// mismatches and ACTION_FAILED when the user could not be loaded
	Kind apperr.Kind
}

// Err returns the failure for a denied decision, nil when allowed
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.New(d.Kind, d.Reason)
}

func deny(kind apperr.Kind, reason string) Decision {
	return Decision{Kind: kind, Reason: reason}
}

// UserLoader loads a user with its profile
type UserLoader interface {
	FindUserByID(ctx context.Context, id int64) (*auth.User, error)
}

// Authorizer verifies session tokens and checks the user's role
type Authorizer struct {
	sessions *auth.SessionManager
	users    UserLoader
	cache    *lru.LRU[int64, *auth.User]
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewAuthorizer creates an authorizer. A cacheSize of zero or less disables the user cache.
func NewAuthorizer(sessions *auth.SessionManager, users UserLoader, cacheSize int, cacheTTL time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Authorizer {
	a := &Authorizer{
		sessions: sessions,
		users:    users,
		logger:   logger.WithField("component", "authz"),
		metrics:  metrics,
	}
	if cacheSize > 0 {
		if cacheTTL <= 0 {
			cacheTTL = DefaultCacheTTL
		}
		a.cache = lru.NewLRU[int64, *auth.User](cacheSize, nil, cacheTTL)
	}
	return a
}

// Authorize checks token against allowed
func (a *Authorizer) Authorize(ctx context.Context, token string, allowed RoleSet) Decision {
	d := a.decide(ctx, token, allowed)
	a.metrics.RecordAuthzDecision(d.Allowed)
	return d
}

func (a *Authorizer) decide(ctx context.Context, token string, allowed RoleSet) Decision {
	if token == "" {
		return deny(apperr.KindUnauthorized, "authentication token required")
	}
	claims, err := a.sessions.Parse(token)
	if err != nil {
		return deny(apperr.KindUnauthorized, "invalid or expired token")
	}
	id, err := claims.UserID()
	if err != nil {
		return deny(apperr.KindUnauthorized, "invalid or expired token")
	}

	user, err := a.loadUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return deny(apperr.KindUnauthorized, "user not found")
	}
	if err != nil {
		a.logger.WithError(err).WithField("user_id", id).Error("failed to load user for authorization")
		return deny(apperr.KindActionFailed, "action failed")
	}

	if !user.IsActive {
		return Decision{Kind: apperr.KindUnauthorized, Reason: "account is inactive", User: user, Role: user.Role}
	}
	// the stored role wins over the claim so demotions apply immediately
	if !allowed.Allows(user.Role) {
		return Decision{
			Kind:   apperr.KindForbidden,
			Reason: fmt.Sprintf("role %s is not permitted", user.Role),
			User:   user,
			Role:   user.Role,
		}
	}
	return Decision{Allowed: true, Role: user.Role, User: user}
}

func (a *Authorizer) loadUser(ctx context.Context, id int64) (*auth.User, error) {
	if a.cache != nil {
		if user, ok := a.cache.Get(id); ok {
			a.metrics.RecordCache("user", true)
			return user, nil
		}
		a.metrics.RecordCache("user", false)
	}
	user, err := a.users.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		a.cache.Add(id, user)
	}
	return user, nil
}

// Invalidate drops a cached user, e.g. after its status changes
func (a *Authorizer) Invalidate(userID int64) {
	if a.cache != nil {
		a.cache.Remove(userID)
	}
}
