package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/contextkeys"
	"github.com/platinummonkey/jobportal/pkg/httputil"
	"github.com/platinummonkey/jobportal/pkg/observability"
)

// TokenHeader is the primary session token header
const TokenHeader = "X-Auth-Token"

// TokenFromRequest reads the session token from X-Auth-Token, falling back to
// an Authorization bearer token
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(TokenHeader)); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// Require returns middleware admitting only users whose role is in roles.
// With no roles any active user is admitted. Denials write a failure response
// and never reach next.
func (a *Authorizer) Require(roles ...auth.Role) func(http.Handler) http.Handler {
	allowed := RoleSet(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := a.Authorize(r.Context(), TokenFromRequest(r), allowed)
			if !decision.Allowed {
				httputil.WriteFailure(w, r, decision.Err())
				return
			}

			ctx := contextkeys.WithDecision(r.Context(), decision)
			ctx = observability.WithUserID(ctx, decision.User.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DecisionFromContext returns the decision stored by Require
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(contextkeys.DecisionKey).(Decision)
	return d, ok
}

// UserFromContext returns the authorized user, or nil
func UserFromContext(ctx context.Context) *auth.User {
	if d, ok := DecisionFromContext(ctx); ok && d.Allowed {
		return d.User
	}
	return nil
}
