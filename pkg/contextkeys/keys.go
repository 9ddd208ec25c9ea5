// Package contextkeys defines the typed keys request-scoped values are stored
// under, so producers and consumers in different packages agree on one key.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// DecisionKey holds the authz.Decision of an authorized request
	DecisionKey Key = "authz_decision"
	// RequestIDKey holds the request id assigned by httputil.RequestIDMiddleware
	RequestIDKey Key = "request_id"
	// UserIDKey holds the authenticated user's int64 id
	UserIDKey Key = "user_id"
	// LoggerKey holds the request's *observability.Logger
	LoggerKey Key = "logger"
)

// WithDecision stores an authorization decision on ctx
func WithDecision(ctx context.Context, decision interface{}) context.Context {
	return context.WithValue(ctx, DecisionKey, decision)
}
