// Package authz authorizes requests by role.
//
// One Authorizer serves every protected route. Each route states the roles it
// admits and receives a Decision in its context:
//
//	router.Handle("/categories", az.Require(authz.Elevated...)(createCategory))
//
//	user := authz.UserFromContext(r.Context())
//
// Users are looked up on every request through a short-lived LRU cache;
// Invalidate drops an entry when an administrator changes a user's status.
package authz
