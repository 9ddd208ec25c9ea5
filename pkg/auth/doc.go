// Package auth holds the account model and the credential primitives of the job portal.
//
// # Accounts
//
// A User has exactly one Role from a fixed set and a Provider recording how the
// identity was established (OTP, GOOGLE, or ADMIN). Employees and employers carry
// an optional profile and postal address.
//
// # Sessions
//
// Session tokens are HS256 JWTs with a fixed 30 day lifetime:
//
//	sessions, err := auth.NewSessionManager(secret, "jobportal")
//	token, expiresAt, err := sessions.Issue(user)
//	claims, err := sessions.Parse(token)
//	userID, err := claims.UserID()
//
// Parse rejects any algorithm other than HS256, a foreign issuer, and expired tokens.
//
// # Passwords
//
// Passwords are stored as bcrypt hashes. ValidatePasswordPolicy enforces length and
// confirmation, and Credential keeps the last five hashes so that a change or reset
// cannot reuse a recent password:
//
//	if cred.Reuses(newPassword) {
//		return apperr.BadRequest("password was used recently")
//	}
//	hash, _ := auth.HashPassword(newPassword)
//	cred.Rotate(hash)
//
// # Audit
//
// AuditLogger writes login, registration and password events to the structured log.
package auth
