// Package accounts implements registration, sign-in and user administration.
//
// Every sign-in path ends in a session token from auth.SessionManager:
//
//   - RegisterOrLogin: code or Google credential, creates USER accounts
//   - Register: code or Google credential, creates EMPLOYEE or EMPLOYER accounts
//   - Login: password plus a LOGIN code as second factor, or Google
//
// Inactive accounts never receive a token.
package accounts
