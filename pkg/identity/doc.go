// Package identity verifies external sign-in tokens. GoogleVerifier validates
// Google ID tokens with OpenID Connect and can redeem authorization codes
// through the OAuth2 token endpoint.
package identity
