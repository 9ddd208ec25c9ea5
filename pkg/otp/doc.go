// Package otp issues and verifies the six character one-time codes that prove
// control of an email address.
//
// A code is drawn from [A-Z0-9] with crypto/rand, lives for five minutes, and is
// deleted on every terminal verification outcome. Issuing a code first sweeps
// expired codes and discards the previous code for the same email and action.
// Value uniqueness is enforced by the Store with an atomic conditional insert;
// on a collision the service regenerates a bounded number of times.
package otp
