// Package redisotp keeps one-time codes in Redis.
//
// Each code lives under otp:code:{value}, written with SETNX so two issuers
// can never hold the same value. otp:latest:{email}:{action} points at the
// newest code for the pair. Keys outlive the code's expiry by a retention
// window so a late submission is reported as expired rather than unknown.
package redisotp
