// Package middleware provides HTTP rate limiting.
//
// RateLimiter keeps a token bucket per key in process memory.
// DistributedRateLimiter keeps a fixed-window counter per key in Redis so
// limits hold across instances. Both satisfy Limiter and plug into RateLimit:
//
//	otpLimit := middleware.RateLimit(limiter, "otp", middleware.ClientIPKey, audit, metrics)
//	router.Handle("/api/v1/auth/otp", otpLimit(handler))
//
// Rejected requests get a RATE_LIMITED failure with Retry-After set. Limiter
// errors let the request through.
package middleware
