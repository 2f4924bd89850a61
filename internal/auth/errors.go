package auth

import "errors"

// Business-rule failures surfaced by the auth services. Handlers map these to
// HTTP statuses; anything else bubbling out of the services is a store or
// codec failure and becomes a generic internal error.
var (
	ErrRateLimited     = errors.New("otp requested too recently")
	ErrOTPNotFound     = errors.New("no otp found for phone")
	ErrOTPExpired      = errors.New("otp expired")
	ErrTooManyAttempts = errors.New("too many failed otp attempts")
	ErrInvalidCode     = errors.New("invalid otp code")
	ErrInvalidToken    = errors.New("invalid or expired token")
)
