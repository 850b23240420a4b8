package service

import "errors"

// Error taxonomy surfaced by the session facade. Only
// ErrLockAcquisitionTimeout and storage.ErrStoreUnavailable are retryable;
// everything else is terminal for the request and must reach the end user as
// "please log in again" rather than being retried, since a retry could mask
// an active breach.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")

	ErrTokenInvalid         = errors.New("token invalid")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenReused          = errors.New("token reused")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrInvalidSigningMethod = errors.New("invalid signing method")

	ErrLockAcquisitionTimeout = errors.New("lock acquisition timeout")
)
