package goSession

import "errors"

var (
	// ErrMissingToken is returned when no token was presented at all.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken covers unknown, malformed and mis-signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for expired tokens. It never revokes a family.
	ErrTokenExpired = errors.New("token expired")
	// ErrReuseDetected is returned after a non-active refresh token was
	// presented and its family has been revoked.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrResetInvalid is returned for unknown, used, expired or mismatched reset
	// tokens.
	ErrResetInvalid = errors.New("password reset token invalid")
	// ErrInvalidCredentials is returned for a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned when an inactive account logs in.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrUserNotFound is returned when a directory lookup finds nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned by directories on duplicate username or email.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidProfile is returned when a profile update would blank a
	// required field.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrPasswordPolicy is returned when a new password is rejected.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrStoreUnavailable wraps token store failures.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrDirectoryUnavailable wraps user directory failures.
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
	// ErrDeliveryFailed is returned when a reset token could not be delivered.
	ErrDeliveryFailed = errors.New("reset token delivery failed")
	// ErrSessionCreationFailed is returned when a token pair cannot be minted.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrConfigInvalid wraps every configuration validation failure.
	ErrConfigInvalid = errors.New("invalid configuration")
	// ErrEngineNotReady is returned when an operation needs a dependency the
	// engine was built without.
	ErrEngineNotReady = errors.New("engine not initialized")
)
