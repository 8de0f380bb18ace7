package service

import "errors"

var (
	// ErrSecretTooShort rejects login secrets below the 5-character policy
	// floor before any backend lookup happens.
	ErrSecretTooShort = errors.New("password must be at least 5 characters")

	// ErrInvalidCredentials covers unknown identifiers and wrong passwords
	// alike, so callers cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountDeactivated is the one deliberate asymmetry: a deactivated
	// administrator account is reported as such instead of blending into
	// ErrInvalidCredentials.
	ErrAccountDeactivated = errors.New("account deactivated")

	// ErrTokenInvalid marks a bad signature, expired token, wrong token type
	// or claims that do not match the stored session.
	ErrTokenInvalid = errors.New("token invalid or expired")

	// ErrTokenRevoked marks a refresh token with no live session row: already
	// rotated, revoked, expired or never issued. Treated as a potential
	// replay and never retried.
	ErrTokenRevoked = errors.New("refresh token revoked or unknown")

	// ErrIdentityInactive is returned when a session's identity no longer
	// resolves to an active account.
	ErrIdentityInactive = errors.New("identity not found or inactive")

	ErrWeakPassword      = errors.New("password must be at least 8 characters and contain a letter and a digit")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrResetTokenInvalid = errors.New("reset token invalid or already used")
	ErrResetTokenExpired = errors.New("reset token expired")
)
