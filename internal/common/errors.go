// Package common defines shared constants and sentinel errors used across
// client and server layers of profilehub. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound     = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Kinds carried by APIError.
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrUpload          = errors.New("upload error")
	ErrTooManyRequests = errors.New("too many requests")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
