// Package common contains shared constants and sentinel errors used across
// profilehub components.
package common

// Cookie names carrying the session tokens between the HTTP API and browsers
// or the CLI cookie jar.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// AuthorizationHeaderName and BearerPrefix describe the header fallback for
// clients that do not keep cookies.
const (
	AuthorizationHeaderName = "Authorization"
	BearerPrefix            = "Bearer "
)
