// Package client is the HTTP client of the profilehub user API used by the
// CLI.
//
// # Overview
//
// HTTPClient talks to /api/v1/users: Register (multipart upload of the
// avatar and optional cover image from local files), Login, Logout, Me and
// Refresh. Cookies set by the server are kept in a cookie jar. The access
// token from the last login or refresh is also sent as an
// Authorization: Bearer header, so sessions work over plain HTTP where
// Secure cookies are not returned.
//
// # Error Handling
//
//   - ErrUnavailable: the request never got a response (wraps the transport error).
//   - ErrUnauthorized: the server answered 401.
//   - *APIError: any other failure envelope, with status and message.
package client
