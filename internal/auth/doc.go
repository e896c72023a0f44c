// Package auth provides request authentication and rate limiting for
// the HTTP API.
//
// Two credential forms are accepted: static API keys (via Authorization
// Bearer or the x-api-key header) and HS256-signed JWTs whose "sub"
// claim names the client. Authentication is optional; when disabled,
// requests pass through as anonymous but are still rate limited by
// remote address. Handlers can recover the caller's identity with
// FromContext.
package auth
