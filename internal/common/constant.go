// Package common contains shared constants and sentinel errors used across
// the file store components.
package common

// AuthorizationHeaderName carries the bearer token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token inside the Authorization header.
const BearerPrefix = "Bearer "

// DefaultMaxChunkBytes caps a single streamed response (10 MiB).
const DefaultMaxChunkBytes int64 = 10 * 1024 * 1024
