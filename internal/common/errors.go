// Package common defines shared constants and sentinel errors used across
// the file store. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository / lookup errors.
	ErrorNotFound = errors.New("not found")

	// Validation errors (tombstoning a permanent file, declared size mismatch,
	// malformed range).
	ErrorInvalidArgument = errors.New("invalid argument")

	// Backing store errors. Transport failures from object storage, disk or
	// the embedded KV store are wrapped with this value.
	ErrorBackingStore = errors.New("backing store failure")

	// Reading a partial stream before its prefix was skipped, or trying to
	// rewind it.
	ErrorStreamProtocolViolation = errors.New("stream protocol violation")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
