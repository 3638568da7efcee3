// Package common defines sentinel errors shared by the repository, service and
// HTTP layers. Callers match them with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Registration conflicts. The messages are returned to clients verbatim.
	ErrUsernameExists = errors.New("Username already exists")
	ErrEmailExists    = errors.New("Email already exists")

	// bcrypt only hashes the first 72 bytes and refuses longer input.
	ErrPasswordTooLong = errors.New("Password must be at most 72 bytes")

	// Auth errors.
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")

	// Catalog errors.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)
