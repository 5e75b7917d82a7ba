package auth

import "errors"

var (
	// ErrBadRequest means a required login field was empty.
	ErrBadRequest = errors.New("username and password are required")
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password; callers must not be able to tell them apart.
	ErrInvalidCredentials = errors.New("invalid username or password")
)
