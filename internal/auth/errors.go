package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is the parent of every authentication failure (HTTP 401)
	ErrUnauthorized = errors.New("unauthorized")

	ErrMissingToken    = fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	ErrInvalidToken    = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrExpiredToken    = fmt.Errorf("%w: token has expired", ErrUnauthorized)
	ErrProfileNotFound = fmt.Errorf("%w: no active profile for token subject", ErrUnauthorized)

	// ErrForbidden means the caller is known but its stored role does not allow the action (HTTP 403)
	ErrForbidden = errors.New("forbidden: admin role required")
)
