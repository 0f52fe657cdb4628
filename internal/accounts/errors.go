package accounts

import "errors"

var (
	// ErrDuplicateAccount is returned by Signup when the email is taken.
	ErrDuplicateAccount = errors.New("User already exists")
	// ErrInvalidSignup is returned when a signup request fails validation.
	ErrInvalidSignup = errors.New("invalid signup request")
	// ErrInvalidToken is returned for expired, malformed or unsigned tokens.
	ErrInvalidToken = errors.New("invalid token")
)
