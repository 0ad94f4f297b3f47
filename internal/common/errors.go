package common

import "errors"

var (
	// Validation errors.
	ErrInvalidIP       = errors.New("invalid IP address")
	ErrEmptyCredential = errors.New("empty credential")

	// Token inspection errors.
	ErrInvalidToken = errors.New("invalid token")
)
