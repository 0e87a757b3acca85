package store

import "errors"

var (
	ErrNotFound = errors.New("record not found")

	// ErrLastAuthMethod is returned when a realm write would leave the
	// realm with zero enabled authentication methods.
	ErrLastAuthMethod = errors.New("at least one authentication method must remain enabled")

	// ErrConfirmationUsed is returned when consuming an already-consumed
	// or expired confirmation.
	ErrConfirmationUsed = errors.New("confirmation already used or expired")

	ErrDuplicateEmail = errors.New("email already registered in this realm")
)
