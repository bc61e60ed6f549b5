package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an optimistic concurrency check fails
	ErrConflict = errors.New("conflict: entity was modified by another transaction")

	// ErrAlreadyExists is returned when an insert collides with an existing key
	ErrAlreadyExists = errors.New("already exists")

	// ErrInsufficientFunds is returned when a debit exceeds the account balance
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnauthorized is returned when a debit is attempted without the account authority
	ErrUnauthorized = errors.New("account authority mismatch")

	// ErrForeignKeyViolation is returned when a foreign key constraint fails
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrOverflow is returned when a credit would exceed the storable balance
	ErrOverflow = errors.New("balance overflow")
)
