package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrNoCredit = errors.New("no credit left")

	// ErrContention means the database aborted the transaction in favour of
	// a concurrent one. Running it again is safe.
	ErrContention = errors.New("transaction aborted by a concurrent update")
)
