package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kirinyoku/spinhub/internal/repository"
)

// translateDBErr maps driver errors onto the repository sentinels callers
// match with errors.Is.
func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		switch pge.Code {
		case "23505": // unique_violation
			return repository.ErrConflict
		case "23503": // foreign_key_violation
			return repository.ErrNotFound
		case "40P01", "40001": // deadlock_detected, serialization_failure
			return fmt.Errorf("%w: %s", repository.ErrContention, pge.Message)
		}
	}

	return err
}
