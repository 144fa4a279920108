package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/spinhub/internal/domain"
	"github.com/kirinyoku/spinhub/internal/repository"
)

type BranchRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BranchRepo) With(db DB) *BranchRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BranchRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Get retrieves a branch with its booking policy. A NULL
// cancellation_hours_before is returned as -1 so callers can fall back to
// their default.
func (r *BranchRepo) Get(ctx context.Context, id int64) (*domain.Branch, error) {
	const op = "postgres.BranchRepo.Get"

	var b domain.Branch
	err := r.handle().QueryRow(ctx,
		`SELECT id, name, COALESCE(cancellation_hours_before, -1)
		 FROM branches WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Name, &b.CancellationHoursBefore)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &b, nil
}

func (r *BranchRepo) SetCancellationHours(ctx context.Context, id int64, hours int) error {
	const op = "postgres.BranchRepo.SetCancellationHours"

	tag, err := r.handle().Exec(ctx,
		`UPDATE branches SET cancellation_hours_before = $2 WHERE id = $1`,
		id, hours,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// Create inserts a branch. A negative cancellationHours leaves the policy
// unset so the service default applies.
//
// Returns:
//   - int64: the new branch ID.
//   - error: repository.ErrConflict if the name is taken.
func (r *BranchRepo) Create(ctx context.Context, name string, cancellationHours int) (int64, error) {
	const op = "postgres.BranchRepo.Create"

	var hours *int
	if cancellationHours >= 0 {
		hours = &cancellationHours
	}

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO branches(name, cancellation_hours_before)
		 VALUES ($1, $2)
		 RETURNING id`,
		name, hours,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}
