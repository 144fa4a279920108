package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/spinhub/internal/domain"
	"github.com/kirinyoku/spinhub/internal/repository"
)

type PackageRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PackageRepo) With(db DB) *PackageRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PackageRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const packageColumns = `id, user_id, branch_id, name, total_classes, classes_remaining, expires_at, created_at`

func scanPackage(row pgx.Row) (*domain.UserPackage, error) {
	var p domain.UserPackage
	if err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.BranchID,
		&p.Name,
		&p.TotalClasses,
		&p.ClassesRemaining,
		&p.ExpiresAt,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// EligibleForUpdate locks and returns the package a booking at the given time
// should draw from: same branch, not expired, with credits left or unlimited.
// Packages that expire first are used first.
//
// Returns:
//   - error: repository.ErrNotFound if the user has no usable package.
func (r *PackageRepo) EligibleForUpdate(
	ctx context.Context,
	userID, branchID int64,
	at time.Time,
) (*domain.UserPackage, error) {
	const op = "postgres.PackageRepo.EligibleForUpdate"

	p, err := scanPackage(r.handle().QueryRow(ctx,
		`SELECT `+packageColumns+`
		 FROM user_packages
		 WHERE user_id = $1
		 	AND branch_id = $2
		 	AND (expires_at IS NULL OR expires_at > $3)
		 	AND (classes_remaining IS NULL OR classes_remaining > 0)
		 ORDER BY expires_at ASC NULLS LAST, id ASC
		 LIMIT 1
		 FOR UPDATE`,
		userID, branchID, at,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return p, nil
}

func (r *PackageRepo) LockForUpdate(ctx context.Context, id int64) (*domain.UserPackage, error) {
	const op = "postgres.PackageRepo.LockForUpdate"

	p, err := scanPackage(r.handle().QueryRow(ctx,
		`SELECT `+packageColumns+`
		 FROM user_packages WHERE id = $1
		 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return p, nil
}

// Consume takes one credit from a finite package.
//
// Returns:
//   - error: repository.ErrNoCredit if the package is unlimited or has no
//     credits left.
func (r *PackageRepo) Consume(ctx context.Context, id int64) error {
	const op = "postgres.PackageRepo.Consume"

	tag, err := r.handle().Exec(ctx,
		`UPDATE user_packages
		 SET classes_remaining = classes_remaining - 1
		 WHERE id = $1 AND classes_remaining > 0`,
		id,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNoCredit)
	}

	return nil
}

// Refund gives one credit back to a finite package, never above its total.
func (r *PackageRepo) Refund(ctx context.Context, id int64) error {
	const op = "postgres.PackageRepo.Refund"

	if _, err := r.handle().Exec(ctx,
		`UPDATE user_packages
		 SET classes_remaining = LEAST(classes_remaining + 1, total_classes)
		 WHERE id = $1 AND classes_remaining IS NOT NULL`,
		id,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *PackageRepo) Create(ctx context.Context, p domain.UserPackage) (int64, error) {
	const op = "postgres.PackageRepo.Create"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO user_packages(user_id, branch_id, name, total_classes, classes_remaining, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		p.UserID, p.BranchID, p.Name, p.TotalClasses, p.ClassesRemaining, p.ExpiresAt,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}
