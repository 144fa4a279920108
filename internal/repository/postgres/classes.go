package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/spinhub/internal/domain"
)

type ClassRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ClassRepo) With(db DB) *ClassRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ClassRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const classColumns = `id, branch_id, title, instructor, starts_at, duration_minutes, capacity, waitlist_capacity`

func scanClass(row pgx.Row) (*domain.ClassSession, error) {
	var c domain.ClassSession
	if err := row.Scan(
		&c.ID,
		&c.BranchID,
		&c.Title,
		&c.Instructor,
		&c.StartsAt,
		&c.DurationMinutes,
		&c.Capacity,
		&c.WaitlistCapacity,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// Get retrieves a class session by its ID.
//
// Returns:
//   - *domain.ClassSession: the class when found.
//   - error: repository.ErrNotFound if the class does not exist.
func (r *ClassRepo) Get(ctx context.Context, id int64) (*domain.ClassSession, error) {
	const op = "postgres.ClassRepo.Get"

	c, err := scanClass(r.handle().QueryRow(ctx,
		`SELECT `+classColumns+`
		 FROM class_sessions WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return c, nil
}

// LockForUpdate reads a class session and takes a row lock on it. Every
// writer of the class's booking set goes through this lock first, so it
// must only be called inside a transaction.
//
// Returns:
//   - *domain.ClassSession: the locked class.
//   - error: repository.ErrNotFound if the class does not exist.
func (r *ClassRepo) LockForUpdate(ctx context.Context, id int64) (*domain.ClassSession, error) {
	const op = "postgres.ClassRepo.LockForUpdate"

	c, err := scanClass(r.handle().QueryRow(ctx,
		`SELECT `+classColumns+`
		 FROM class_sessions WHERE id = $1
		 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return c, nil
}

// Counts derives the confirmed and waitlisted counts of a class from the
// current booking rows.
func (r *ClassRepo) Counts(ctx context.Context, classID int64) (domain.ClassCounts, error) {
	const op = "postgres.ClassRepo.Counts"

	var cc domain.ClassCounts
	err := r.handle().QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'waitlisted')
		 FROM bookings
		 WHERE class_id = $1`,
		classID,
	).Scan(&cc.Confirmed, &cc.Waitlisted)
	if err != nil {
		return domain.ClassCounts{}, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return cc, nil
}

func (r *ClassRepo) Create(ctx context.Context, c domain.ClassSession) (int64, error) {
	const op = "postgres.ClassRepo.Create"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO class_sessions(branch_id, title, instructor, starts_at, duration_minutes, capacity, waitlist_capacity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		c.BranchID, c.Title, c.Instructor, c.StartsAt, c.DurationMinutes, c.Capacity, c.WaitlistCapacity,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}
