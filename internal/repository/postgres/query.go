package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/spinhub/internal/domain"
)

type QueryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *QueryRepo) With(db DB) *QueryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *QueryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const bookingViewColumns = `b.id, b.user_id, b.class_id, c.branch_id, c.title, c.starts_at,
	b.status, b.waitlist_position, b.package_id, b.booked_at`

func scanBookingViews(rows pgx.Rows) ([]domain.BookingView, error) {
	defer rows.Close()

	var out []domain.BookingView
	for rows.Next() {
		var (
			v      domain.BookingView
			status string
		)

		if err := rows.Scan(
			&v.ID,
			&v.UserID,
			&v.ClassID,
			&v.BranchID,
			&v.ClassTitle,
			&v.StartsAt,
			&status,
			&v.Position,
			&v.PackageID,
			&v.BookedAt,
		); err != nil {
			return nil, err
		}

		v.Status = domain.BookingStatus(status)
		out = append(out, v)
	}

	return out, rows.Err()
}

// ListByUser lists a user's bookings in a branch, latest class first.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - userID: owner of the bookings.
//   - branchID: branch to scope to; zero lists every branch.
//   - limit, offset: pagination parameters.
func (r *QueryRepo) ListByUser(
	ctx context.Context,
	userID, branchID int64,
	limit, offset int,
) ([]domain.BookingView, error) {
	const op = "postgres.QueryRepo.ListByUser"

	rows, err := r.handle().Query(ctx,
		`SELECT `+bookingViewColumns+`
		 FROM bookings b
		 JOIN class_sessions c ON c.id = b.class_id
		 WHERE b.user_id = $1 AND ($2::bigint = 0 OR c.branch_id = $2)
		 ORDER BY c.starts_at DESC, b.id DESC
		 LIMIT $3 OFFSET $4`,
		userID, branchID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	out, err := scanBookingViews(rows)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

// ListActiveByClass lists the confirmed and waitlisted bookings of a class,
// confirmed first by booking time, then the waitlist by position.
func (r *QueryRepo) ListActiveByClass(ctx context.Context, classID int64) ([]domain.BookingView, error) {
	const op = "postgres.QueryRepo.ListActiveByClass"

	rows, err := r.handle().Query(ctx,
		`SELECT `+bookingViewColumns+`
		 FROM bookings b
		 JOIN class_sessions c ON c.id = b.class_id
		 WHERE b.class_id = $1 AND b.status <> 'cancelled'
		 ORDER BY (b.status = 'waitlisted'), b.waitlist_position NULLS FIRST, b.booked_at`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	out, err := scanBookingViews(rows)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}
