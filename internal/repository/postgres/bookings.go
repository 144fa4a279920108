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

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const bookingColumns = `id, user_id, class_id, package_id, status, waitlist_position, credit_used, booked_at, cancelled_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b           domain.Booking
		status      string
		position    *int
		cancelledAt *time.Time
	)

	if err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.ClassID,
		&b.PackageID,
		&status,
		&position,
		&b.CreditUsed,
		&b.BookedAt,
		&cancelledAt,
	); err != nil {
		return nil, err
	}

	st, err := domain.StateFromColumns(status, position, cancelledAt)
	if err != nil {
		return nil, fmt.Errorf("booking %d: %w", b.ID, err)
	}
	b.State = st

	return &b, nil
}

// Get retrieves a booking by its ID.
//
// Returns:
//   - *domain.Booking: the booking when found.
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) Get(ctx context.Context, id int64) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	b, err := scanBooking(r.handle().QueryRow(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return b, nil
}

// LockForUpdate reads a booking and takes a row lock on it.
func (r *BookingRepo) LockForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.LockForUpdate"

	b, err := scanBooking(r.handle().QueryRow(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings WHERE id = $1
		 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return b, nil
}

// Active returns the user's confirmed or waitlisted booking for a class.
//
// Returns:
//   - error: repository.ErrNotFound if the user holds no active booking.
func (r *BookingRepo) Active(ctx context.Context, userID, classID int64) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Active"

	b, err := scanBooking(r.handle().QueryRow(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE user_id = $1 AND class_id = $2 AND status <> 'cancelled'
		 LIMIT 1`,
		userID, classID,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return b, nil
}

// Insert stores a new booking and returns its ID.
//
// Returns:
//   - error: repository.ErrConflict if the user already holds an active
//     booking for the class.
func (r *BookingRepo) Insert(ctx context.Context, b domain.Booking) (int64, error) {
	const op = "postgres.BookingRepo.Insert"

	status, position, cancelledAt := domain.StateColumns(b.State)

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO bookings(user_id, class_id, package_id, status, waitlist_position, credit_used, booked_at, cancelled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		b.UserID, b.ClassID, b.PackageID, status, position, b.CreditUsed, b.BookedAt, cancelledAt,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}

// Cancel moves an active booking to cancelled.
//
// Returns:
//   - error: repository.ErrNotFound if there is no active booking with the ID.
func (r *BookingRepo) Cancel(ctx context.Context, id int64, at time.Time) error {
	const op = "postgres.BookingRepo.Cancel"

	tag, err := r.handle().Exec(ctx,
		`UPDATE bookings
		 SET status = 'cancelled', waitlist_position = NULL, cancelled_at = $2
		 WHERE id = $1 AND status <> 'cancelled'`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// NextWaitlisted locks and returns the lowest-position waitlisted booking
// of a class.
//
// Returns:
//   - error: repository.ErrNotFound if the waitlist is empty.
func (r *BookingRepo) NextWaitlisted(ctx context.Context, classID int64) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.NextWaitlisted"

	b, err := scanBooking(r.handle().QueryRow(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE class_id = $1 AND status = 'waitlisted'
		 ORDER BY waitlist_position ASC, booked_at ASC
		 LIMIT 1
		 FOR UPDATE`,
		classID,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return b, nil
}

// Promote confirms a waitlisted booking, clearing its position and recording
// which package backs the seat.
func (r *BookingRepo) Promote(ctx context.Context, id int64, packageID *int64, creditUsed bool) error {
	const op = "postgres.BookingRepo.Promote"

	tag, err := r.handle().Exec(ctx,
		`UPDATE bookings
		 SET status = 'confirmed', waitlist_position = NULL, package_id = $2, credit_used = $3
		 WHERE id = $1 AND status = 'waitlisted'`,
		id, packageID, creditUsed,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// ShiftWaitlist closes the gap left by a booking that held position vacated
// by moving every later waitlist entry up by one.
func (r *BookingRepo) ShiftWaitlist(ctx context.Context, classID int64, vacated int) error {
	const op = "postgres.BookingRepo.ShiftWaitlist"

	if _, err := r.handle().Exec(ctx,
		`UPDATE bookings
		 SET waitlist_position = waitlist_position - 1
		 WHERE class_id = $1 AND status = 'waitlisted' AND waitlist_position > $2`,
		classID, vacated,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
