package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/spinhub/internal/authz"
	"github.com/kirinyoku/spinhub/internal/domain"
	"github.com/kirinyoku/spinhub/internal/repository"
)

var (
	ErrUnauthorized       = authz.ErrUnauthorized
	ErrNotFound           = errors.New("not found")
	ErrClassNotFound      = fmt.Errorf("class %w", ErrNotFound)
	ErrBookingNotFound    = fmt.Errorf("booking %w", ErrNotFound)
	ErrDuplicateBooking   = errors.New("already booked")
	ErrClassFull          = errors.New("class is full")
	ErrClassStarted       = errors.New("class has already started")
	ErrNoEligiblePackage  = errors.New("no eligible package")
	ErrAlreadyCancelled   = errors.New("booking already cancelled")
	ErrCancellationWindow = errors.New("cancellation window closed")
	ErrRateLimited        = errors.New("rate limited")
	ErrContention         = repository.ErrContention
)

// DuplicateBookingError names the status of the booking the caller already
// holds for the class.
type DuplicateBookingError struct {
	BookingID int64
	Existing  domain.BookingStatus
}

func (e *DuplicateBookingError) Error() string {
	return fmt.Sprintf("already booked: booking %d is %s", e.BookingID, e.Existing)
}

func (e *DuplicateBookingError) Unwrap() error { return ErrDuplicateBooking }

type CancellationWindowError struct {
	Cutoff time.Time
	Hours  int
}

func (e *CancellationWindowError) Error() string {
	return fmt.Sprintf(
		"cancellation window closed: cancellations end %dh before class start (%s)",
		e.Hours, e.Cutoff.Format(time.RFC3339),
	)
}

func (e *CancellationWindowError) Unwrap() error { return ErrCancellationWindow }

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
