package domain

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	StatusConfirmed  BookingStatus = "confirmed"
	StatusWaitlisted BookingStatus = "waitlisted"
	StatusCancelled  BookingStatus = "cancelled"
)

// BookingState is the lifecycle state of a booking. The waitlist position
// only exists on Waitlisted and the cancellation time only on Cancelled.
type BookingState interface {
	Status() BookingStatus
	isBookingState()
}

type Confirmed struct{}

type Waitlisted struct {
	Position int
}

type Cancelled struct {
	At time.Time
}

func (Confirmed) Status() BookingStatus  { return StatusConfirmed }
func (Waitlisted) Status() BookingStatus { return StatusWaitlisted }
func (Cancelled) Status() BookingStatus  { return StatusCancelled }

func (Confirmed) isBookingState()  {}
func (Waitlisted) isBookingState() {}
func (Cancelled) isBookingState()  {}

// Active reports whether the state holds a seat or a waitlist place.
func Active(s BookingState) bool {
	switch s.(type) {
	case Confirmed, Waitlisted:
		return true
	}
	return false
}

// StateFromColumns rebuilds a state from its stored representation.
func StateFromColumns(status string, position *int, cancelledAt *time.Time) (BookingState, error) {
	switch BookingStatus(status) {
	case StatusConfirmed:
		return Confirmed{}, nil
	case StatusWaitlisted:
		if position == nil || *position < 1 {
			return nil, fmt.Errorf("waitlisted booking without position")
		}
		return Waitlisted{Position: *position}, nil
	case StatusCancelled:
		if cancelledAt == nil {
			return nil, fmt.Errorf("cancelled booking without timestamp")
		}
		return Cancelled{At: *cancelledAt}, nil
	}
	return nil, fmt.Errorf("unknown booking status %q", status)
}

// StateColumns is the inverse of StateFromColumns.
func StateColumns(s BookingState) (status string, position *int, cancelledAt *time.Time) {
	switch st := s.(type) {
	case Waitlisted:
		p := st.Position
		return string(StatusWaitlisted), &p, nil
	case Cancelled:
		at := st.At
		return string(StatusCancelled), nil, &at
	default:
		return string(StatusConfirmed), nil, nil
	}
}
