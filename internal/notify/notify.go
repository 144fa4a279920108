// Package notify publishes booking lifecycle events to a message broker once
// the transaction that produced them has committed.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/spinhub/internal/domain"
)

type EventType string

const (
	BookingConfirmed  EventType = "booking.confirmed"
	BookingWaitlisted EventType = "booking.waitlisted"
	BookingCancelled  EventType = "booking.cancelled"
	BookingPromoted   EventType = "booking.promoted"
	BookingRemoved    EventType = "booking.removed"
)

type Event struct {
	ID         string               `json:"id"`
	Type       EventType            `json:"type"`
	BookingID  int64                `json:"booking_id"`
	UserID     int64                `json:"user_id"`
	ClassID    int64                `json:"class_id"`
	BranchID   int64                `json:"branch_id"`
	Status     domain.BookingStatus `json:"status"`
	Position   *int                 `json:"position,omitempty"`
	Reason     string               `json:"reason,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// NewEvent stamps a fresh message id onto an event describing b.
func NewEvent(t EventType, b domain.Booking, branchID int64, at time.Time) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       t,
		BookingID:  b.ID,
		UserID:     b.UserID,
		ClassID:    b.ClassID,
		BranchID:   branchID,
		OccurredAt: at.UTC(),
	}
	if b.State != nil {
		ev.Status = b.State.Status()
		if w, ok := b.State.(domain.Waitlisted); ok {
			pos := w.Position
			ev.Position = &pos
		}
	}
	return ev
}

func (e Event) Marshal() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("notify.Event.Marshal:%w", err)
	}
	return body, nil
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
