package domain

import (
	"time"
)

type Role string

const (
	RoleClient    Role = "client"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleAdmin, RoleSuperuser:
		return true
	}
	return false
}

// Identity is the authenticated caller as supplied by the session layer.
type Identity struct {
	UserID   int64
	Role     Role
	BranchID int64
}

func (i Identity) IsZero() bool {
	return i.UserID == 0
}

type Branch struct {
	ID                      int64
	Name                    string
	CancellationHoursBefore int
}

type ClassSession struct {
	ID               int64
	BranchID         int64
	Title            string
	Instructor       string
	StartsAt         time.Time
	DurationMinutes  int
	Capacity         int
	WaitlistCapacity int
}

type UserPackage struct {
	ID           int64
	UserID       int64
	BranchID     int64
	Name         string
	TotalClasses int
	// ClassesRemaining is nil for unlimited packages.
	ClassesRemaining *int
	// ExpiresAt is nil for packages that never expire.
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (p UserPackage) Unlimited() bool {
	return p.ClassesRemaining == nil
}

// Usable reports whether the package can back a confirmed seat at the given time.
func (p UserPackage) Usable(at time.Time) bool {
	if p.ExpiresAt != nil && !at.Before(*p.ExpiresAt) {
		return false
	}
	return p.ClassesRemaining == nil || *p.ClassesRemaining > 0
}

type Booking struct {
	ID        int64
	UserID    int64
	ClassID   int64
	PackageID *int64
	State     BookingState
	// CreditUsed is set when a finite credit was taken for this booking.
	CreditUsed bool
	BookedAt   time.Time
}

type ClassCounts struct {
	Confirmed  int
	Waitlisted int
}

type Availability struct {
	ClassID          int64
	BranchID         int64
	Capacity         int
	WaitlistCapacity int
	Confirmed        int
	Waitlisted       int
	SpotsLeft        int
	WaitlistLeft     int
}

func NewAvailability(c ClassSession, counts ClassCounts) Availability {
	return Availability{
		ClassID:          c.ID,
		BranchID:         c.BranchID,
		Capacity:         c.Capacity,
		WaitlistCapacity: c.WaitlistCapacity,
		Confirmed:        counts.Confirmed,
		Waitlisted:       counts.Waitlisted,
		SpotsLeft:        max(c.Capacity-counts.Confirmed, 0),
		WaitlistLeft:     max(c.WaitlistCapacity-counts.Waitlisted, 0),
	}
}

// BookingView is a booking joined with the class it belongs to.
type BookingView struct {
	ID         int64
	UserID     int64
	ClassID    int64
	BranchID   int64
	ClassTitle string
	StartsAt   time.Time
	Status     BookingStatus
	Position   *int
	PackageID  *int64
	BookedAt   time.Time
}

type Roster struct {
	Class     ClassSession
	Confirmed []BookingView
	Waitlist  []BookingView
}

type AuditEntry struct {
	ActorID     int64
	Action      string
	EntityType  string
	EntityID    int64
	Description string
	Metadata    map[string]any
}
