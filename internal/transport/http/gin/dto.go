package httpgin

import (
	"time"

	"github.com/kirinyoku/spinhub/internal/domain"
	"github.com/kirinyoku/spinhub/internal/service/booking"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	// Details carries machine-readable context such as the field that
	// failed validation or the cancellation cutoff.
	Details map[string]any `json:"details,omitempty"`
}

type BookingResponse struct {
	BookingID  int64  `json:"booking_id"`
	Status     string `json:"status"`
	Position   *int   `json:"position,omitempty"`
	PackageID  int64  `json:"package_id"`
	UsedCredit bool   `json:"used_credit"`
}

func bookingResponse(res booking.CreateResult) BookingResponse {
	out := BookingResponse{
		BookingID:  res.BookingID,
		Status:     string(res.State.Status()),
		PackageID:  res.PackageID,
		UsedCredit: res.UsedCredit,
	}
	if w, ok := res.State.(domain.Waitlisted); ok {
		pos := w.Position
		out.Position = &pos
	}
	return out
}

type CancelResponse struct {
	Success           bool   `json:"success"`
	Refunded          bool   `json:"refunded"`
	PromotedBookingID *int64 `json:"promoted_booking_id,omitempty"`
}

func cancelResponse(res booking.CancelResult) CancelResponse {
	out := CancelResponse{Success: res.Success, Refunded: res.Refunded}
	if res.Promoted != nil {
		id := res.Promoted.BookingID
		out.PromotedBookingID = &id
	}
	return out
}

type AvailabilityResponse struct {
	ClassID          int64 `json:"class_id"`
	Capacity         int   `json:"capacity"`
	WaitlistCapacity int   `json:"waitlist_capacity"`
	Confirmed        int   `json:"confirmed"`
	Waitlisted       int   `json:"waitlisted"`
	SpotsLeft        int   `json:"spots_left"`
	WaitlistLeft     int   `json:"waitlist_left"`
}

func availabilityResponse(a domain.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		ClassID:          a.ClassID,
		Capacity:         a.Capacity,
		WaitlistCapacity: a.WaitlistCapacity,
		Confirmed:        a.Confirmed,
		Waitlisted:       a.Waitlisted,
		SpotsLeft:        a.SpotsLeft,
		WaitlistLeft:     a.WaitlistLeft,
	}
}

type BookingViewResponse struct {
	BookingID  int64     `json:"booking_id"`
	UserID     int64     `json:"user_id"`
	ClassID    int64     `json:"class_id"`
	BranchID   int64     `json:"branch_id"`
	ClassTitle string    `json:"class_title"`
	StartsAt   time.Time `json:"starts_at"`
	Status     string    `json:"status"`
	Position   *int      `json:"position,omitempty"`
	PackageID  *int64    `json:"package_id,omitempty"`
	BookedAt   time.Time `json:"booked_at"`
}

func bookingViews(in []domain.BookingView) []BookingViewResponse {
	out := make([]BookingViewResponse, 0, len(in))
	for _, v := range in {
		out = append(out, BookingViewResponse{
			BookingID:  v.ID,
			UserID:     v.UserID,
			ClassID:    v.ClassID,
			BranchID:   v.BranchID,
			ClassTitle: v.ClassTitle,
			StartsAt:   v.StartsAt,
			Status:     string(v.Status),
			Position:   v.Position,
			PackageID:  v.PackageID,
			BookedAt:   v.BookedAt,
		})
	}
	return out
}

type ClassResponse struct {
	ClassID          int64     `json:"class_id"`
	BranchID         int64     `json:"branch_id"`
	Title            string    `json:"title"`
	Instructor       string    `json:"instructor"`
	StartsAt         time.Time `json:"starts_at"`
	DurationMinutes  int       `json:"duration_minutes"`
	Capacity         int       `json:"capacity"`
	WaitlistCapacity int       `json:"waitlist_capacity"`
}

type RosterResponse struct {
	Class     ClassResponse         `json:"class"`
	Confirmed []BookingViewResponse `json:"confirmed"`
	Waitlist  []BookingViewResponse `json:"waitlist"`
}

func rosterResponse(r domain.Roster) RosterResponse {
	return RosterResponse{
		Class: ClassResponse{
			ClassID:          r.Class.ID,
			BranchID:         r.Class.BranchID,
			Title:            r.Class.Title,
			Instructor:       r.Class.Instructor,
			StartsAt:         r.Class.StartsAt,
			DurationMinutes:  r.Class.DurationMinutes,
			Capacity:         r.Class.Capacity,
			WaitlistCapacity: r.Class.WaitlistCapacity,
		},
		Confirmed: bookingViews(r.Confirmed),
		Waitlist:  bookingViews(r.Waitlist),
	}
}

type CreateBranchRequest struct {
	Name string `json:"name" binding:"required"`
	// CancellationHours omitted leaves the branch on the service default.
	CancellationHours *int `json:"cancellation_hours" binding:"omitempty,min=0"`
}

type CreateBranchResponse struct {
	BranchID int64 `json:"branch_id"`
}

type ScheduleClassRequest struct {
	BranchID         int64  `json:"branch_id" binding:"required"`
	Title            string `json:"title" binding:"required"`
	Instructor       string `json:"instructor"`
	StartsAt         string `json:"starts_at" binding:"required"`
	DurationMinutes  int    `json:"duration_minutes" binding:"required,gt=0"`
	Capacity         int    `json:"capacity" binding:"min=0"`
	WaitlistCapacity int    `json:"waitlist_capacity" binding:"min=0"`
}

type ScheduleClassResponse struct {
	ClassID int64 `json:"class_id"`
}

type GrantPackageRequest struct {
	UserID       int64   `json:"user_id" binding:"required"`
	BranchID     int64   `json:"branch_id" binding:"required"`
	Name         string  `json:"name"`
	TotalClasses int     `json:"total_classes" binding:"min=0"`
	Unlimited    bool    `json:"unlimited"`
	ExpiresAt    *string `json:"expires_at"`
}

type GrantPackageResponse struct {
	PackageID int64 `json:"package_id"`
}

type SetPolicyRequest struct {
	Hours *int `json:"cancellation_hours" binding:"required"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
