package httpgin

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/spinhub/internal/authz"
	"github.com/kirinyoku/spinhub/internal/service/admin"
	"github.com/kirinyoku/spinhub/internal/service/booking"
	"github.com/kirinyoku/spinhub/internal/service/query"
)

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

// respondErr maps service errors onto HTTP statuses. Anything unknown is
// recorded on the context for the logger and answered with a bare 500.
func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var (
		dup    *booking.DuplicateBookingError
		window *booking.CancellationWindowError
		limit  *booking.RateLimitedError
		bad    *admin.ValidationError
	)

	switch {
	case errors.As(err, &limit):
		c.Header("Retry-After", retryAfter(limit.RetryAfter))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many booking attempts", Code: "rate_limited"})
	case errors.Is(err, booking.ErrRateLimited):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many booking attempts", Code: "rate_limited"})

	case errors.Is(err, authz.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not allowed", Code: "unauthorized"})

	case errors.Is(err, booking.ErrClassNotFound), errors.Is(err, query.ErrClassNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "class not found", Code: "not_found"})
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found", Code: "not_found"})
	case errors.Is(err, booking.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: "not_found"})
	case errors.Is(err, admin.ErrBranchNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "branch not found", Code: "not_found"})

	case errors.As(err, &dup):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "already booked",
			Code:    "duplicate_booking",
			Details: map[string]any{"booking_id": dup.BookingID, "status": string(dup.Existing)},
		})
	case errors.Is(err, booking.ErrDuplicateBooking):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "already booked", Code: "duplicate_booking"})
	case errors.Is(err, booking.ErrClassFull):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "class and waitlist are full", Code: "class_full"})
	case errors.Is(err, booking.ErrClassStarted):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "class has already started", Code: "class_started"})
	case errors.Is(err, booking.ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking already cancelled", Code: "already_cancelled"})
	case errors.Is(err, admin.ErrBranchConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "branch already exists", Code: "branch_conflict"})
	case errors.Is(err, booking.ErrContention):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, ErrorResponse{Error: "concurrent update, retry the request", Code: "retry"})

	case errors.Is(err, booking.ErrNoEligiblePackage):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "no eligible package", Code: "no_eligible_package"})
	case errors.As(err, &window):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: "cancellation window closed",
			Code:  "cancellation_window",
			Details: map[string]any{
				"cutoff": window.Cutoff.UTC().Format(time.RFC3339),
				"hours":  window.Hours,
			},
		})
	case errors.As(err, &bad):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   bad.Error(),
			Code:    "invalid_input",
			Details: map[string]any{"field": bad.Field},
		})

	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// retryAfter renders a Retry-After value in whole seconds, at least 1.
func retryAfter(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	return strconv.Itoa(max(secs, 1))
}
