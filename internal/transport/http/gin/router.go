package httpgin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/spinhub/internal/auth"
	"github.com/kirinyoku/spinhub/internal/domain"
	redisrepo "github.com/kirinyoku/spinhub/internal/repository/redis"
	"github.com/kirinyoku/spinhub/internal/service"
	"github.com/kirinyoku/spinhub/internal/service/admin"
	"github.com/kirinyoku/spinhub/internal/service/booking"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type BookingService interface {
	CreateBooking(ctx context.Context, who domain.Identity, classID int64) (booking.CreateResult, error)
	CancelBooking(ctx context.Context, who domain.Identity, bookingID int64) (booking.CancelResult, error)
	AdminRemoveBooking(ctx context.Context, who domain.Identity, bookingID int64) (booking.CancelResult, error)
}

type QueryService interface {
	Availability(ctx context.Context, who domain.Identity, classID int64) (domain.Availability, error)
	MyBookings(ctx context.Context, who domain.Identity, limit, offset int) ([]domain.BookingView, error)
	ClassRoster(ctx context.Context, who domain.Identity, classID int64) (domain.Roster, error)
}

type AdminService interface {
	CreateBranch(ctx context.Context, who domain.Identity, name string, cancellationHours int) (int64, error)
	ScheduleClass(ctx context.Context, who domain.Identity, in admin.ClassInput) (int64, error)
	GrantPackage(ctx context.Context, who domain.Identity, in admin.PackageInput) (int64, error)
	SetCancellationPolicy(ctx context.Context, who domain.Identity, branchID int64, hours int) error
}

// API is everything the handlers need. Idem and Hub are optional: without
// Idem the Idempotency-Key header is ignored, without Hub the event stream
// only sends keep-alives after the first snapshot.
type API struct {
	Booking BookingService
	Query   QueryService
	Admin   AdminService
	Tokens  *auth.Tokens
	Idem    *redisrepo.IdempotencyStore
	Hub     *ClassHub
	// StreamKeepAlive defaults to 25s.
	StreamKeepAlive time.Duration
	// Ready backs /readyz; nil reports ready.
	Ready func(ctx context.Context) error
}

// FromServices adapts the wired service set to the handler API.
func FromServices(svcs *service.Services, tokens *auth.Tokens, idem *redisrepo.IdempotencyStore, hub *ClassHub) API {
	return API{
		Booking: svcs.Booking,
		Query:   svcs.Query,
		Admin:   svcs.Admin,
		Tokens:  tokens,
		Idem:    idem,
		Hub:     hub,
	}
}

func NewRouter(api API, logger *slog.Logger, middlewares ...gin.HandlerFunc) *gin.Engine {
	if api.Hub == nil {
		api.Hub = NewClassHub()
	}
	if api.StreamKeepAlive <= 0 {
		api.StreamKeepAlive = 25 * time.Second
	}

	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), MetricsMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if api.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := api.Ready(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// EventSource cannot send headers, so the stream also takes ?access_token=.
	r.GET("/classes/:id/events", Authenticate(api.Tokens, true), handleClassEvents(api))

	member := r.Group("/", Authenticate(api.Tokens, false))
	{
		member.POST("/classes/:id/bookings", handleCreateBooking(api))
		member.GET("/classes/:id/availability", handleGetAvailability(api))
		member.DELETE("/bookings/:id", handleCancelBooking(api))
		member.GET("/me/bookings", handleMyBookings(api))
	}

	// Role checks happen in the services so branch scoping stays in one place.
	staff := r.Group("/admin", Authenticate(api.Tokens, false))
	{
		staff.DELETE("/bookings/:id", handleAdminRemoveBooking(api))
		staff.GET("/classes/:id/roster", handleClassRoster(api))
		staff.POST("/classes", handleScheduleClass(api))
		staff.POST("/packages", handleGrantPackage(api))
		staff.POST("/branches", handleCreateBranch(api))
		staff.PUT("/branches/:id/policy", handleSetPolicy(api))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Book a class
// @Description Confirms a seat, or joins the waitlist when the class is full.
// @Tags     bookings
// @Security BearerAuth
// @Param    id               path    int     true   "Class ID"
// @Param    Idempotency-Key  header  string  false  "client retry key"
// @Success  201  {object}  BookingResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "already booked / class full / class started / key in progress"
// @Failure  422  {object}  ErrorResponse "no eligible package"
// @Failure  429  {object}  ErrorResponse "rate limited"
// @Router   /classes/{id}/bookings [post]
func handleCreateBooking(api API) gin.HandlerFunc {
	return func(c *gin.Context) {
		classID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		who := identity(c)
		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if api.Idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemBooking(who.UserID, classID, idemKey)

			if replayed := replayIdempotent(c, api.Idem, idemStorageKey, idemKey); replayed {
				return
			}

			locked, err := claimIdempotencyKey(ctx, api.Idem, idemStorageKey)
			switch {
			case err != nil:
				// Like the rate limiter, an unreachable store does not block
				// bookings. The request runs without retry protection.
				_ = c.Error(fmt.Errorf("idempotency store unavailable: %w", err))
				idemStorageKey = ""
			case !locked:
				if replayed := replayIdempotent(c, api.Idem, idemStorageKey, idemKey); replayed {
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress", Code: "idempotency_in_progress"})
				return
			}
		}

		res, err := api.Booking.CreateBooking(ctx, who, classID)
		if err != nil {
			if idemStorageKey != "" {
				_ = api.Idem.Release(context.WithoutCancel(ctx), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := bookingResponse(res)

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = api.Idem.SaveResult(context.WithoutCancel(ctx), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// claimIdempotencyKey claims key for one request. A key that is taken but
// neither pending nor holding a result was released between the two calls,
// so it is claimed once more.
func claimIdempotencyKey(ctx context.Context, idem *redisrepo.IdempotencyStore, key string) (bool, error) {
	locked, err := idem.AcquireLock(ctx, key, 60*time.Second)
	if err != nil || locked {
		return locked, err
	}

	pending, err := idem.Pending(ctx, key)
	if err != nil || pending {
		return false, err
	}
	if _, stored, err := idem.GetResult(ctx, key); err != nil || stored {
		return false, err
	}
	return idem.AcquireLock(ctx, key, 60*time.Second)
}

func replayIdempotent(c *gin.Context, idem *redisrepo.IdempotencyStore, storageKey, key string) bool {
	payload, ok, _ := idem.GetResult(c.Request.Context(), storageKey)
	if !ok {
		return false
	}
	c.Header("Idempotency-Key", key)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
	return true
}

// @Summary  Cancel my booking
// @Description Refunds the credit of a confirmed booking and promotes the next waitlisted member.
// @Tags     bookings
// @Security BearerAuth
// @Param    id  path  int  true  "Booking ID"
// @Success  200  {object}  CancelResponse
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "already cancelled / retry"
// @Failure  422  {object}  ErrorResponse "cancellation window closed"
// @Router   /bookings/{id} [delete]
func handleCancelBooking(api API) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		res, err := api.Booking.CancelBooking(c.Request.Context(), identity(c), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, cancelResponse(res))
	}
}

// @Summary  Remove a booking (staff)
// @Description Same as cancelling but ignores the cancellation window and writes an audit record.
// @Tags     admin
// @Security BearerAuth
// @Param    id  path  int  true  "Booking ID"
// @Success  200  {object}  CancelResponse
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "already cancelled / retry"
// @Router   /admin/bookings/{id} [delete]
func handleAdminRemoveBooking(api API) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		res, err := api.Booking.AdminRemoveBooking(c.Request.Context(), identity(c), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, cancelResponse(res))
	}
}

// @Summary  Class availability
// @Tags     classes
// @Security BearerAuth
// @Param    id  path  int  true  "Class ID"
// @Success  200  {object}  AvailabilityResponse
// @Success  304  "not modified"
// @Failure  404  {object}  ErrorResponse
// @Router   /classes/{id}/availability [get]
func handleGetAvailability(api API) gin.HandlerFunc {
	return func(c *gin.Context) {
		classID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		a, err := api.Query.Availability(c.Request.Context(), identity(c), classID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// counts move with every booking, so revalidate each time
		writeJSONWithCache(c, http.StatusOK, availabilityResponse(a), "private, no-cache")
	}
}

// @Summary  Stream class availability
// @Description Server-sent events: an "availability" event on connect and after every change, "ping" keep-alives in between.
// @Tags     classes
// @Security BearerAuth
// @Produce  text/event-stream
// @Param    id            path   int     true   "Class ID"
// @Param    access_token  query  string  false  "bearer token for clients that cannot set headers"
// @Success  200  {object}  AvailabilityResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /classes/{id}/events [get]
func handleClassEvents(api API) gin.HandlerFunc {
	return func(c *gin.Context) {
		classID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		who := identity(c)
		ctx := c.Request.Context()

		first, err := api.Query.Availability(ctx, who, classID)
		if err != nil {
			respondErr(c, err)
			return
		}

		updates, unsubscribe := api.Hub.Subscribe(classID)
		defer unsubscribe()

		keepAlive := time.NewTicker(api.StreamKeepAlive)
		defer keepAlive.Stop()

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		c.SSEvent("availability", availabilityResponse(first))
		c.Writer.Flush()

		c.Stream(func(_ io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case <-api.Hub.Done():
				return false
			case <-updates:
				a, err := api.Query.Availability(ctx, who, classID)
				if err != nil {
					_ = c.Error(err)
					return false
				}
				c.SSEvent("availability", availabilityResponse(a))
				return true
			case <-keepAlive.C:
				c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
				return true
			}
		})
	}
}

// @Summary  My bookings
// @Tags     bookings
// @Security BearerAuth
// @Param    limit   query  int  false  "page size"
// @Param    offset  query  int  false  "offset"
// @Success  200  {array}  BookingViewResponse
// @Router   /me/bookings [get]
func handleMyBookings(api API) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseIntDefault(c.Query("limit"), 0)
		offset := parseIntDefault(c.Query("offset"), 0)

		views, err := api.Query.MyBookings(c.Request.Context(), identity(c), limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bookingViews(views))
	}
}

// @Summary  Class roster (staff)
// @Tags     admin
// @Security BearerAuth
// @Param    id  path  int  true  "Class ID"
// @Success  200  {object}  RosterResponse
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /admin/classes/{id}/roster [get]
func handleClassRoster(api API) gin.HandlerFunc {
	return func(c *gin.Context) {
		classID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		roster, err := api.Query.ClassRoster(c.Request.Context(), identity(c), classID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rosterResponse(roster))
	}
}

// @Summary  Schedule a class (staff)
// @Tags     admin
// @Security BearerAuth
// @Param    req  body  ScheduleClassRequest  true  "payload"
// @Success  201  {object}  ScheduleClassResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse "branch not found"
// @Router   /admin/classes [post]
func handleScheduleClass(api API) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ScheduleClassRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}

		id, err := api.Admin.ScheduleClass(c.Request.Context(), identity(c), admin.ClassInput{
			BranchID:         req.BranchID,
			Title:            req.Title,
			Instructor:       req.Instructor,
			StartsAt:         starts,
			DurationMinutes:  req.DurationMinutes,
			Capacity:         req.Capacity,
			WaitlistCapacity: req.WaitlistCapacity,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, ScheduleClassResponse{ClassID: id})
	}
}

// @Summary  Grant a package (staff)
// @Tags     admin
// @Security BearerAuth
// @Param    req  body  GrantPackageRequest  true  "payload"
// @Success  201  {object}  GrantPackageResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse "branch not found"
// @Router   /admin/packages [post]
func handleGrantPackage(api API) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantPackageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		in := admin.PackageInput{
			UserID:       req.UserID,
			BranchID:     req.BranchID,
			Name:         req.Name,
			TotalClasses: req.TotalClasses,
			Unlimited:    req.Unlimited,
		}
		if req.ExpiresAt != nil {
			exp, err := parseRFC3339(*req.ExpiresAt)
			if err != nil {
				badRequest(c, "invalid expires_at (RFC3339)")
				return
			}
			in.ExpiresAt = &exp
		}

		id, err := api.Admin.GrantPackage(c.Request.Context(), identity(c), in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, GrantPackageResponse{PackageID: id})
	}
}

// @Summary  Create a branch (superuser)
// @Tags     admin
// @Security BearerAuth
// @Param    req  body  CreateBranchRequest  true  "payload"
// @Success  201  {object}  CreateBranchResponse
// @Failure  403  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "branch exists"
// @Router   /admin/branches [post]
func handleCreateBranch(api API) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBranchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		hours := -1
		if req.CancellationHours != nil {
			hours = *req.CancellationHours
		}

		id, err := api.Admin.CreateBranch(c.Request.Context(), identity(c), req.Name, hours)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateBranchResponse{BranchID: id})
	}
}

// @Summary  Set branch cancellation cutoff (staff)
// @Tags     admin
// @Security BearerAuth
// @Param    id   path  int               true  "Branch ID"
// @Param    req  body  SetPolicyRequest  true  "payload"
// @Success  204
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /admin/branches/{id}/policy [put]
func handleSetPolicy(api API) gin.HandlerFunc {
	return func(c *gin.Context) {
		branchID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req SetPolicyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := api.Admin.SetCancellationPolicy(c.Request.Context(), identity(c), branchID, *req.Hours); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
