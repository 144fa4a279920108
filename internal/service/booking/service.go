package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/kirinyoku/spinhub/internal/authz"
	"github.com/kirinyoku/spinhub/internal/domain"
	"github.com/kirinyoku/spinhub/internal/metrics"
	"github.com/kirinyoku/spinhub/internal/notify"
	"github.com/kirinyoku/spinhub/internal/repository"
	redisrepo "github.com/kirinyoku/spinhub/internal/repository/redis"
	"github.com/kirinyoku/spinhub/internal/uow"
)

type ClassCache interface {
	InvalidateClass(ctx context.Context, classID int64) error
}

type ClassNotifier interface {
	PublishClassChanged(ctx context.Context, classID int64) error
}

type Limiter interface {
	Allow(ctx context.Context, subject string) (redisrepo.Decision, error)
}

type Config struct {
	// DefaultCancellationHours applies to branches without their own
	// cancellation policy.
	DefaultCancellationHours int
	Now                      func() time.Time
}

type Service struct {
	tx      TxRunner
	cache   ClassCache
	pubsub  ClassNotifier
	events  notify.Publisher
	limiter Limiter
	log     *slog.Logger
	cfg     Config
}

// New builds the booking service. cache, pubsub and limiter may be nil.
func New(
	tx TxRunner,
	cache ClassCache,
	pubsub ClassNotifier,
	events notify.Publisher,
	limiter Limiter,
	log *slog.Logger,
	cfg Config,
) *Service {
	if cfg.DefaultCancellationHours < 0 {
		cfg.DefaultCancellationHours = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if events == nil {
		events = notify.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		tx:      tx,
		cache:   cache,
		pubsub:  pubsub,
		events:  events,
		limiter: limiter,
		log:     log,
		cfg:     cfg,
	}
}

type CreateResult struct {
	BookingID int64
	State     domain.BookingState
	PackageID int64
	// UsedCredit reports whether a finite credit was consumed. Waitlisted
	// bookings and unlimited packages never consume one.
	UsedCredit bool
}

type Promotion struct {
	BookingID  int64
	UserID     int64
	PackageID  *int64
	UsedCredit bool
}

type CancelResult struct {
	Success  bool
	Refunded bool
	Promoted *Promotion
}

// CreateBooking books the caller onto a class, confirming the seat when
// capacity allows and waitlisting otherwise.
//
// Returns:
//   - ErrUnauthorized if who is not a signed-in user.
//   - ErrClassNotFound if the class is missing or outside the caller's branch.
//   - *DuplicateBookingError if the caller already holds an active booking.
//   - ErrNoEligiblePackage if no usable package exists for the class's branch.
//   - ErrClassFull if both the class and its waitlist are full.
//   - ErrClassStarted if the class has already started.
//   - *RateLimitedError if the caller exceeded the booking rate.
func (s *Service) CreateBooking(ctx context.Context, who domain.Identity, classID int64) (CreateResult, error) {
	const op = "service.booking.CreateBooking"

	start := time.Now()
	res, err := s.createBooking(ctx, who, classID)

	outcome := outcomeOf(err)
	if err == nil {
		outcome = string(res.State.Status())
	}
	metrics.TrackBooking("create", outcome, time.Since(start))

	if err != nil {
		return CreateResult{}, fmt.Errorf("%s:%w", op, err)
	}
	return res, nil
}

func (s *Service) createBooking(ctx context.Context, who domain.Identity, classID int64) (CreateResult, error) {
	scope, err := authz.Require(who, authz.AnyRole...)
	if err != nil {
		return CreateResult{}, err
	}

	if err := s.allow(ctx, who); err != nil {
		return CreateResult{}, err
	}

	now := s.cfg.Now()
	var res CreateResult

	err = s.tx.InTx(ctx, func(ctx context.Context, st Store, after func(uow.AfterCommit)) error {
		class, err := st.LockClass(ctx, classID)
		if err != nil {
			return translate(err, ErrClassNotFound)
		}
		if err := scope.Branch(class.BranchID); err != nil {
			return translate(err, ErrClassNotFound)
		}
		if !now.Before(class.StartsAt) {
			return ErrClassStarted
		}

		existing, err := st.ActiveBooking(ctx, who.UserID, classID)
		switch {
		case err == nil:
			return &DuplicateBookingError{BookingID: existing.ID, Existing: existing.State.Status()}
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		pkg, err := st.EligiblePackage(ctx, who.UserID, class.BranchID, now)
		if err != nil {
			return translate(err, ErrNoEligiblePackage)
		}

		counts, err := st.ClassCounts(ctx, classID)
		if err != nil {
			return err
		}

		state, err := decideState(*class, counts)
		if err != nil {
			return err
		}

		b := domain.Booking{
			UserID:    who.UserID,
			ClassID:   classID,
			PackageID: &pkg.ID,
			State:     state,
			BookedAt:  now,
		}

		if _, ok := state.(domain.Confirmed); ok && !pkg.Unlimited() {
			if err := st.ConsumeCredit(ctx, pkg.ID); err != nil {
				return translate(err, ErrNoEligiblePackage)
			}
			b.CreditUsed = true
		}

		id, err := st.InsertBooking(ctx, b)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrDuplicateBooking
			}
			return err
		}
		b.ID = id

		evType := notify.BookingConfirmed
		if _, ok := state.(domain.Waitlisted); ok {
			evType = notify.BookingWaitlisted
		}
		s.afterChange(after, classID, notify.NewEvent(evType, b, class.BranchID, now))

		res = CreateResult{
			BookingID:  id,
			State:      state,
			PackageID:  pkg.ID,
			UsedCredit: b.CreditUsed,
		}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	s.log.Debug("booking created",
		slog.Int64("booking_id", res.BookingID),
		slog.Int64("user_id", who.UserID),
		slog.Int64("class_id", classID),
		slog.String("status", string(res.State.Status())),
	)
	return res, nil
}

// CancelBooking cancels a booking on behalf of its owner or branch staff.
// Freeing a confirmed seat refunds its credit and promotes the head of the
// waitlist.
//
// Returns:
//   - ErrUnauthorized if who may not act on the booking.
//   - ErrBookingNotFound if the booking is missing or outside the caller's branch.
//   - ErrAlreadyCancelled if the booking is already cancelled.
//   - *CancellationWindowError if the branch cutoff before class start has passed.
func (s *Service) CancelBooking(ctx context.Context, who domain.Identity, bookingID int64) (CancelResult, error) {
	const op = "service.booking.CancelBooking"

	start := time.Now()
	res, err := s.cancel(ctx, who, bookingID, false)
	metrics.TrackBooking("cancel", outcomeOf(err), time.Since(start))

	if err != nil {
		return CancelResult{}, fmt.Errorf("%s:%w", op, err)
	}
	return res, nil
}

// AdminRemoveBooking removes a booking as branch staff. It ignores the
// cancellation cutoff and records an audit entry in the same transaction.
func (s *Service) AdminRemoveBooking(ctx context.Context, who domain.Identity, bookingID int64) (CancelResult, error) {
	const op = "service.booking.AdminRemoveBooking"

	start := time.Now()
	res, err := s.cancel(ctx, who, bookingID, true)
	metrics.TrackBooking("admin_remove", outcomeOf(err), time.Since(start))

	if err != nil {
		return CancelResult{}, fmt.Errorf("%s:%w", op, err)
	}
	return res, nil
}

func (s *Service) cancel(ctx context.Context, who domain.Identity, bookingID int64, admin bool) (CancelResult, error) {
	roles := authz.AnyRole
	if admin {
		roles = authz.StaffOnly
	}

	scope, err := authz.Require(who, roles...)
	if err != nil {
		return CancelResult{}, err
	}

	now := s.cfg.Now()
	var res CancelResult

	err = s.tx.InTx(ctx, func(ctx context.Context, st Store, after func(uow.AfterCommit)) error {
		// The class row is the lock every booking operation on the class
		// serializes on, so it is taken before the booking row.
		peek, err := st.Booking(ctx, bookingID)
		if err != nil {
			return translate(err, ErrBookingNotFound)
		}

		class, err := st.LockClass(ctx, peek.ClassID)
		if err != nil {
			return translate(err, ErrBookingNotFound)
		}

		if admin {
			err = scope.Branch(class.BranchID)
		} else {
			err = scope.Owner(class.BranchID, peek.UserID)
		}
		if err != nil {
			return translate(err, ErrBookingNotFound)
		}

		b, err := st.LockBooking(ctx, bookingID)
		if err != nil {
			return translate(err, ErrBookingNotFound)
		}
		if !domain.Active(b.State) {
			return ErrAlreadyCancelled
		}

		if !admin {
			if err := s.checkCutoff(ctx, st, class, now); err != nil {
				return err
			}
		}

		rel, err := s.release(ctx, st, class, b, now)
		if err != nil {
			return err
		}

		evType := notify.BookingCancelled
		if admin {
			evType = notify.BookingRemoved
		}
		cancelled := *b
		cancelled.State = domain.Cancelled{At: now}
		events := []notify.Event{notify.NewEvent(evType, cancelled, class.BranchID, now)}
		events = append(events, rel.events(class.BranchID, now)...)

		if admin {
			if err := st.RecordAudit(ctx, removalAudit(who, b, class, rel)); err != nil {
				return err
			}
		}

		s.afterChange(after, class.ID, events...)

		res = CancelResult{Success: true, Refunded: rel.refunded}
		if p := rel.promoted; p != nil {
			res.Promoted = &Promotion{
				BookingID:  p.ID,
				UserID:     p.UserID,
				PackageID:  p.PackageID,
				UsedCredit: p.CreditUsed,
			}
		}
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}

	if res.Promoted != nil {
		s.log.Info("waitlist promoted",
			slog.Int64("cancelled_booking_id", bookingID),
			slog.Int64("promoted_booking_id", res.Promoted.BookingID),
			slog.Int64("user_id", res.Promoted.UserID),
		)
	}
	return res, nil
}

func (s *Service) checkCutoff(ctx context.Context, st Store, class *domain.ClassSession, now time.Time) error {
	hours := s.cfg.DefaultCancellationHours

	br, err := st.Branch(ctx, class.BranchID)
	switch {
	case err == nil:
		if br.CancellationHoursBefore >= 0 {
			hours = br.CancellationHoursBefore
		}
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	cutoff := class.StartsAt.Add(-time.Duration(hours) * time.Hour)
	if !now.Before(cutoff) {
		return &CancellationWindowError{Cutoff: cutoff, Hours: hours}
	}
	return nil
}

type released struct {
	refunded bool
	promoted *domain.Booking
	// dropped holds waitlisted bookings cancelled during promotion because
	// their owner had no usable package left.
	dropped []domain.Booking
}

func (r released) events(branchID int64, at time.Time) []notify.Event {
	var out []notify.Event
	for _, d := range r.dropped {
		ev := notify.NewEvent(notify.BookingCancelled, d, branchID, at)
		ev.Reason = "no_eligible_package"
		out = append(out, ev)
	}
	if r.promoted != nil {
		out = append(out, notify.NewEvent(notify.BookingPromoted, *r.promoted, branchID, at))
	}
	return out
}

// release cancels b and applies the cascade its old state calls for: a
// confirmed seat refunds its credit and is handed to the waitlist, a
// waitlist slot closes its gap.
func (s *Service) release(
	ctx context.Context,
	st Store,
	class *domain.ClassSession,
	b *domain.Booking,
	now time.Time,
) (released, error) {
	var out released

	if err := st.CancelBooking(ctx, b.ID, now); err != nil {
		return out, err
	}

	switch state := b.State.(type) {
	case domain.Confirmed:
		if b.CreditUsed && b.PackageID != nil {
			if err := st.RefundCredit(ctx, *b.PackageID); err != nil {
				return out, err
			}
			out.refunded = true
		}

		promoted, dropped, err := s.promoteNext(ctx, st, class, now)
		if err != nil {
			return out, err
		}
		out.promoted = promoted
		out.dropped = dropped

	case domain.Waitlisted:
		if err := st.ShiftWaitlist(ctx, class.ID, state.Position); err != nil {
			return out, err
		}
	}

	return out, nil
}

// promoteNext confirms the lowest-position waitlisted booking while a seat
// is free. A candidate whose owner has no usable package is cancelled and
// the next one is tried.
func (s *Service) promoteNext(
	ctx context.Context,
	st Store,
	class *domain.ClassSession,
	now time.Time,
) (*domain.Booking, []domain.Booking, error) {
	var dropped []domain.Booking

	for {
		counts, err := st.ClassCounts(ctx, class.ID)
		if err != nil {
			return nil, dropped, err
		}
		if counts.Confirmed >= class.Capacity {
			return nil, dropped, nil
		}

		next, err := st.NextWaitlisted(ctx, class.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, dropped, nil
		}
		if err != nil {
			return nil, dropped, err
		}

		w, ok := next.State.(domain.Waitlisted)
		if !ok {
			return nil, dropped, fmt.Errorf("booking %d returned as waitlisted in state %s", next.ID, next.State.Status())
		}

		pkg, err := promotionPackage(ctx, st, class, next, now)
		if err != nil {
			return nil, dropped, err
		}

		if pkg == nil {
			if err := st.CancelBooking(ctx, next.ID, now); err != nil {
				return nil, dropped, err
			}
			if err := st.ShiftWaitlist(ctx, class.ID, w.Position); err != nil {
				return nil, dropped, err
			}
			next.State = domain.Cancelled{At: now}
			dropped = append(dropped, *next)
			metrics.TrackPromotion(false)
			continue
		}

		creditUsed := false
		if !pkg.Unlimited() {
			if err := st.ConsumeCredit(ctx, pkg.ID); err != nil {
				return nil, dropped, err
			}
			creditUsed = true
		}

		pkgID := pkg.ID
		if err := st.PromoteBooking(ctx, next.ID, &pkgID, creditUsed); err != nil {
			return nil, dropped, err
		}
		if err := st.ShiftWaitlist(ctx, class.ID, w.Position); err != nil {
			return nil, dropped, err
		}

		next.State = domain.Confirmed{}
		next.PackageID = &pkgID
		next.CreditUsed = creditUsed
		metrics.TrackPromotion(true)
		return next, dropped, nil
	}
}

// promotionPackage returns the locked package a promotion is charged to:
// the booking's own package while it is still usable, otherwise the owner's
// next eligible package in the class's branch. It returns nil when there is
// none.
func promotionPackage(
	ctx context.Context,
	st Store,
	class *domain.ClassSession,
	b *domain.Booking,
	now time.Time,
) (*domain.UserPackage, error) {
	if b.PackageID != nil {
		pkg, err := st.LockPackage(ctx, *b.PackageID)
		switch {
		case err == nil:
			if pkg.UserID == b.UserID && pkg.BranchID == class.BranchID && pkg.Usable(now) {
				return pkg, nil
			}
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}

	pkg, err := st.EligiblePackage(ctx, b.UserID, class.BranchID, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func decideState(c domain.ClassSession, n domain.ClassCounts) (domain.BookingState, error) {
	switch {
	case n.Confirmed < c.Capacity:
		return domain.Confirmed{}, nil
	case n.Waitlisted < c.WaitlistCapacity:
		return domain.Waitlisted{Position: n.Waitlisted + 1}, nil
	default:
		return nil, ErrClassFull
	}
}

func removalAudit(who domain.Identity, b *domain.Booking, class *domain.ClassSession, rel released) domain.AuditEntry {
	meta := map[string]any{
		"class_id":        class.ID,
		"branch_id":       class.BranchID,
		"user_id":         b.UserID,
		"previous_status": string(b.State.Status()),
		"refunded":        rel.refunded,
	}
	if rel.promoted != nil {
		meta["promoted_booking_id"] = rel.promoted.ID
	}

	return domain.AuditEntry{
		ActorID:    who.UserID,
		Action:     "booking.remove",
		EntityType: "booking",
		EntityID:   b.ID,
		Description: fmt.Sprintf("removed %s booking %d of user %d from class %q",
			b.State.Status(), b.ID, b.UserID, class.Title),
		Metadata: meta,
	}
}

func (s *Service) allow(ctx context.Context, who domain.Identity) error {
	if s.limiter == nil {
		return nil
	}

	d, err := s.limiter.Allow(ctx, "user:"+strconv.FormatInt(who.UserID, 10))
	if err != nil {
		s.log.Warn("rate limiter unavailable, allowing", slog.Any("err", err))
		return nil
	}
	if !d.Allowed {
		return &RateLimitedError{RetryAfter: d.RetryAfter}
	}
	return nil
}

// afterChange registers the post-commit side effects of a booking change.
// They are best-effort: the booking is already durable when they run.
func (s *Service) afterChange(after func(uow.AfterCommit), classID int64, events ...notify.Event) {
	after(func(ctx context.Context) {
		if s.cache != nil {
			if err := s.cache.InvalidateClass(ctx, classID); err != nil {
				s.log.Warn("cache invalidation failed", slog.Int64("class_id", classID), slog.Any("err", err))
			}
		}
		if s.pubsub != nil {
			if err := s.pubsub.PublishClassChanged(ctx, classID); err != nil {
				s.log.Warn("class change publish failed", slog.Int64("class_id", classID), slog.Any("err", err))
			}
		}
		for _, ev := range events {
			if err := s.events.Publish(ctx, ev); err != nil {
				s.log.Warn("notification publish failed",
					slog.String("type", string(ev.Type)),
					slog.Int64("booking_id", ev.BookingID),
					slog.Any("err", err),
				)
			}
		}
	})
}

// translate maps lookup and scoping failures onto the caller-facing error.
// Rows outside the caller's branch are reported as missing.
func translate(err, notFound error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrNoCredit),
		errors.Is(err, authz.ErrOutOfScope):
		return notFound
	default:
		return err
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateBooking):
		return "duplicate"
	case errors.Is(err, ErrClassFull):
		return "full"
	case errors.Is(err, ErrClassStarted):
		return "started"
	case errors.Is(err, ErrNoEligiblePackage):
		return "no_package"
	case errors.Is(err, ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, ErrCancellationWindow):
		return "window_closed"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrContention):
		return "contention"
	default:
		return "error"
	}
}
