package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/spinhub/internal/authz"
	"github.com/kirinyoku/spinhub/internal/domain"
	"github.com/kirinyoku/spinhub/internal/repository"
	postgresrepo "github.com/kirinyoku/spinhub/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/spinhub/internal/repository/redis"
)

// Reader is the read side of the store the query service needs.
type Reader interface {
	Class(ctx context.Context, id int64) (*domain.ClassSession, error)
	ClassCounts(ctx context.Context, classID int64) (domain.ClassCounts, error)
	ListByUser(ctx context.Context, userID, branchID int64, limit, offset int) ([]domain.BookingView, error)
	ListActiveByClass(ctx context.Context, classID int64) ([]domain.BookingView, error)
}

type pgReader struct {
	store *postgresrepo.Store
}

func NewPostgresReader(store *postgresrepo.Store) Reader {
	return pgReader{store: store}
}

func (r pgReader) Class(ctx context.Context, id int64) (*domain.ClassSession, error) {
	return r.store.Classes().Get(ctx, id)
}

func (r pgReader) ClassCounts(ctx context.Context, classID int64) (domain.ClassCounts, error) {
	return r.store.Classes().Counts(ctx, classID)
}

func (r pgReader) ListByUser(
	ctx context.Context,
	userID, branchID int64,
	limit, offset int,
) ([]domain.BookingView, error) {
	return r.store.Query().ListByUser(ctx, userID, branchID, limit, offset)
}

func (r pgReader) ListActiveByClass(ctx context.Context, classID int64) ([]domain.BookingView, error) {
	return r.store.Query().ListActiveByClass(ctx, classID)
}

type Config struct {
	AvailabilityTTL    time.Duration
	RosterTTL          time.Duration
	DefaultBookingPage int
	MaxBookingPage     int
}

type Service struct {
	reader Reader
	cache  *redisrepo.Cache
	cfg    Config
}

func New(reader Reader, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	if cfg.RosterTTL <= 0 {
		cfg.RosterTTL = 30 * time.Second
	}

	if cfg.DefaultBookingPage <= 0 {
		cfg.DefaultBookingPage = 20
	}

	if cfg.MaxBookingPage <= 0 {
		cfg.MaxBookingPage = 100
	}

	return &Service{
		reader: reader,
		cache:  cache,
		cfg:    cfg,
	}
}

// Availability returns the seat and waitlist counts of a class. Results are
// cached until the class's booking set changes or the TTL runs out.
//
// Parameters:
//   - ctx: request-scoped context.
//   - who: the caller; the class must be in their branch unless they are a superuser.
//   - classID: ID of the class.
//
// Returns:
//   - domain.Availability: counts derived from the class's active bookings.
//   - error: authz.ErrUnauthorized if who is not signed in.
//   - error: query.ErrClassNotFound if the class is missing or out of scope.
func (s *Service) Availability(ctx context.Context, who domain.Identity, classID int64) (domain.Availability, error) {
	const op = "service.query.Availability"

	scope, err := authz.Require(who, authz.AnyRole...)
	if err != nil {
		return domain.Availability{}, fmt.Errorf("%s:%w", op, err)
	}

	avail, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyClassAvailability(classID),
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.Availability, error) {
			c, err := s.reader.Class(ctx, classID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Availability{}, ErrClassNotFound
				}
				return domain.Availability{}, err
			}

			counts, err := s.reader.ClassCounts(ctx, classID)
			if err != nil {
				return domain.Availability{}, err
			}

			return domain.NewAvailability(*c, counts), nil
		},
	)
	if err != nil {
		return domain.Availability{}, fmt.Errorf("%s:%w", op, err)
	}

	if err := scope.Branch(avail.BranchID); err != nil {
		return domain.Availability{}, fmt.Errorf("%s:%w", op, ErrClassNotFound)
	}

	return avail, nil
}

// MyBookings lists the caller's bookings in their branch, latest class
// first. Superusers see their bookings across all branches.
func (s *Service) MyBookings(
	ctx context.Context,
	who domain.Identity,
	limit, offset int,
) ([]domain.BookingView, error) {
	const op = "service.query.MyBookings"

	scope, err := authz.Require(who, authz.AnyRole...)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if limit <= 0 {
		limit = s.cfg.DefaultBookingPage
	}

	if limit > s.cfg.MaxBookingPage {
		limit = s.cfg.MaxBookingPage
	}

	if offset < 0 {
		offset = 0
	}

	branchID := who.BranchID
	if scope.Superuser() {
		branchID = 0
	}

	views, err := s.reader.ListByUser(ctx, who.UserID, branchID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return views, nil
}

// ClassRoster returns the confirmed attendees and the ordered waitlist of a
// class. Staff only.
func (s *Service) ClassRoster(ctx context.Context, who domain.Identity, classID int64) (domain.Roster, error) {
	const op = "service.query.ClassRoster"

	scope, err := authz.Require(who, authz.StaffOnly...)
	if err != nil {
		return domain.Roster{}, fmt.Errorf("%s:%w", op, err)
	}

	roster, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyClassRoster(classID),
		s.cfg.RosterTTL,
		func(ctx context.Context) (domain.Roster, error) {
			c, err := s.reader.Class(ctx, classID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Roster{}, ErrClassNotFound
				}
				return domain.Roster{}, err
			}

			views, err := s.reader.ListActiveByClass(ctx, classID)
			if err != nil {
				return domain.Roster{}, err
			}

			r := domain.Roster{
				Class:     *c,
				Confirmed: []domain.BookingView{},
				Waitlist:  []domain.BookingView{},
			}
			for _, v := range views {
				if v.Status == domain.StatusWaitlisted {
					r.Waitlist = append(r.Waitlist, v)
				} else {
					r.Confirmed = append(r.Confirmed, v)
				}
			}
			return r, nil
		},
	)
	if err != nil {
		return domain.Roster{}, fmt.Errorf("%s:%w", op, err)
	}

	if err := scope.Branch(roster.Class.BranchID); err != nil {
		return domain.Roster{}, fmt.Errorf("%s:%w", op, ErrClassNotFound)
	}

	return roster, nil
}
