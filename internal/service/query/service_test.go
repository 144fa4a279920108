package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/spinhub/internal/authz"
	"github.com/kirinyoku/spinhub/internal/domain"
	"github.com/kirinyoku/spinhub/internal/repository"
	redisrepo "github.com/kirinyoku/spinhub/internal/repository/redis"
)

type fakeReader struct {
	mu      sync.Mutex
	classes map[int64]domain.ClassSession
	counts  map[int64]domain.ClassCounts
	views   []domain.BookingView
	loads   int

	lastBranch int64
	lastLimit  int
}

func (f *fakeReader) Class(_ context.Context, id int64) (*domain.ClassSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	c, ok := f.classes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (f *fakeReader) ClassCounts(_ context.Context, classID int64) (domain.ClassCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[classID], nil
}

func (f *fakeReader) ListByUser(_ context.Context, userID, branchID int64, limit, _ int) ([]domain.BookingView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastBranch, f.lastLimit = branchID, limit
	var out []domain.BookingView
	for _, v := range f.views {
		if v.UserID == userID && (branchID == 0 || v.BranchID == branchID) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeReader) ListActiveByClass(_ context.Context, classID int64) ([]domain.BookingView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BookingView
	for _, v := range f.views {
		if v.ClassID == classID && v.Status != domain.StatusCancelled {
			out = append(out, v)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *fakeReader, *redisrepo.Cache) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reader := &fakeReader{
		classes: map[int64]domain.ClassSession{
			1: {ID: 1, BranchID: 10, Title: "Climb", StartsAt: time.Now().Add(time.Hour), Capacity: 4, WaitlistCapacity: 2},
		},
		counts: map[int64]domain.ClassCounts{1: {Confirmed: 4, Waitlisted: 1}},
	}
	cache := redisrepo.New(rdb)

	return New(reader, cache, Config{MaxBookingPage: 50}), reader, cache
}

func member(userID, branchID int64) domain.Identity {
	return domain.Identity{UserID: userID, Role: domain.RoleClient, BranchID: branchID}
}

func TestAvailability_CachedUntilInvalidated(t *testing.T) {
	svc, reader, cache := newTestService(t)
	ctx := context.Background()

	a, err := svc.Availability(ctx, member(1, 10), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, a.SpotsLeft)
	assert.Equal(t, 1, a.WaitlistLeft)

	_, err = svc.Availability(ctx, member(2, 10), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.loads)

	reader.counts[1] = domain.ClassCounts{Confirmed: 3}
	require.NoError(t, cache.InvalidateClass(ctx, 1))

	a, err = svc.Availability(ctx, member(1, 10), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, a.SpotsLeft)
	assert.Equal(t, 2, reader.loads)
}

func TestAvailability_Scoped(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Availability(ctx, member(1, 99), 1)
	require.ErrorIs(t, err, ErrClassNotFound)

	_, err = svc.Availability(ctx, member(1, 10), 404)
	require.ErrorIs(t, err, ErrClassNotFound)

	_, err = svc.Availability(ctx, domain.Identity{}, 1)
	require.ErrorIs(t, err, authz.ErrUnauthorized)

	super := domain.Identity{UserID: 5, Role: domain.RoleSuperuser, BranchID: 99}
	_, err = svc.Availability(ctx, super, 1)
	require.NoError(t, err)
}

func TestMyBookings(t *testing.T) {
	svc, reader, _ := newTestService(t)
	ctx := context.Background()
	reader.views = []domain.BookingView{
		{ID: 1, UserID: 7, ClassID: 1, BranchID: 10, Status: domain.StatusConfirmed},
		{ID: 2, UserID: 7, ClassID: 2, BranchID: 11, Status: domain.StatusWaitlisted},
		{ID: 3, UserID: 8, ClassID: 1, BranchID: 10, Status: domain.StatusConfirmed},
	}

	got, err := svc.MyBookings(ctx, member(7, 10), 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, 20, reader.lastLimit)

	super := domain.Identity{UserID: 7, Role: domain.RoleSuperuser, BranchID: 10}
	got, err = svc.MyBookings(ctx, super, 1000, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int64(0), reader.lastBranch)
	assert.Equal(t, 50, reader.lastLimit)
}

func TestClassRoster(t *testing.T) {
	svc, reader, _ := newTestService(t)
	ctx := context.Background()
	one, two := 1, 2
	reader.views = []domain.BookingView{
		{ID: 1, UserID: 7, ClassID: 1, Status: domain.StatusConfirmed},
		{ID: 2, UserID: 8, ClassID: 1, Status: domain.StatusWaitlisted, Position: &one},
		{ID: 3, UserID: 9, ClassID: 1, Status: domain.StatusWaitlisted, Position: &two},
		{ID: 4, UserID: 6, ClassID: 1, Status: domain.StatusCancelled},
	}

	_, err := svc.ClassRoster(ctx, member(7, 10), 1)
	require.ErrorIs(t, err, authz.ErrUnauthorized)

	staff := domain.Identity{UserID: 100, Role: domain.RoleAdmin, BranchID: 10}
	r, err := svc.ClassRoster(ctx, staff, 1)
	require.NoError(t, err)
	assert.Equal(t, "Climb", r.Class.Title)
	require.Len(t, r.Confirmed, 1)
	require.Len(t, r.Waitlist, 2)
	assert.Equal(t, 1, *r.Waitlist[0].Position)
	assert.Equal(t, 2, *r.Waitlist[1].Position)

	other := domain.Identity{UserID: 101, Role: domain.RoleAdmin, BranchID: 11}
	_, err = svc.ClassRoster(ctx, other, 1)
	require.ErrorIs(t, err, ErrClassNotFound)
}
