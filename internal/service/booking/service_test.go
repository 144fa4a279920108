package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/spinhub/internal/domain"
	"github.com/kirinyoku/spinhub/internal/notify"
	redisrepo "github.com/kirinyoku/spinhub/internal/repository/redis"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu          sync.Mutex
	invalidated []int64
	changed     []int64
	events      []notify.Event
}

func (r *recorder) InvalidateClass(_ context.Context, classID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, classID)
	return nil
}

func (r *recorder) PublishClassChanged(_ context.Context, classID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, classID)
	return nil
}

func (r *recorder) Publish(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) eventTypes() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type denyLimiter struct{ retry time.Duration }

func (l denyLimiter) Allow(context.Context, string) (redisrepo.Decision, error) {
	return redisrepo.Decision{Hits: 10, RetryAfter: l.retry}, nil
}

type fixture struct {
	svc *Service
	st  *memStore
	rec *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := newMemStore()
	st.addBranch(1, 12)
	st.addBranch(2, -1)
	rec := &recorder{}

	svc := New(st, rec, rec, rec, nil, nil, Config{
		DefaultCancellationHours: 24,
		Now:                      func() time.Time { return testNow },
	})
	return &fixture{svc: svc, st: st, rec: rec}
}

func (f *fixture) class(branchID int64, capacity, waitlist int, startsIn time.Duration) int64 {
	return f.st.addClass(domain.ClassSession{
		BranchID:         branchID,
		StartsAt:         testNow.Add(startsIn),
		DurationMinutes:  45,
		Capacity:         capacity,
		WaitlistCapacity: waitlist,
	})
}

func client(userID, branchID int64) domain.Identity {
	return domain.Identity{UserID: userID, Role: domain.RoleClient, BranchID: branchID}
}

func admin(userID, branchID int64) domain.Identity {
	return domain.Identity{UserID: userID, Role: domain.RoleAdmin, BranchID: branchID}
}

func intp(v int) *int { return &v }

func TestScenario_CancelPromotesWaitlisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 1, 1, 48*time.Hour)
	pkgA := f.st.addPackage(10, 1, 5, nil)
	pkgB := f.st.addPackage(11, 1, 5, nil)

	a, err := f.svc.CreateBooking(ctx, client(10, 1), classID)
	require.NoError(t, err)
	assert.Equal(t, domain.Confirmed{}, a.State)
	assert.True(t, a.UsedCredit)
	assert.Equal(t, intp(4), f.st.remaining(pkgA))

	b, err := f.svc.CreateBooking(ctx, client(11, 1), classID)
	require.NoError(t, err)
	assert.Equal(t, domain.Waitlisted{Position: 1}, b.State)
	assert.False(t, b.UsedCredit)
	assert.Equal(t, intp(5), f.st.remaining(pkgB), "waitlisting must not consume credit")

	res, err := f.svc.CancelBooking(ctx, client(10, 1), a.BookingID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Refunded)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, b.BookingID, res.Promoted.BookingID)
	assert.True(t, res.Promoted.UsedCredit)

	assert.Equal(t, domain.StatusCancelled, f.st.booking(a.BookingID).State.Status())
	assert.Equal(t, domain.Confirmed{}, f.st.booking(b.BookingID).State)
	assert.Equal(t, intp(5), f.st.remaining(pkgA))
	assert.Equal(t, intp(4), f.st.remaining(pkgB))
	assert.Equal(t, domain.ClassCounts{Confirmed: 1}, f.st.counts(classID))
	assert.True(t, f.st.creditsConserved())

	assert.Equal(t, []notify.EventType{
		notify.BookingConfirmed,
		notify.BookingWaitlisted,
		notify.BookingCancelled,
		notify.BookingPromoted,
	}, f.rec.eventTypes())
}

func TestScenario_ClassFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 1, 1, 48*time.Hour)
	pkgs := map[int64]int64{}
	for u := int64(1); u <= 3; u++ {
		pkgs[u] = f.st.addPackage(u, 1, 3, nil)
	}

	_, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)
	_, err = f.svc.CreateBooking(ctx, client(2, 1), classID)
	require.NoError(t, err)

	_, err = f.svc.CreateBooking(ctx, client(3, 1), classID)
	require.ErrorIs(t, err, ErrClassFull)
	assert.Equal(t, intp(3), f.st.remaining(pkgs[3]))
	assert.Equal(t, domain.ClassCounts{Confirmed: 1, Waitlisted: 1}, f.st.counts(classID))
}

func TestCreateBooking_ZeroCapacity(t *testing.T) {
	f := newFixture(t)
	classID := f.class(1, 0, 0, 48*time.Hour)
	f.st.addPackage(1, 1, 3, nil)

	_, err := f.svc.CreateBooking(context.Background(), client(1, 1), classID)
	require.ErrorIs(t, err, ErrClassFull)
}

func TestScenario_CancelInsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 2, 0, 6*time.Hour) // branch 1 cutoff is 12h
	pkg := f.st.addPackage(1, 1, 3, nil)

	bk, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, client(1, 1), bk.BookingID)
	require.ErrorIs(t, err, ErrCancellationWindow)

	var cwe *CancellationWindowError
	require.ErrorAs(t, err, &cwe)
	assert.Equal(t, 12, cwe.Hours)
	assert.Equal(t, testNow.Add(-6*time.Hour), cwe.Cutoff)

	assert.Equal(t, domain.Confirmed{}, f.st.booking(bk.BookingID).State)
	assert.Equal(t, intp(2), f.st.remaining(pkg))
}

func TestCancelBooking_DefaultWindowForBranchWithoutPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(2, 2, 0, 20*time.Hour) // branch 2 uses the 24h default
	f.st.addPackage(1, 2, 3, nil)

	bk, err := f.svc.CreateBooking(ctx, client(1, 2), classID)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, client(1, 2), bk.BookingID)
	require.ErrorIs(t, err, ErrCancellationWindow)
}

func TestCancelBooking_AtCutoffIsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 2, 0, 12*time.Hour)
	f.st.addPackage(1, 1, 3, nil)

	bk, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, client(1, 1), bk.BookingID)
	require.ErrorIs(t, err, ErrCancellationWindow)
}

func TestScenario_NoCreditsLeft(t *testing.T) {
	f := newFixture(t)
	classID := f.class(1, 5, 0, 48*time.Hour)
	f.st.addPackage(1, 1, 0, nil)

	_, err := f.svc.CreateBooking(context.Background(), client(1, 1), classID)
	require.ErrorIs(t, err, ErrNoEligiblePackage)
}

func TestCreateBooking_ClassAlreadyStarted(t *testing.T) {
	for _, tc := range []struct {
		name     string
		startsIn time.Duration
	}{
		{"finished", -3 * time.Hour},
		{"starting now", 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			classID := f.class(1, 5, 2, tc.startsIn)
			pkgID := f.st.addPackage(1, 1, 3, nil)

			_, err := f.svc.CreateBooking(context.Background(), client(1, 1), classID)
			require.ErrorIs(t, err, ErrClassStarted)

			assert.Equal(t, 3, *f.st.remaining(pkgID))
			assert.Zero(t, f.st.counts(classID))
			assert.Empty(t, f.rec.eventTypes())
		})
	}
}

func TestCreateBooking_PackageEligibility(t *testing.T) {
	expired := testNow.Add(-time.Minute)

	tests := []struct {
		name  string
		setup func(st *memStore)
	}{
		{"none", func(*memStore) {}},
		{"expired", func(st *memStore) { st.addPackage(1, 1, 5, &expired) }},
		{"expires now", func(st *memStore) { st.addPackage(1, 1, 5, &testNow) }},
		{"other branch", func(st *memStore) { st.addPackage(1, 2, 5, nil) }},
		{"other user", func(st *memStore) { st.addPackage(2, 1, 5, nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			classID := f.class(1, 5, 0, 48*time.Hour)
			tt.setup(f.st)

			_, err := f.svc.CreateBooking(context.Background(), client(1, 1), classID)
			require.ErrorIs(t, err, ErrNoEligiblePackage)
		})
	}
}

func TestCreateBooking_PrefersSoonestExpiringPackage(t *testing.T) {
	f := newFixture(t)
	classID := f.class(1, 5, 0, 48*time.Hour)
	later := testNow.Add(30 * 24 * time.Hour)
	sooner := testNow.Add(7 * 24 * time.Hour)

	f.st.addPackage(1, 1, -1, nil)
	f.st.addPackage(1, 1, 5, &later)
	soon := f.st.addPackage(1, 1, 5, &sooner)

	res, err := f.svc.CreateBooking(context.Background(), client(1, 1), classID)
	require.NoError(t, err)
	assert.Equal(t, soon, res.PackageID)
	assert.Equal(t, intp(4), f.st.remaining(soon))
}

func TestScenario_AdminRemovesUnlimitedBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 3, 2, 2*time.Hour) // inside the client cutoff
	pkg := f.st.addPackage(1, 1, -1, nil)

	bk, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)
	assert.False(t, bk.UsedCredit)

	res, err := f.svc.AdminRemoveBooking(ctx, admin(99, 1), bk.BookingID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Refunded)
	assert.Nil(t, res.Promoted)

	assert.Nil(t, f.st.remaining(pkg))
	assert.Equal(t, domain.ClassCounts{}, f.st.counts(classID))

	log := f.st.auditLog()
	require.Len(t, log, 1)
	assert.Equal(t, int64(99), log[0].ActorID)
	assert.Equal(t, "booking.remove", log[0].Action)
	assert.Equal(t, "booking", log[0].EntityType)
	assert.Equal(t, "confirmed", log[0].Metadata["previous_status"])
	assert.Contains(t, f.rec.eventTypes(), notify.BookingRemoved)
}

func TestCreateBooking_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 0, 3, 48*time.Hour)
	f.st.addPackage(1, 1, 3, nil)

	first, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)

	_, err = f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.ErrorIs(t, err, ErrDuplicateBooking)

	var dup *DuplicateBookingError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.BookingID, dup.BookingID)
	assert.Equal(t, domain.StatusWaitlisted, dup.Existing)
}

func TestCreateBooking_RebookAfterCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 1, 0, 48*time.Hour)
	f.st.addPackage(1, 1, 3, nil)

	first, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)
	_, err = f.svc.CancelBooking(ctx, client(1, 1), first.BookingID)
	require.NoError(t, err)

	again, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)
	assert.NotEqual(t, first.BookingID, again.BookingID)
	assert.Equal(t, domain.Confirmed{}, again.State)
}

func TestUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 1, 0, 48*time.Hour)
	f.st.addPackage(1, 1, 3, nil)

	_, err := f.svc.CreateBooking(ctx, domain.Identity{}, classID)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.CreateBooking(ctx, domain.Identity{UserID: 1, Role: "guest", BranchID: 1}, classID)
	require.ErrorIs(t, err, ErrUnauthorized)

	bk, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)

	_, err = f.svc.AdminRemoveBooking(ctx, client(1, 1), bk.BookingID)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.CancelBooking(ctx, client(2, 1), bk.BookingID)
	require.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, domain.Confirmed{}, f.st.booking(bk.BookingID).State)
}

func TestBranchIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 2, 0, 48*time.Hour)
	f.st.addPackage(1, 1, 3, nil)
	f.st.addPackage(2, 2, 3, nil)

	_, err := f.svc.CreateBooking(ctx, client(2, 2), classID)
	require.ErrorIs(t, err, ErrClassNotFound)

	bk, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)

	_, err = f.svc.AdminRemoveBooking(ctx, admin(50, 2), bk.BookingID)
	require.ErrorIs(t, err, ErrBookingNotFound)

	_, err = f.svc.CancelBooking(ctx, admin(50, 2), bk.BookingID)
	require.ErrorIs(t, err, ErrBookingNotFound)

	super := domain.Identity{UserID: 77, Role: domain.RoleSuperuser, BranchID: 2}
	_, err = f.svc.AdminRemoveBooking(ctx, super, bk.BookingID)
	require.NoError(t, err)
}

func TestCancelBooking_NotFoundAndAlreadyCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 1, 0, 48*time.Hour)
	f.st.addPackage(1, 1, 3, nil)

	_, err := f.svc.CancelBooking(ctx, client(1, 1), 424242)
	require.ErrorIs(t, err, ErrBookingNotFound)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.CreateBooking(ctx, client(1, 1), 424242)
	require.ErrorIs(t, err, ErrClassNotFound)

	bk, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)
	_, err = f.svc.CancelBooking(ctx, client(1, 1), bk.BookingID)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, client(1, 1), bk.BookingID)
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = f.svc.AdminRemoveBooking(ctx, admin(9, 1), bk.BookingID)
	require.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestWaitlist_RenumberedDensely(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 1, 3, 48*time.Hour)

	ids := map[int64]int64{}
	for u := int64(1); u <= 4; u++ {
		f.st.addPackage(u, 1, 3, nil)
		res, err := f.svc.CreateBooking(ctx, client(u, 1), classID)
		require.NoError(t, err)
		ids[u] = res.BookingID
	}
	assert.Equal(t, domain.Waitlisted{Position: 3}, f.st.booking(ids[4]).State)

	// Leaving the middle of the waitlist closes the gap.
	_, err := f.svc.CancelBooking(ctx, client(3, 1), ids[3])
	require.NoError(t, err)
	assert.Equal(t, domain.Waitlisted{Position: 1}, f.st.booking(ids[2]).State)
	assert.Equal(t, domain.Waitlisted{Position: 2}, f.st.booking(ids[4]).State)

	// A promotion moves everyone up.
	res, err := f.svc.CancelBooking(ctx, client(1, 1), ids[1])
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, ids[2], res.Promoted.BookingID)
	assert.Equal(t, domain.Waitlisted{Position: 1}, f.st.booking(ids[4]).State)

	// A new waitlister lands at the end of the dense sequence.
	f.st.addPackage(5, 1, 3, nil)
	res5, err := f.svc.CreateBooking(ctx, client(5, 1), classID)
	require.NoError(t, err)
	assert.Equal(t, domain.Waitlisted{Position: 2}, res5.State)
	assert.True(t, f.st.creditsConserved())
}

func TestPromotion_FallsBackToAnotherPackage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 1, 1, 48*time.Hour)
	f.st.addPackage(1, 1, 3, nil)
	first := f.st.addPackage(2, 1, 1, nil)

	a, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)
	b, err := f.svc.CreateBooking(ctx, client(2, 1), classID)
	require.NoError(t, err)
	require.Equal(t, first, *f.st.booking(b.BookingID).PackageID)

	// User 2 spends the only credit of the waitlisted booking's package elsewhere.
	other := f.class(1, 5, 0, 72*time.Hour)
	_, err = f.svc.CreateBooking(ctx, client(2, 1), other)
	require.NoError(t, err)
	assert.Equal(t, intp(0), f.st.remaining(first))

	second := f.st.addPackage(2, 1, 2, nil)

	res, err := f.svc.CancelBooking(ctx, client(1, 1), a.BookingID)
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	require.NotNil(t, res.Promoted.PackageID)
	assert.Equal(t, second, *res.Promoted.PackageID)
	assert.Equal(t, intp(1), f.st.remaining(second))
	assert.True(t, f.st.creditsConserved())
}

func TestPromotion_SkipsWaitlisterWithoutPackage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 1, 2, 48*time.Hour)
	f.st.addPackage(1, 1, 3, nil)
	expiring := testNow.Add(time.Hour)
	f.st.addPackage(2, 1, 3, &expiring)
	pkg3 := f.st.addPackage(3, 1, 3, nil)

	a, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)
	b, err := f.svc.CreateBooking(ctx, client(2, 1), classID)
	require.NoError(t, err)
	c, err := f.svc.CreateBooking(ctx, client(3, 1), classID)
	require.NoError(t, err)

	// By the time the seat frees up, user 2's only package has expired.
	later := testNow.Add(2 * time.Hour)
	f.svc.cfg.Now = func() time.Time { return later }

	res, err := f.svc.CancelBooking(ctx, client(1, 1), a.BookingID)
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, c.BookingID, res.Promoted.BookingID)

	assert.Equal(t, domain.Cancelled{At: later}, f.st.booking(b.BookingID).State)
	assert.Equal(t, domain.Confirmed{}, f.st.booking(c.BookingID).State)
	assert.Equal(t, intp(2), f.st.remaining(pkg3))
	assert.Equal(t, domain.ClassCounts{Confirmed: 1}, f.st.counts(classID))
}

func TestCancelWaitlisted_NoRefundNoPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	classID := f.class(1, 1, 2, 48*time.Hour)
	f.st.addPackage(1, 1, 3, nil)
	pkg2 := f.st.addPackage(2, 1, 3, nil)

	_, err := f.svc.CreateBooking(ctx, client(1, 1), classID)
	require.NoError(t, err)
	b, err := f.svc.CreateBooking(ctx, client(2, 1), classID)
	require.NoError(t, err)

	res, err := f.svc.CancelBooking(ctx, client(2, 1), b.BookingID)
	require.NoError(t, err)
	assert.False(t, res.Refunded)
	assert.Nil(t, res.Promoted)
	assert.Equal(t, intp(3), f.st.remaining(pkg2))
	assert.Equal(t, domain.ClassCounts{Confirmed: 1}, f.st.counts(classID))
}

func TestCreateBooking_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	classID := f.class(1, 1, 0, 48*time.Hour)
	pkg := f.st.addPackage(1, 1, 3, nil)
	f.st.failInsert = errors.New("connection reset")

	_, err := f.svc.CreateBooking(context.Background(), client(1, 1), classID)
	require.Error(t, err)

	assert.Equal(t, intp(3), f.st.remaining(pkg))
	assert.Equal(t, domain.ClassCounts{}, f.st.counts(classID))
	assert.Empty(t, f.rec.eventTypes())
	assert.Empty(t, f.rec.invalidated)
}

func TestCreateBooking_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.svc.limiter = denyLimiter{retry: 3 * time.Second}
	classID := f.class(1, 1, 0, 48*time.Hour)
	f.st.addPackage(1, 1, 3, nil)

	_, err := f.svc.CreateBooking(context.Background(), client(1, 1), classID)
	require.ErrorIs(t, err, ErrRateLimited)

	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 3*time.Second, rl.RetryAfter)
}

func TestAfterCommitHooks(t *testing.T) {
	f := newFixture(t)
	classID := f.class(1, 1, 0, 48*time.Hour)
	f.st.addPackage(1, 1, 3, nil)

	_, err := f.svc.CreateBooking(context.Background(), client(1, 1), classID)
	require.NoError(t, err)

	assert.Equal(t, []int64{classID}, f.rec.invalidated)
	assert.Equal(t, []int64{classID}, f.rec.changed)
}

func TestConcurrentBookers_LastSeat(t *testing.T) {
	f := newFixture(t)
	const users = 20
	classID := f.class(1, 3, 2, 48*time.Hour)
	for u := int64(1); u <= users; u++ {
		f.st.addPackage(u, 1, 1, nil)
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		confirmed  int
		waitlisted int
		full       int
	)
	for u := int64(1); u <= users; u++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			res, err := f.svc.CreateBooking(context.Background(), client(u, 1), classID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrClassFull):
				full++
			case err != nil:
				t.Errorf("user %d: %v", u, err)
			case res.State.Status() == domain.StatusConfirmed:
				confirmed++
			default:
				waitlisted++
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 3, confirmed)
	assert.Equal(t, 2, waitlisted)
	assert.Equal(t, users-5, full)
	assert.Equal(t, domain.ClassCounts{Confirmed: 3, Waitlisted: 2}, f.st.counts(classID))
	assert.True(t, f.st.creditsConserved())
}

func TestDecideState(t *testing.T) {
	c := domain.ClassSession{Capacity: 2, WaitlistCapacity: 1}

	tests := []struct {
		counts domain.ClassCounts
		want   domain.BookingState
		err    error
	}{
		{domain.ClassCounts{Confirmed: 0}, domain.Confirmed{}, nil},
		{domain.ClassCounts{Confirmed: 1}, domain.Confirmed{}, nil},
		{domain.ClassCounts{Confirmed: 2}, domain.Waitlisted{Position: 1}, nil},
		{domain.ClassCounts{Confirmed: 2, Waitlisted: 1}, nil, ErrClassFull},
	}

	for _, tt := range tests {
		got, err := decideState(c, tt.counts)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
