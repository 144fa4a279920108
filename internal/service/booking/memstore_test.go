package booking

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/kirinyoku/spinhub/internal/domain"
	"github.com/kirinyoku/spinhub/internal/repository"
	"github.com/kirinyoku/spinhub/internal/uow"
)

// memStore is a TxRunner whose transactions run one at a time against
// in-memory tables. A failed transaction restores the tables it started
// from.
type memStore struct {
	mu sync.Mutex

	classes  map[int64]domain.ClassSession
	branches map[int64]domain.Branch
	bookings map[int64]domain.Booking
	packages map[int64]domain.UserPackage
	audit    []domain.AuditEntry
	nextID   int64

	// failInsert makes InsertBooking fail after earlier writes succeeded.
	failInsert error
}

func newMemStore() *memStore {
	return &memStore{
		classes:  map[int64]domain.ClassSession{},
		branches: map[int64]domain.Branch{},
		bookings: map[int64]domain.Booking{},
		packages: map[int64]domain.UserPackage{},
		nextID:   1000,
	}
}

func (m *memStore) InTx(
	ctx context.Context,
	fn func(ctx context.Context, st Store, after func(uow.AfterCommit)) error,
) error {
	var hooks []uow.AfterCommit

	err := func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		classes := maps.Clone(m.classes)
		bookings := maps.Clone(m.bookings)
		packages := maps.Clone(m.packages)
		audit := slices.Clone(m.audit)
		nextID := m.nextID

		if err := fn(ctx, memTx{m}, func(h uow.AfterCommit) { hooks = append(hooks, h) }); err != nil {
			m.classes, m.bookings, m.packages, m.audit, m.nextID = classes, bookings, packages, audit, nextID
			return err
		}
		return nil
	}()
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(context.WithoutCancel(ctx))
	}
	return nil
}

func (m *memStore) addBranch(id int64, hours int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branches[id] = domain.Branch{ID: id, Name: "branch", CancellationHoursBefore: hours}
}

func (m *memStore) addClass(c domain.ClassSession) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	if c.Title == "" {
		c.Title = "Rhythm Ride"
	}
	m.classes[c.ID] = c
	return c.ID
}

// addPackage grants a package; remaining < 0 means unlimited.
func (m *memStore) addPackage(userID, branchID int64, remaining int, expires *time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p := domain.UserPackage{
		ID:           m.nextID,
		UserID:       userID,
		BranchID:     branchID,
		Name:         "pack",
		TotalClasses: remaining,
		ExpiresAt:    expires,
	}
	if remaining >= 0 {
		r := remaining
		p.ClassesRemaining = &r
	} else {
		p.TotalClasses = 0
	}
	m.packages[p.ID] = p
	return p.ID
}

func (m *memStore) booking(id int64) domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memStore) remaining(pkgID int64) *int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.packages[pkgID].ClassesRemaining
}

func (m *memStore) counts(classID int64) domain.ClassCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.countsLocked(classID)
}

func (m *memStore) auditLog() []domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.audit)
}

// creditsConserved reports whether every finite package's remaining credits
// plus the credits held by its confirmed bookings add up to its total.
func (m *memStore) creditsConserved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	held := map[int64]int{}
	for _, b := range m.bookings {
		if _, ok := b.State.(domain.Confirmed); ok && b.CreditUsed && b.PackageID != nil {
			held[*b.PackageID]++
		}
	}
	for id, p := range m.packages {
		if p.Unlimited() {
			continue
		}
		if *p.ClassesRemaining+held[id] != p.TotalClasses {
			return false
		}
	}
	return true
}

// memTx runs with memStore.mu held.
type memTx struct{ m *memStore }

func (t memTx) LockClass(_ context.Context, classID int64) (*domain.ClassSession, error) {
	c, ok := t.m.classes[classID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (t memTx) countsLocked(classID int64) domain.ClassCounts {
	var n domain.ClassCounts
	for _, b := range t.m.bookings {
		if b.ClassID != classID {
			continue
		}
		switch b.State.(type) {
		case domain.Confirmed:
			n.Confirmed++
		case domain.Waitlisted:
			n.Waitlisted++
		}
	}
	return n
}

func (t memTx) ClassCounts(_ context.Context, classID int64) (domain.ClassCounts, error) {
	return t.countsLocked(classID), nil
}

func (t memTx) Branch(_ context.Context, branchID int64) (*domain.Branch, error) {
	b, ok := t.m.branches[branchID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (t memTx) Booking(_ context.Context, id int64) (*domain.Booking, error) {
	b, ok := t.m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (t memTx) LockBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return t.Booking(ctx, id)
}

func (t memTx) ActiveBooking(_ context.Context, userID, classID int64) (*domain.Booking, error) {
	for _, b := range t.m.bookings {
		if b.UserID == userID && b.ClassID == classID && domain.Active(b.State) {
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t memTx) InsertBooking(ctx context.Context, b domain.Booking) (int64, error) {
	if t.m.failInsert != nil {
		return 0, t.m.failInsert
	}
	if _, err := t.ActiveBooking(ctx, b.UserID, b.ClassID); err == nil {
		return 0, repository.ErrConflict
	}
	t.m.nextID++
	b.ID = t.m.nextID
	t.m.bookings[b.ID] = b
	return b.ID, nil
}

func (t memTx) CancelBooking(_ context.Context, id int64, at time.Time) error {
	b, ok := t.m.bookings[id]
	if !ok || !domain.Active(b.State) {
		return repository.ErrNotFound
	}
	b.State = domain.Cancelled{At: at}
	t.m.bookings[id] = b
	return nil
}

func (t memTx) NextWaitlisted(_ context.Context, classID int64) (*domain.Booking, error) {
	var best *domain.Booking
	for _, b := range t.m.bookings {
		w, ok := b.State.(domain.Waitlisted)
		if !ok || b.ClassID != classID {
			continue
		}
		if best == nil {
			best = &b
			continue
		}
		bw := best.State.(domain.Waitlisted)
		if w.Position < bw.Position || (w.Position == bw.Position && b.BookedAt.Before(best.BookedAt)) {
			best = &b
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (t memTx) PromoteBooking(_ context.Context, id int64, packageID *int64, creditUsed bool) error {
	b, ok := t.m.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := b.State.(domain.Waitlisted); !ok {
		return repository.ErrNotFound
	}
	b.State = domain.Confirmed{}
	b.PackageID = packageID
	b.CreditUsed = creditUsed
	t.m.bookings[id] = b
	return nil
}

func (t memTx) ShiftWaitlist(_ context.Context, classID int64, vacated int) error {
	for id, b := range t.m.bookings {
		w, ok := b.State.(domain.Waitlisted)
		if !ok || b.ClassID != classID || w.Position <= vacated {
			continue
		}
		b.State = domain.Waitlisted{Position: w.Position - 1}
		t.m.bookings[id] = b
	}
	return nil
}

func (t memTx) EligiblePackage(_ context.Context, userID, branchID int64, at time.Time) (*domain.UserPackage, error) {
	var out []domain.UserPackage
	for _, p := range t.m.packages {
		if p.UserID == userID && p.BranchID == branchID && p.Usable(at) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, repository.ErrNotFound
	}

	slices.SortFunc(out, func(a, b domain.UserPackage) int {
		switch {
		case a.ExpiresAt != nil && b.ExpiresAt == nil:
			return -1
		case a.ExpiresAt == nil && b.ExpiresAt != nil:
			return 1
		case a.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Compare(*b.ExpiresAt)
		}
		return int(a.ID - b.ID)
	})
	return &out[0], nil
}

func (t memTx) LockPackage(_ context.Context, id int64) (*domain.UserPackage, error) {
	p, ok := t.m.packages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (t memTx) ConsumeCredit(_ context.Context, packageID int64) error {
	p, ok := t.m.packages[packageID]
	if !ok || p.Unlimited() || *p.ClassesRemaining <= 0 {
		return repository.ErrNoCredit
	}
	v := *p.ClassesRemaining - 1
	p.ClassesRemaining = &v
	t.m.packages[packageID] = p
	return nil
}

func (t memTx) RefundCredit(_ context.Context, packageID int64) error {
	p, ok := t.m.packages[packageID]
	if !ok || p.Unlimited() {
		return nil
	}
	v := min(*p.ClassesRemaining+1, p.TotalClasses)
	p.ClassesRemaining = &v
	t.m.packages[packageID] = p
	return nil
}

func (t memTx) RecordAudit(_ context.Context, e domain.AuditEntry) error {
	if e.Action == "" {
		return errors.New("audit entry without action")
	}
	t.m.audit = append(t.m.audit, e)
	return nil
}
