package booking

import (
	"context"
	"time"

	"github.com/kirinyoku/spinhub/internal/domain"
	postgresrepo "github.com/kirinyoku/spinhub/internal/repository/postgres"
	"github.com/kirinyoku/spinhub/internal/uow"
)

// Store is the transaction-scoped view of the rows a booking operation
// touches. Lookups that find nothing return repository.ErrNotFound.
type Store interface {
	LockClass(ctx context.Context, classID int64) (*domain.ClassSession, error)
	ClassCounts(ctx context.Context, classID int64) (domain.ClassCounts, error)
	Branch(ctx context.Context, branchID int64) (*domain.Branch, error)

	Booking(ctx context.Context, id int64) (*domain.Booking, error)
	LockBooking(ctx context.Context, id int64) (*domain.Booking, error)
	ActiveBooking(ctx context.Context, userID, classID int64) (*domain.Booking, error)
	InsertBooking(ctx context.Context, b domain.Booking) (int64, error)
	CancelBooking(ctx context.Context, id int64, at time.Time) error
	NextWaitlisted(ctx context.Context, classID int64) (*domain.Booking, error)
	PromoteBooking(ctx context.Context, id int64, packageID *int64, creditUsed bool) error
	ShiftWaitlist(ctx context.Context, classID int64, vacated int) error

	EligiblePackage(ctx context.Context, userID, branchID int64, at time.Time) (*domain.UserPackage, error)
	LockPackage(ctx context.Context, id int64) (*domain.UserPackage, error)
	ConsumeCredit(ctx context.Context, packageID int64) error
	RefundCredit(ctx context.Context, packageID int64) error

	RecordAudit(ctx context.Context, e domain.AuditEntry) error
}

// TxRunner runs fn atomically: either every write fn made through st is
// committed or none is.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, st Store, after func(uow.AfterCommit)) error) error
}

type pgRunner struct {
	store *postgresrepo.Store
	uow   *uow.UoW
}

// NewPostgresRunner returns a TxRunner backed by PostgreSQL row locks.
func NewPostgresRunner(store *postgresrepo.Store) TxRunner {
	return &pgRunner{store: store, uow: uow.NewUoW(store)}
}

func (r *pgRunner) InTx(
	ctx context.Context,
	fn func(ctx context.Context, st Store, after func(uow.AfterCommit)) error,
) error {
	return r.uow.DoWithOpts(ctx, uow.RowLocking, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		return fn(ctx, &pgStore{s: r.store, tx: tx}, after)
	})
}

type pgStore struct {
	s  *postgresrepo.Store
	tx postgresrepo.DB
}

func (p *pgStore) LockClass(ctx context.Context, classID int64) (*domain.ClassSession, error) {
	return p.s.Classes().With(p.tx).LockForUpdate(ctx, classID)
}

func (p *pgStore) ClassCounts(ctx context.Context, classID int64) (domain.ClassCounts, error) {
	return p.s.Classes().With(p.tx).Counts(ctx, classID)
}

func (p *pgStore) Branch(ctx context.Context, branchID int64) (*domain.Branch, error) {
	return p.s.Branches().With(p.tx).Get(ctx, branchID)
}

func (p *pgStore) Booking(ctx context.Context, id int64) (*domain.Booking, error) {
	return p.s.Bookings().With(p.tx).Get(ctx, id)
}

func (p *pgStore) LockBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return p.s.Bookings().With(p.tx).LockForUpdate(ctx, id)
}

func (p *pgStore) ActiveBooking(ctx context.Context, userID, classID int64) (*domain.Booking, error) {
	return p.s.Bookings().With(p.tx).Active(ctx, userID, classID)
}

func (p *pgStore) InsertBooking(ctx context.Context, b domain.Booking) (int64, error) {
	return p.s.Bookings().With(p.tx).Insert(ctx, b)
}

func (p *pgStore) CancelBooking(ctx context.Context, id int64, at time.Time) error {
	return p.s.Bookings().With(p.tx).Cancel(ctx, id, at)
}

func (p *pgStore) NextWaitlisted(ctx context.Context, classID int64) (*domain.Booking, error) {
	return p.s.Bookings().With(p.tx).NextWaitlisted(ctx, classID)
}

func (p *pgStore) PromoteBooking(ctx context.Context, id int64, packageID *int64, creditUsed bool) error {
	return p.s.Bookings().With(p.tx).Promote(ctx, id, packageID, creditUsed)
}

func (p *pgStore) ShiftWaitlist(ctx context.Context, classID int64, vacated int) error {
	return p.s.Bookings().With(p.tx).ShiftWaitlist(ctx, classID, vacated)
}

func (p *pgStore) EligiblePackage(
	ctx context.Context,
	userID, branchID int64,
	at time.Time,
) (*domain.UserPackage, error) {
	return p.s.Packages().With(p.tx).EligibleForUpdate(ctx, userID, branchID, at)
}

func (p *pgStore) LockPackage(ctx context.Context, id int64) (*domain.UserPackage, error) {
	return p.s.Packages().With(p.tx).LockForUpdate(ctx, id)
}

func (p *pgStore) ConsumeCredit(ctx context.Context, packageID int64) error {
	return p.s.Packages().With(p.tx).Consume(ctx, packageID)
}

func (p *pgStore) RefundCredit(ctx context.Context, packageID int64) error {
	return p.s.Packages().With(p.tx).Refund(ctx, packageID)
}

func (p *pgStore) RecordAudit(ctx context.Context, e domain.AuditEntry) error {
	return p.s.Audit().With(p.tx).Record(ctx, e)
}
