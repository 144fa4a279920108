package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirinyoku/spinhub/internal/authz"
	"github.com/kirinyoku/spinhub/internal/domain"
	"github.com/kirinyoku/spinhub/internal/repository"
	postgresrepo "github.com/kirinyoku/spinhub/internal/repository/postgres"
	"github.com/kirinyoku/spinhub/internal/uow"
)

// maxCancellationHours caps branch cutoffs at one month.
const maxCancellationHours = 24 * 30

type Config struct {
	Now func() time.Time
}

type Service struct {
	store *postgresrepo.Store
	uow   *uow.UoW
	log   *slog.Logger
	cfg   Config
}

func New(store *postgresrepo.Store, log *slog.Logger, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		store: store,
		uow:   uow.NewUoW(store),
		log:   log,
		cfg:   cfg,
	}
}

type ClassInput struct {
	BranchID         int64
	Title            string
	Instructor       string
	StartsAt         time.Time
	DurationMinutes  int
	Capacity         int
	WaitlistCapacity int
}

func (in ClassInput) validate(now time.Time) error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return invalid("title", "must not be empty")
	case in.Capacity < 0:
		return invalid("capacity", "must not be negative")
	case in.WaitlistCapacity < 0:
		return invalid("waitlist_capacity", "must not be negative")
	case in.DurationMinutes <= 0:
		return invalid("duration_minutes", "must be positive")
	case !in.StartsAt.After(now):
		return invalid("starts_at", "must be in the future")
	}
	return nil
}

type PackageInput struct {
	UserID       int64
	BranchID     int64
	Name         string
	TotalClasses int
	// Unlimited packages ignore TotalClasses and never run out.
	Unlimited bool
	ExpiresAt *time.Time
}

func (in PackageInput) validate(now time.Time) error {
	switch {
	case in.UserID <= 0:
		return invalid("user_id", "must be positive")
	case !in.Unlimited && in.TotalClasses <= 0:
		return invalid("total_classes", "must be positive for a finite package")
	case in.ExpiresAt != nil && !in.ExpiresAt.After(now):
		return invalid("expires_at", "must be in the future")
	}
	return nil
}

// CreateBranch creates a studio branch. Superuser only.
//
// Parameters:
//   - ctx: request-scoped context.
//   - who: acting identity.
//   - name: unique branch name.
//   - cancellationHours: branch cutoff; negative leaves it to the service default.
//
// Returns:
//   - int64: the created branch ID.
//   - error: admin.ErrBranchConflict if a branch with the same name exists.
func (s *Service) CreateBranch(ctx context.Context, who domain.Identity, name string, cancellationHours int) (int64, error) {
	const op = "service.admin.CreateBranch"

	if _, err := authz.Require(who, domain.RoleSuperuser); err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%s:%w", op, invalid("name", "must not be empty"))
	}
	if cancellationHours > maxCancellationHours {
		return 0, fmt.Errorf("%s:%w", op, invalid("cancellation_hours", "too large"))
	}

	var id int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		id, err = s.store.Branches().With(tx).Create(ctx, name, cancellationHours)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrBranchConflict
			}
			return err
		}

		return s.store.Audit().With(tx).Record(ctx, domain.AuditEntry{
			ActorID:     who.UserID,
			Action:      "branch.create",
			EntityType:  "branch",
			EntityID:    id,
			Description: fmt.Sprintf("created branch %q", name),
			Metadata:    map[string]any{"cancellation_hours": cancellationHours},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

// ScheduleClass adds a class session to a branch the caller administers.
//
// Returns:
//   - int64: the created class ID.
//   - error: admin.ErrBranchNotFound if the branch is missing or out of scope.
//   - error: *admin.ValidationError if the input is malformed.
func (s *Service) ScheduleClass(ctx context.Context, who domain.Identity, in ClassInput) (int64, error) {
	const op = "service.admin.ScheduleClass"

	scope, err := authz.Require(who, authz.StaffOnly...)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}
	if err := scope.Branch(in.BranchID); err != nil {
		return 0, fmt.Errorf("%s:%w", op, ErrBranchNotFound)
	}

	if err := in.validate(s.cfg.Now()); err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	var id int64
	err = s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		id, err = s.store.Classes().With(tx).Create(ctx, domain.ClassSession{
			BranchID:         in.BranchID,
			Title:            strings.TrimSpace(in.Title),
			Instructor:       strings.TrimSpace(in.Instructor),
			StartsAt:         in.StartsAt,
			DurationMinutes:  in.DurationMinutes,
			Capacity:         in.Capacity,
			WaitlistCapacity: in.WaitlistCapacity,
		})
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBranchNotFound
			}
			return err
		}

		return s.store.Audit().With(tx).Record(ctx, domain.AuditEntry{
			ActorID:     who.UserID,
			Action:      "class.schedule",
			EntityType:  "class_session",
			EntityID:    id,
			Description: fmt.Sprintf("scheduled %q at %s", in.Title, in.StartsAt.UTC().Format(time.RFC3339)),
			Metadata: map[string]any{
				"branch_id":         in.BranchID,
				"capacity":          in.Capacity,
				"waitlist_capacity": in.WaitlistCapacity,
			},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	s.log.Info("class scheduled",
		slog.Int64("class_id", id),
		slog.Int64("branch_id", in.BranchID),
		slog.Int64("actor_id", who.UserID),
	)
	return id, nil
}

// GrantPackage issues a credit package to a member of the caller's branch.
func (s *Service) GrantPackage(ctx context.Context, who domain.Identity, in PackageInput) (int64, error) {
	const op = "service.admin.GrantPackage"

	scope, err := authz.Require(who, authz.StaffOnly...)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}
	if err := scope.Branch(in.BranchID); err != nil {
		return 0, fmt.Errorf("%s:%w", op, ErrBranchNotFound)
	}

	if err := in.validate(s.cfg.Now()); err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	pkg := domain.UserPackage{
		UserID:       in.UserID,
		BranchID:     in.BranchID,
		Name:         strings.TrimSpace(in.Name),
		TotalClasses: in.TotalClasses,
		ExpiresAt:    in.ExpiresAt,
	}
	if in.Unlimited {
		pkg.TotalClasses = 0
	} else {
		remaining := in.TotalClasses
		pkg.ClassesRemaining = &remaining
	}

	var id int64
	err = s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		id, err = s.store.Packages().With(tx).Create(ctx, pkg)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBranchNotFound
			}
			return err
		}

		return s.store.Audit().With(tx).Record(ctx, domain.AuditEntry{
			ActorID:     who.UserID,
			Action:      "package.grant",
			EntityType:  "user_package",
			EntityID:    id,
			Description: fmt.Sprintf("granted package %q to user %d", pkg.Name, in.UserID),
			Metadata: map[string]any{
				"user_id":       in.UserID,
				"branch_id":     in.BranchID,
				"total_classes": pkg.TotalClasses,
				"unlimited":     in.Unlimited,
			},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

// SetCancellationPolicy changes how many hours before class start members
// may still cancel in a branch.
func (s *Service) SetCancellationPolicy(ctx context.Context, who domain.Identity, branchID int64, hours int) error {
	const op = "service.admin.SetCancellationPolicy"

	scope, err := authz.Require(who, authz.StaffOnly...)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	if err := scope.Branch(branchID); err != nil {
		return fmt.Errorf("%s:%w", op, ErrBranchNotFound)
	}

	if hours < 0 || hours > maxCancellationHours {
		return fmt.Errorf("%s:%w", op, invalid("hours", fmt.Sprintf("must be between 0 and %d", maxCancellationHours)))
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		branches := s.store.Branches().With(tx)

		prev, err := branches.Get(ctx, branchID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBranchNotFound
			}
			return err
		}

		if err := branches.SetCancellationHours(ctx, branchID, hours); err != nil {
			return err
		}

		return s.store.Audit().With(tx).Record(ctx, domain.AuditEntry{
			ActorID:     who.UserID,
			Action:      "branch.cancellation_policy",
			EntityType:  "branch",
			EntityID:    branchID,
			Description: fmt.Sprintf("cancellation cutoff set to %dh", hours),
			Metadata:    map[string]any{"previous": prev.CancellationHoursBefore, "hours": hours},
		})
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
