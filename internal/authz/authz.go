// Package authz holds the role and branch scoping checks shared by every
// service operation.
package authz

import (
	"errors"
	"slices"

	"github.com/kirinyoku/spinhub/internal/domain"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrOutOfScope   = errors.New("outside branch scope")
)

var (
	AnyRole   = []domain.Role{domain.RoleClient, domain.RoleAdmin, domain.RoleSuperuser}
	StaffOnly = []domain.Role{domain.RoleAdmin, domain.RoleSuperuser}
)

// Scope is an identity that passed the role check.
type Scope struct {
	who domain.Identity
}

// Require fails with ErrUnauthorized when there is no session or the
// caller's role is not one of allowed.
func Require(who domain.Identity, allowed ...domain.Role) (Scope, error) {
	if who.IsZero() || !who.Role.Valid() {
		return Scope{}, ErrUnauthorized
	}

	if !slices.Contains(allowed, who.Role) {
		return Scope{}, ErrUnauthorized
	}

	return Scope{who: who}, nil
}

func (s Scope) Superuser() bool { return s.who.Role == domain.RoleSuperuser }

func (s Scope) Staff() bool {
	return s.who.Role == domain.RoleAdmin || s.who.Role == domain.RoleSuperuser
}

// Branch fails with ErrOutOfScope when the target branch is not the
// caller's. Superusers see every branch.
func (s Scope) Branch(branchID int64) error {
	if s.Superuser() || s.who.BranchID == branchID {
		return nil
	}
	return ErrOutOfScope
}

// Owner checks branch scope and then that the caller either owns the
// resource or is staff.
func (s Scope) Owner(branchID, ownerID int64) error {
	if err := s.Branch(branchID); err != nil {
		return err
	}

	if s.Staff() || s.who.UserID == ownerID {
		return nil
	}

	return ErrUnauthorized
}
