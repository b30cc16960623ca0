package filters

import (
	"fmt"

	"github.com/rpattn/advfilters/internal/auth"
	"github.com/rpattn/advfilters/internal/domain"
)

// PermissionGuard is the single place ownership rules live. The store
// consults it for every read, mutation and delete.
type PermissionGuard struct {
	// EditByUser restricts deletes to owners and elevated users. When false
	// anyone may delete any filter they can reach by id.
	EditByUser bool
}

func NewPermissionGuard(editByUser bool) PermissionGuard {
	return PermissionGuard{EditByUser: editByUser}
}

// CanView reports whether actor sees spec in listings.
func (g PermissionGuard) CanView(actor auth.Actor, spec domain.FilterSpec) bool {
	return spec.VisibleTo(actor.ID)
}

// CanMutate allows the owner only. Elevated users do not get to rewrite
// someone else's filter.
func (g PermissionGuard) CanMutate(actor auth.Actor, spec domain.FilterSpec) error {
	if spec.IsOwnedBy(actor.ID) {
		return nil
	}
	return fmt.Errorf("%w: user does not own the filter", domain.ErrPermissionDenied)
}

// CanDelete allows the owner, an elevated actor, or anyone when editing is
// not restricted to owners.
func (g PermissionGuard) CanDelete(actor auth.Actor, spec domain.FilterSpec) error {
	if spec.IsOwnedBy(actor.ID) || actor.Elevated || !g.EditByUser {
		return nil
	}
	return fmt.Errorf("%w: user does not own the filter", domain.ErrPermissionDenied)
}

// CanBulkDelete allows the owner only, whatever the configuration.
func (g PermissionGuard) CanBulkDelete(actor auth.Actor, spec domain.FilterSpec) error {
	return g.CanMutate(actor, spec)
}

// CanApply allows running a filter the actor can see, or any filter for
// actors allowed to manage everyone's filters.
func (g PermissionGuard) CanApply(actor auth.Actor, spec domain.FilterSpec) error {
	if g.CanView(actor, spec) || actor.Elevated || !g.EditByUser {
		return nil
	}
	return fmt.Errorf("%w: filter is not shared with the user", domain.ErrPermissionDenied)
}
