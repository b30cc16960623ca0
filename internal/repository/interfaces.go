package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/advfilters/internal/domain"
)

// FilterSpecRepository persists saved filters and their share lists.
//
// Update and Delete run inside a transaction scoped to the one record: the
// row is read (and locked where the database supports it), handed to the
// callback, and written back only when the callback returns nil.
type FilterSpecRepository interface {
	Create(ctx context.Context, spec domain.FilterSpec) (domain.FilterSpec, error)
	// GetByID returns domain.ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id uuid.UUID) (domain.FilterSpec, error)
	// ListVisible returns the specs user may see, own first, then by
	// creation time. SharedWith is not populated; use ListShares.
	ListVisible(ctx context.Context, user string, entityType string) ([]domain.FilterSpec, error)
	// ListShares returns the share list of each id. Ids without shares are
	// absent from the map.
	ListShares(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]string, error)
	Update(ctx context.Context, id uuid.UUID, mutate func(*domain.FilterSpec) error) (domain.FilterSpec, error)
	Delete(ctx context.Context, id uuid.UUID, allow func(domain.FilterSpec) error) error
}
