package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/advfilters/internal/db"
	"github.com/rpattn/advfilters/internal/domain"
)

// memoryFilterSpecRepository keeps specs in process. A single mutex makes
// every mutation atomic per record.
type memoryFilterSpecRepository struct {
	mu    sync.RWMutex
	specs map[uuid.UUID]domain.FilterSpec
}

// NewMemoryFilterSpecRepository creates an empty in-memory repository
func NewMemoryFilterSpecRepository() FilterSpecRepository {
	return &memoryFilterSpecRepository{specs: make(map[uuid.UUID]domain.FilterSpec)}
}

func cloneSpec(spec domain.FilterSpec) domain.FilterSpec {
	spec.SharedWith = append([]string(nil), spec.SharedWith...)
	spec.ReadOnly = false
	return spec
}

func (r *memoryFilterSpecRepository) Create(ctx context.Context, spec domain.FilterSpec) (domain.FilterSpec, error) {
	if err := ctx.Err(); err != nil {
		return domain.FilterSpec{}, db.Classify("create filter spec", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.ID]; exists {
		return domain.FilterSpec{}, fmt.Errorf("failed to create filter: %w: duplicate id %s", domain.ErrValidation, spec.ID)
	}
	r.specs[spec.ID] = cloneSpec(spec)
	return cloneSpec(spec), nil
}

func (r *memoryFilterSpecRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.FilterSpec, error) {
	if err := ctx.Err(); err != nil {
		return domain.FilterSpec{}, db.Classify("get filter spec", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[id]
	if !ok {
		return domain.FilterSpec{}, fmt.Errorf("filter %s: %w", id, domain.ErrNotFound)
	}
	return cloneSpec(spec), nil
}

func (r *memoryFilterSpecRepository) ListVisible(ctx context.Context, user string, entityType string) ([]domain.FilterSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, db.Classify("list filter specs", err)
	}
	r.mu.RLock()
	specs := make([]domain.FilterSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		if entityType != "" && spec.EntityType != entityType {
			continue
		}
		if spec.VisibleTo(user) {
			visible := cloneSpec(spec)
			visible.SharedWith = nil
			specs = append(specs, visible)
		}
	}
	r.mu.RUnlock()

	SortOwnFirst(specs, user)
	return specs, nil
}

func (r *memoryFilterSpecRepository) ListShares(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, db.Classify("list filter shares", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uuid.UUID][]string, len(ids))
	for _, id := range ids {
		if spec, ok := r.specs[id]; ok && len(spec.SharedWith) > 0 {
			out[id] = append([]string(nil), spec.SharedWith...)
		}
	}
	return out, nil
}

func (r *memoryFilterSpecRepository) Update(ctx context.Context, id uuid.UUID, mutate func(*domain.FilterSpec) error) (domain.FilterSpec, error) {
	if err := ctx.Err(); err != nil {
		return domain.FilterSpec{}, db.Classify("update filter spec", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.specs[id]
	if !ok {
		return domain.FilterSpec{}, fmt.Errorf("filter %s: %w", id, domain.ErrNotFound)
	}
	spec := cloneSpec(current)
	if err := mutate(&spec); err != nil {
		return domain.FilterSpec{}, err
	}
	spec.UpdatedAt = time.Now().UTC()
	r.specs[id] = cloneSpec(spec)
	return cloneSpec(spec), nil
}

func (r *memoryFilterSpecRepository) Delete(ctx context.Context, id uuid.UUID, allow func(domain.FilterSpec) error) error {
	if err := ctx.Err(); err != nil {
		return db.Classify("delete filter spec", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	spec, ok := r.specs[id]
	if !ok {
		return fmt.Errorf("filter %s: %w", id, domain.ErrNotFound)
	}
	if err := allow(cloneSpec(spec)); err != nil {
		return err
	}
	delete(r.specs, id)
	return nil
}

// SortOwnFirst orders specs owned by user first, then by creation time and id.
func SortOwnFirst(specs []domain.FilterSpec, user string) {
	sort.SliceStable(specs, func(i, j int) bool {
		oi, oj := specs[i].IsOwnedBy(user), specs[j].IsOwnedBy(user)
		if oi != oj {
			return oi
		}
		if !specs[i].CreatedAt.Equal(specs[j].CreatedAt) {
			return specs[i].CreatedAt.Before(specs[j].CreatedAt)
		}
		return specs[i].ID.String() < specs[j].ID.String()
	})
}
