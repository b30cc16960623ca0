// Package filters is the saved filter store: it validates, persists, lists
// and applies filter specifications on behalf of an acting user.
package filters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/advfilters/internal/auth"
	"github.com/rpattn/advfilters/internal/compiler"
	"github.com/rpattn/advfilters/internal/datasource"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/log"
	"github.com/rpattn/advfilters/internal/repository"
	"github.com/rpattn/advfilters/internal/schema"
	"github.com/rpattn/advfilters/internal/shareloader"
)

const DefaultResultsPageSize = 50

type Options struct {
	EditByUser      bool
	ResultsPageSize int
}

type Service struct {
	repo     repository.FilterSpecRepository
	compiler *compiler.Compiler
	resolver *schema.Resolver
	source   datasource.Source
	guard    PermissionGuard
	pageSize int
}

func NewService(repo repository.FilterSpecRepository, c *compiler.Compiler, resolver *schema.Resolver, source datasource.Source, opts Options) *Service {
	pageSize := opts.ResultsPageSize
	if pageSize <= 0 {
		pageSize = DefaultResultsPageSize
	}
	return &Service{
		repo:     repo,
		compiler: c,
		resolver: resolver,
		source:   source,
		guard:    NewPermissionGuard(opts.EditByUser),
		pageSize: pageSize,
	}
}

func (s *Service) Guard() PermissionGuard {
	return s.guard
}

func (s *Service) ResultsPageSize() int {
	return s.pageSize
}

// CreateInput is what a user submits to save a filter.
type CreateInput struct {
	Title      string             `json:"title"`
	EntityType string             `json:"entity_type"`
	Criteria   domain.CriteriaSet `json:"criteria"`
	IsPublic   bool               `json:"is_public"`
	SharedWith []string           `json:"shared_with"`
}

// Create validates the criteria by compiling them and saves the filter owned
// by actor. The owner is always added to the share list.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (domain.FilterSpec, error) {
	if strings.TrimSpace(in.Title) == "" {
		return domain.FilterSpec{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	entityType := in.EntityType
	if entityType == "" {
		entityType = in.Criteria.Entity
	}
	es, err := s.resolver.Entity(entityType)
	if err != nil {
		return domain.FilterSpec{}, err
	}

	p, err := s.compiler.CompileFor(es.Type, in.Criteria)
	if err != nil {
		return domain.FilterSpec{}, invalid(err)
	}
	criteria := in.Criteria
	criteria.Entity = es.Type

	spec := domain.NewFilterSpec(in.Title, es.Type, criteria, actor.ID, in.IsPublic, in.SharedWith)
	spec.Predicate = p

	created, err := s.repo.Create(ctx, spec)
	if err != nil {
		return domain.FilterSpec{}, err
	}
	log.Infof("filter %s created by %s on %s", created.ID, actor.ID, created.EntityType)
	return created, nil
}

// ListVisible returns filters actor owns, public filters and filters shared
// with actor, own first. An empty entityType lists every entity.
func (s *Service) ListVisible(ctx context.Context, actor auth.Actor, entityType string) ([]domain.FilterSpec, error) {
	if entityType != "" {
		es, err := s.resolver.Entity(entityType)
		if err != nil {
			return nil, err
		}
		entityType = es.Type
	}

	specs, err := s.repo.ListVisible(ctx, actor.ID, entityType)
	if err != nil {
		return nil, err
	}
	if err := s.attachShares(ctx, specs); err != nil {
		return nil, err
	}
	for i := range specs {
		specs[i].ReadOnly = !specs[i].IsOwnedBy(actor.ID)
	}
	return specs, nil
}

func (s *Service) attachShares(ctx context.Context, specs []domain.FilterSpec) error {
	if len(specs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(specs))
	for i, spec := range specs {
		ids[i] = spec.ID
	}

	var shares [][]string
	if loader := shareloader.FromContext(ctx); loader != nil {
		loaded, err := loader.LoadMany(ctx, ids)
		if err != nil {
			return err
		}
		shares = loaded
	} else {
		byID, err := s.repo.ListShares(ctx, ids)
		if err != nil {
			return err
		}
		shares = make([][]string, len(ids))
		for i, id := range ids {
			shares[i] = byID[id]
		}
	}
	for i := range specs {
		specs[i].SharedWith = append([]string{}, shares[i]...)
	}
	return nil
}

// Get fetches one filter by id. Non-owners get it flagged read-only.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (domain.FilterSpec, error) {
	spec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.FilterSpec{}, err
	}
	spec.ReadOnly = !spec.IsOwnedBy(actor.ID)
	return spec, nil
}

// Update applies patch when actor owns the filter. New criteria are compiled
// before anything is written.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, patch domain.FilterSpecPatch) (domain.FilterSpec, error) {
	updated, err := s.repo.Update(ctx, id, func(spec *domain.FilterSpec) error {
		if err := s.guard.CanMutate(actor, *spec); err != nil {
			return err
		}
		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if title == "" {
				return fmt.Errorf("%w: title is required", domain.ErrValidation)
			}
			spec.Title = title
		}
		if patch.Criteria != nil {
			p, err := s.compiler.CompileFor(spec.EntityType, *patch.Criteria)
			if err != nil {
				return invalid(err)
			}
			spec.Criteria = *patch.Criteria
			spec.Criteria.Entity = spec.EntityType
			spec.Predicate = p
		}
		if patch.IsPublic != nil {
			spec.IsPublic = *patch.IsPublic
		}
		if patch.SharedWith != nil {
			spec.SharedWith = domain.NormalizeShares(spec.OwnerID, *patch.SharedWith)
		}
		return nil
	})
	if err != nil {
		return domain.FilterSpec{}, err
	}
	return updated, nil
}

// DeleteOne removes a single filter, subject to PermissionGuard.CanDelete.
func (s *Service) DeleteOne(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id, func(spec domain.FilterSpec) error {
		return s.guard.CanDelete(actor, spec)
	})
	if err != nil {
		return err
	}
	log.Infof("filter %s deleted by %s", id, actor.ID)
	return nil
}

// Delete removes the filters among ids that actor owns. Filters owned by
// someone else are skipped and unknown ids reported as missing; neither is an
// error. Each record is deleted in its own transaction, so a storage failure
// part way leaves earlier deletions in place and is returned with the counts
// so far.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, ids []uuid.UUID) (domain.DeleteResult, error) {
	result := domain.DeleteResult{DeletedIDs: []uuid.UUID{}, SkippedIDs: []uuid.UUID{}}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		err := s.repo.Delete(ctx, id, func(spec domain.FilterSpec) error {
			return s.guard.CanBulkDelete(actor, spec)
		})
		switch {
		case err == nil:
			result.Deleted++
			result.DeletedIDs = append(result.DeletedIDs, id)
		case errors.Is(err, domain.ErrPermissionDenied):
			result.Skipped++
			result.SkippedIDs = append(result.SkippedIDs, id)
		case errors.Is(err, domain.ErrNotFound):
			result.Missing++
		default:
			return result, err
		}
	}
	log.Infof("bulk delete by %s: deleted=%d skipped=%d missing=%d", actor.ID, result.Deleted, result.Skipped, result.Missing)
	return result, nil
}

// Apply compiles the stored criteria against the current schema and returns
// one page (1-indexed) of matching rows. restrict is conjoined with the
// filter, e.g. a tenant restriction owned by the caller.
func (s *Service) Apply(ctx context.Context, actor auth.Actor, id uuid.UUID, page int, restrict ...domain.Predicate) (datasource.ResultSet, error) {
	if page < 1 {
		return datasource.ResultSet{}, fmt.Errorf("%w: page must be 1 or greater", domain.ErrValidation)
	}
	spec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return datasource.ResultSet{}, err
	}
	if err := s.guard.CanApply(actor, spec); err != nil {
		return datasource.ResultSet{}, err
	}

	es, err := s.resolver.Entity(spec.EntityType)
	if err != nil {
		return datasource.ResultSet{}, invalid(err)
	}
	p, err := s.compiler.CompileFor(es.Type, spec.Criteria)
	if err != nil {
		return datasource.ResultSet{}, invalid(fmt.Errorf("saved filter %q no longer matches the schema: %w", spec.Title, err))
	}
	p = domain.Conjoin(p, restrict...)

	return s.source.Select(ctx, es, p, s.pageSize, (page-1)*s.pageSize)
}

// invalid marks a compile failure as a validation error while keeping the
// per-criterion details reachable with errors.As.
func invalid(err error) error {
	if errors.Is(err, domain.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrValidation, err)
}
