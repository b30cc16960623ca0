package filters

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/advfilters/internal/auth"
	"github.com/rpattn/advfilters/internal/compiler"
	"github.com/rpattn/advfilters/internal/datasource"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/operators"
	"github.com/rpattn/advfilters/internal/repository"
	"github.com/rpattn/advfilters/internal/schema/schematest"
	"github.com/rpattn/advfilters/internal/shareloader"
)

var (
	alice = auth.Actor{ID: "alice"}
	bob   = auth.Actor{ID: "bob"}
	admin = auth.Actor{ID: "root", Elevated: true}
)

func newService(t *testing.T, opts Options) (*Service, repository.FilterSpecRepository) {
	t.Helper()
	resolver := schematest.Resolver(t)
	src := datasource.NewMemorySource(resolver)
	if err := src.LoadFixtures(bytes.NewReader(schematest.RowsYAML)); err != nil {
		t.Fatalf("failed to load fixtures: %v", err)
	}
	repo := repository.NewMemoryFilterSpecRepository()
	c := compiler.New(resolver, operators.MustCatalog(nil, nil))
	return NewService(repo, c, resolver, src, opts), repo
}

func activeClients() domain.CriteriaSet {
	return domain.CriteriaSet{
		Combinator: domain.CombinatorAll,
		Criteria:   []domain.Criterion{{Field: "is_active", Operator: domain.OpIsTrue}},
	}
}

func mustCreate(t *testing.T, svc *Service, actor auth.Actor, title string, public bool, shared ...string) domain.FilterSpec {
	t.Helper()
	spec, err := svc.Create(context.Background(), actor, CreateInput{
		Title:      title,
		EntityType: "customers.Client",
		Criteria:   activeClients(),
		IsPublic:   public,
		SharedWith: shared,
	})
	if err != nil {
		t.Fatalf("create %s: %v", title, err)
	}
	return spec
}

func TestCreate_SetsOwnerSharesAndPredicate(t *testing.T) {
	svc, _ := newService(t, Options{EditByUser: true})

	spec := mustCreate(t, svc, alice, "  Active  ", false, "bob")
	if spec.OwnerID != "alice" || spec.Title != "Active" {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if !reflect.DeepEqual(spec.SharedWith, []string{"alice", "bob"}) {
		t.Fatalf("owner must be added to the share list, got %v", spec.SharedWith)
	}
	if spec.Predicate.Op != domain.OpIsTrue || spec.Criteria.Entity != "customers.Client" {
		t.Fatalf("unexpected compiled form %+v / %+v", spec.Predicate, spec.Criteria)
	}
}

func TestCreate_RejectsCriteriaThatDoNotCompile(t *testing.T) {
	svc, _ := newService(t, Options{EditByUser: true})

	_, err := svc.Create(context.Background(), alice, CreateInput{
		Title:      "Bad",
		EntityType: "customers.Client",
		Criteria: domain.CriteriaSet{Criteria: []domain.Criterion{
			{Field: "created_at", Operator: domain.OpRange, Value: domain.Values{"2024-01-01"}},
		}},
	})
	if !errors.Is(err, domain.ErrValidation) || !errors.Is(err, domain.ErrArityMismatch) {
		t.Fatalf("expected a validation error wrapping the arity mismatch, got %v", err)
	}
	var errs compiler.Errors
	if !errors.As(err, &errs) || errs[0].Location != "criteria[0]" {
		t.Fatalf("expected per-criterion details, got %#v", err)
	}

	if _, err := svc.Create(context.Background(), alice, CreateInput{Title: " ", EntityType: "customers.Client"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected a missing title to be rejected, got %v", err)
	}
}

func TestListVisible_UnionOfOwnPublicAndShared(t *testing.T) {
	svc, _ := newService(t, Options{EditByUser: true})

	shared := mustCreate(t, svc, bob, "shared with alice", false, "alice")
	public := mustCreate(t, svc, bob, "public", true)
	mustCreate(t, svc, bob, "private", false)
	own := mustCreate(t, svc, alice, "mine", false)

	ctx := shareloader.ContextWithLoader(context.Background(), shareloader.NewShareLoader(svc.repo))
	specs, err := svc.ListVisible(ctx, alice, "customers.client")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 3 || specs[0].ID != own.ID {
		t.Fatalf("expected own filter first among 3, got %+v", specs)
	}
	if specs[0].ReadOnly {
		t.Fatalf("own filters are not read-only")
	}
	byID := make(map[uuid.UUID]domain.FilterSpec, len(specs))
	for i, spec := range specs {
		byID[spec.ID] = spec
		if i > 1 && spec.CreatedAt.Before(specs[i-1].CreatedAt) {
			t.Fatalf("others must follow creation order")
		}
	}
	for _, id := range []uuid.UUID{shared.ID, public.ID} {
		spec, ok := byID[id]
		if !ok || !spec.ReadOnly {
			t.Fatalf("expected %s to be listed read-only", id)
		}
	}
	if !reflect.DeepEqual(byID[shared.ID].SharedWith, []string{"alice", "bob"}) {
		t.Fatalf("expected share list to be attached, got %v", byID[shared.ID].SharedWith)
	}

	if _, err := svc.ListVisible(context.Background(), alice, "reps.Nope"); !errors.Is(err, domain.ErrUnknownEntity) {
		t.Fatalf("expected unknown entity, got %v", err)
	}
}

func TestUpdate_NonOwnerDeniedButCanGet(t *testing.T) {
	svc, _ := newService(t, Options{EditByUser: true})
	spec := mustCreate(t, svc, alice, "Active", true)

	title := "Hijacked"
	for _, actor := range []auth.Actor{bob, admin} {
		_, err := svc.Update(context.Background(), actor, spec.ID, domain.FilterSpecPatch{Title: &title})
		if !errors.Is(err, domain.ErrPermissionDenied) {
			t.Fatalf("%s: expected permission denied, got %v", actor.ID, err)
		}
	}

	got, err := svc.Get(context.Background(), bob, spec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Active" || !got.ReadOnly {
		t.Fatalf("expected unchanged read-only spec, got %+v", got)
	}

	if _, err := svc.Get(context.Background(), bob, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdate_OwnerRecompilesCriteria(t *testing.T) {
	svc, _ := newService(t, Options{EditByUser: true})
	spec := mustCreate(t, svc, alice, "Active", false)

	criteria := domain.CriteriaSet{Criteria: []domain.Criterion{
		{Field: "visits", Operator: domain.OpGT, Value: domain.Values{"10"}},
	}}
	shared := []string{"carol"}
	updated, err := svc.Update(context.Background(), alice, spec.ID, domain.FilterSpecPatch{Criteria: &criteria, SharedWith: &shared})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Predicate.Op != domain.OpGT || updated.Predicate.Values[0] != "10" {
		t.Fatalf("expected recompiled predicate, got %+v", updated.Predicate)
	}
	if !reflect.DeepEqual(updated.SharedWith, []string{"alice", "carol"}) {
		t.Fatalf("unexpected shares %v", updated.SharedWith)
	}

	bad := domain.CriteriaSet{Criteria: []domain.Criterion{{Field: "visits", Operator: domain.OpIContains, Value: domain.Values{"1"}}}}
	if _, err := svc.Update(context.Background(), alice, spec.ID, domain.FilterSpecPatch{Criteria: &bad}); !errors.Is(err, domain.ErrUnsupportedOperator) {
		t.Fatalf("expected unsupported operator, got %v", err)
	}
}

func TestDelete_MixedOwnership(t *testing.T) {
	svc, repo := newService(t, Options{EditByUser: true})

	ownA := mustCreate(t, svc, alice, "a", false)
	ownB := mustCreate(t, svc, alice, "b", false)
	foreign := mustCreate(t, svc, bob, "c", true)
	missing := uuid.New()

	result, err := svc.Delete(context.Background(), alice, []uuid.UUID{ownA.ID, foreign.ID, ownB.ID, missing, ownA.ID})
	if err != nil {
		t.Fatalf("partial ownership must not fail: %v", err)
	}
	if result.Deleted != 2 || result.Skipped != 1 || result.Missing != 1 {
		t.Fatalf("unexpected counts %+v", result)
	}
	want := []string{
		"Successfully deleted 2 filters.",
		"Could not delete 1 filters as they do not belong to the current user.",
	}
	if !reflect.DeepEqual(result.Messages(), want) {
		t.Fatalf("got messages %v", result.Messages())
	}
	if _, err := repo.GetByID(context.Background(), foreign.ID); err != nil {
		t.Fatalf("foreign filter must survive: %v", err)
	}
}

func TestDelete_ElevatedStillSkippedInBulk(t *testing.T) {
	svc, _ := newService(t, Options{EditByUser: true})
	spec := mustCreate(t, svc, alice, "a", false)

	result, err := svc.Delete(context.Background(), admin, []uuid.UUID{spec.ID})
	if err != nil || result.Skipped != 1 {
		t.Fatalf("bulk delete is owner-only, got %+v (%v)", result, err)
	}
}

func TestDeleteOne(t *testing.T) {
	cases := []struct {
		name       string
		editByUser bool
		actor      auth.Actor
		allowed    bool
	}{
		{"owner", true, alice, true},
		{"stranger", true, bob, false},
		{"elevated", true, admin, true},
		{"stranger when editing is open", false, bob, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newService(t, Options{EditByUser: tc.editByUser})
			spec := mustCreate(t, svc, alice, "a", false)

			err := svc.DeleteOne(context.Background(), tc.actor, spec.ID)
			if tc.allowed && err != nil {
				t.Fatalf("expected delete, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, domain.ErrPermissionDenied) {
				t.Fatalf("expected permission denied, got %v", err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	svc, _ := newService(t, Options{EditByUser: true, ResultsPageSize: 2})
	spec := mustCreate(t, svc, alice, "Active", false)

	first, err := svc.Apply(context.Background(), alice, spec.ID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Rows) != 2 || !first.HasMore {
		t.Fatalf("unexpected first page %+v", first)
	}
	second, err := svc.Apply(context.Background(), alice, spec.ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Rows) != 1 || second.HasMore {
		t.Fatalf("unexpected second page %+v", second)
	}

	restricted, err := svc.Apply(context.Background(), alice, spec.ID, 1,
		domain.Compare("language", domain.FieldKindText, domain.OpIExact, "it"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(restricted.Rows) != 1 || restricted.Records()[0]["first_name"] != "Mark" {
		t.Fatalf("expected the restriction to apply, got %+v", restricted.Records())
	}

	if _, err := svc.Apply(context.Background(), bob, spec.ID, 1); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected private filter to be denied, got %v", err)
	}
	if _, err := svc.Apply(context.Background(), alice, spec.ID, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected invalid page, got %v", err)
	}
}

func TestPermissionGuard(t *testing.T) {
	spec := domain.NewFilterSpec("t", "customers.Client", domain.CriteriaSet{}, "alice", false, []string{"bob"})
	g := NewPermissionGuard(true)

	if !g.CanView(bob, spec) || g.CanView(auth.Actor{ID: "carol"}, spec) {
		t.Fatalf("view must follow the share list")
	}
	if g.CanMutate(alice, spec) != nil || g.CanMutate(bob, spec) == nil {
		t.Fatalf("mutation is owner-only")
	}
	if g.CanDelete(admin, spec) != nil || g.CanDelete(bob, spec) == nil {
		t.Fatalf("delete allows owners and elevated users only")
	}
	if NewPermissionGuard(false).CanDelete(bob, spec) != nil {
		t.Fatalf("delete is open when editing is not restricted")
	}
}
