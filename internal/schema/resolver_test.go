package schema

import (
	"errors"
	"sync"
	"testing"

	"github.com/rpattn/advfilters/internal/domain"
)

func testRegistry(t *testing.T) *StaticRegistry {
	t.Helper()
	reg, err := NewStaticRegistry(
		domain.NewEntitySchema("reps.SalesRep", "reps_salesrep", []domain.FieldDescriptor{
			{Name: "id", Kind: domain.FieldKindInteger},
			{Name: "first_name", Kind: domain.FieldKindText},
			{Name: "is_active", Kind: domain.FieldKindBoolean},
			{Name: "manager", Kind: domain.FieldKindRelation, Column: "manager_id", Target: "reps.SalesRep", Nullable: true},
		}),
		domain.NewEntitySchema("customers.Client", "customers_client", []domain.FieldDescriptor{
			{Name: "id", Kind: domain.FieldKindInteger},
			{Name: "email", Kind: domain.FieldKindEmail},
			{Name: "assigned_to", Kind: domain.FieldKindRelation, Column: "assigned_to_id", Target: "reps.SalesRep"},
		}),
	)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return reg
}

func TestResolve_DirectField(t *testing.T) {
	r := NewResolver(testRegistry(t))

	got, err := r.Resolve("customers.Client", "email")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Entity != "customers.Client" || got.Field.Kind != domain.FieldKindEmail {
		t.Fatalf("unexpected resolution: %+v", got)
	}
	if len(got.Steps) != 0 {
		t.Fatalf("expected no relation steps, got %d", len(got.Steps))
	}
}

func TestResolve_TraversesRelationsToFinalModel(t *testing.T) {
	r := NewResolver(testRegistry(t))

	got, err := r.Resolve("customers.Client", "assigned_to.manager.first_name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Entity != "reps.SalesRep" {
		t.Fatalf("expected owning entity reps.SalesRep, got %s", got.Entity)
	}
	if got.Requested != "customers.Client" {
		t.Fatalf("expected requested entity to be kept, got %s", got.Requested)
	}
	if len(got.Steps) != 2 {
		t.Fatalf("expected 2 relation steps, got %d", len(got.Steps))
	}
	if got.Steps[0].Column != "assigned_to_id" || got.Steps[1].Column != "manager_id" {
		t.Fatalf("unexpected join columns: %+v", got.Steps)
	}
}

func TestResolve_TerminalRelationIsAllowed(t *testing.T) {
	r := NewResolver(testRegistry(t))

	got, err := r.Resolve("customers.Client", "assigned_to")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Field.IsRelation() {
		t.Fatalf("expected the relation descriptor itself, got %+v", got.Field)
	}
}

func TestResolve_ModelNameIsCaseInsensitive(t *testing.T) {
	r := NewResolver(testRegistry(t))

	got, err := r.Resolve("reps.salesrep", "first_name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Entity != "reps.SalesRep" {
		t.Fatalf("expected canonical type, got %s", got.Entity)
	}
}

func TestResolve_Errors(t *testing.T) {
	r := NewResolver(testRegistry(t))

	cases := []struct {
		name    string
		entity  string
		path    string
		kind    error
		message string
	}{
		{"malformed entity", "SalesRep", "first_name", domain.ErrUnknownEntity, "No installed app/model: SalesRep"},
		{"unknown app", "Foo.SalesRep", "first_name", domain.ErrUnknownEntity, "No installed app with label 'Foo'."},
		{"unknown model", "reps.Foo", "first_name", domain.ErrUnknownEntity, "App 'reps' doesn't have a 'Foo' model."},
		{"unknown field", "reps.SalesRep", "baz", domain.ErrUnknownField, "SalesRep has no field named 'baz'"},
		{"unknown nested field", "customers.Client", "assigned_to.baz", domain.ErrUnknownField, "SalesRep has no field named 'baz'"},
		{"empty segment", "customers.Client", "assigned_to..first_name", domain.ErrUnknownField, "SalesRep has no field named ''"},
		{"not a relation", "customers.Client", "email.domain", domain.ErrInvalidTraversal, "Client.email is not a relation and cannot be traversed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(tc.entity, tc.path)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			if err.Error() != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, err.Error())
			}
			if !domain.IsPathError(err) {
				t.Fatalf("expected a path error")
			}
		})
	}
}

func TestResolve_Concurrent(t *testing.T) {
	r := NewResolver(testRegistry(t))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve("customers.Client", "assigned_to.first_name"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent resolve failed: %v", err)
	}
}

func TestStaticRegistry_RejectsDuplicates(t *testing.T) {
	es := domain.NewEntitySchema("reps.SalesRep", "reps_salesrep", nil)
	if _, err := NewStaticRegistry(es, es); err == nil {
		t.Fatalf("expected duplicate entity types to be rejected")
	}
}

func TestStaticRegistry_EntitiesAreSortedCopies(t *testing.T) {
	reg := testRegistry(t)

	entities := reg.Entities()
	if len(entities) != 2 || entities[0].Type != "customers.Client" || entities[1].Type != "reps.SalesRep" {
		t.Fatalf("unexpected entity order: %+v", entities)
	}
	entities[0].Fields[0].Name = "mutated"
	again, _ := reg.Entity("customers.Client")
	if again.Fields[0].Name != "id" {
		t.Fatalf("registry snapshot was mutated through a returned copy")
	}
	if !reg.HasApp("reps") || reg.HasApp("Foo") {
		t.Fatalf("unexpected app lookup result")
	}
}

func TestValueKind(t *testing.T) {
	r := NewResolver(testRegistry(t))

	rf, err := r.Resolve("customers.Client", "assigned_to")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.ValueKind(rf.Field); got != domain.FieldKindInteger {
		t.Fatalf("expected relation to compare as the target key kind, got %s", got)
	}
	email, _ := r.Resolve("customers.Client", "email")
	if got := r.ValueKind(email.Field); got != domain.FieldKindEmail {
		t.Fatalf("expected plain fields to keep their kind, got %s", got)
	}
}
