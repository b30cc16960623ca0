package choices

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rpattn/advfilters/internal/datasource"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/operators"
	"github.com/rpattn/advfilters/internal/schema"
	"github.com/rpattn/advfilters/internal/schema/schematest"
)

func newFixtureProvider(t *testing.T, opts Options) (*Provider, *datasource.MemorySource) {
	t.Helper()
	resolver := schematest.Resolver(t)
	src := datasource.NewMemorySource(resolver)
	if err := src.LoadFixtures(bytes.NewReader(schematest.RowsYAML)); err != nil {
		t.Fatalf("failed to load fixtures: %v", err)
	}
	return NewProvider(resolver, src, opts), src
}

func texts(p Page) []string {
	out := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		out = append(out, item.Text)
	}
	return out
}

func TestChoicesFor_FixedEnumerationIgnoresSearchAndPage(t *testing.T) {
	p, _ := newFixtureProvider(t, Options{})

	for _, page := range []int{1, 2, 7} {
		got, err := p.Lookup(context.Background(), "customers.Client", "language", "zzz", page)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []Item{{ID: "en", Text: "English"}, {ID: "it", Text: "Italian"}, {ID: "sp", Text: "Spanish"}}
		if !reflect.DeepEqual(got.Items, want) || got.More {
			t.Fatalf("page %d: got %+v", page, got)
		}
	}
}

func TestChoicesFor_DisabledFieldIsEmpty(t *testing.T) {
	disabled, err := operators.NewDisabledFields([]string{"email"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ := newFixtureProvider(t, Options{Disabled: disabled})

	got, err := p.Lookup(context.Background(), "customers.Client", "email", "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Items) != 0 || got.More {
		t.Fatalf("expected empty page, got %+v", got)
	}
	if got.Items == nil {
		t.Fatalf("empty results must encode as [] not null")
	}
}

func TestChoicesFor_DisabledEnumeratedFieldIsEmpty(t *testing.T) {
	disabled, err := operators.NewDisabledFields([]string{"customers.Client.language"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ := newFixtureProvider(t, Options{Disabled: disabled})
	catalog := operators.MustCatalog(nil, disabled)

	rf, err := schematest.Resolver(t).Resolve("customers.Client", "language")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rf.Field.Enumerated() {
		t.Fatalf("expected language to carry a fixed enumeration")
	}
	if ops := catalog.ForField(rf.Field); len(ops) != 0 {
		t.Fatalf("expected no operators, got %v", ops)
	}
	got, err := p.ChoicesFor(context.Background(), rf, "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Items) != 0 || got.More {
		t.Fatalf("expected empty page, got %+v", got)
	}
}

func TestChoicesFor_NonEnumerableKinds(t *testing.T) {
	p, _ := newFixtureProvider(t, Options{})

	for _, path := range []string{"is_active", "created_at", "assigned_to.hired_on", "assigned_to.shift_start"} {
		got, err := p.Lookup(context.Background(), "customers.Client", path, "", 1)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", path, err)
		}
		if len(got.Items) != 0 || got.More {
			t.Fatalf("%s: expected empty page, got %+v", path, got)
		}
	}
}

func TestChoicesFor_DatabaseChoices(t *testing.T) {
	p, _ := newFixtureProvider(t, Options{})

	got, err := p.Lookup(context.Background(), "customers.Client", "email", "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"cindy@example.com", "franscisco@example.com", "mark@example.com", "patricia@example.com"}
	if !reflect.DeepEqual(texts(got), want) || got.More {
		t.Fatalf("got %+v", got)
	}
	for _, item := range got.Items {
		if item.ID != item.Text {
			t.Fatalf("id and text must match for dynamic lookups: %+v", item)
		}
	}
}

func TestChoicesFor_Search(t *testing.T) {
	p, _ := newFixtureProvider(t, Options{})

	got, err := p.Lookup(context.Background(), "customers.Client", "first_name", "ci", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"Cindy", "Franscisco", "Patricia"}; !reflect.DeepEqual(texts(got), want) {
		t.Fatalf("got %v, want %v", texts(got), want)
	}
}

func TestChoicesFor_MultiplePages(t *testing.T) {
	resolver := schematest.Resolver(t)
	src := datasource.NewMemorySource(resolver)
	for i, name := range []string{"Franscisco", "Cindy", "John", "Mark", "Paul", "Amelie"} {
		src.Insert("customers.Client", datasource.Row{"id": i + 1, "first_name": name})
	}
	p := NewProvider(resolver, src, Options{PageSize: 3})

	cases := []struct {
		page int
		want []string
		more bool
	}{
		{1, []string{"Amelie", "Cindy", "Franscisco"}, true},
		{2, []string{"John", "Mark", "Paul"}, false},
		{3, []string{}, false},
		{0, []string{}, false},
	}
	for _, tc := range cases {
		got, err := p.Lookup(context.Background(), "customers.Client", "first_name", "", tc.page)
		if err != nil {
			t.Fatalf("page %d: unexpected error: %v", tc.page, err)
		}
		if !reflect.DeepEqual(texts(got), tc.want) || got.More != tc.more {
			t.Fatalf("page %d: got %v more=%v, want %v more=%v", tc.page, texts(got), got.More, tc.want, tc.more)
		}
	}
}

func TestChoicesFor_DistinctValues(t *testing.T) {
	resolver := schematest.Resolver(t)
	src := datasource.NewMemorySource(resolver)
	for i := 0; i < 5; i++ {
		src.Insert("customers.Client", datasource.Row{"id": i + 1, "email": "foo@bar.com"})
	}
	p := NewProvider(resolver, src, Options{})

	got, err := p.Lookup(context.Background(), "customers.Client", "email", "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []Item{{ID: "foo@bar.com", Text: "foo@bar.com"}}; !reflect.DeepEqual(got.Items, want) {
		t.Fatalf("got %+v", got.Items)
	}
}

type recordingSource struct {
	datasource.Source
	entity        string
	limit, offset int
	err           error
}

func (r *recordingSource) DistinctValues(_ context.Context, entity domain.EntitySchema, _ domain.FieldDescriptor, _ string, limit, offset int) ([]any, error) {
	r.entity, r.limit, r.offset = entity.Type, limit, offset
	return []any{int64(1)}, r.err
}

func TestChoicesFor_QueriesTheOwningEntity(t *testing.T) {
	src := &recordingSource{}
	p := NewProvider(schematest.Resolver(t), src, Options{PageSize: 5})

	got, err := p.Lookup(context.Background(), "customers.Client", "assigned_to.username", "", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.entity != "reps.SalesRep" {
		t.Fatalf("expected lookup on reps.SalesRep, got %s", src.entity)
	}
	if src.limit != 6 || src.offset != 10 {
		t.Fatalf("unexpected window limit=%d offset=%d", src.limit, src.offset)
	}
	if len(got.Items) != 1 || got.Items[0].Text != "1" {
		t.Fatalf("unexpected items %+v", got.Items)
	}
}

func TestChoicesFor_PropagatesStorageErrors(t *testing.T) {
	src := &recordingSource{err: &domain.RetryableError{Op: "query distinct values", Err: context.DeadlineExceeded}}
	p := NewProvider(schematest.Resolver(t), src, Options{})

	_, err := p.Lookup(context.Background(), "customers.Client", "email", "", 1)
	if !errors.Is(err, domain.ErrRetryable) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestLookup_PathErrors(t *testing.T) {
	p := NewProvider(schema.NewResolver(schematest.Registry(t)), &recordingSource{}, Options{})

	_, err := p.Lookup(context.Background(), "reps.SalesRep", "baz", "", 1)
	if err == nil || err.Error() != "SalesRep has no field named 'baz'" {
		t.Fatalf("unexpected error: %v", err)
	}
}
