// Package choices lists the selectable values of a filterable field: either
// its fixed enumeration or distinct values read from live data.
package choices

import (
	"context"
	"sort"

	"github.com/rpattn/advfilters/internal/datasource"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/log"
	"github.com/rpattn/advfilters/internal/operators"
	"github.com/rpattn/advfilters/internal/schema"
)

const DefaultPageSize = 20

// Item is one selectable value. ID keeps the raw value, Text is what the
// user sees.
type Item struct {
	ID   any    `json:"id"`
	Text string `json:"text"`
}

// Page is one page of choices.
type Page struct {
	Items []Item `json:"results"`
	More  bool   `json:"more"`
}

func emptyPage() Page {
	return Page{Items: []Item{}}
}

type Options struct {
	// PageSize bounds dynamic lookups. Zero means DefaultPageSize.
	PageSize int
	// Disabled is shared with the operator catalog so both agree on which
	// fields are off limits.
	Disabled *operators.DisabledFields
}

// Provider is stateless apart from its configuration and is safe for
// concurrent use.
type Provider struct {
	resolver *schema.Resolver
	source   datasource.Source
	pageSize int
	disabled *operators.DisabledFields
}

func NewProvider(resolver *schema.Resolver, source datasource.Source, opts Options) *Provider {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Provider{
		resolver: resolver,
		source:   source,
		pageSize: pageSize,
		disabled: opts.Disabled,
	}
}

func (p *Provider) PageSize() int {
	return p.pageSize
}

// Lookup resolves path on entityType and returns its choices.
func (p *Provider) Lookup(ctx context.Context, entityType, path, search string, page int) (Page, error) {
	rf, err := p.resolver.Resolve(entityType, path)
	if err != nil {
		return Page{}, err
	}
	return p.ChoicesFor(ctx, rf, search, page)
}

// ChoicesFor returns page (1-indexed) of the choices for rf.
//
// Disabled fields yield an empty page, even when they carry a fixed
// enumeration. Otherwise a fixed enumeration is returned whole, sorted by raw
// value, ignoring search and page. Boolean or temporal kinds yield an empty
// page.
// Anything else is looked up on the entity that owns the field, not the one
// the path started from.
func (p *Provider) ChoicesFor(ctx context.Context, rf domain.ResolvedField, search string, page int) (Page, error) {
	field := rf.Field
	if p.disabled.Matches(field) {
		log.Debugf("skipped choices for disabled field %s", field.QualifiedName())
		return emptyPage(), nil
	}
	if field.Enumerated() {
		return fixedChoices(field), nil
	}
	if !enumerable(field.Kind) {
		log.Debugf("no choices calculated for field %s of kind %s", field.QualifiedName(), field.Kind)
		return emptyPage(), nil
	}
	if page < 1 {
		return emptyPage(), nil
	}

	owner, err := p.resolver.Entity(rf.Entity)
	if err != nil {
		return Page{}, err
	}

	offset := (page - 1) * p.pageSize
	values, err := p.source.DistinctValues(ctx, owner, field, search, p.pageSize+1, offset)
	if err != nil {
		return Page{}, err
	}

	result := emptyPage()
	if len(values) > p.pageSize {
		values = values[:p.pageSize]
		result.More = true
	}
	for _, v := range values {
		result.Items = append(result.Items, Item{ID: v, Text: domain.TextOf(v)})
	}
	return result, nil
}

func fixedChoices(field domain.FieldDescriptor) Page {
	list := field.ChoiceList()
	sort.SliceStable(list, func(i, j int) bool {
		return domain.CompareValues(list[i].Value, list[j].Value) < 0
	})
	result := Page{Items: make([]Item, 0, len(list))}
	for _, c := range list {
		result.Items = append(result.Items, Item{ID: c.Value, Text: c.Label})
	}
	return result
}

// enumerable reports whether live distinct values are offered for kind.
func enumerable(kind domain.FieldKind) bool {
	switch kind {
	case domain.FieldKindBoolean, domain.FieldKindDate, domain.FieldKindDateTime, domain.FieldKindTime:
		return false
	}
	return true
}
