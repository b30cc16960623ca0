package sqlgen

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Builder accumulates positional arguments. Callers that add their own
// conjuncts share the builder so placeholders stay numbered.
type Builder struct {
	args []any
}

func NewBuilder() *Builder {
	return &Builder{args: make([]any, 0)}
}

func (b *Builder) AddArg(value any) int {
	b.args = append(b.args, value)
	return len(b.args)
}

func (b *Builder) Placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

// Arg adds value and returns its placeholder.
func (b *Builder) Arg(value any) string {
	return b.Placeholder(b.AddArg(value))
}

func (b *Builder) Args() []any {
	return b.args
}

// Ident quotes a single identifier.
func Ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QualifiedIdent quotes alias.column.
func QualifiedIdent(alias, column string) string {
	return alias + "." + Ident(column)
}
