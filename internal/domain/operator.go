package domain

import "fmt"

// Operator is the stable key of a comparison operator.
type Operator string

const (
	OpIExact    Operator = "iexact"
	OpIContains Operator = "icontains"
	OpIRegex    Operator = "iregex"
	OpRange     Operator = "range"
	OpIsNull    Operator = "isnull"
	OpIsTrue    Operator = "istrue"
	OpIsFalse   Operator = "isfalse"
	OpLT        Operator = "lt"
	OpGT        Operator = "gt"
	OpLTE       Operator = "lte"
	OpGTE       Operator = "gte"
)

// OperatorChoice is an operator key with its human-readable label.
type OperatorChoice struct {
	Key   Operator `json:"key"`
	Label string   `json:"value"`
}

// Arity returns how many values the operator consumes: 0, 1 or 2.
func (o Operator) Arity() int {
	switch o {
	case OpIsNull, OpIsTrue, OpIsFalse:
		return 0
	case OpRange:
		return 2
	default:
		return 1
	}
}

// CheckKind reports whether o can be evaluated against values of kind.
// Boolean tests need a boolean column and ordered comparisons need a kind
// with a defined order.
func (o Operator) CheckKind(kind FieldKind) error {
	switch o {
	case OpIsTrue, OpIsFalse:
		if kind != FieldKindBoolean {
			return fmt.Errorf("%w: %s applies to boolean fields only, not %s", ErrInvalidValue, o, kind)
		}
	case OpRange, OpLT, OpGT, OpLTE, OpGTE:
		switch kind {
		case FieldKindJSON, FieldKindOther, FieldKindRelation:
			return fmt.Errorf("%w: %s cannot compare %s values", ErrInvalidValue, o, kind)
		}
	}
	return nil
}
