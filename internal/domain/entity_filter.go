package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Combinator joins the members of a CriteriaSet.
type Combinator string

const (
	CombinatorAll Combinator = "all"
	CombinatorAny Combinator = "any"
)

// Values holds the operand(s) of a criterion. On the wire it is either a
// single scalar or a list of scalars.
type Values []string

// UnmarshalJSON accepts null, a scalar, or an array of scalars.
func (v *Values) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = nil
		return nil
	}
	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make(Values, 0, len(raw))
		for _, item := range raw {
			s, err := scalarString(item)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		*v = out
		return nil
	}
	s, err := scalarString(data)
	if err != nil {
		return err
	}
	*v = Values{s}
	return nil
}

// MarshalJSON emits a single value as a scalar and anything else as a list.
func (v Values) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(v))
}

func scalarString(raw json.RawMessage) (string, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", err
	}
	switch val := decoded.(type) {
	case string:
		return val, nil
	case float64:
		// keep the literal so large integers are not rounded through float64
		return string(bytes.TrimSpace(raw)), nil
	case bool:
		return strconv.FormatBool(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("criterion values must be scalars, got %s", string(raw))
	}
}

// Criterion is one (field, operator, value) comparison.
type Criterion struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Values   `json:"value,omitempty"`
	Negate   bool     `json:"negate,omitempty"`
}

// CriteriaSet is a boolean tree of criteria over one entity type.
type CriteriaSet struct {
	Entity     string        `json:"entity,omitempty"`
	Combinator Combinator    `json:"combinator"`
	Criteria   []Criterion   `json:"criteria,omitempty"`
	Sets       []CriteriaSet `json:"sets,omitempty"`
	Negate     bool          `json:"negate,omitempty"`
}

// IsEmpty reports whether the set holds no criteria at any depth.
func (cs CriteriaSet) IsEmpty() bool {
	if len(cs.Criteria) > 0 {
		return false
	}
	for _, child := range cs.Sets {
		if !child.IsEmpty() {
			return false
		}
	}
	return true
}

// CriteriaToJSON encodes a criteria set for persistence.
func CriteriaToJSON(set CriteriaSet) (json.RawMessage, error) {
	return json.Marshal(set)
}

// CriteriaFromJSON decodes a persisted criteria set.
func CriteriaFromJSON(data json.RawMessage) (CriteriaSet, error) {
	if len(data) == 0 {
		return CriteriaSet{Combinator: CombinatorAll}, nil
	}
	var set CriteriaSet
	if err := json.Unmarshal(data, &set); err != nil {
		return CriteriaSet{}, err
	}
	return set, nil
}
