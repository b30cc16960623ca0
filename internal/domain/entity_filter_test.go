package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestValuesUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want Values
	}{
		{`null`, nil},
		{`"Cindy"`, Values{"Cindy"}},
		{`12345678901234567890`, Values{"12345678901234567890"}},
		{`true`, Values{"true"}},
		{`["2024-01-01", "2024-01-31"]`, Values{"2024-01-01", "2024-01-31"}},
		{`[1, 2.5]`, Values{"1", "2.5"}},
	}
	for _, tc := range cases {
		var got Values
		if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %#v, want %#v", tc.in, got, tc.want)
		}
	}

	var got Values
	if err := json.Unmarshal([]byte(`[{"a":1}]`), &got); err == nil {
		t.Fatalf("objects are not valid operands")
	}
}

func TestValuesMarshal(t *testing.T) {
	cases := []struct {
		in   Values
		want string
	}{
		{Values{"x"}, `"x"`},
		{Values{"a", "b"}, `["a","b"]`},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.in)
		if err != nil || string(raw) != tc.want {
			t.Fatalf("marshal %v = %s %v, want %s", tc.in, raw, err, tc.want)
		}
	}
}

func TestCriteriaSetIsEmpty(t *testing.T) {
	nested := CriteriaSet{Sets: []CriteriaSet{{}, {Sets: []CriteriaSet{{}}}}}
	if !nested.IsEmpty() {
		t.Fatalf("sets without criteria at any depth are empty")
	}
	nested.Sets[1].Sets[0].Criteria = []Criterion{{Field: "x", Operator: OpIsNull}}
	if nested.IsEmpty() {
		t.Fatalf("a deep criterion makes the set non-empty")
	}
}

func TestCriteriaFromJSON(t *testing.T) {
	set, err := CriteriaFromJSON([]byte(`{
		"entity": "customers.Client",
		"combinator": "any",
		"criteria": [{"field": "visits", "operator": "gt", "value": 3}],
		"sets": [{"combinator": "all", "negate": true, "criteria": [{"field": "language", "operator": "iexact", "value": ["en"]}]}]
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if set.Combinator != CombinatorAny || set.Criteria[0].Value[0] != "3" || !set.Sets[0].Negate {
		t.Fatalf("unexpected set %+v", set)
	}

	empty, err := CriteriaFromJSON(nil)
	if err != nil || empty.Combinator != CombinatorAll || !empty.IsEmpty() {
		t.Fatalf("empty payload decodes to an empty all-set, got %+v %v", empty, err)
	}
}
