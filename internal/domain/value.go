package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04",
	DateLayout,
}

var timeLayouts = []string{TimeLayout, "15:04", "15:04:05.000000"}

// ParseValue converts a raw operand into the Go value used for comparisons
// against a field of the given kind:
//
//	integer        int64
//	float/decimal  float64
//	boolean        bool
//	date/datetime  time.Time (UTC)
//	everything else  string (uuid and time canonicalised)
func ParseValue(kind FieldKind, raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	switch kind {
	case FieldKindInteger:
		v, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a whole number", raw)
		}
		return v, nil
	case FieldKindFloat, FieldKindDecimal:
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return v, nil
	case FieldKindBoolean:
		v, err := strconv.ParseBool(strings.ToLower(trimmed))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return v, nil
	case FieldKindDate:
		v, err := time.Parse(DateLayout, trimmed)
		if err != nil {
			// accept a full timestamp and keep its date part
			ts, tsErr := parseDateTime(trimmed)
			if tsErr != nil {
				return nil, fmt.Errorf("%q is not a date (expected YYYY-MM-DD)", raw)
			}
			v = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		}
		return v, nil
	case FieldKindDateTime:
		v, err := parseDateTime(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%q is not a date/time", raw)
		}
		return v, nil
	case FieldKindTime:
		for _, layout := range timeLayouts {
			if v, err := time.Parse(layout, trimmed); err == nil {
				return v.Format(TimeLayout), nil
			}
		}
		return nil, fmt.Errorf("%q is not a time of day", raw)
	case FieldKindUUID:
		v, err := uuid.Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%q is not a UUID", raw)
		}
		return v.String(), nil
	}
	return raw, nil
}

func parseDateTime(raw string) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if v, err := time.Parse(layout, raw); err == nil {
			return v.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date/time %q", raw)
}

// IsBareDate reports whether raw is a calendar date with no time part.
func IsBareDate(raw string) bool {
	_, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	return err == nil
}

// FormatValue renders a parsed value in the canonical string form stored in
// predicates. ParseValue(kind, FormatValue(kind, v)) yields v again.
func FormatValue(kind FieldKind, v any) string {
	switch val := v.(type) {
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if kind == FieldKindDate {
			return val.Format(DateLayout)
		}
		return val.UTC().Format(time.RFC3339Nano)
	case string:
		return val
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// NormalizeValue parses raw for kind and returns its canonical form.
func NormalizeValue(kind FieldKind, raw string) (string, error) {
	v, err := ParseValue(kind, raw)
	if err != nil {
		return "", err
	}
	return FormatValue(kind, v), nil
}

// TextOf renders a stored value the way it is shown to users and matched by
// text operators.
func TextOf(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(DateLayout)
		}
		return val.Format(time.RFC3339Nano)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return fmt.Sprint(v)
}

// CompareValues orders two stored values. Numbers compare numerically, times
// chronologically, booleans false before true and everything else by text.
// Values of different families order as nil < bool < number < time < text.
func CompareValues(a, b any) int {
	fa, fb := family(a), family(b)
	if fa != fb {
		return fa - fb
	}
	switch fa {
	case familyNil:
		return 0
	case familyBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	case familyNumber:
		na, nb := toFloat(a), toFloat(b)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case familyTime:
		return a.(time.Time).Compare(b.(time.Time))
	}
	return strings.Compare(TextOf(a), TextOf(b))
}

const (
	familyNil = iota
	familyBool
	familyNumber
	familyTime
	familyText
)

func family(v any) int {
	switch v.(type) {
	case nil:
		return familyNil
	case bool:
		return familyBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return familyNumber
	case time.Time:
		return familyTime
	}
	return familyText
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
