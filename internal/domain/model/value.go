package model

import (
	"encoding/json"
	"strconv"
)

type valueKind uint8

const (
	kindAbsent valueKind = iota
	kindCount
	kindQuantity
)

// Value is a metric observation: an integer count, a decimal quantity, or
// absent. Absent means "not available, not authorized or not computable" and
// is distinct from zero. The zero Value is Absent.
type Value struct {
	kind     valueKind
	count    int64
	quantity float64
}

// Count returns an integer-valued observation.
func Count(n int64) Value {
	return Value{kind: kindCount, count: n}
}

// Quantity returns a decimal-valued observation.
func Quantity(f float64) Value {
	return Value{kind: kindQuantity, quantity: f}
}

// Absent returns the absent value.
func Absent() Value {
	return Value{}
}

// IsAbsent reports whether v carries no observation.
func (v Value) IsAbsent() bool {
	return v.kind == kindAbsent
}

// Int returns the count held by v. Quantities are truncated.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case kindCount:
		return v.count, true
	case kindQuantity:
		return int64(v.quantity), true
	default:
		return 0, false
	}
}

// Float returns v as a float64.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case kindCount:
		return float64(v.count), true
	case kindQuantity:
		return v.quantity, true
	default:
		return 0, false
	}
}

// Or returns v unless it is absent, in which case fallback is returned.
func (v Value) Or(fallback Value) Value {
	if v.IsAbsent() {
		return fallback
	}
	return v
}

// String renders the value for logs.
func (v Value) String() string {
	switch v.kind {
	case kindCount:
		return strconv.FormatInt(v.count, 10)
	case kindQuantity:
		return strconv.FormatFloat(v.quantity, 'f', -1, 64)
	default:
		return "absent"
	}
}

// MarshalJSON encodes counts and quantities as JSON numbers and Absent as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindCount:
		return json.Marshal(v.count)
	case kindQuantity:
		return json.Marshal(v.quantity)
	default:
		return []byte("null"), nil
	}
}
