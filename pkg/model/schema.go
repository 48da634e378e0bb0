package model

import (
	"fmt"
	"math"
)

// Kind identifies the value domain of an attribute.
type Kind int

const (
	// KindBool holds true or false.
	KindBool Kind = iota
	// KindInt holds a signed integer, stored as int64.
	KindInt
	// KindFloat holds a floating-point number, stored as float64.
	KindFloat
	// KindString holds a string.
	KindString
	// KindObject holds an arbitrary value, including nil.
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// zero returns the kind's zero value, used when an Attr declares no default.
func (k Kind) zero() any {
	switch k {
	case KindBool:
		return false
	case KindInt:
		return int64(0)
	case KindFloat:
		return float64(0)
	case KindString:
		return ""
	default:
		return nil
	}
}

// coerce checks v against the kind and returns its canonical stored form.
// Numeric attributes accept any Go numeric type, including the float64
// values JSON decoding produces, as long as the value fits the kind.
func (k Kind) coerce(v any) (any, error) {
	switch k {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case KindInt:
		return coerceInt(v)
	case KindFloat:
		return coerceFloat(v)
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case KindObject:
		return v, nil
	default:
		return nil, fmt.Errorf("invalid kind %d", int(k))
	}
}

func coerceInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return coerceUint64(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return coerceUint64(n)
	case float32:
		return coerceIntFromFloat(float64(n))
	case float64:
		return coerceIntFromFloat(n)
	default:
		return nil, fmt.Errorf("expected int, got %T", v)
	}
}

func coerceUint64(n uint64) (any, error) {
	if n > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d overflows int64", n)
	}
	return int64(n), nil
}

func coerceIntFromFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("expected integer, got %v", f)
	}
	if f < math.MinInt64 || f > math.MaxInt64 {
		return nil, fmt.Errorf("integer %v overflows int64", f)
	}
	return int64(f), nil
}

func coerceFloat(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return nil, fmt.Errorf("expected float, got %T", v)
	}
}

// Attr declares one synchronized attribute.
type Attr struct {
	// Kind is the attribute's value domain.
	Kind Kind
	// Default is the initial value. nil means the kind's zero value.
	Default any
	// Normalize validates and optionally canonicalizes a candidate value
	// after the kind check. It must be idempotent: normalizing an already
	// normalized value returns it unchanged. nil means the kind check is
	// the whole domain.
	Normalize func(v any) (any, error)
}

// Schema maps attribute names to their declarations. A model's schema is
// fixed at construction.
type Schema map[string]Attr
