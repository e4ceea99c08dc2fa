package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind tags the dynamic type held by a Value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueNumber
	ValueString
)

func (k ValueKind) String() string {
	switch k {
	case ValueBool:
		return "bool"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	default:
		return "null"
	}
}

// Value is an observed predicate value or a literal operand.
// It is a closed union so that it survives every codec unchanged.
type Value struct {
	Kind ValueKind `msgpack:"k"`
	Bool bool      `msgpack:"b"`
	Num  float64   `msgpack:"n"`
	Str  string    `msgpack:"s"`
}

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// Number wraps a number.
func Number(f float64) Value { return Value{Kind: ValueNumber, Num: f} }

// String wraps a string.
func String(s string) Value { return Value{Kind: ValueString, Str: s} }

// ValueOf converts the scalar shapes produced by decoders into a Value.
func ValueOf(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Number(float64(t)), nil
	case int8:
		return Number(float64(t)), nil
	case int16:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint8:
		return Number(float64(t)), nil
	case uint16:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case float32:
		return Number(float64(t)), nil
	case float64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Number(f), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool { return v.Kind == ValueNull }

// Truthy is the boolean reading of a value: true, non-zero, or non-empty.
func (v Value) Truthy() bool {
	switch v.Kind {
	case ValueBool:
		return v.Bool
	case ValueNumber:
		return v.Num != 0
	case ValueString:
		return v.Str != ""
	default:
		return false
	}
}

// Interface returns the value as a plain Go scalar.
func (v Value) Interface() any {
	switch v.Kind {
	case ValueBool:
		return v.Bool
	case ValueNumber:
		return v.Num
	case ValueString:
		return v.Str
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ValueString:
		return strconv.Quote(v.Str)
	default:
		return "null"
	}
}

// Compare orders two values of the same kind. ok is false when they cannot be compared.
func (v Value) Compare(o Value) (cmp int, ok bool) {
	if v.Kind != o.Kind {
		return 0, false
	}
	switch v.Kind {
	case ValueNumber:
		switch {
		case v.Num < o.Num:
			return -1, true
		case v.Num > o.Num:
			return 1, true
		}
		return 0, true
	case ValueString:
		switch {
		case v.Str < o.Str:
			return -1, true
		case v.Str > o.Str:
			return 1, true
		}
		return 0, true
	case ValueBool:
		if v.Bool == o.Bool {
			return 0, true
		}
		if !v.Bool {
			return -1, true
		}
		return 1, true
	}
	return 0, true
}

// MarshalJSON writes the value as a native JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON reads a native JSON scalar.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
