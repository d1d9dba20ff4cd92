package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// DateLayout is the layout of date-only values.
const DateLayout = "2006-01-02"

// Value is a tagged field value. The zero Value is null.
type Value struct {
	kind     Kind
	str      string
	num      float64
	b        bool
	t        time.Time
	dateOnly bool
}

// Null returns the null Value.
func Null() Value { return Value{} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date returns a timestamp Value, normalised to UTC.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t.UTC()} }

// DateOnly returns a calendar-date Value; the time of day is discarded.
func DateOnly(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), dateOnly: true}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the string held by v.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsNumber interprets v as a number. Numeric strings are accepted.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsBool interprets v as a boolean. The strings "true" and "false" are accepted.
func (v Value) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(v.str))
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// AsDate interprets v as a date. RFC 3339 and YYYY-MM-DD strings are accepted.
func (v Value) AsDate() (time.Time, bool) {
	switch v.kind {
	case KindDate:
		return v.t, true
	case KindString:
		d, ok := parseDate(v.str)
		if !ok {
			return time.Time{}, false
		}
		return d.t, true
	default:
		return time.Time{}, false
	}
}

func parseDate(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Date(t), true
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOnly(t), true
	}
	return Value{}, false
}

// Blank reports whether v is null or a whitespace-only string.
func (v Value) Blank() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.str) == ""
	default:
		return false
	}
}

// Interface returns v as a plain Go value suitable for JSON encoding.
// Dates are rendered as strings.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindDate:
		if v.dateOnly {
			return v.t.Format(DateLayout)
		}
		return v.t.Format(time.RFC3339Nano)
	default:
		return nil
	}
}

// String renders v for human-readable output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return fmt.Sprint(v.Interface())
	}
}

// Equal reports whether v and o hold the same variant and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindDate:
		return v.dateOnly == o.dateOnly && v.t.Equal(o.t)
	default:
		return true
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromAny converts a decoded JSON or YAML scalar into a Value.
// Arrays and objects return ErrUnsupportedValue.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return String(x.String()), nil
		}
		return Number(f), nil
	case time.Time:
		return Date(x), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

// Coerce converts v toward kind when the conversion is lossless.
// Values that cannot be converted are returned unchanged so that
// validation can report them.
func Coerce(kind Kind, v Value) Value {
	if v.kind == kind || v.kind == KindNull {
		return v
	}
	switch kind {
	case KindNumber:
		if f, ok := v.AsNumber(); ok {
			return Number(f)
		}
	case KindBool:
		if b, ok := v.AsBool(); ok {
			return Bool(b)
		}
	case KindDate:
		if v.kind == KindString {
			if d, ok := parseDate(v.str); ok {
				return d
			}
		}
	case KindString:
		// Strings are never coerced: a number in a text field stays a number
		// so that it round-trips exactly as supplied.
	}
	return v
}

// DecodeFields converts raw input values into Values coerced to each
// field's kind. Keys not declared by spec are dropped. Unsupported values
// produce a *ValidationError listing every offending field.
func DecodeFields(spec *DomainSpec, raw map[string]any) (map[string]Value, error) {
	out := make(map[string]Value, len(raw))
	var errs []FieldError
	for _, f := range spec.Fields {
		r, ok := raw[f.Key]
		if !ok {
			continue
		}
		v, err := FromAny(r)
		if err != nil {
			errs = append(errs, FieldError{
				Field:   f.Key,
				Message: fmt.Sprintf("Field '%s' has an unsupported value", f.Label),
			})
			continue
		}
		out[f.Key] = Coerce(f.Kind(), v)
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return out, nil
}
