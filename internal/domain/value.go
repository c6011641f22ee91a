package domain

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a typed scalar. The zero Value has no type and represents "absent".
type Value struct {
	Type ValueType
	Text string
	Int  int64
	Real float64
}

func TextValue(s string) Value { return Value{Type: TypeText, Text: s} }

func IntValue(i int64) Value { return Value{Type: TypeInteger, Int: i} }

func RealValue(f float64) Value { return Value{Type: TypeReal, Real: f} }

func (v Value) IsZero() bool { return v.Type == "" }

func (v Value) IsNumeric() bool { return v.Type.Numeric() }

// Float returns the numeric value as float64. Text values return 0.
func (v Value) Float() float64 {
	switch v.Type {
	case TypeInteger:
		return float64(v.Int)
	case TypeReal:
		return v.Real
	default:
		return 0
	}
}

// Compare orders v against o. Text compares with text, numbers with numbers;
// ok is false for any other pairing. Two integers compare exactly, any real
// operand compares as float64.
func (v Value) Compare(o Value) (c int, ok bool) {
	switch {
	case v.Type == TypeText && o.Type == TypeText:
		return strings.Compare(v.Text, o.Text), true
	case v.Type == TypeInteger && o.Type == TypeInteger:
		return cmp.Compare(v.Int, o.Int), true
	case v.IsNumeric() && o.IsNumeric():
		a, b := v.Float(), o.Float()
		if math.IsNaN(a) || math.IsNaN(b) {
			return 0, false
		}
		return cmp.Compare(a, b), true
	default:
		return 0, false
	}
}

// Equal reports whether v and o are comparable and equal.
func (v Value) Equal(o Value) bool {
	c, ok := v.Compare(o)
	return ok && c == 0
}

// Any returns the underlying Go value, or nil for the zero Value.
func (v Value) Any() any {
	switch v.Type {
	case TypeText:
		return v.Text
	case TypeInteger:
		return v.Int
	case TypeReal:
		return v.Real
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Type {
	case TypeText:
		return v.Text
	case TypeInteger:
		return strconv.FormatInt(v.Int, 10)
	case TypeReal:
		return strconv.FormatFloat(v.Real, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON writes the raw scalar: a string, a number or null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Type == TypeReal && (math.IsNaN(v.Real) || math.IsInf(v.Real, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Any())
}

// UnmarshalJSON reads a raw scalar. Integral numbers decode as INTEGER.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*v = Value{}
		return nil
	}
	parsed, ok := FromWire(raw)
	if !ok {
		return fmt.Errorf("unsupported value %s", string(data))
	}
	*v = parsed
	return nil
}

// FromWire converts a decoded JSON or SQL scalar into a Value.
func FromWire(raw any) (Value, bool) {
	switch x := raw.(type) {
	case nil:
		return Value{}, false
	case Value:
		return x, !x.IsZero()
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return IntValue(i), true
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, false
		}
		return RealValue(f), true
	case string:
		return TextValue(x), true
	case []byte:
		return TextValue(string(x)), true
	case int:
		return IntValue(int64(x)), true
	case int32:
		return IntValue(int64(x)), true
	case int64:
		return IntValue(x), true
	case float32:
		return RealValue(float64(x)), true
	case float64:
		return RealValue(x), true
	default:
		return Value{}, false
	}
}

// Coerce converts v to the declared type t. INTEGER keeps a non-integral
// number as REAL so comparisons stay numeric. Unparseable text fails.
func Coerce(t ValueType, v Value) (Value, bool) {
	if v.IsZero() {
		return Value{}, false
	}
	switch t {
	case TypeText:
		if v.Type == TypeText {
			return v, true
		}
		return TextValue(v.String()), true
	case TypeInteger:
		switch v.Type {
		case TypeInteger:
			return v, true
		case TypeReal:
			if v.Real == math.Trunc(v.Real) && math.Abs(v.Real) < 1<<53 {
				return IntValue(int64(v.Real)), true
			}
			return v, !math.IsNaN(v.Real)
		}
		return parseNumber(v.Text)
	case TypeReal:
		switch v.Type {
		case TypeInteger:
			return RealValue(float64(v.Int)), true
		case TypeReal:
			return v, !math.IsNaN(v.Real)
		}
		n, ok := parseNumber(v.Text)
		if !ok {
			return Value{}, false
		}
		return RealValue(n.Float()), true
	default:
		return Value{}, false
	}
}

func parseNumber(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return Value{}, false
	}
	return RealValue(f), true
}

// EntityIDFromWire normalizes a college id decoded from JSON or SQL to a string.
func EntityIDFromWire(raw any) (string, bool) {
	switch x := raw.(type) {
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case json.Number:
		return x.String(), x.String() != ""
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case []byte:
		return EntityIDFromWire(string(x))
	default:
		return "", false
	}
}
