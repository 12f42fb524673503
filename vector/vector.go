// Package vector implements the float32vector scalar: a bracketed,
// space-separated list of floating literals such as "[0.1 0.2 0.3]".
package vector

import (
	"fmt"
	"strconv"
	"strings"
)

// Vector is a float32 embedding.
type Vector []float32

// String returns the store encoding of the vector.
func (v Vector) String() string {
	return Encode(v)
}

// Encode returns the store encoding of a float list.
func Encode(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// Parse decodes a vector literal. Both space and comma separators are
// accepted since the store returns either form.
func Parse(s string) (Vector, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("vector: invalid literal %q", s)
	}
	fields := strings.FieldsFunc(s[1:len(s)-1], func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	v := make(Vector, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("vector: invalid element %q: %w", f, err)
		}
		v[i] = float32(x)
	}
	return v, nil
}

// FromAny decodes a vector from a document value: a literal string or a
// list of numbers.
func FromAny(v any) (Vector, error) {
	switch x := v.(type) {
	case string:
		return Parse(x)
	case Vector:
		return x, nil
	case []float32:
		return Vector(x), nil
	case []float64:
		out := make(Vector, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make(Vector, len(x))
		for i, e := range x {
			f, err := toFloat(e)
			if err != nil {
				return nil, err
			}
			out[i] = float32(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("vector: unsupported value %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case interface{ Float64() (float64, error) }:
		return x.Float64()
	default:
		return 0, fmt.Errorf("vector: unsupported element %T", v)
	}
}
