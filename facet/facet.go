// Package facet models edge metadata.
//
// A facet is a key-value pair attached to one edge instance. In documents a
// facet is stored next to the value it annotates under
// "<predicate>|<facet>"; localized values use "<predicate>@<lang>".
//
//	type Person struct {
//		Salary facet.Value[float64]
//	}
//
//	p.Salary = facet.Value[float64]{
//		Value:  1000,
//		Facets: facet.Facets{"currency": "USD", "payday": 5},
//	}
//
// serializes to salary, salary|currency and salary|payday.
package facet

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Separators between a predicate and a facet name.
const (
	Separator     = "|"
	LangSeparator = "@"
)

// Facets holds the facets of one edge.
type Facets map[string]any

// Keys returns the facet names in sorted order.
func (f Facets) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Host is implemented by Value. The registry uses it to detect facet-host
// properties.
type Host interface {
	facetHost()
}

// Value is a property value carrying facets.
type Value[T any] struct {
	// Value is the underlying predicate value.
	Value T
	// Facets holds the plain facets, stored as predicate|name.
	Facets Facets
	// Localized holds localized variants, stored as predicate@lang.
	Localized Facets
}

func (Value[T]) facetHost() {}

// Get returns the facet named key.
func (v Value[T]) Get(key string) (any, bool) {
	f, ok := v.Facets[key]
	return f, ok
}

// With returns a copy of v with the facet set.
func (v Value[T]) With(key string, val any) Value[T] {
	facets := make(Facets, len(v.Facets)+1)
	for k, x := range v.Facets {
		facets[k] = x
	}
	facets[key] = val
	v.Facets = facets
	return v
}

// Of returns a Value holding v and the given facets.
func Of[T any](v T, facets Facets) Value[T] {
	return Value[T]{Value: v, Facets: facets}
}

// Key returns the document field name of a plain facet.
func Key(predicate, name string) string {
	return predicate + Separator + name
}

// LangKey returns the document field name of a localized facet.
func LangKey(predicate, lang string) string {
	return predicate + LangSeparator + lang
}

// Split splits a document field name at its first facet separator. It
// returns ok false for names without a separator.
func Split(field string) (predicate, name string, localized, ok bool) {
	i := strings.IndexAny(field, Separator+LangSeparator)
	if i <= 0 || i == len(field)-1 {
		return "", "", false, false
	}
	return field[:i], field[i+1:], field[i] == LangSeparator[0], true
}

// CanonicalLang validates a language tag and returns its canonical form.
func CanonicalLang(tag string) (string, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("facet: invalid language tag %q: %w", tag, err)
	}
	return t.String(), nil
}

// EncodeValue converts a facet value to its document form. The value
// domain of Facets is int64, float64, string, bool and time.Time: other
// integer kinds become int64, float32 becomes float64 and times render as
// RFC 3339 strings. Floats always carry a decimal point or exponent so the
// store keeps them as float facets.
func EncodeValue(v any) (any, error) {
	switch x := v.(type) {
	case string, bool:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint, uint8, uint16, uint32, uint64:
		u := reflect.ValueOf(x).Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("facet: value %d overflows int64", u)
		}
		return int64(u), nil
	case float32:
		return floatNumber(float64(x))
	case float64:
		return floatNumber(x)
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.Format(time.RFC3339Nano), nil
	case json.Number:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return nil, fmt.Errorf("facet: unsupported value type %T", v)
	}
}

func floatNumber(f float64) (json.Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("facet: value %v is not a JSON number", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s), nil
}

// DecodeValue converts a facet value read from a document. JSON numbers
// with a fraction or exponent become float64, other numbers int64, and RFC 3339 strings become times; other values
// are kept as they are.
func DecodeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if !strings.ContainsAny(x.String(), ".eE") {
			if i, err := x.Int64(); err == nil {
				return i
			}
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case string:
		if len(x) >= len("2006-01-02T15:04:05Z") && x[4] == '-' && x[10] == 'T' {
			if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
				return t
			}
		}
		return x
	default:
		return v
	}
}
