package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/syssam/velograph/facet"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/schema/predicate"
)

var timeType = reflect.TypeFor[time.Time]()

// timeLayouts are the datetime forms accepted on read. Writes always use
// RFC 3339 with nanoseconds.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// encodeScalar encodes one scalar value. Nil pointers, zero times and
// empty passwords are omitted.
func encodeScalar(kind predicate.Kind, v reflect.Value) (any, bool, error) {
	v, ok := deref(v)
	if !ok {
		return nil, false, nil
	}
	if v.Type() == timeType {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return nil, false, nil
		}
		return t.Format(time.RFC3339Nano), true, nil
	}
	switch v.Kind() {
	case reflect.String:
		if kind == predicate.KindPassword && v.Len() == 0 {
			return nil, false, nil
		}
		return v.String(), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, false, fmt.Errorf("value %d overflows the store's int64", u)
		}
		return int64(u), true, nil
	case reflect.Float32:
		return float32(v.Float()), true, nil
	case reflect.Float64:
		return v.Float(), true, nil
	case reflect.Bool:
		return v.Bool(), true, nil
	}
	if kind == predicate.KindDefault {
		return v.Interface(), true, nil
	}
	return nil, false, fmt.Errorf("cannot encode %s as %s", v.Type(), kind)
}

// decodeScalars decodes a scalar or a list of scalars into a value of type
// t. A single value read into a list property becomes a one-element list.
func decodeScalars(p *registry.Property, t reflect.Type, raw any) (reflect.Value, error) {
	kind := p.Predicate.Kind
	if !p.List {
		return decodeScalar(kind, t, raw)
	}
	items, ok := raw.([]any)
	if !ok {
		items = []any{raw}
	}
	out := reflect.MakeSlice(t, 0, len(items))
	for _, item := range items {
		x, err := decodeScalar(kind, t.Elem(), item)
		if err != nil {
			return reflect.Value{}, err
		}
		out = reflect.Append(out, x)
	}
	return out, nil
}

func decodeScalar(kind predicate.Kind, t reflect.Type, raw any) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(t), nil
	}
	if t.Kind() == reflect.Pointer {
		x, err := decodeScalar(kind, t.Elem(), raw)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(x)
		return p, nil
	}
	out := reflect.New(t).Elem()
	if t == timeType {
		s, ok := raw.(string)
		if !ok {
			return reflect.Value{}, fmt.Errorf("datetime value is %T, not a string", raw)
		}
		tm, err := parseTime(s)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Set(reflect.ValueOf(tm))
		return out, nil
	}
	switch t.Kind() {
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%s value is %T, not a string", kind, raw)
		}
		out.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", n, t)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if n < 0 || out.OverflowUint(uint64(n)) {
			return reflect.Value{}, fmt.Errorf("value %d overflows %s", n, t)
		}
		out.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetFloat(f)
	case reflect.Bool:
		switch x := raw.(type) {
		case bool:
			out.SetBool(x)
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("invalid bool %q", x)
			}
			out.SetBool(b)
		default:
			return reflect.Value{}, fmt.Errorf("bool value is %T", raw)
		}
	case reflect.Interface:
		val := facet.DecodeValue(raw)
		if err := assign(out, reflect.ValueOf(val)); err != nil {
			return reflect.Value{}, err
		}
	default:
		return reflect.Value{}, fmt.Errorf("cannot decode %s into %s", kind, t)
	}
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid int %q", x)
		}
		return floatToInt(f)
	case float64:
		return floatToInt(x)
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid int %q", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("int value is %T", v)
	}
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	return int64(f), nil
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid float %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("float value is %T", v)
	}
}

// assign sets dst to x, allocating when dst is a pointer and converting
// between assignable types.
func assign(dst, x reflect.Value) error {
	if !x.IsValid() {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	t := dst.Type()
	switch {
	case x.Type().AssignableTo(t):
		dst.Set(x)
	case t.Kind() == reflect.Pointer && x.Type().AssignableTo(t.Elem()):
		p := reflect.New(t.Elem())
		p.Elem().Set(x)
		dst.Set(p)
	case x.Type().ConvertibleTo(t) && x.Kind() == t.Kind():
		dst.Set(x.Convert(t))
	default:
		return fmt.Errorf("cannot assign %s to %s", x.Type(), t)
	}
	return nil
}
