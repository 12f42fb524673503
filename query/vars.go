package query

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/syssam/velograph/geo"
	"github.com/syssam/velograph/uid"
	"github.com/syssam/velograph/vector"
)

// Variable types of the query language.
const (
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeString = "string"
	TypeVector = "float32vector"
)

const (
	minVarLen = 8
	maxVarLen = 16
	alphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	letters   = 52
)

// VarNamer returns a fresh variable name, without the "$" sign, for a
// value of the given Go type name.
type VarNamer func(typeName string) string

// RandomName is the default VarNamer. It returns a random alphanumeric
// name, starting with a letter, as long as the type name and bounded to
// 8..16 characters.
func RandomName(typeName string) string {
	n := min(max(len(typeName), minVarLen), maxVarLen)
	b := make([]byte, n)
	b[0] = alphabet[rand.IntN(letters)]
	for i := 1; i < n; i++ {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}

// SequentialNamer returns a VarNamer producing v1, v2 and so on. It is
// meant for tests and golden files.
func SequentialNamer() VarNamer {
	var n int
	return func(string) string {
		n++
		return "v" + strconv.Itoa(n)
	}
}

// Vars holds the variables bound while building a query.
type Vars struct {
	namer  VarNamer
	names  []string
	values map[string]string
	types  map[string]string
}

// NewVars returns an empty variable set. A nil namer uses RandomName.
func NewVars(namer VarNamer) *Vars {
	if namer == nil {
		namer = RandomName
	}
	return &Vars{
		namer:  namer,
		values: make(map[string]string),
		types:  make(map[string]string),
	}
}

// Bind casts v and binds it to a new variable. It returns the variable
// reference including the "$" sign.
func (vs *Vars) Bind(v any) (string, error) {
	lit, typ, err := Cast(v)
	if err != nil {
		return "", err
	}
	typeName := "<nil>"
	if v != nil {
		typeName = reflect.TypeOf(v).String()
	}
	name := "$" + vs.namer(typeName)
	for i := 0; vs.has(name); i++ {
		if i == 32 {
			return "", fmt.Errorf("query: no free variable name for %s", typeName)
		}
		name = "$" + vs.namer(typeName)
	}
	vs.names = append(vs.names, name)
	vs.values[name] = lit
	vs.types[name] = typ
	return name, nil
}

func (vs *Vars) has(name string) bool {
	_, ok := vs.values[name]
	return ok
}

// Len returns the number of bound variables.
func (vs *Vars) Len() int { return len(vs.names) }

// Map returns the variable values keyed by "$name", the form expected by
// the store client.
func (vs *Vars) Map() map[string]string {
	out := make(map[string]string, len(vs.values))
	for k, v := range vs.values {
		out[k] = v
	}
	return out
}

// Declaration returns the variable declarations of the query header in
// binding order, e.g. "$a: string, $b: int".
func (vs *Vars) Declaration() string {
	parts := make([]string, len(vs.names))
	for i, name := range vs.names {
		parts[i] = name + ": " + vs.types[name]
	}
	return strings.Join(parts, ", ")
}

var (
	timeType   = reflect.TypeFor[time.Time]()
	uidType    = reflect.TypeFor[uid.UID]()
	vectorType = reflect.TypeFor[vector.Vector]()
	geomType   = reflect.TypeFor[orb.Geometry]()
)

// Cast renders a value as a query literal and reports its variable type.
//
// Integers render in base 10, floats in their shortest round-trip form,
// times as RFC 3339 with nanoseconds, vectors as a bracketed float list and
// geometries as their coordinate array. Other slices render as a bracketed,
// comma-joined list of their cast elements, strings quoted. Strings are
// returned unquoted: variable values travel outside the query text.
func Cast(v any) (string, string, error) {
	if v == nil {
		return "", "", fmt.Errorf("query: cannot bind nil")
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", "", fmt.Errorf("query: cannot bind nil %s", rv.Type())
		}
		rv = rv.Elem()
	}
	return cast(rv, false)
}

func cast(rv reflect.Value, elem bool) (string, string, error) {
	t := rv.Type()
	switch {
	case t == timeType:
		s := rv.Interface().(time.Time).Format(time.RFC3339Nano)
		return quote(s, elem), TypeString, nil
	case t == uidType:
		id := rv.Interface().(uid.UID)
		if !id.IsConcrete() {
			return "", "", uid.ErrNotConcrete
		}
		return id.String(), TypeString, nil
	case t == vectorType || (t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Float32):
		return vector.Encode(rv.Convert(reflect.TypeFor[[]float32]()).Interface().([]float32)), TypeVector, nil
	case t.Implements(geomType):
		s, err := geo.Coordinates(rv.Interface().(orb.Geometry))
		if err != nil {
			return "", "", err
		}
		return s, TypeString, nil
	case t.Implements(reflect.TypeFor[fmt.Stringer]()):
		return quote(rv.Interface().(fmt.Stringer).String(), elem), TypeString, nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), TypeBool, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), TypeInt, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), TypeInt, nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), TypeFloat, nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), TypeFloat, nil
	case reflect.String:
		return quote(rv.String(), elem), TypeString, nil
	case reflect.Slice, reflect.Array:
		if t.Kind() == reflect.Slice && rv.IsNil() {
			return "[]", TypeString, nil
		}
		parts := make([]string, rv.Len())
		for i := range rv.Len() {
			x := rv.Index(i)
			for x.Kind() == reflect.Pointer || x.Kind() == reflect.Interface {
				if x.IsNil() {
					return "", "", fmt.Errorf("query: nil element %d", i)
				}
				x = x.Elem()
			}
			s, _, err := cast(x, true)
			if err != nil {
				return "", "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", TypeString, nil
	default:
		return quote(fmt.Sprint(rv.Interface()), elem), TypeString, nil
	}
}

func quote(s string, elem bool) string {
	if !elem {
		return s
	}
	return strconv.Quote(s)
}
