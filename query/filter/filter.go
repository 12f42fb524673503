// Package filter provides the filter functions of the query language.
//
// Values are never written into the query text: every literal is bound to
// a query variable through a Binder, and only predicate and type names,
// validated as identifiers, appear inline. Predicates may be named by
// predicate name or by the Go property they are bound to; the Binder
// resolves them against the queried entity.
//
//	filter.And(
//		filter.Eq("Name", "Alice"),
//		filter.Not(filter.Has("deleted_at")),
//		filter.Regexp("email", `@example\.com$`, "i"),
//	)
//
// renders as
//
//	eq(name, $kdlwpxqa) AND NOT has(deleted_at) AND regexp(email, $bzqmmfle)
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/geo"
	"github.com/syssam/velograph/uid"
	"github.com/syssam/velograph/vector"
)

// Binder binds literals and predicate names while an expression renders.
type Binder interface {
	// Bind binds a literal to a query variable and returns the variable
	// reference, e.g. "$abcdefgh".
	Bind(value any) (string, error)
	// Predicate returns the predicate name for a property or predicate
	// name.
	Predicate(name string) (string, error)
}

// Expr is a filter expression.
type Expr interface {
	// Render writes the expression to w, binding literals through b.
	Render(w *strings.Builder, b Binder) error
}

// Func is a filter function call: name(args...).
type Func struct {
	Name string
	args []arg
	err  error
}

// arg is one function argument: a predicate, an inline identifier or
// number, or a literal bound as a variable.
type arg struct {
	inline string
	value  any
	bound  bool
	pred   bool
}

func ident(s string) arg { return arg{inline: s} }

func pred(s string) arg { return arg{inline: s, pred: true} }

func lit(v any) arg { return arg{value: v, bound: true} }

// Render implements Expr.
func (f *Func) Render(w *strings.Builder, b Binder) error {
	if f.err != nil {
		return f.err
	}
	w.WriteString(f.Name)
	w.WriteByte('(')
	for i, a := range f.args {
		if i > 0 {
			w.WriteString(", ")
		}
		if a.pred {
			name, err := b.Predicate(a.inline)
			if err != nil {
				return fmt.Errorf("filter: %s: %w", f.Name, err)
			}
			w.WriteString(name)
			continue
		}
		if !a.bound {
			w.WriteString(a.inline)
			continue
		}
		ref, err := b.Bind(a.value)
		if err != nil {
			return fmt.Errorf("filter: %s: %w", f.Name, err)
		}
		w.WriteString(ref)
	}
	w.WriteByte(')')
	return nil
}

func call(name string, args ...arg) *Func {
	f := &Func{Name: name, args: args}
	for _, a := range args {
		if a.bound {
			continue
		}
		if err := checkIdent(a.inline); err != nil {
			f.err = fmt.Errorf("filter: %s: %w", name, err)
			break
		}
	}
	return f
}

var identRe = regexp.MustCompile(`^~?[A-Za-z_][A-Za-z0-9_.\-]*(@[A-Za-z\-:.*]+)?$|^-?[0-9]+(\.[0-9]+)?$`)

func checkIdent(s string) error {
	if !identRe.MatchString(s) {
		return fmt.Errorf("invalid identifier %q", s)
	}
	return nil
}

// Eq matches nodes whose predicate equals v. A slice of values matches any
// of them.
func Eq(p string, v any) *Func { return call("eq", pred(p), lit(v)) }

// Ge matches nodes whose predicate is greater than or equal to v.
func Ge(p string, v any) *Func { return call("ge", pred(p), lit(v)) }

// Gt matches nodes whose predicate is greater than v.
func Gt(p string, v any) *Func { return call("gt", pred(p), lit(v)) }

// Le matches nodes whose predicate is less than or equal to v.
func Le(p string, v any) *Func { return call("le", pred(p), lit(v)) }

// Lt matches nodes whose predicate is less than v.
func Lt(p string, v any) *Func { return call("lt", pred(p), lit(v)) }

// Between matches nodes whose predicate lies in [lo, hi].
func Between(p string, lo, hi any) *Func {
	return call("between", pred(p), lit(lo), lit(hi))
}

// AllOfTerms matches strings containing all the terms.
func AllOfTerms(p, terms string) *Func { return call("allofterms", pred(p), lit(terms)) }

// AnyOfTerms matches strings containing any of the terms.
func AnyOfTerms(p, terms string) *Func { return call("anyofterms", pred(p), lit(terms)) }

// AllOfText matches full text containing all the words, stemmed.
func AllOfText(p, text string) *Func { return call("alloftext", pred(p), lit(text)) }

// AnyOfText matches full text containing any of the words, stemmed.
func AnyOfText(p, text string) *Func { return call("anyoftext", pred(p), lit(text)) }

// Regexp matches strings against a regular expression. The pattern must be
// valid RE2, the dialect of the store; the only supported flag is "i".
// Invalid patterns fail here with an InvalidFilterPatternError.
func Regexp(p, pattern, flags string) *Func {
	f := call("regexp", pred(p), lit("/"+pattern+"/"+flags))
	if f.err != nil {
		return f
	}
	if err := validatePattern(pattern, flags); err != nil {
		f.err = &velograph.InvalidFilterPatternError{Predicate: p, Pattern: pattern, Cause: err}
	}
	return f
}

func validatePattern(pattern, flags string) error {
	if pattern == "" {
		return errors.New("empty pattern")
	}
	if flags != "" && flags != "i" {
		return fmt.Errorf("unsupported flags %q", flags)
	}
	if i := unescapedSlash(pattern); i >= 0 {
		return fmt.Errorf("unescaped delimiter / at offset %d", i)
	}
	expr := pattern
	if flags == "i" {
		expr = "(?i)" + pattern
	}
	_, err := regexp.Compile(expr)
	return err
}

// unescapedSlash returns the offset of the first / not escaped by an odd
// number of backslashes, or -1.
func unescapedSlash(pattern string) int {
	escaped := false
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '/':
			return i
		}
	}
	return -1
}

// Match matches strings within a Levenshtein distance of s.
func Match(p, s string, distance int) *Func {
	f := call("match", pred(p), lit(s), ident(strconv.Itoa(distance)))
	if distance < 0 {
		f.err = fmt.Errorf("filter: match: negative distance %d", distance)
	}
	return f
}

// Has matches nodes with a value for the predicate.
func Has(p string) *Func { return call("has", pred(p)) }

// Type matches nodes of the graph type.
func Type(name string) *Func { return call("type", ident(name)) }

// UID matches the given nodes.
func UID(ids ...uid.UID) *Func {
	f := call("uid", lit(uidList(ids)))
	f.err = checkUIDs("uid", ids)
	return f
}

// UIDIn matches nodes whose uid predicate points to one of the given nodes.
func UIDIn(p string, ids ...uid.UID) *Func {
	f := call("uid_in", pred(p), lit(uidList(ids)))
	if f.err == nil {
		f.err = checkUIDs("uid_in", ids)
	}
	return f
}

// uidList is a list of concrete uids bound as one variable.
type uidList []uid.UID

func checkUIDs(name string, ids []uid.UID) error {
	if len(ids) == 0 {
		return fmt.Errorf("filter: %s: no uids", name)
	}
	for _, id := range ids {
		if !id.IsConcrete() {
			return fmt.Errorf("filter: %s: %w", name, uid.ErrNotConcrete)
		}
	}
	return nil
}

// String returns the list literal, e.g. "[0x1, 0x2]", or the single uid.
func (l uidList) String() string {
	if len(l) == 1 {
		return l[0].String()
	}
	parts := make([]string, len(l))
	for i, id := range l {
		parts[i] = id.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// geoArg binds the coordinates of a geometry.
type geoArg struct{ g orb.Geometry }

// String returns the GeoJSON coordinates array.
func (a geoArg) String() string {
	s, _ := geo.Coordinates(a.g)
	return s
}

func geoCall(name, p string, g orb.Geometry, extra ...arg) *Func {
	args := append([]arg{pred(p), lit(geoArg{g})}, extra...)
	f := call(name, args...)
	if f.err == nil {
		if _, err := geo.Coordinates(g); err != nil {
			f.err = fmt.Errorf("filter: %s: %w", name, err)
		}
	}
	return f
}

// Near matches geometries within distance meters of the point.
func Near(p string, pt orb.Point, meters float64) *Func {
	return geoCall("near", p, pt, lit(meters))
}

// Within matches geometries lying within g.
func Within(p string, g orb.Geometry) *Func { return geoCall("within", p, g) }

// Contains matches geometries containing g.
func Contains(p string, g orb.Geometry) *Func { return geoCall("contains", p, g) }

// Intersects matches geometries intersecting g.
func Intersects(p string, g orb.Geometry) *Func { return geoCall("intersects", p, g) }

// SimilarTo matches the k nearest vectors of vec, using the predicate's
// hnsw index.
func SimilarTo(p string, k int, vec []float32) *Func {
	f := call("similar_to", pred(p), ident(strconv.Itoa(k)), lit(vector.Vector(vec)))
	switch {
	case k <= 0:
		f.err = fmt.Errorf("filter: similar_to: k must be positive, got %d", k)
	case len(vec) == 0:
		f.err = errors.New("filter: similar_to: empty vector")
	}
	return f
}

// Raw renders its arguments as a function of the given name, binding each
// value. It is used for functions not covered by the package.
func Raw(name, p string, values ...any) *Func {
	args := []arg{pred(p)}
	for _, v := range values {
		args = append(args, lit(v))
	}
	f := call(name, args...)
	if f.err == nil {
		if err := checkIdent(name); err != nil {
			f.err = err
		}
	}
	return f
}

type (
	junction struct {
		op    string
		exprs []Expr
	}
	not struct{ e Expr }
)

// And joins expressions with AND.
func And(exprs ...Expr) Expr { return &junction{op: "AND", exprs: exprs} }

// Or joins expressions with OR.
func Or(exprs ...Expr) Expr { return &junction{op: "OR", exprs: exprs} }

// Not negates an expression.
func Not(e Expr) Expr { return &not{e: e} }

// Render implements Expr.
func (j *junction) Render(w *strings.Builder, b Binder) error {
	if len(j.exprs) == 0 {
		return fmt.Errorf("filter: empty %s", j.op)
	}
	if len(j.exprs) == 1 {
		return j.exprs[0].Render(w, b)
	}
	for i, e := range j.exprs {
		if i > 0 {
			fmt.Fprintf(w, " %s ", j.op)
		}
		if err := group(w, b, e); err != nil {
			return err
		}
	}
	return nil
}

// Render implements Expr.
func (n *not) Render(w *strings.Builder, b Binder) error {
	w.WriteString("NOT ")
	return group(w, b, n.e)
}

// group renders e, wrapping compound expressions in parentheses.
func group(w *strings.Builder, b Binder, e Expr) error {
	if j, ok := e.(*junction); ok && len(j.exprs) > 1 {
		w.WriteByte('(')
		if err := e.Render(w, b); err != nil {
			return err
		}
		w.WriteByte(')')
		return nil
	}
	return e.Render(w, b)
}

// String renders an expression with literals inlined, for logging and
// debugging. The result is not meant to be sent to the store.
func String(e Expr) string {
	var w strings.Builder
	if err := e.Render(&w, inline{}); err != nil {
		return "!" + err.Error()
	}
	return w.String()
}

type inline struct{}

func (inline) Bind(v any) (string, error) {
	return fmt.Sprintf("%q", fmt.Sprint(v)), nil
}

func (inline) Predicate(name string) (string, error) { return name, nil }
