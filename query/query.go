// Package query builds parameterized queries over mapped entities.
//
//	q, err := query.New(reg, Person{}).
//		Filter(filter.Ge("Age", 18), filter.AnyOfTerms("Tags", "go graph")).
//		OrderAsc("Name").
//		First(10).
//		Build()
//
// The query text never contains a literal value: values are bound to
// variables declared in the query header and returned in Query.Vars.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/query/filter"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/uid"
)

// DefaultBlock is the name of the query block of built queries.
const DefaultBlock = "q"

// Query is a built query.
type Query struct {
	// Name is the name of the result block.
	Name string
	// Text is the query text.
	Text string
	// Vars maps "$name" to the literal bound to it.
	Vars map[string]string
}

// String returns the query text.
func (q *Query) String() string { return q.Text }

// Option configures a Builder.
type Option func(*Builder)

// WithVarNamer sets the function naming bound variables.
func WithVarNamer(n VarNamer) Option {
	return func(b *Builder) {
		b.namer = n
	}
}

// WithDepth sets the default expansion depth of edges.
func WithDepth(n int) Option {
	return func(b *Builder) {
		b.depth = n
	}
}

type order struct {
	pred string
	desc bool
}

// Builder builds a query over the nodes of one entity type. Errors are
// deferred to Build.
type Builder struct {
	reg     *registry.Context
	cm      *registry.ClassMap
	name    string
	fn      filter.Expr
	filters []filter.Expr
	orders  []order
	first   *int
	offset  *int
	after   uid.UID
	selects []string
	depth   int
	namer   VarNamer
	errs    []error
}

// New returns a builder for entities of the type of entity, which may be
// anything registry.Context.Resolve accepts.
func New(reg *registry.Context, entity any, opts ...Option) *Builder {
	b := &Builder{reg: reg, name: DefaultBlock, depth: 1}
	cm, err := reg.Resolve(entity)
	if err != nil {
		b.errs = append(b.errs, err)
	}
	b.cm = cm
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name sets the name of the query block.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Func sets the root function selecting the starting nodes. It defaults to
// type(T) for the entity's graph type.
func (b *Builder) Func(e filter.Expr) *Builder {
	b.fn = e
	return b
}

// Filter adds filter expressions, joined with AND.
func (b *Builder) Filter(exprs ...filter.Expr) *Builder {
	b.filters = append(b.filters, exprs...)
	return b
}

// OrderAsc orders results by the predicate ascending.
func (b *Builder) OrderAsc(property string) *Builder {
	b.orders = append(b.orders, order{pred: property})
	return b
}

// OrderDesc orders results by the predicate descending.
func (b *Builder) OrderDesc(property string) *Builder {
	b.orders = append(b.orders, order{pred: property, desc: true})
	return b
}

// First limits the number of results. A negative n takes from the end.
func (b *Builder) First(n int) *Builder {
	b.first = &n
	return b
}

// Offset skips the first n results.
func (b *Builder) Offset(n int) *Builder {
	if n < 0 {
		b.errs = append(b.errs, fmt.Errorf("query: negative offset %d", n))
	}
	b.offset = &n
	return b
}

// After returns results after the given uid, for cursor pagination.
func (b *Builder) After(id uid.UID) *Builder {
	if !id.IsConcrete() {
		b.errs = append(b.errs, fmt.Errorf("query: after: %w", uid.ErrNotConcrete))
	}
	b.after = id
	return b
}

// Select restricts the selection to the given properties. uid and
// dgraph.type are always selected.
func (b *Builder) Select(properties ...string) *Builder {
	b.selects = append(b.selects, properties...)
	return b
}

// Depth sets how many levels of edges are expanded. Nodes beyond the depth
// are selected by uid and type only.
func (b *Builder) Depth(n int) *Builder {
	if n < 0 {
		b.errs = append(b.errs, fmt.Errorf("query: negative depth %d", n))
	}
	b.depth = n
	return b
}

// Build renders the query.
func (b *Builder) Build() (*Query, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	if err := checkName(b.name); err != nil {
		return nil, err
	}
	bind := &binder{Vars: NewVars(b.namer), reg: b.reg, cm: b.cm}
	var root strings.Builder
	fn := b.fn
	if fn == nil {
		fn = filter.Type(b.cm.TypeName)
	}
	root.WriteString("func: ")
	if err := fn.Render(&root, bind); err != nil {
		return nil, err
	}
	for _, o := range b.orders {
		name, err := bind.Predicate(o.pred)
		if err != nil {
			return nil, err
		}
		if o.desc {
			root.WriteString(", orderdesc: " + name)
		} else {
			root.WriteString(", orderasc: " + name)
		}
	}
	if b.first != nil {
		root.WriteString(", first: " + strconv.Itoa(*b.first))
	}
	if b.offset != nil {
		root.WriteString(", offset: " + strconv.Itoa(*b.offset))
	}
	if !b.after.IsZero() {
		root.WriteString(", after: " + b.after.String())
	}
	var filters string
	if len(b.filters) > 0 {
		var w strings.Builder
		if err := filter.And(b.filters...).Render(&w, bind); err != nil {
			return nil, err
		}
		filters = " @filter(" + w.String() + ")"
	}
	sel, err := b.selection()
	if err != nil {
		return nil, err
	}
	var w strings.Builder
	if bind.Len() > 0 {
		fmt.Fprintf(&w, "query %s(%s) {\n", b.name, bind.Declaration())
	} else {
		w.WriteString("{\n")
	}
	fmt.Fprintf(&w, "  %s(%s)%s {\n", b.name, root.String(), filters)
	sel.write(&w, 2)
	w.WriteString("  }\n}\n")
	return &Query{Name: b.name, Text: w.String(), Vars: bind.Map()}, nil
}

func checkName(name string) error {
	if name == "" {
		return errors.New("query: empty block name")
	}
	for i, r := range name {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || (i > 0 && '0' <= r && r <= '9') {
			continue
		}
		return fmt.Errorf("query: invalid block name %q", name)
	}
	return nil
}

// binder binds variables and resolves property names against the queried
// entity. Names unknown to the entity must be declared predicates.
type binder struct {
	*Vars
	reg *registry.Context
	cm  *registry.ClassMap
}

func (b *binder) Predicate(name string) (string, error) {
	if p, ok := b.cm.Property(name); ok {
		return p.Key(), nil
	}
	if p, ok := b.cm.PropertyFor(name); ok {
		return p.Key(), nil
	}
	base, _, _ := strings.Cut(strings.TrimPrefix(name, "~"), "@")
	if _, ok := b.reg.Predicate(base); ok || base == velograph.UIDPredicate || base == velograph.TypePredicate {
		return name, nil
	}
	return "", velograph.NewMappingError(b.cm.TypeName, name, "no such property or predicate", nil)
}
