// Package registry holds the class maps of all entity types known to the
// mapper.
//
// A Context is built once at startup, single threaded:
//
//	reg := registry.New()
//	reg.MustAdd(Person{}, PersonSchema{})
//	reg.MustAdd(Company{}, CompanySchema{})
//	if err := reg.Freeze(); err != nil {
//		log.Fatal(err)
//	}
//
// Freeze validates the whole registry: edge targets must be mapped, every
// predicate name must have one definition across all types, and reverse
// navigations must reference a forward predicate declared with @reverse.
// A frozen Context is read-only and safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/schema/predicate"
)

// Context is the registry of class maps.
type Context struct {
	mu         sync.Mutex
	frozen     atomic.Bool
	log        *slog.Logger
	classes    []*ClassMap
	byEntity   map[reflect.Type]*ClassMap
	byDecl     map[reflect.Type]*ClassMap
	byName     map[string]*ClassMap
	predicates map[string]*predicate.Definition
	declaring  map[string][]string
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used to report registrations.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns an empty registry.
func New(opts ...Option) *Context {
	c := &Context{
		log:      slog.Default(),
		byEntity: make(map[reflect.Type]*ClassMap),
		byDecl:   make(map[reflect.Type]*ClassMap),
		byName:   make(map[string]*ClassMap),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add loads the declaration of an entity and registers its class map.
func (c *Context) Add(entity any, decl velograph.Interface) error {
	cm, err := NewClassMap(entity, decl)
	if err != nil {
		return err
	}
	return c.Register(cm)
}

// MustAdd is like Add but panics on error.
func (c *Context) MustAdd(entity any, decl velograph.Interface) {
	if err := c.Add(entity, decl); err != nil {
		panic(err)
	}
}

// Register adds a class map. Registering the same entity type again
// replaces its class map; a different entity type claiming an existing
// graph type name is rejected with a DuplicateTypeError.
func (c *Context) Register(cm *ClassMap) error {
	if c.frozen.Load() {
		return fmt.Errorf("register %s: %w", cm.TypeName, velograph.ErrFrozen)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if other, ok := c.byName[cm.TypeName]; ok && other.Entity != cm.Entity {
		return &velograph.DuplicateTypeError{
			Type:     cm.TypeName,
			Existing: other.Entity.String(),
			Incoming: cm.Entity.String(),
		}
	}
	if old, ok := c.byEntity[cm.Entity]; ok {
		for i, x := range c.classes {
			if x == old {
				c.classes = append(c.classes[:i], c.classes[i+1:]...)
				break
			}
		}
		delete(c.byName, old.TypeName)
		delete(c.byDecl, old.Decl)
		c.log.Debug("registry: replacing class map", "type", cm.TypeName, "entity", cm.Entity.String())
	}
	c.classes = append(c.classes, cm)
	c.byEntity[cm.Entity] = cm
	c.byDecl[cm.Decl] = cm
	c.byName[cm.TypeName] = cm
	return nil
}

// Freeze validates the registry and makes it read-only. On failure the
// registry stays open and the returned error joins every problem found.
func (c *Context) Freeze() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen.Load() {
		return nil
	}
	var errs []error
	for _, cm := range c.classes {
		errs = append(errs, c.resolveTargets(cm)...)
	}
	preds, declaring, perrs := c.collect()
	errs = append(errs, perrs...)
	errs = append(errs, c.checkInverse(preds)...)
	if err := errors.Join(errs...); err != nil {
		return err
	}
	c.predicates = preds
	c.declaring = declaring
	c.frozen.Store(true)
	c.log.Debug("registry: frozen", "types", len(c.classes), "predicates", len(preds))
	return nil
}

// Frozen reports whether Freeze succeeded.
func (c *Context) Frozen() bool {
	return c.frozen.Load()
}

func (c *Context) resolveTargets(cm *ClassMap) []error {
	var errs []error
	for _, p := range cm.Properties {
		if p.targetDecl == nil {
			continue
		}
		if p.targetDecl.Kind() == reflect.Interface {
			// Polymorphic edge: concrete types are resolved per node from
			// dgraph.type.
			if p.Target != nil && p.Target != p.targetDecl {
				errs = append(errs, velograph.NewMappingError(cm.TypeName, p.Name,
					fmt.Sprintf("field holds %s but the edge targets %s", p.Target, p.targetDecl), nil))
			}
			continue
		}
		target, ok := c.byEntity[p.targetDecl]
		if !ok {
			target, ok = c.byDecl[p.targetDecl]
		}
		if !ok {
			errs = append(errs, &velograph.UnmappedTypeError{
				Type:     p.targetDecl.String(),
				From:     cm.TypeName,
				Property: p.Name,
			})
			continue
		}
		p.Predicate.Target = target.TypeName
		switch {
		case p.Raw:
		case p.Target.Kind() == reflect.Interface:
			if !reflect.PointerTo(target.Entity).Implements(p.Target) {
				errs = append(errs, velograph.NewMappingError(cm.TypeName, p.Name,
					fmt.Sprintf("%s does not implement %s", target.Entity, p.Target), nil))
			}
		case p.Target != target.Entity:
			errs = append(errs, velograph.NewMappingError(cm.TypeName, p.Name,
				fmt.Sprintf("field holds %s but the edge targets %s", p.Target, target.Entity), nil))
		}
	}
	return errs
}

// collect groups the declared predicates by name and checks that every
// name has a single definition.
func (c *Context) collect() (map[string]*predicate.Definition, map[string][]string, []error) {
	var (
		preds     = make(map[string]*predicate.Definition)
		declaring = make(map[string][]string)
		conflicts = make(map[string]bool)
	)
	for _, cm := range c.classes {
		for _, d := range cm.Declared() {
			declaring[d.Name] = append(declaring[d.Name], cm.TypeName)
			if first, ok := preds[d.Name]; !ok {
				preds[d.Name] = d
			} else if !first.Equal(d) {
				conflicts[d.Name] = true
			}
		}
	}
	names := make([]string, 0, len(conflicts))
	for name := range conflicts {
		names = append(names, name)
	}
	sort.Strings(names)
	errs := make([]error, 0, len(names))
	for _, name := range names {
		e := &velograph.AmbiguousPredicateError{
			Predicate:  name,
			Renderings: make(map[string]string),
		}
		for _, cm := range c.classes {
			if d, ok := cm.Predicate(name); ok && !d.Inverse {
				e.Types = append(e.Types, cm.TypeName)
				e.Renderings[cm.TypeName] = d.Render()
			}
		}
		sort.Strings(e.Types)
		errs = append(errs, e)
	}
	for _, types := range declaring {
		sort.Strings(types)
	}
	return preds, declaring, errs
}

func (c *Context) checkInverse(preds map[string]*predicate.Definition) []error {
	var errs []error
	for _, cm := range c.classes {
		for _, p := range cm.Properties {
			if !p.Predicate.Inverse {
				continue
			}
			fwd, ok := preds[p.Predicate.Name]
			switch {
			case !ok:
				errs = append(errs, velograph.NewMappingError(cm.TypeName, p.Name,
					fmt.Sprintf("reverse navigation of undeclared predicate %q", p.Predicate.Name), nil))
			case !fwd.Reverse:
				errs = append(errs, velograph.NewMappingError(cm.TypeName, p.Name,
					fmt.Sprintf("predicate %q is not declared with @reverse", p.Predicate.Name), nil))
			}
		}
	}
	return errs
}

// Resolve returns the class map of an entity. The argument may be an entity
// value or pointer, its declaration, a reflect.Type of either, or a graph
// type name.
func (c *Context) Resolve(v any) (*ClassMap, error) {
	if !c.frozen.Load() {
		return nil, velograph.ErrNotFrozen
	}
	switch x := v.(type) {
	case string:
		return c.ResolveType(x)
	case reflect.Type:
		return c.resolveGo(indirect(x))
	case nil:
		return nil, &velograph.UnmappedTypeError{Type: "<nil>"}
	default:
		return c.resolveGo(indirect(reflect.TypeOf(v)))
	}
}

func (c *Context) resolveGo(t reflect.Type) (*ClassMap, error) {
	if cm, ok := c.byEntity[t]; ok {
		return cm, nil
	}
	if cm, ok := c.byDecl[t]; ok {
		return cm, nil
	}
	return nil, &velograph.UnmappedTypeError{Type: t.String()}
}

// ResolveType returns the class map of a graph type name.
func (c *Context) ResolveType(name string) (*ClassMap, error) {
	if !c.frozen.Load() {
		return nil, velograph.ErrNotFrozen
	}
	cm, ok := c.byName[name]
	if !ok {
		return nil, &velograph.UnmappedTypeError{Type: name}
	}
	return cm, nil
}

// ResolvePredicate returns the predicate definition bound to a property of
// an entity. The property is the Go field name or the predicate name.
func (c *Context) ResolvePredicate(entity any, property string) (*predicate.Definition, error) {
	cm, err := c.Resolve(entity)
	if err != nil {
		return nil, err
	}
	if p, ok := cm.Property(property); ok {
		return p.Predicate, nil
	}
	if p, ok := cm.PropertyFor(property); ok {
		return p.Predicate, nil
	}
	return nil, velograph.NewMappingError(cm.TypeName, property, "no such property", nil)
}

// ResolveConcrete picks the class map for a node of a polymorphic edge from
// the node's type list. The first listed type that is mapped and assignable
// to the target wins.
func (c *Context) ResolveConcrete(target reflect.Type, types []string) (*ClassMap, error) {
	if !c.frozen.Load() {
		return nil, velograph.ErrNotFrozen
	}
	for _, name := range types {
		cm, ok := c.byName[name]
		if !ok {
			continue
		}
		if target == nil || cm.Entity == target ||
			(target.Kind() == reflect.Interface && reflect.PointerTo(cm.Entity).Implements(target)) {
			return cm, nil
		}
	}
	name := "<none>"
	if len(types) > 0 {
		name = types[0]
	}
	return nil, &velograph.UnmappedTypeError{Type: name}
}

// Classes returns the class maps sorted by graph type name.
func (c *Context) Classes() []*ClassMap {
	c.mu.Lock()
	out := make([]*ClassMap, len(c.classes))
	copy(out, c.classes)
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TypeName < out[j].TypeName })
	return out
}

// Predicates returns the canonical definition of every declared predicate,
// sorted by name. It is empty until the registry is frozen.
func (c *Context) Predicates() []*predicate.Definition {
	out := make([]*predicate.Definition, 0, len(c.predicates))
	for _, d := range c.predicates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Predicate returns the canonical definition of a declared predicate.
func (c *Context) Predicate(name string) (*predicate.Definition, bool) {
	d, ok := c.predicates[name]
	return d, ok
}

// DeclaringTypes returns the graph types declaring a predicate, sorted.
func (c *Context) DeclaringTypes(name string) []string {
	return c.declaring[name]
}
