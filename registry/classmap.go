package registry

import (
	"reflect"

	"github.com/syssam/velograph/schema/predicate"
)

// PropertyKind is the closed set of property shapes the codec dispatches on.
type PropertyKind uint8

// Property kinds.
const (
	// KindScalar is a string, number, bool, datetime, password or default value.
	KindScalar PropertyKind = iota + 1
	// KindEdge is a reference to other nodes: entities or raw uids.
	KindEdge
	// KindFacet is a facet.Value wrapping a scalar or an edge.
	KindFacet
	// KindGeometry is an orb geometry encoded as GeoJSON.
	KindGeometry
	// KindVector is a float32vector.
	KindVector
)

// String returns the kind name.
func (k PropertyKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindEdge:
		return "edge"
	case KindFacet:
		return "facet"
	case KindGeometry:
		return "geometry"
	case KindVector:
		return "vector"
	default:
		return "invalid"
	}
}

// Property binds a predicate to a Go struct field of an entity.
type Property struct {
	// Name is the Go struct field name.
	Name string
	// Index is the struct field index path.
	Index []int
	// Kind is the shape of the property.
	Kind PropertyKind
	// Inner is the shape of the wrapped value of facet hosts: KindScalar,
	// KindEdge, KindGeometry or KindVector.
	Inner PropertyKind
	// Predicate is the bound predicate definition.
	Predicate *predicate.Definition
	// Type is the Go type of the struct field.
	Type reflect.Type
	// List reports that the struct field is a slice of values.
	List bool
	// Elem is the Go type of one value: the slice element, unwrapped from
	// facet.Value when the property is a facet host.
	Elem reflect.Type
	// Target is the entity type of edges, or the interface type of
	// polymorphic edges. Nil for raw uid edges and scalars.
	Target reflect.Type
	// Raw reports an edge holding uid.UID values instead of entities.
	Raw bool

	// declared edge target, resolved at freeze.
	targetDecl reflect.Type
}

// Field returns the struct field of the property in an addressable entity
// value.
func (p *Property) Field(entity reflect.Value) reflect.Value {
	return entity.FieldByIndex(p.Index)
}

// Key returns the document field name of the property: the predicate name,
// or ~predicate for reverse navigation.
func (p *Property) Key() string {
	if p.Predicate.Inverse {
		return "~" + p.Predicate.Name
	}
	return p.Predicate.Name
}

// ClassMap maps one entity type to its graph type and predicates.
type ClassMap struct {
	// Entity is the Go struct type of the entity.
	Entity reflect.Type
	// Decl is the Go type of the declaration.
	Decl reflect.Type
	// TypeName is the graph type name.
	TypeName string
	// Predicates holds the predicate definitions in declaration order.
	Predicates []*predicate.Definition
	// Properties holds the property bindings in declaration order.
	Properties []*Property
	// UID is the index path of the identity field.
	UID []int
	// DType is the index path of the type-list field, nil if absent.
	DType []int
	// Extra is the index path of the extension data field, nil if absent.
	Extra []int

	byProperty map[string]*Property
	byKey      map[string]*Property
}

// Property returns the binding of the Go field name.
func (c *ClassMap) Property(name string) (*Property, bool) {
	p, ok := c.byProperty[name]
	return p, ok
}

// PropertyFor returns the binding of a document field name: a predicate, or
// ~predicate for reverse navigation.
func (c *ClassMap) PropertyFor(key string) (*Property, bool) {
	p, ok := c.byKey[key]
	return p, ok
}

// Predicate returns the definition of the named predicate declared by the
// class. Reverse navigations are not declarations and are not returned.
func (c *ClassMap) Predicate(name string) (*predicate.Definition, bool) {
	p, ok := c.byKey[name]
	if !ok {
		return nil, false
	}
	return p.Predicate, true
}

// Declared returns the predicates the class declares, excluding reverse
// navigations.
func (c *ClassMap) Declared() []*predicate.Definition {
	out := make([]*predicate.Definition, 0, len(c.Predicates))
	for _, d := range c.Predicates {
		if !d.Inverse {
			out = append(out, d)
		}
	}
	return out
}

func (c *ClassMap) index() {
	c.byProperty = make(map[string]*Property, len(c.Properties))
	c.byKey = make(map[string]*Property, len(c.Properties))
	for _, p := range c.Properties {
		c.byProperty[p.Name] = p
		c.byKey[p.Key()] = p
	}
}
