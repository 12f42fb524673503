// Package edge provides builders for uid predicates that connect entities.
//
//	edge.To("works_for", Company{}).Unique().Reverse()
//	edge.To("friends", Person{}).Facets()
//	edge.From("employees", Person{}).Ref("works_for")
//
// To declares a forward predicate. From declares a navigation of another
// type's reverse predicate: it adds ~predicate to the type block but no
// predicate declaration.
package edge

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/syssam/velograph/schema/predicate"
)

// Descriptor holds the declaration of an edge.
type Descriptor struct {
	// Property is the Go struct field of the entity. Empty means the
	// camel-cased name.
	Property string
	// Predicate is the predicate definition. Target is resolved by the
	// registry from Type.
	Predicate predicate.Definition
	// Type is the Go type of the target entity, or of its declaration.
	Type reflect.Type
	// Name is the declared name; for inverse edges it is the property
	// name until Ref sets the predicate.
	Name string
	// Comment is an optional description.
	Comment string
	// Err holds the first error found while building the descriptor.
	Err error
}

// Builder is the fluent builder for edges.
type Builder struct {
	desc *Descriptor
}

// To returns a builder for a forward edge named after its predicate. The
// target may be an entity value or its declaration value. Edges are lists
// unless Unique is called.
func To(name string, target any) *Builder {
	b := &Builder{desc: &Descriptor{
		Name: name,
		Predicate: predicate.Definition{
			Name: name,
			Kind: predicate.KindUID,
			List: true,
		},
	}}
	b.target(target)
	return b
}

// From returns a builder for the reverse navigation of the predicate set
// with Ref. The name is used as the property when Property is not set.
func From(name string, target any) *Builder {
	b := &Builder{desc: &Descriptor{
		Name: name,
		Predicate: predicate.Definition{
			Kind:    predicate.KindUID,
			List:    true,
			Inverse: true,
		},
	}}
	b.target(target)
	return b
}

func (b *Builder) target(v any) {
	if v == nil {
		b.err(errors.New("missing edge target"))
		return
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	b.desc.Type = t
}

// Ref sets the predicate an inverse edge navigates.
func (b *Builder) Ref(predicateName string) *Builder {
	if !b.desc.Predicate.Inverse {
		b.err(errors.New("Ref is only valid on edge.From"))
		return b
	}
	b.desc.Predicate.Name = predicateName
	return b
}

// Unique makes the edge hold a single node.
func (b *Builder) Unique() *Builder {
	b.desc.Predicate.List = false
	return b
}

// Reverse adds the @reverse directive.
func (b *Builder) Reverse() *Builder {
	b.desc.Predicate.Reverse = true
	return b
}

// Count adds the @count directive.
func (b *Builder) Count() *Builder {
	b.desc.Predicate.Count = true
	return b
}

// Facets marks the property as a facet host.
func (b *Builder) Facets() *Builder {
	b.desc.Predicate.FacetHost = true
	return b
}

// Property sets the Go struct field the edge maps to.
func (b *Builder) Property(name string) *Builder {
	if name == "" {
		b.err(errors.New("empty property name"))
	}
	b.desc.Property = name
	return b
}

// Comment sets the comment of the edge.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the velograph.Edge interface by returning its
// descriptor.
func (b *Builder) Descriptor() *Descriptor {
	d := b.desc
	if d.Err != nil {
		return d
	}
	if d.Predicate.Inverse {
		if d.Predicate.Name == "" {
			b.err(errors.New("edge.From requires Ref"))
			return d
		}
		if d.Predicate.Reverse || d.Predicate.Count {
			b.err(errors.New("directives belong to the forward edge"))
			return d
		}
	}
	if err := d.Predicate.Validate(); err != nil {
		d.Err = err
	}
	return d
}

func (b *Builder) err(err error) {
	if b.desc.Err == nil {
		b.desc.Err = fmt.Errorf("edge %q: %w", b.desc.Name, err)
	}
}
