package field

import (
	"errors"
	"fmt"

	"github.com/syssam/velograph/schema/predicate"
)

// Descriptor holds the declaration of one scalar predicate and the entity
// property it maps to.
type Descriptor struct {
	// Property is the Go struct field of the entity. Empty means the
	// camel-cased predicate name.
	Property string
	// Predicate is the predicate definition.
	Predicate predicate.Definition
	// Comment is an optional description.
	Comment string
	// Err holds the first error found while building the descriptor.
	Err error
}

// Builder is the fluent builder for scalar predicates.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, kind predicate.Kind) *Builder {
	return &Builder{desc: &Descriptor{
		Predicate: predicate.Definition{Name: name, Kind: kind},
	}}
}

// String returns a builder for a string predicate.
func String(name string) *Builder { return newBuilder(name, predicate.KindString) }

// Int returns a builder for an int predicate.
func Int(name string) *Builder { return newBuilder(name, predicate.KindInt) }

// Float returns a builder for a float predicate.
func Float(name string) *Builder { return newBuilder(name, predicate.KindFloat) }

// Bool returns a builder for a bool predicate.
func Bool(name string) *Builder { return newBuilder(name, predicate.KindBool) }

// DateTime returns a builder for a datetime predicate.
func DateTime(name string) *Builder { return newBuilder(name, predicate.KindDateTime) }

// Geo returns a builder for a geo predicate.
func Geo(name string) *Builder { return newBuilder(name, predicate.KindGeo) }

// Password returns a builder for a password predicate. Password values are
// write-only: the store never returns them.
func Password(name string) *Builder { return newBuilder(name, predicate.KindPassword) }

// Default returns a builder for an untyped predicate.
func Default(name string) *Builder { return newBuilder(name, predicate.KindDefault) }

// Vector returns a builder for a float32vector predicate.
func Vector(name string) *Builder { return newBuilder(name, predicate.KindVector) }

// UID returns a builder for an untyped uid predicate whose property holds
// raw node identifiers instead of entities. Use the edge package for typed
// edges.
func UID(name string) *Builder { return newBuilder(name, predicate.KindUID) }

// List makes the predicate hold a list of values.
func (b *Builder) List() *Builder {
	b.desc.Predicate.List = true
	return b
}

// Index adds index tokenizers.
func (b *Builder) Index(tokens ...predicate.Index) *Builder {
	b.desc.Predicate.Indexes = append(b.desc.Predicate.Indexes, tokens...)
	return b
}

// Exact adds the exact tokenizer.
func (b *Builder) Exact() *Builder { return b.Index(predicate.Exact) }

// Hash adds the hash tokenizer.
func (b *Builder) Hash() *Builder { return b.Index(predicate.Hash) }

// Term adds the term tokenizer.
func (b *Builder) Term() *Builder { return b.Index(predicate.Term) }

// Fulltext adds the fulltext tokenizer.
func (b *Builder) Fulltext() *Builder { return b.Index(predicate.Fulltext) }

// Trigram adds the trigram tokenizer.
func (b *Builder) Trigram() *Builder { return b.Index(predicate.Trigram) }

// Indexed adds the natural tokenizer of non-string kinds: int, float, bool,
// geo and hour for datetime.
func (b *Builder) Indexed() *Builder {
	switch b.desc.Predicate.Kind {
	case predicate.KindInt:
		return b.Index(predicate.Int)
	case predicate.KindFloat:
		return b.Index(predicate.Float)
	case predicate.KindBool:
		return b.Index(predicate.Bool)
	case predicate.KindDateTime:
		return b.Index(predicate.Hour)
	case predicate.KindGeo:
		return b.Index(predicate.Geo)
	case predicate.KindVector:
		return b.Index(predicate.HNSW)
	default:
		b.err(fmt.Errorf("kind %s has no natural index; use Index", b.desc.Predicate.Kind))
		return b
	}
}

// HNSW adds a vector index with the given metric.
func (b *Builder) HNSW(metric predicate.Metric) *Builder {
	b.desc.Predicate.Metric = metric
	return b.Index(predicate.HNSW)
}

// Upsert adds the @upsert directive.
func (b *Builder) Upsert() *Builder {
	b.desc.Predicate.Upsert = true
	return b
}

// Lang adds the @lang directive.
func (b *Builder) Lang() *Builder {
	b.desc.Predicate.Lang = true
	return b
}

// Count adds the @count directive.
func (b *Builder) Count() *Builder {
	b.desc.Predicate.Count = true
	return b
}

// Facets marks the property as a facet host (a facet.Value field).
func (b *Builder) Facets() *Builder {
	b.desc.Predicate.FacetHost = true
	return b
}

// Property sets the Go struct field the predicate maps to.
func (b *Builder) Property(name string) *Builder {
	if name == "" {
		b.err(errors.New("empty property name"))
	}
	b.desc.Property = name
	return b
}

// Comment sets the comment of the field.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the velograph.Field interface by returning its
// descriptor.
func (b *Builder) Descriptor() *Descriptor {
	if b.desc.Err == nil {
		b.desc.Predicate.Normalize()
		if err := b.desc.Predicate.Validate(); err != nil {
			b.desc.Err = err
		}
	}
	return b.desc
}

func (b *Builder) err(err error) {
	if b.desc.Err == nil {
		b.desc.Err = fmt.Errorf("field %q: %w", b.desc.Predicate.Name, err)
	}
}
