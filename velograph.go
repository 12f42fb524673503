// Package velograph maps statically declared entity types onto a graph
// store's schema, documents and query language.
//
// An entity is a plain Go struct. Its mapping is declared by a separate
// schema type that embeds Schema and lists predicates:
//
//	type Person struct {
//		UID      uid.UID
//		DType    []string
//		Name     string
//		WorksFor *Company
//	}
//
//	type PersonSchema struct{ velograph.Schema }
//
//	func (PersonSchema) Fields() []velograph.Field {
//		return []velograph.Field{
//			field.String("name").Exact(),
//		}
//	}
//
//	func (PersonSchema) Edges() []velograph.Edge {
//		return []velograph.Edge{
//			edge.To("works_for", Company{}).Unique(),
//		}
//	}
//
// The declarations are registered once at startup in a registry.Context,
// which is then frozen and shared by the schema compiler, the codec, the
// query builder and the migration engine.
package velograph

import (
	"github.com/syssam/velograph/schema/edge"
	"github.com/syssam/velograph/schema/field"
)

// The Interface type describes the requirements for a type to be used as
// an entity declaration.
type Interface interface {
	// Fields returns the scalar predicates of the entity.
	Fields() []Field
	// Edges returns the uid predicates of the entity.
	Edges() []Edge
	// Mixin returns reusable predicate sets mixed into the entity.
	Mixin() []Mixin
	// Config returns the mapping configuration of the entity.
	Config() Config
}

type (
	// Field is the interface implemented by field builders.
	Field interface {
		Descriptor() *field.Descriptor
	}

	// Edge is the interface implemented by edge builders.
	Edge interface {
		Descriptor() *edge.Descriptor
	}

	// Mixin is a reusable set of fields and edges.
	Mixin interface {
		Fields() []Field
		Edges() []Edge
	}

	// Config configures the mapping of one entity type.
	Config struct {
		// Type is the graph type name. Defaults to the Go type name of the
		// entity.
		Type string
		// UIDField is the Go field holding the node identifier.
		// Defaults to "UID".
		UIDField string
		// TypeField is the Go field holding the type list. Defaults to
		// "DType". The field is optional.
		TypeField string
		// ExtraField is the Go field (map[string]any) capturing facets
		// whose host predicate is unknown. Defaults to "Extra". The field is
		// optional.
		ExtraField string
	}
)

// Schema is the default implementation of Interface. It should be embedded
// in entity declarations.
type Schema struct{}

// Fields of the schema.
func (Schema) Fields() []Field { return nil }

// Edges of the schema.
func (Schema) Edges() []Edge { return nil }

// Mixin of the schema.
func (Schema) Mixin() []Mixin { return nil }

// Config of the schema.
func (Schema) Config() Config { return Config{} }

var _ Interface = (*Schema)(nil)

// Reserved predicate names of the store.
const (
	// UIDPredicate is the identity predicate.
	UIDPredicate = "uid"
	// TypePredicate is the type-list predicate.
	TypePredicate = "dgraph.type"
)
