// Package mixin provides reusable predicate sets for entity declarations.
//
// To create a custom mixin, embed Schema and override the methods you need:
//
//	type Audit struct {
//		mixin.Schema
//	}
//
//	func (Audit) Fields() []velograph.Field {
//		return []velograph.Field{
//			field.String("created_by").Exact(),
//		}
//	}
//
// Mixin predicates are declared before the predicates of the entity itself.
package mixin

import (
	"github.com/syssam/velograph"
	"github.com/syssam/velograph/schema/field"
	"github.com/syssam/velograph/schema/predicate"
)

// Schema is the default implementation for the velograph.Mixin interface.
// It should be embedded in all custom mixin definitions.
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []velograph.Field { return nil }

// Edges returns the edges of the mixin.
func (Schema) Edges() []velograph.Edge { return nil }

var _ velograph.Mixin = (*Schema)(nil)

// Time adds created_at and updated_at datetime predicates, indexed by
// hour. The entity needs CreatedAt and UpdatedAt time.Time fields.
type Time struct {
	Schema
}

// Fields returns the time tracking fields.
func (Time) Fields() []velograph.Field {
	return []velograph.Field{
		field.DateTime("created_at").
			Index(predicate.Hour).
			Comment("Timestamp when the node was created"),
		field.DateTime("updated_at").
			Index(predicate.Hour).
			Comment("Timestamp when the node was last updated"),
	}
}

// CreateTime adds only the created_at predicate.
type CreateTime struct {
	Schema
}

// Fields returns the creation time field.
func (CreateTime) Fields() []velograph.Field {
	return []velograph.Field{
		field.DateTime("created_at").Index(predicate.Hour),
	}
}

// Tags adds a term-indexed string list predicate named tags. The entity
// needs a Tags []string field.
type Tags struct {
	Schema
}

// Fields returns the tags field.
func (Tags) Fields() []velograph.Field {
	return []velograph.Field{
		field.String("tags").List().Term(),
	}
}
