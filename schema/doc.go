// Package schema groups the building blocks of entity declarations:
//
//   - [predicate]: predicate kinds, index tokenizers and their rendering
//   - [field]: builders for scalar predicates
//   - [edge]: builders for uid predicates and reverse navigations
//   - [mixin]: reusable predicate sets
//
// A declaration embeds velograph.Schema and lists its predicates:
//
//	type PersonSchema struct{ velograph.Schema }
//
//	func (PersonSchema) Mixin() []velograph.Mixin {
//		return []velograph.Mixin{mixin.Time{}}
//	}
//
//	func (PersonSchema) Fields() []velograph.Field {
//		return []velograph.Field{
//			field.String("name").Exact(),
//			field.Float("salary").Facets(),
//			field.Geo("location").Indexed(),
//		}
//	}
//
//	func (PersonSchema) Edges() []velograph.Edge {
//		return []velograph.Edge{
//			edge.To("works_for", Company{}).Unique().Reverse(),
//		}
//	}
//
// Scalar predicates render as
//
//	name: string @index(exact) .
//	works_for: uid @reverse .
package schema
