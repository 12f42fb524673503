// Package field provides fluent builders for scalar predicate declarations.
//
//	field.String("name").Exact().Term().Upsert()
//	field.Int("age").Indexed()
//	field.Float("salary").Facets()
//	field.String("title").Lang().Fulltext()
//	field.DateTime("born_at").Index(predicate.Year)
//	field.Geo("location").Indexed()
//	field.Vector("embedding").HNSW(predicate.Cosine)
//
// Each builder maps its predicate to a Go struct field of the entity. By
// default the property name is the camel-cased predicate name ("works_for"
// maps to "WorksFor"); Property overrides it.
//
// Invalid combinations, such as a fulltext index on an int predicate, are
// recorded on the descriptor and reported when the declaration is loaded.
package field
