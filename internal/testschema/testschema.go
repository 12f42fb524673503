// Package testschema holds the entity declarations shared by the package
// tests: people working for companies, with facets, geometry, vectors,
// reverse navigation and a polymorphic edge.
package testschema

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/facet"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/schema/edge"
	"github.com/syssam/velograph/schema/field"
	"github.com/syssam/velograph/schema/mixin"
	"github.com/syssam/velograph/schema/predicate"
	"github.com/syssam/velograph/uid"
	"github.com/syssam/velograph/vector"
)

// Asset is implemented by the things a person can own.
type Asset interface {
	AssetName() string
}

// Company is an employer.
type Company struct {
	UID       uid.UID
	DType     []string
	Name      string
	Industry  string
	Location  orb.Point
	Employees []*Person
}

// AssetName implements Asset.
func (c *Company) AssetName() string { return c.Name }

// CompanySchema declares Company.
type CompanySchema struct{ velograph.Schema }

// Fields of the Company.
func (CompanySchema) Fields() []velograph.Field {
	return []velograph.Field{
		field.String("name").Exact(),
		field.String("industry").Term(),
		field.Geo("location").Indexed(),
	}
}

// Edges of the Company.
func (CompanySchema) Edges() []velograph.Edge {
	return []velograph.Edge{
		edge.From("employees", Person{}).Ref("works_for"),
	}
}

// Person works for a company and knows other people.
type Person struct {
	UID       uid.UID
	DType     []string
	Name      string
	Nickname  *string
	Age       int
	Bio       facet.Value[string]
	Salary    facet.Value[float64]
	Secret    string
	Tags      []string
	Embedding vector.Vector
	CreatedAt time.Time
	UpdatedAt time.Time
	WorksFor  *Company
	Friends   []facet.Value[*Person]
	Owns      []Asset
	Extra     map[string]any
}

// PersonSchema declares Person.
type PersonSchema struct{ velograph.Schema }

// Mixin of the Person.
func (PersonSchema) Mixin() []velograph.Mixin {
	return []velograph.Mixin{mixin.Time{}, mixin.Tags{}}
}

// Fields of the Person.
func (PersonSchema) Fields() []velograph.Field {
	return []velograph.Field{
		field.String("name").Exact(),
		field.String("nickname").Hash(),
		field.Int("age").Indexed(),
		field.String("bio").Lang().Fulltext().Facets(),
		field.Float("salary").Facets(),
		field.Password("secret"),
		field.Vector("embedding").HNSW(predicate.Cosine),
	}
}

// Edges of the Person.
func (PersonSchema) Edges() []velograph.Edge {
	return []velograph.Edge{
		edge.To("works_for", Company{}).Unique().Reverse(),
		edge.To("friends", Person{}).Facets().Count(),
		edge.To("owns", (*Asset)(nil)),
	}
}

// New returns a frozen registry of Person and Company.
func New(opts ...registry.Option) (*registry.Context, error) {
	reg := registry.New(opts...)
	if err := reg.Add(&Person{}, PersonSchema{}); err != nil {
		return nil, err
	}
	if err := reg.Add(&Company{}, CompanySchema{}); err != nil {
		return nil, err
	}
	if err := reg.Freeze(); err != nil {
		return nil, err
	}
	return reg, nil
}

// MustNew is like New but panics on error.
func MustNew(opts ...registry.Option) *registry.Context {
	reg, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return reg
}

// Schema is the canonical schema text of the registry returned by New.
const Schema = `age: int @index(int) .
bio: string @index(fulltext) @lang .
created_at: datetime @index(hour) .
embedding: float32vector @index(hnsw(metric:"cosine")) .
friends: [uid] @count .
industry: string @index(term) .
location: geo @index(geo) .
name: string @index(exact) .
nickname: string @index(hash) .
owns: [uid] .
salary: float .
secret: password .
tags: [string] @index(term) .
updated_at: datetime @index(hour) .
works_for: uid @reverse .

type Company {
  name
  industry
  location
  <~works_for>
}

type Person {
  created_at
  updated_at
  tags
  name
  nickname
  age
  bio
  salary
  secret
  embedding
  works_for: Company
  friends: [Person]
  owns
}
`
