package compiler_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/compiler"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/dialect/dialecttest"
	"github.com/syssam/velograph/internal/testschema"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/schema/edge"
	"github.com/syssam/velograph/schema/field"
	"github.com/syssam/velograph/uid"
)

type Company struct {
	UID  uid.UID
	Name string
}

type CompanySchema struct{ velograph.Schema }

func (CompanySchema) Fields() []velograph.Field {
	return []velograph.Field{field.String("name")}
}

type Person struct {
	UID      uid.UID
	Name     string
	WorksFor *Company
}

type PersonSchema struct{ velograph.Schema }

func (PersonSchema) Fields() []velograph.Field {
	return []velograph.Field{field.String("name")}
}

func (PersonSchema) Edges() []velograph.Edge {
	return []velograph.Edge{edge.To("works_for", Company{}).Unique()}
}

func TestCompileMinimal(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	reg.MustAdd(Person{}, PersonSchema{})
	reg.MustAdd(Company{}, CompanySchema{})
	require.NoError(t, reg.Freeze())

	s, err := compiler.Compile(reg)
	require.NoError(t, err)
	assert.Equal(t, `name: string .
works_for: uid .

type Company {
  name
}

type Person {
  name
  works_for: Company
}
`, s.Text())
	assert.Equal(t, `name: string .
works_for: uid .

type Company {
  name
}

type Person {
  name
  works_for
}
`, s.StoreText())
}

func TestCompileFixture(t *testing.T) {
	t.Parallel()
	s, err := compiler.Compile(testschema.MustNew())
	require.NoError(t, err)
	assert.Equal(t, testschema.Schema, s.Text())
	assert.True(t, strings.HasSuffix(s.Text(), "}\n"))
	assert.NotContains(t, s.Text(), "\r")
	assert.Contains(t, s.StoreText(), "  <~works_for>\n")
	assert.NotContains(t, s.StoreText(), "[Person]")
}

func TestCompileDeterministic(t *testing.T) {
	t.Parallel()
	a := registry.New()
	a.MustAdd(&testschema.Person{}, testschema.PersonSchema{})
	a.MustAdd(&testschema.Company{}, testschema.CompanySchema{})
	require.NoError(t, a.Freeze())

	b := registry.New()
	b.MustAdd(&testschema.Company{}, testschema.CompanySchema{})
	b.MustAdd(&testschema.Person{}, testschema.PersonSchema{})
	require.NoError(t, b.Freeze())

	first := compiler.MustCompile(a).Text()
	assert.Equal(t, first, compiler.MustCompile(a).Text())
	assert.Equal(t, first, compiler.MustCompile(b).Text())
}

func TestCompileNotFrozen(t *testing.T) {
	t.Parallel()
	_, err := compiler.Compile(registry.New())
	assert.ErrorIs(t, err, velograph.ErrNotFrozen)
}

func TestSnapshotAccessors(t *testing.T) {
	t.Parallel()
	s := compiler.MustCompile(testschema.MustNew())
	assert.Equal(t, []string{"Company", "Person"}, s.TypeNames())
	assert.Contains(t, s.PredicateNames(), "works_for")
	assert.NotContains(t, s.PredicateNames(), "employees")

	line, ok := s.Declaration("works_for")
	require.True(t, ok)
	assert.Equal(t, "works_for: uid @reverse .", line)

	person, ok := s.Type("Person")
	require.True(t, ok)
	assert.Contains(t, person.FieldNames(), "friends")
	company, _ := s.Type("Company")
	assert.Contains(t, company.FieldNames(), "~works_for")

	assert.Equal(t, []string{"Company", "Person"}, s.DeclaringTypes("name"))
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()
	s := compiler.MustCompile(testschema.MustNew())
	parsed, err := compiler.Parse(s.Text())
	require.NoError(t, err)
	assert.True(t, s.Equal(parsed))

	crlf := strings.ReplaceAll(s.Text(), "\n", "\r\n")
	parsed, err = compiler.Parse(crlf)
	require.NoError(t, err)
	assert.Equal(t, s.Text(), parsed.Text())

	store, err := compiler.Parse(s.StoreText())
	require.NoError(t, err)
	assert.Equal(t, s.StoreText(), store.Text())
}

func TestParseOneLineBlocks(t *testing.T) {
	t.Parallel()
	oneLine, err := compiler.Parse("name: string .\nworks_for: uid .\n\n" +
		"type Company { name }\n" +
		"type Person { name, works_for: Company }\n" +
		"type Empty {}\n")
	require.NoError(t, err)
	multi, err := compiler.Parse("name: string .\nworks_for: uid .\n\n" +
		"type Company {\n  name\n}\n" +
		"type Empty {\n}\n" +
		"type Person {\n  name\n  works_for: Company\n}\n")
	require.NoError(t, err)
	assert.True(t, multi.Equal(oneLine))
	assert.Equal(t, multi.Text(), oneLine.Text())
	block, ok := oneLine.Type("Person")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "works_for"}, block.FieldNames())

	_, err = compiler.Parse("type { name }\n")
	assert.ErrorContains(t, err, "missing type name")
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"unterminated": "name: string .\n\ntype A {\n  name\n",
		"bad line":     "name string\n",
		"late pred":    "type A {\n  name\n}\nname: string .\n",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := compiler.Parse(text)
			assert.Error(t, err)
		})
	}
}

func TestTypeDeclaration(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	text, err := compiler.TypeDeclaration(reg, "Company")
	require.NoError(t, err)
	assert.Equal(t, `industry: string @index(term) .
location: geo @index(geo) .
name: string @index(exact) .
works_for: uid @reverse .

type Company {
  name
  industry
  location
  <~works_for>
}
`, text)

	_, err = compiler.TypeDeclaration(reg, "Nope")
	assert.True(t, velograph.IsUnmappedType(err))

	snap := compiler.MustCompile(reg)
	fromSnap, err := snap.TypeDeclaration("Company")
	require.NoError(t, err)
	assert.Equal(t, text, fromSnap)
	_, err = snap.TypeDeclaration("Nope")
	assert.Error(t, err)
}

func TestFromStore(t *testing.T) {
	t.Parallel()
	data := []byte(`{
		"schema": [
			{"predicate": "dgraph.type", "type": "string", "index": true, "tokenizer": ["exact"], "list": true},
			{"predicate": "name", "type": "string", "index": true, "tokenizer": ["exact"]},
			{"predicate": "works_for", "type": "uid", "reverse": true},
			{"predicate": "embedding", "type": "float32vector", "index": true,
			 "index_specs": [{"name": "hnsw", "options": [{"key": "metric", "value": "cosine"}]}]}
		],
		"types": [
			{"name": "Company", "fields": [{"name": "name"}, {"name": "~works_for"}]},
			{"name": "dgraph.graphql", "fields": [{"name": "dgraph.graphql.schema"}]}
		]
	}`)
	s, err := compiler.FromStore(data)
	require.NoError(t, err)
	assert.Equal(t, `embedding: float32vector @index(hnsw(metric:"cosine")) .
name: string @index(exact) .
works_for: uid @reverse .

type Company {
  name
  <~works_for>
}
`, s.Text())

	_, err = compiler.FromStore([]byte(`{"schema": [{"predicate": "x", "type": "blob"}]}`))
	assert.Error(t, err)
}

func TestPull(t *testing.T) {
	t.Parallel()
	drv := dialecttest.New()
	drv.OnQuery = func(q string, _ map[string]string) (*dialect.Response, error) {
		if q != dialect.SchemaQuery {
			return nil, errors.New("unexpected query")
		}
		return &dialect.Response{JSON: []byte(`{"schema": [{"predicate": "name", "type": "string"}]}`)}, nil
	}
	s, err := compiler.Pull(context.Background(), drv)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, s.PredicateNames())

	drv.OnQuery = func(string, map[string]string) (*dialect.Response, error) {
		return nil, errors.New("unavailable")
	}
	_, err = compiler.Pull(context.Background(), drv)
	assert.ErrorContains(t, err, "unavailable")
}
