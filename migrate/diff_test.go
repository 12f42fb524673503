package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/compiler"
	"github.com/syssam/velograph/migrate"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/schema/edge"
	"github.com/syssam/velograph/schema/field"
	"github.com/syssam/velograph/uid"
)

type Company struct {
	UID   uid.UID
	DType []string
	Name  string
}

type CompanySchema struct{ velograph.Schema }

func (CompanySchema) Fields() []velograph.Field {
	return []velograph.Field{field.String("name")}
}

type Person struct {
	UID      uid.UID
	DType    []string
	Name     string
	Age      int
	WorksFor *Company
}

type PersonV1 struct{ velograph.Schema }

func (PersonV1) Fields() []velograph.Field {
	return []velograph.Field{field.String("name")}
}

func (PersonV1) Edges() []velograph.Edge {
	return []velograph.Edge{edge.To("works_for", Company{}).Unique()}
}

// PersonV2 adds the age.
type PersonV2 struct{ PersonV1 }

func (PersonV2) Fields() []velograph.Field {
	return []velograph.Field{field.String("name"), field.Int("age")}
}

func newRegistry(t *testing.T, person velograph.Interface) *registry.Context {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Add(&Company{}, CompanySchema{}))
	require.NoError(t, reg.Add(&Person{}, person))
	require.NoError(t, reg.Freeze())
	return reg
}

const (
	schemaV1 = `name: string .
works_for: uid .

type Company {
  name
}

type Person {
  name
  works_for: Company
}
`
	schemaV2 = `age: int .
name: string .
works_for: uid .

type Company {
  name
}

type Person {
  name
  age
  works_for: Company
}
`
)

func TestCompileRevisions(t *testing.T) {
	t.Parallel()
	assert.Equal(t, schemaV1, compiler.MustCompile(newRegistry(t, PersonV1{})).Text())
	assert.Equal(t, schemaV2, compiler.MustCompile(newRegistry(t, PersonV2{})).Text())
}

func TestDiff(t *testing.T) {
	t.Parallel()
	v1, v2 := compiler.MustParse(schemaV1), compiler.MustParse(schemaV2)

	t.Run("AddPredicate", func(t *testing.T) {
		d := migrate.Diff(v1, v2)
		assert.Equal(t, []string{"age"}, d.AddedPredicates)
		assert.Equal(t, []string{"Person"}, d.ChangedTypes)
		assert.Empty(t, d.RemovedPredicates)
		assert.Empty(t, d.AddedTypes)
		assert.Equal(t, "+ predicate age\n~ type Person\n", d.String())

		p, err := migrate.NewPlan(d, v2)
		require.NoError(t, err)
		require.Len(t, p.Up, 1)
		assert.Equal(t, "SetType(Person)", p.Up[0].String())
		assert.Empty(t, p.Down)
	})

	t.Run("RemovePredicate", func(t *testing.T) {
		d := migrate.Diff(v2, v1)
		assert.Equal(t, []string{"age"}, d.RemovedPredicates)
		p, err := migrate.NewPlan(d, v1)
		require.NoError(t, err)
		assert.Equal(t, []string{"SetType(Person)", "DropPredicate(age)"}, opStrings(p.Up))
		assert.Empty(t, p.Down)
	})

	t.Run("Initial", func(t *testing.T) {
		d := migrate.Diff(nil, v1)
		assert.Equal(t, []string{"name", "works_for"}, d.AddedPredicates)
		assert.Equal(t, []string{"Company", "Person"}, d.AddedTypes)
		p, err := migrate.NewPlan(d, v1)
		require.NoError(t, err)
		assert.Equal(t, []string{"SetType(Company)", "SetType(Person)"}, opStrings(p.Up))
		assert.Equal(t, []string{"DropType(Company)", "DropType(Person)"}, opStrings(p.Down))
	})

	t.Run("RemoveType", func(t *testing.T) {
		cur := compiler.MustParse("name: string .\n\ntype Company {\n  name\n}\n")
		d := migrate.Diff(v1, cur)
		assert.Equal(t, []string{"works_for"}, d.RemovedPredicates)
		assert.Equal(t, []string{"Person"}, d.RemovedTypes)
		p, err := migrate.NewPlan(d, cur)
		require.NoError(t, err)
		assert.Equal(t, []string{"DropPredicate(works_for)", "DropType(Person)"}, opStrings(p.Up))
	})

	t.Run("ChangedPredicate", func(t *testing.T) {
		cur := compiler.MustParse(`name: string @index(exact) .
works_for: uid @reverse .

type Company {
  name
  <~works_for>
}

type Person {
  name
  works_for: Company
}
`)
		d := migrate.Diff(v1, cur)
		assert.Equal(t, []string{"name", "works_for"}, d.ChangedPredicates)
		assert.Equal(t, []string{"Company"}, d.ChangedTypes)
		p, err := migrate.NewPlan(d, cur)
		require.NoError(t, err)
		assert.Equal(t, []string{"SetType(Company)", "SetType(Person)"}, opStrings(p.Up))
	})

	t.Run("Equal", func(t *testing.T) {
		assert.True(t, migrate.Diff(v1, compiler.MustParse(schemaV1)).Empty())
		assert.True(t, migrate.Diff(nil, nil).Empty())
	})

	t.Run("Orphan", func(t *testing.T) {
		cur := compiler.MustParse("name: string .\nloose: int .\n\ntype Company {\n  name\n}\n")
		_, err := migrate.NewPlan(migrate.Diff(nil, cur), cur)
		assert.ErrorContains(t, err, `"loose"`)
	})
}

func opStrings(ops []migrate.Op) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.String()
	}
	return out
}
