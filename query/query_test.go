package query_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/internal/testschema"
	"github.com/syssam/velograph/query"
	"github.com/syssam/velograph/query/filter"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/uid"
	"github.com/syssam/velograph/vector"
)

func TestBuild(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	q, err := query.New(reg, testschema.Person{}, query.WithVarNamer(query.SequentialNamer())).
		Filter(filter.Ge("Age", 18), filter.AnyOfTerms("Tags", "go graph")).
		OrderAsc("Name").
		First(10).
		Select("Name", "WorksFor").
		Depth(0).
		Build()
	require.NoError(t, err)
	assert.Equal(t, `query q($v1: int, $v2: string) {
  q(func: type(Person), orderasc: name, first: 10) @filter(ge(age, $v1) AND anyofterms(tags, $v2)) {
    uid
    dgraph.type
    name
    works_for {
      uid
      dgraph.type
    }
  }
}
`, q.Text)
	assert.Equal(t, map[string]string{"$v1": "18", "$v2": "go graph"}, q.Vars)
	assert.Equal(t, query.DefaultBlock, q.Name)
}

func TestBuildDefaultSelection(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	q, err := query.New(reg, "Company", query.WithDepth(0)).Build()
	require.NoError(t, err)
	assert.Equal(t, `{
  q(func: type(Company)) {
    uid
    dgraph.type
    name
    industry
    location
    ~works_for {
      uid
      dgraph.type
    }
  }
}
`, q.Text)
	assert.Empty(t, q.Vars)
}

func TestBuildEdges(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	q, err := query.New(reg, &testschema.Person{}, query.WithVarNamer(query.SequentialNamer())).
		Name("friendsOf").
		Func(filter.UID(uid.New(0x1f))).
		Select("friends", "owns").
		OrderDesc("created_at").
		Offset(5).
		After(uid.New(0x10)).
		Build()
	require.NoError(t, err)
	assert.Equal(t, `query friendsOf($v1: string) {
  friendsOf(func: uid($v1), orderdesc: created_at, offset: 5, after: 0x10) {
    uid
    dgraph.type
    friends @facets {
      uid
      dgraph.type
      created_at
      updated_at
      tags
      name
      nickname
      age
      bio @facets
      bio@*
      salary @facets
      embedding
      works_for {
        uid
        dgraph.type
      }
      friends @facets {
        uid
        dgraph.type
      }
      owns {
        uid
        dgraph.type
      }
    }
    owns {
      uid
      dgraph.type
      expand(_all_)
    }
  }
}
`, q.Text)
	assert.Equal(t, map[string]string{"$v1": "0x1f"}, q.Vars)
}

func TestBuildSkipsPasswords(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	q, err := query.New(reg, testschema.Person{}).Build()
	require.NoError(t, err)
	assert.NotContains(t, q.Text, "secret")
	assert.Contains(t, q.Text, "    bio@*\n")
	assert.Contains(t, q.Text, "    works_for {\n      uid\n      dgraph.type\n      name\n")
}

func TestBuildGeo(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	q, err := query.New(reg, testschema.Company{}, query.WithVarNamer(query.SequentialNamer())).
		Filter(filter.Near("Location", orb.Point{-122.4, 37.7}, 1000)).
		Select("Name").
		Build()
	require.NoError(t, err)
	assert.Contains(t, q.Text, "@filter(near(location, $v1, $v2))")
	assert.Contains(t, q.Text, "query q($v1: string, $v2: float)")
	assert.Equal(t, map[string]string{"$v1": "[-122.4,37.7]", "$v2": "1000"}, q.Vars)
}

func TestBuildRandomNames(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	q, err := query.New(reg, testschema.Person{}).
		Filter(filter.Eq("name", "Alice"), filter.SimilarTo("embedding", 5, []float32{0.5, 1})).
		Build()
	require.NoError(t, err)
	require.Len(t, q.Vars, 2)
	name := regexp.MustCompile(`^\$[A-Za-z][A-Za-z0-9]{7,15}$`)
	for k, v := range q.Vars {
		assert.Regexp(t, name, k)
		assert.Contains(t, q.Text, k)
		assert.NotContains(t, q.Text, v)
	}
	assert.Contains(t, q.Text, ": float32vector")
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	_, err := query.New(reg, testschema.Person{}).
		Filter(filter.Regexp("name", "a(", "")).
		Build()
	assert.True(t, errors.Is(err, velograph.ErrInvalidFilterPattern))

	_, err = query.New(reg, testschema.Person{}).OrderAsc("Shoe").Build()
	assert.True(t, velograph.IsMappingError(err))

	_, err = query.New(reg, testschema.Person{}).Filter(filter.Eq("shoe_size", 42)).Build()
	assert.True(t, velograph.IsMappingError(err))

	_, err = query.New(reg, testschema.Person{}).Select("Shoe").Build()
	assert.True(t, velograph.IsMappingError(err))

	_, err = query.New(reg, struct{ X int }{}).Build()
	assert.True(t, velograph.IsUnmappedType(err))

	_, err = query.New(reg, testschema.Person{}).Name("1q").Build()
	assert.Error(t, err)

	_, err = query.New(reg, testschema.Person{}).Offset(-1).Depth(-1).Build()
	assert.Error(t, err)

	blank, _ := uid.Blank("x")
	_, err = query.New(reg, testschema.Person{}).After(blank).Build()
	assert.True(t, errors.Is(err, uid.ErrNotConcrete))

	_, err = query.New(registry.New(), testschema.Person{}).Build()
	assert.True(t, errors.Is(err, velograph.ErrNotFrozen))
}

func TestBuildForeignPredicate(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	q, err := query.New(reg, testschema.Person{}, query.WithVarNamer(query.SequentialNamer())).
		Filter(filter.Eq("industry", "tech"), filter.Has("bio@fr")).
		Select("name").
		Build()
	require.NoError(t, err)
	assert.Contains(t, q.Text, "@filter(eq(industry, $v1) AND has(bio@fr))")
}

func TestCast(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)
	name := "Bob"
	tests := []struct {
		name string
		in   any
		lit  string
		typ  string
	}{
		{"int", 42, "42", query.TypeInt},
		{"negative", int8(-3), "-3", query.TypeInt},
		{"uint", uint64(7), "7", query.TypeInt},
		{"float", 1.5, "1.5", query.TypeFloat},
		{"float32", float32(0.1), "0.1", query.TypeFloat},
		{"bool", true, "true", query.TypeBool},
		{"time", ts, "2024-01-02T03:04:05.0000006Z", query.TypeString},
		{"string", `Al"ice`, `Al"ice`, query.TypeString},
		{"pointer", &name, "Bob", query.TypeString},
		{"strings", []string{"a", `b"`}, `["a", "b\""]`, query.TypeString},
		{"ints", []int{1, 2}, "[1, 2]", query.TypeString},
		{"any", []any{1, "x", true}, `[1, "x", true]`, query.TypeString},
		{"times", []time.Time{ts}, `["2024-01-02T03:04:05.0000006Z"]`, query.TypeString},
		{"vector", vector.Vector{0.1, 0.2}, "[0.1 0.2]", query.TypeVector},
		{"float32s", []float32{1, 2.5}, "[1 2.5]", query.TypeVector},
		{"point", orb.Point{1.5, 2}, "[1.5,2]", query.TypeString},
		{"uid", uid.New(0x1f), "0x1f", query.TypeString},
		{"uids", []uid.UID{uid.New(1), uid.New(2)}, "[0x1, 0x2]", query.TypeString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			lit, typ, err := query.Cast(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.lit, lit)
			assert.Equal(t, tt.typ, typ)
		})
	}

	_, _, err := query.Cast(nil)
	assert.Error(t, err)
	_, _, err = query.Cast((*string)(nil))
	assert.Error(t, err)
	blank, _ := uid.Blank("x")
	_, _, err = query.Cast(blank)
	assert.True(t, errors.Is(err, uid.ErrNotConcrete))
	_, _, err = query.Cast([]*int{nil})
	assert.Error(t, err)
}

func TestRandomName(t *testing.T) {
	t.Parallel()
	ident := regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
	for typeName, n := range map[string]int{
		"int":                     8,
		"time.Time":               9,
		"vector.Vector":           13,
		"map[string]interface {}": 16,
	} {
		name := query.RandomName(typeName)
		assert.Len(t, name, n, typeName)
		assert.Regexp(t, ident, name)
	}
	assert.NotEqual(t, query.RandomName("string"), query.RandomName("string"))
}

func TestVars(t *testing.T) {
	t.Parallel()
	calls := 0
	vs := query.NewVars(func(string) string {
		calls++
		if calls <= 2 {
			return "same"
		}
		return "other"
	})
	a, err := vs.Bind("x")
	require.NoError(t, err)
	b, err := vs.Bind(3)
	require.NoError(t, err)
	assert.Equal(t, "$same", a)
	assert.Equal(t, "$other", b)
	assert.Equal(t, 2, vs.Len())
	assert.Equal(t, "$same: string, $other: int", vs.Declaration())
	assert.Equal(t, map[string]string{"$same": "x", "$other": "3"}, vs.Map())

	stuck := query.NewVars(func(string) string { return "dup" })
	_, err = stuck.Bind(1)
	require.NoError(t, err)
	_, err = stuck.Bind(2)
	assert.Error(t, err)
}
