package filter_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/query/filter"
	"github.com/syssam/velograph/uid"
)

// binder numbers variables and records the bound values.
type binder struct {
	values []any
	preds  map[string]string
}

func (b *binder) Bind(v any) (string, error) {
	b.values = append(b.values, v)
	return fmt.Sprintf("$%d", len(b.values)), nil
}

func (b *binder) Predicate(name string) (string, error) {
	if p, ok := b.preds[name]; ok {
		return p, nil
	}
	return name, nil
}

func render(t *testing.T, e filter.Expr) (string, *binder) {
	t.Helper()
	b := &binder{preds: map[string]string{"Name": "name", "Age": "age"}}
	var w strings.Builder
	require.NoError(t, e.Render(&w, b))
	return w.String(), b
}

func TestFunctions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		expr   filter.Expr
		text   string
		values int
	}{
		{"eq", filter.Eq("Name", "Alice"), "eq(name, $1)", 1},
		{"ge", filter.Ge("Age", 18), "ge(age, $1)", 1},
		{"gt", filter.Gt("age", 18), "gt(age, $1)", 1},
		{"le", filter.Le("age", 65), "le(age, $1)", 1},
		{"lt", filter.Lt("age", 65), "lt(age, $1)", 1},
		{"between", filter.Between("age", 18, 65), "between(age, $1, $2)", 2},
		{"allofterms", filter.AllOfTerms("tags", "go graph"), "allofterms(tags, $1)", 1},
		{"anyofterms", filter.AnyOfTerms("tags", "go graph"), "anyofterms(tags, $1)", 1},
		{"alloftext", filter.AllOfText("bio", "graph databases"), "alloftext(bio, $1)", 1},
		{"anyoftext", filter.AnyOfText("bio", "graph databases"), "anyoftext(bio, $1)", 1},
		{"localized", filter.AllOfText("bio@fr", "graphe"), "alloftext(bio@fr, $1)", 1},
		{"regexp", filter.Regexp("name", "^Al", "i"), "regexp(name, $1)", 1},
		{"match", filter.Match("name", "Alise", 2), "match(name, $1, 2)", 1},
		{"has", filter.Has("nickname"), "has(nickname)", 0},
		{"reverse", filter.Has("~works_for"), "has(~works_for)", 0},
		{"type", filter.Type("Person"), "type(Person)", 0},
		{"uid", filter.UID(uid.New(1), uid.New(2)), "uid($1)", 1},
		{"uid_in", filter.UIDIn("works_for", uid.New(7)), "uid_in(works_for, $1)", 1},
		{"near", filter.Near("location", orb.Point{-122.4, 37.7}, 1000), "near(location, $1, $2)", 2},
		{"within", filter.Within("location", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}), "within(location, $1)", 1},
		{"contains", filter.Contains("location", orb.Point{0.5, 0.5}), "contains(location, $1)", 1},
		{"intersects", filter.Intersects("location", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}), "intersects(location, $1)", 1},
		{"similar_to", filter.SimilarTo("embedding", 3, []float32{0.1, 0.2}), "similar_to(embedding, 3, $1)", 1},
		{"raw", filter.Raw("anyofterms", "name", "a b"), "anyofterms(name, $1)", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			text, b := render(t, tt.expr)
			assert.Equal(t, tt.text, text)
			assert.Len(t, b.values, tt.values)
		})
	}
}

func TestRegexpValue(t *testing.T) {
	t.Parallel()
	_, b := render(t, filter.Regexp("name", `^Al\/x`, "i"))
	assert.Equal(t, []any{`/^Al\/x/i`}, b.values)
}

func TestRegexpInvalid(t *testing.T) {
	t.Parallel()
	for _, tt := range []struct{ pattern, flags string }{
		{"a(", ""},
		{"", ""},
		{"^Al", "x"},
		{"a/b", ""},
		{`a/b\/c`, ""},
		{`a\/b/c`, ""},
		{`a\\/b`, ""},
		{`\p{Nope}`, ""},
	} {
		b := &binder{}
		var w strings.Builder
		err := filter.Regexp("name", tt.pattern, tt.flags).Render(&w, b)
		require.Error(t, err, tt.pattern)
		assert.True(t, errors.Is(err, velograph.ErrInvalidFilterPattern), tt.pattern)
		var pe *velograph.InvalidFilterPatternError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "name", pe.Predicate)
		assert.Empty(t, b.values, "pattern must be rejected before binding")
	}
}

func TestJunctions(t *testing.T) {
	t.Parallel()
	text, b := render(t, filter.Or(
		filter.Eq("Name", "Alice"),
		filter.And(filter.Gt("Age", 30), filter.Not(filter.Has("nickname"))),
	))
	assert.Equal(t, "eq(name, $1) OR (gt(age, $2) AND NOT has(nickname))", text)
	assert.Equal(t, []any{"Alice", 30}, b.values)

	text, _ = render(t, filter.Not(filter.And(filter.Has("name"), filter.Has("age"))))
	assert.Equal(t, "NOT (has(name) AND has(age))", text)

	text, _ = render(t, filter.And(filter.Has("name")))
	assert.Equal(t, "has(name)", text)

	var w strings.Builder
	assert.Error(t, filter.Or().Render(&w, &binder{}))
}

func TestInvalidArguments(t *testing.T) {
	t.Parallel()
	blank, err := uid.Blank("alice")
	require.NoError(t, err)
	for name, e := range map[string]filter.Expr{
		"injection":  filter.Eq("name) OR has(secret", 1),
		"space":      filter.Has("first name"),
		"type":       filter.Type("Person)"),
		"no uids":    filter.UID(),
		"blank uid":  filter.UIDIn("works_for", blank),
		"distance":   filter.Match("name", "x", -1),
		"k":          filter.SimilarTo("embedding", 0, []float32{1}),
		"empty vec":  filter.SimilarTo("embedding", 3, nil),
		"geometry":   filter.Within("location", nil),
		"raw name":   filter.Raw("eq(", "name", 1),
		"nested err": filter.And(filter.Has("name"), filter.Not(filter.Has("a b"))),
	} {
		var w strings.Builder
		assert.Error(t, e.Render(&w, &binder{}), name)
	}
}

func TestString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `eq(name, "Alice") AND NOT has(nickname)`,
		filter.String(filter.And(filter.Eq("name", "Alice"), filter.Not(filter.Has("nickname")))))
	assert.True(t, strings.HasPrefix(filter.String(filter.Regexp("name", "a(", "")), "!"))
}
