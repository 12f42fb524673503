package predicate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph/schema/predicate"
)

func TestRender(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		def  predicate.Definition
		want string
	}{
		{
			name: "Plain",
			def:  predicate.Definition{Name: "name", Kind: predicate.KindString},
			want: "name: string .",
		},
		{
			name: "IndexOrder",
			def: predicate.Definition{Name: "title", Kind: predicate.KindString, Lang: true,
				Indexes: []predicate.Index{predicate.Term, predicate.Exact, predicate.Fulltext, predicate.Exact}},
			want: "title: string @index(fulltext, exact, term) @lang .",
		},
		{
			name: "Upsert",
			def:  predicate.Definition{Name: "email", Kind: predicate.KindString, Indexes: []predicate.Index{predicate.Hash}, Upsert: true},
			want: "email: string @index(hash) @upsert .",
		},
		{
			name: "ReverseList",
			def:  predicate.Definition{Name: "friends", Kind: predicate.KindUID, List: true, Reverse: true},
			want: "friends: [uid] @reverse @count .",
		},
		{
			name: "ReverseSingle",
			def:  predicate.Definition{Name: "works_for", Kind: predicate.KindUID, Reverse: true},
			want: "works_for: uid @reverse .",
		},
		{
			name: "Vector",
			def: predicate.Definition{Name: "embedding", Kind: predicate.KindVector,
				Indexes: []predicate.Index{predicate.HNSW}, Metric: predicate.Cosine},
			want: `embedding: float32vector @index(hnsw(metric:"cosine")) .`,
		},
		{
			name: "VectorDefaultMetric",
			def:  predicate.Definition{Name: "embedding", Kind: predicate.KindVector, Indexes: []predicate.Index{predicate.HNSW}},
			want: `embedding: float32vector @index(hnsw(metric:"euclidean")) .`,
		},
		{
			name: "Count",
			def:  predicate.Definition{Name: "tags", Kind: predicate.KindString, List: true, Count: true},
			want: "tags: [string] @count .",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.NoError(t, tt.def.Validate())
			assert.Equal(t, tt.want, tt.def.Render())
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		def predicate.Definition
		err string
	}{
		{predicate.Definition{Kind: predicate.KindString}, "missing name"},
		{predicate.Definition{Name: "full name", Kind: predicate.KindString}, "invalid character"},
		{predicate.Definition{Name: "x"}, "invalid scalar kind"},
		{predicate.Definition{Name: "age", Kind: predicate.KindInt, Indexes: []predicate.Index{predicate.Fulltext}},
			`index "fulltext" is not valid for type int`},
		{predicate.Definition{Name: "age", Kind: predicate.KindInt, Lang: true}, "@lang requires a string predicate"},
		{predicate.Definition{Name: "name", Kind: predicate.KindString, Reverse: true}, "@reverse requires a uid predicate"},
		{predicate.Definition{Name: "name", Kind: predicate.KindString, Upsert: true}, "@upsert requires an index"},
		{predicate.Definition{Name: "v", Kind: predicate.KindVector, Metric: predicate.Cosine}, "metric requires the hnsw index"},
	}
	for _, tt := range tests {
		assert.ErrorContains(t, tt.def.Validate(), tt.err)
	}
}

func TestKind(t *testing.T) {
	t.Parallel()
	for _, k := range []predicate.Kind{
		predicate.KindString, predicate.KindInt, predicate.KindFloat, predicate.KindBool,
		predicate.KindDateTime, predicate.KindGeo, predicate.KindUID, predicate.KindPassword,
		predicate.KindDefault, predicate.KindVector,
	} {
		got, err := predicate.ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
		assert.True(t, k.Valid())
	}
	_, err := predicate.ParseKind("invalid")
	assert.Error(t, err)
	assert.False(t, predicate.KindInvalid.Valid())
	assert.Equal(t, "invalid", predicate.Kind(200).String())
	assert.Equal(t, []predicate.Index{predicate.Year, predicate.Month, predicate.Day, predicate.Hour},
		predicate.Allowed(predicate.KindDateTime))
	assert.Nil(t, predicate.Allowed(predicate.KindUID))
}

func TestTypeField(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "name", (&predicate.Definition{Name: "name", Kind: predicate.KindString}).TypeField())
	assert.Equal(t, "works_for: Company",
		(&predicate.Definition{Name: "works_for", Kind: predicate.KindUID, Target: "Company"}).TypeField())
	assert.Equal(t, "friends: [Person]",
		(&predicate.Definition{Name: "friends", Kind: predicate.KindUID, List: true, Target: "Person"}).TypeField())
	assert.Equal(t, "<~works_for>",
		(&predicate.Definition{Name: "works_for", Kind: predicate.KindUID, Inverse: true}).TypeField())
}

func TestEqualClone(t *testing.T) {
	t.Parallel()
	a := &predicate.Definition{Name: "name", Kind: predicate.KindString, Indexes: []predicate.Index{predicate.Exact}, Target: "x"}
	b := a.Clone()
	b.Target, b.FacetHost = "", true
	assert.True(t, a.Equal(b), "target and facet hosting are not compared")

	b.Indexes[0] = predicate.Term
	assert.Equal(t, predicate.Exact, a.Indexes[0], "clone copies the indexes")
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
	assert.True(t, (*predicate.Definition)(nil).Equal(nil))
}
