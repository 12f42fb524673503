package mixin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/schema/field"
	"github.com/syssam/velograph/schema/mixin"
)

type audit struct{ mixin.Schema }

func (audit) Fields() []velograph.Field {
	return []velograph.Field{field.String("created_by").Exact()}
}

func rendered(t *testing.T, fields []velograph.Field) []string {
	t.Helper()
	out := make([]string, len(fields))
	for i, f := range fields {
		d := f.Descriptor()
		require.NoError(t, d.Err)
		out[i] = d.Predicate.Render()
	}
	return out
}

func TestMixins(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{
		"created_at: datetime @index(hour) .",
		"updated_at: datetime @index(hour) .",
	}, rendered(t, mixin.Time{}.Fields()))
	assert.Equal(t, "Timestamp when the node was created", mixin.Time{}.Fields()[0].Descriptor().Comment)
	assert.Equal(t, []string{"created_at: datetime @index(hour) ."}, rendered(t, mixin.CreateTime{}.Fields()))
	assert.Equal(t, []string{"tags: [string] @index(term) ."}, rendered(t, mixin.Tags{}.Fields()))
	assert.Nil(t, mixin.Time{}.Edges())
}

func TestCustomMixin(t *testing.T) {
	t.Parallel()
	var m velograph.Mixin = audit{}
	assert.Equal(t, []string{"created_by: string @index(exact) ."}, rendered(t, m.Fields()))
	assert.Nil(t, m.Edges())
	assert.Nil(t, mixin.Schema{}.Fields())
}
