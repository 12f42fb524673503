package velograph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/velograph"
)

func TestSchemaDefaultMethods(t *testing.T) {
	t.Parallel()
	type PersonSchema struct {
		velograph.Schema
	}
	s := PersonSchema{}
	assert.Nil(t, s.Fields())
	assert.Nil(t, s.Edges())
	assert.Nil(t, s.Mixin())
	assert.Equal(t, velograph.Config{}, s.Config())
	var _ velograph.Interface = s
}

func TestCacheKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "velograph:node:0x1", velograph.CacheKey{UID: "0x1"}.String())
	assert.Equal(t, "tenant:node:0x1", velograph.CacheKey{Namespace: "tenant", UID: "0x1"}.String())
}
