package dialecttest_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/dialect/dialecttest"
)

func TestMutateCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	drv := dialecttest.New()
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	resp, err := tx.Mutate(ctx, &dialect.Mutation{Set: []byte(`{
		"uid": "_:alice", "dgraph.type": ["Person"], "name": "Alice",
		"works_for": {"uid": "_:acme", "dgraph.type": ["Company"], "name": "Acme"},
		"friends": [{"uid": "_:bob", "dgraph.type": ["Person"], "name": "Bob", "friends|since": 2020}]
	}`)})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alice": "0x1", "bob": "0x2", "acme": "0x3"}, resp.UIDs)
	assert.Zero(t, drv.Nodes(), "mutations are applied on commit")
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Discard(ctx))
	assert.Equal(t, 1, drv.Commits())
	assert.Equal(t, 0, drv.Discards())
	assert.Equal(t, 3, drv.Nodes())

	alice, ok := drv.Node("0x1")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"uid": "0x3"}, alice["works_for"])
	assert.Equal(t, []any{map[string]any{"uid": "0x2", "friends|since": json.Number("2020")}}, alice["friends"])

	resp, err = drv.Query(ctx, "{\n  q(func: type(Person)) {\n    uid\n  }\n}", nil)
	require.NoError(t, err)
	var out struct {
		Q []map[string]any `json:"q"`
	}
	require.NoError(t, json.Unmarshal(resp.JSON, &out))
	require.Len(t, out.Q, 2)
	assert.Equal(t, "0x1", out.Q[0]["uid"])
	assert.Equal(t, "0x2", out.Q[1]["uid"])

	resp, err = drv.Query(ctx, "query q($a: string) {\n  q(func: eq(name, $a)) {\n    uid\n  }\n}", map[string]string{"$a": "Acme"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"q": [{"uid": "0x3", "dgraph.type": ["Company"], "name": "Acme"}]}`, string(resp.JSON))
}

func TestDeleteAndDiscard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	drv := dialecttest.New()
	id, err := drv.Put(map[string]any{"dgraph.type": []string{"Person"}, "name": "Alice", "age": 30})
	require.NoError(t, err)
	assert.Equal(t, "0x1", id)

	tx, _ := drv.Tx(ctx)
	_, err = tx.Mutate(ctx, &dialect.Mutation{Delete: []byte(`{"uid": "0x1", "age": null}`)})
	require.NoError(t, err)
	require.NoError(t, tx.Discard(ctx))
	n, _ := drv.Node("0x1")
	assert.Equal(t, 30, n["age"])

	tx, _ = drv.Tx(ctx)
	_, err = tx.Mutate(ctx, &dialect.Mutation{Delete: []byte(`{"uid": "0x1", "age": null}`)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	n, _ = drv.Node("0x1")
	assert.NotContains(t, n, "age")

	tx, _ = drv.Tx(ctx)
	_, err = tx.Mutate(ctx, &dialect.Mutation{Delete: []byte(`[{"uid": "0x1"}]`)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.Zero(t, drv.Nodes())
	assert.Len(t, drv.Mutations(), 3)
	assert.Equal(t, 1, drv.Discards())
}

func TestAlter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	drv := dialecttest.New()
	_, err := drv.Put(map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)
	require.NoError(t, drv.Alter(ctx, dialect.Operation{DropAttr: "age"}))
	n, _ := drv.Node("0x1")
	assert.NotContains(t, n, "age")
	assert.Error(t, drv.Alter(ctx, dialect.Operation{}))
	require.NoError(t, drv.Alter(ctx, dialect.Operation{DropAll: true}))
	assert.Zero(t, drv.Nodes())
	assert.Len(t, drv.Alters(), 2)

	require.NoError(t, drv.Close())
	assert.ErrorIs(t, drv.Alter(ctx, dialect.Operation{DropAll: true}), dialecttest.ErrClosed)
	_, err = drv.Query(ctx, "{}", nil)
	assert.ErrorIs(t, err, dialecttest.ErrClosed)
}
