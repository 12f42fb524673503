package dgraph

import (
	"context"
	"testing"

	"github.com/dgraph-io/dgo/v230/protos/api"
	"github.com/stretchr/testify/assert"

	"github.com/syssam/velograph/dialect"
)

func TestOperation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		op   dialect.Operation
		want *api.Operation
	}{
		{dialect.Operation{Schema: "name: string ."}, &api.Operation{Schema: "name: string ."}},
		{dialect.Operation{DropAttr: "age"}, &api.Operation{DropOp: api.Operation_ATTR, DropValue: "age"}},
		{dialect.Operation{DropType: "Person"}, &api.Operation{DropOp: api.Operation_TYPE, DropValue: "Person"}},
		{dialect.Operation{DropAll: true}, &api.Operation{DropOp: api.Operation_ALL}},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, operation(tt.op))
		})
	}
}

func TestEmptyMutation(t *testing.T) {
	t.Parallel()
	tx := &Tx{}
	_, err := tx.Mutate(context.Background(), nil)
	assert.EqualError(t, err, "dgraph: empty mutation")
	_, err = tx.Mutate(context.Background(), &dialect.Mutation{})
	assert.Error(t, err)
}

func TestAlterValidates(t *testing.T) {
	t.Parallel()
	d := &Driver{}
	assert.Error(t, d.Alter(context.Background(), dialect.Operation{}))
	assert.Error(t, d.Alter(context.Background(), dialect.Operation{DropAttr: "a", DropType: "T"}))
	assert.Equal(t, dialect.Dgraph, d.Dialect())
}
