package dialect

import (
	"context"
	"fmt"
	"strings"
)

// Dgraph is the name of the Dgraph dialect.
const Dgraph = "dgraph"

// SchemaQuery is the query returning the predicates and types of the
// store.
const SchemaQuery = "schema {}"

// Operation is a schema alteration. Exactly one of its fields is set.
type Operation struct {
	// Schema is schema text to assert: predicate declarations and type
	// blocks.
	Schema string
	// DropAttr names a predicate to drop along with its data.
	DropAttr string
	// DropType names a type to drop. Its predicates are kept.
	DropType string
	// DropAll drops all data and schema.
	DropAll bool
}

// String returns a short description of the operation for logs.
func (op Operation) String() string {
	switch {
	case op.DropAll:
		return "drop all"
	case op.DropAttr != "":
		return "drop predicate " + op.DropAttr
	case op.DropType != "":
		return "drop type " + op.DropType
	default:
		lines := strings.Count(strings.TrimSpace(op.Schema), "\n") + 1
		return fmt.Sprintf("set schema (%d lines)", lines)
	}
}

// Validate reports whether exactly one field of the operation is set.
func (op Operation) Validate() error {
	n := 0
	for _, set := range []bool{op.Schema != "", op.DropAttr != "", op.DropType != "", op.DropAll} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("dialect: operation must set exactly one field, got %d", n)
	}
	return nil
}

// Mutation holds JSON documents to set or delete.
type Mutation struct {
	// Set is a JSON object or array of nodes to write.
	Set []byte
	// Delete is a JSON object or array of nodes or predicates to delete.
	Delete []byte
}

// Response is the result of a query or mutation.
type Response struct {
	// JSON is the query result, keyed by block name.
	JSON []byte
	// UIDs maps the blank-node tokens of a mutation, without the "_:"
	// prefix, to the assigned uids.
	UIDs map[string]string
}

// Querier runs read queries.
type Querier interface {
	// Query runs a query with variables keyed by "$name".
	Query(ctx context.Context, query string, vars map[string]string) (*Response, error)
}

// Driver is the interface implemented by store drivers.
type Driver interface {
	Querier
	// Alter applies a schema operation.
	Alter(ctx context.Context, op Operation) error
	// Tx starts a read-write transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the connection.
	Close() error
	// Dialect returns the dialect name.
	Dialect() string
}

// Tx is a read-write transaction. A transaction is finished by exactly one
// call to Commit or Discard; Discard after Commit is a no-op.
type Tx interface {
	Querier
	// Mutate applies a mutation within the transaction.
	Mutate(ctx context.Context, m *Mutation) (*Response, error)
	// Commit commits the transaction.
	Commit(ctx context.Context) error
	// Discard aborts the transaction.
	Discard(ctx context.Context) error
}
