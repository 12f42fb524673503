// Package dgraph implements dialect.Driver over the Dgraph gRPC API.
package dgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/dgo/v230"
	"github.com/dgraph-io/dgo/v230/protos/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/syssam/velograph/dialect"
)

// Driver is a dialect.Driver for Dgraph.
type Driver struct {
	conn *grpc.ClientConn
	dg   *dgo.Dgraph
	log  *slog.Logger
}

type options struct {
	dial     []grpc.DialOption
	user     string
	password string
	log      *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithDialOptions adds gRPC dial options. Without options carrying
// transport credentials the connection is insecure.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) {
		o.dial = append(o.dial, opts...)
	}
}

// WithCredentials logs in with an ACL user after connecting.
func WithCredentials(user, password string) Option {
	return func(o *options) {
		o.user, o.password = user, password
	}
}

// WithLogger sets the logger of the driver.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Open connects to a Dgraph alpha at addr, e.g. "localhost:9080".
func Open(ctx context.Context, addr string, opts ...Option) (*Driver, error) {
	o := &options{log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	dial := o.dial
	if len(dial) == 0 {
		dial = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, dial...)
	if err != nil {
		return nil, fmt.Errorf("dgraph: connect %s: %w", addr, err)
	}
	d := &Driver{
		conn: conn,
		dg:   dgo.NewDgraphClient(api.NewDgraphClient(conn)),
		log:  o.log,
	}
	if o.user != "" {
		if err := d.dg.Login(ctx, o.user, o.password); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("dgraph: login %s: %w", o.user, err)
		}
	}
	d.log.Debug("dgraph connected", "addr", addr)
	return d, nil
}

// Dialect implements dialect.Driver.
func (*Driver) Dialect() string { return dialect.Dgraph }

// Client returns the underlying dgo client.
func (d *Driver) Client() *dgo.Dgraph { return d.dg }

// Close closes the gRPC connection.
func (d *Driver) Close() error { return d.conn.Close() }

// Alter applies a schema operation.
func (d *Driver) Alter(ctx context.Context, op dialect.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	if err := d.dg.Alter(ctx, operation(op)); err != nil {
		return fmt.Errorf("dgraph: %s: %w", op, err)
	}
	return nil
}

func operation(op dialect.Operation) *api.Operation {
	switch {
	case op.DropAll:
		return &api.Operation{DropOp: api.Operation_ALL}
	case op.DropAttr != "":
		return &api.Operation{DropOp: api.Operation_ATTR, DropValue: op.DropAttr}
	case op.DropType != "":
		return &api.Operation{DropOp: api.Operation_TYPE, DropValue: op.DropType}
	default:
		return &api.Operation{Schema: op.Schema}
	}
}

// Query runs a query in a read-only transaction.
func (d *Driver) Query(ctx context.Context, query string, vars map[string]string) (*dialect.Response, error) {
	txn := d.dg.NewReadOnlyTxn()
	defer func() { _ = txn.Discard(ctx) }()
	return runQuery(ctx, txn, query, vars)
}

// Schema returns the JSON result of dialect.SchemaQuery.
func (d *Driver) Schema(ctx context.Context) ([]byte, error) {
	resp, err := d.Query(ctx, dialect.SchemaQuery, nil)
	if err != nil {
		return nil, err
	}
	return resp.JSON, nil
}

// Tx starts a read-write transaction.
func (d *Driver) Tx(context.Context) (dialect.Tx, error) {
	return &Tx{txn: d.dg.NewTxn()}, nil
}

// Tx is a Dgraph transaction.
type Tx struct {
	txn *dgo.Txn
}

// Query runs a query within the transaction.
func (tx *Tx) Query(ctx context.Context, query string, vars map[string]string) (*dialect.Response, error) {
	return runQuery(ctx, tx.txn, query, vars)
}

// Mutate applies a mutation within the transaction.
func (tx *Tx) Mutate(ctx context.Context, m *dialect.Mutation) (*dialect.Response, error) {
	if m == nil || (len(m.Set) == 0 && len(m.Delete) == 0) {
		return nil, errors.New("dgraph: empty mutation")
	}
	resp, err := tx.txn.Mutate(ctx, &api.Mutation{SetJson: m.Set, DeleteJson: m.Delete})
	if err != nil {
		return nil, fmt.Errorf("dgraph: mutate: %w", err)
	}
	return &dialect.Response{JSON: resp.GetJson(), UIDs: resp.GetUids()}, nil
}

// Commit commits the transaction.
func (tx *Tx) Commit(ctx context.Context) error {
	if err := tx.txn.Commit(ctx); err != nil {
		return fmt.Errorf("dgraph: commit: %w", err)
	}
	return nil
}

// Discard aborts the transaction. It is a no-op after Commit.
func (tx *Tx) Discard(ctx context.Context) error {
	return tx.txn.Discard(ctx)
}

func runQuery(ctx context.Context, txn *dgo.Txn, query string, vars map[string]string) (*dialect.Response, error) {
	var (
		resp *api.Response
		err  error
	)
	if len(vars) > 0 {
		resp, err = txn.QueryWithVars(ctx, query, vars)
	} else {
		resp, err = txn.Query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("dgraph: query: %w", err)
	}
	return &dialect.Response{JSON: resp.GetJson()}, nil
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)
