// Package dialect provides the store abstraction of Velograph.
//
// Drivers implement a small interface over the store's wire protocol:
//
//	type Driver interface {
//	    Query(ctx context.Context, query string, vars map[string]string) (*Response, error)
//	    Alter(ctx context.Context, op Operation) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
//	type Tx interface {
//	    Query(ctx context.Context, query string, vars map[string]string) (*Response, error)
//	    Mutate(ctx context.Context, m *Mutation) (*Response, error)
//	    Commit(ctx context.Context) error
//	    Discard(ctx context.Context) error
//	}
//
// # Wrappers
//
// Drivers compose with the wrappers of this package:
//
//   - StatsDriver counts queries, mutations and alterations, and reports
//     slow ones.
//   - DebugDriver logs every call.
//   - TraceDriver records an OpenTelemetry span per call.
//
// Opening a wrapped Dgraph driver:
//
//	drv, err := dgraph.Open("localhost:9080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	stats := dialect.NewStatsDriver(drv,
//	    dialect.WithSlowThreshold(200*time.Millisecond),
//	    dialect.WithSlowQueryLog(),
//	)
//
// # Sub-packages
//
//   - dialect/dgraph: the Dgraph driver over gRPC
//   - dialect/dialecttest: an in-memory recording driver for tests
package dialect
