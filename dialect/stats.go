package dialect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Request kinds recorded by StatsDriver.
const (
	OpQuery  = "query"
	OpMutate = "mutate"
	OpAlter  = "alter"
	OpCommit = "commit"
)

// QueryStats holds request statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalMutations is the total number of mutations executed.
	TotalMutations atomic.Int64
	// TotalAlters is the total number of schema operations executed.
	TotalAlters atomic.Int64
	// TotalDuration is the total time spent in requests.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of requests exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of failed requests.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:   s.TotalQueries.Load(),
		TotalMutations: s.TotalMutations.Load(),
		TotalAlters:    s.TotalAlters.Load(),
		TotalDuration:  time.Duration(s.TotalDuration.Load()),
		SlowQueries:    s.SlowQueries.Load(),
		Errors:         s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalMutations.Store(0)
	s.TotalAlters.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of request statistics.
type StatsSnapshot struct {
	TotalQueries   int64
	TotalMutations int64
	TotalAlters    int64
	TotalDuration  time.Duration
	SlowQueries    int64
	Errors         int64
}

// AvgDuration returns the average request duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	total := s.TotalQueries + s.TotalMutations + s.TotalAlters
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d mutations=%d alters=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalMutations, s.TotalAlters, s.TotalDuration, s.AvgDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is called when a request exceeds the slow threshold. The
// statement is the query text, or the description of a mutation or schema
// operation.
type SlowQueryHook func(ctx context.Context, op, statement string, duration time.Duration)

// StatsDriver wraps a Driver with request statistics collection.
type StatsDriver struct {
	Driver
	stats         *QueryStats
	metrics       *Metrics
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow request detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow requests.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow requests to the default logger.
func WithSlowQueryLog() StatsOption {
	return WithSlowQueryHook(func(_ context.Context, op, statement string, duration time.Duration) {
		slog.Warn("slow request detected", "op", op, "duration", duration, "statement", statement)
	})
}

// WithMetrics exports the statistics as Prometheus metrics.
func WithMetrics(m *Metrics) StatsOption {
	return func(s *StatsDriver) {
		s.metrics = m
	}
}

// NewStatsDriver wraps a Driver with statistics collection.
//
//	drv, _ := dgraph.Open("localhost:9080")
//	stats := dialect.NewStatsDriver(drv,
//	    dialect.WithSlowThreshold(200*time.Millisecond),
//	    dialect.WithSlowQueryLog(),
//	)
//	fmt.Println(stats.QueryStats().Stats())
func NewStatsDriver(drv Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow request threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow request threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// Query runs a query and records statistics.
func (d *StatsDriver) Query(ctx context.Context, query string, vars map[string]string) (*Response, error) {
	start := time.Now()
	resp, err := d.Driver.Query(ctx, query, vars)
	d.record(ctx, OpQuery, query, start, err)
	return resp, err
}

// Alter applies a schema operation and records statistics.
func (d *StatsDriver) Alter(ctx context.Context, op Operation) error {
	start := time.Now()
	err := d.Driver.Alter(ctx, op)
	d.record(ctx, OpAlter, op.String(), start, err)
	return err
}

func (d *StatsDriver) record(ctx context.Context, op, statement string, start time.Time, err error) {
	duration := time.Since(start)
	switch op {
	case OpQuery:
		d.stats.TotalQueries.Add(1)
	case OpMutate:
		d.stats.TotalMutations.Add(1)
	case OpAlter:
		d.stats.TotalAlters.Add(1)
	}
	d.stats.TotalDuration.Add(int64(duration))

	if err != nil {
		d.stats.Errors.Add(1)
	}

	d.mu.RLock()
	threshold := d.slowThreshold
	hook := d.slowHook
	d.mu.RUnlock()

	slow := duration > threshold
	if slow {
		d.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, op, statement, duration)
		}
	}
	d.metrics.observe(op, duration, err, slow)
}

// Tx starts a transaction that also records statistics.
func (d *StatsDriver) Tx(ctx context.Context) (Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// StatsTx wraps a transaction with statistics collection.
type StatsTx struct {
	Tx
	driver *StatsDriver
}

// Query runs a query within the transaction and records statistics.
func (tx *StatsTx) Query(ctx context.Context, query string, vars map[string]string) (*Response, error) {
	start := time.Now()
	resp, err := tx.Tx.Query(ctx, query, vars)
	tx.driver.record(ctx, OpQuery, query, start, err)
	return resp, err
}

// Mutate applies a mutation within the transaction and records statistics.
func (tx *StatsTx) Mutate(ctx context.Context, m *Mutation) (*Response, error) {
	start := time.Now()
	resp, err := tx.Tx.Mutate(ctx, m)
	tx.driver.record(ctx, OpMutate, describe(m), start, err)
	return resp, err
}

// Commit commits the transaction and records statistics.
func (tx *StatsTx) Commit(ctx context.Context) error {
	start := time.Now()
	err := tx.Tx.Commit(ctx)
	tx.driver.record(ctx, OpCommit, "commit", start, err)
	return err
}

func describe(m *Mutation) string {
	if m == nil {
		return "mutation <nil>"
	}
	return fmt.Sprintf("mutation set=%dB delete=%dB", len(m.Set), len(m.Delete))
}

// DebugDriver wraps a Driver with debug logging.
type DebugDriver struct {
	Driver
	log func(context.Context, ...any)
}

// DebugOption configures the DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLog sets a custom log function.
func DebugWithLog(logFunc func(context.Context, ...any)) DebugOption {
	return func(d *DebugDriver) {
		d.log = logFunc
	}
}

// DebugWithLogger logs to the given structured logger at debug level.
func DebugWithLogger(l *slog.Logger) DebugOption {
	return DebugWithLog(func(ctx context.Context, v ...any) {
		l.DebugContext(ctx, fmt.Sprint(v...))
	})
}

// NewDebugDriver wraps a Driver with debug logging.
//
//	drv, _ := dgraph.Open("localhost:9080")
//	debug := dialect.NewDebugDriver(drv, dialect.DebugWithLog(func(ctx context.Context, v ...any) {
//	    log.Println(v...)
//	}))
func NewDebugDriver(drv Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{
		Driver: drv,
		log: func(_ context.Context, v ...any) {
			slog.Info(fmt.Sprint(v...))
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Query runs a query and logs it.
func (d *DebugDriver) Query(ctx context.Context, query string, vars map[string]string) (*Response, error) {
	d.log(ctx, fmt.Sprintf("query: %s vars: %v", query, vars))
	return d.Driver.Query(ctx, query, vars)
}

// Alter applies a schema operation and logs it.
func (d *DebugDriver) Alter(ctx context.Context, op Operation) error {
	if op.Schema != "" {
		d.log(ctx, "alter: ", op.Schema)
	} else {
		d.log(ctx, "alter: ", op.String())
	}
	return d.Driver.Alter(ctx, op)
}

// Tx starts a transaction with debug logging.
func (d *DebugDriver) Tx(ctx context.Context) (Tx, error) {
	d.log(ctx, "begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, log: d.log}, nil
}

// DebugTx wraps a transaction with debug logging.
type DebugTx struct {
	Tx
	log func(context.Context, ...any)
}

// Query runs a query within the transaction and logs it.
func (tx *DebugTx) Query(ctx context.Context, query string, vars map[string]string) (*Response, error) {
	tx.log(ctx, fmt.Sprintf("tx query: %s vars: %v", query, vars))
	return tx.Tx.Query(ctx, query, vars)
}

// Mutate applies a mutation within the transaction and logs it.
func (tx *DebugTx) Mutate(ctx context.Context, m *Mutation) (*Response, error) {
	if m != nil {
		tx.log(ctx, fmt.Sprintf("tx mutate: set=%s delete=%s", m.Set, m.Delete))
	}
	return tx.Tx.Mutate(ctx, m)
}

// Commit commits the transaction and logs it.
func (tx *DebugTx) Commit(ctx context.Context) error {
	tx.log(ctx, "commit transaction")
	return tx.Tx.Commit(ctx)
}

// Discard aborts the transaction and logs it.
func (tx *DebugTx) Discard(ctx context.Context) error {
	tx.log(ctx, "discard transaction")
	return tx.Tx.Discard(ctx)
}

// Ensure interfaces are implemented.
var (
	_ Driver = (*StatsDriver)(nil)
	_ Tx     = (*StatsTx)(nil)
	_ Driver = (*DebugDriver)(nil)
	_ Tx     = (*DebugTx)(nil)
)
