package dialect

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/syssam/velograph/dialect"

// TraceDriver wraps a Driver with OpenTelemetry spans. Each request gets a
// span named "velograph.<op>" carrying the dialect and, for queries, the
// query text. Variable values are never recorded.
type TraceDriver struct {
	Driver
	tracer trace.Tracer
}

// TraceOption configures the TraceDriver.
type TraceOption func(*TraceDriver)

// WithTracerProvider sets the provider of the tracer. The global provider
// is used by default.
func WithTracerProvider(tp trace.TracerProvider) TraceOption {
	return func(d *TraceDriver) {
		d.tracer = tp.Tracer(tracerName)
	}
}

// NewTraceDriver wraps a Driver with tracing.
func NewTraceDriver(drv Driver, opts ...TraceOption) *TraceDriver {
	d := &TraceDriver{Driver: drv, tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *TraceDriver) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("db.system", d.Dialect()),
		attribute.String("db.operation", op),
	)
	return d.tracer.Start(ctx, "velograph."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Query runs a query in a span.
func (d *TraceDriver) Query(ctx context.Context, query string, vars map[string]string) (*Response, error) {
	ctx, span := d.start(ctx, OpQuery, attribute.String("db.statement", query), attribute.Int("db.vars", len(vars)))
	resp, err := d.Driver.Query(ctx, query, vars)
	end(span, err)
	return resp, err
}

// Alter applies a schema operation in a span.
func (d *TraceDriver) Alter(ctx context.Context, op Operation) error {
	ctx, span := d.start(ctx, OpAlter, attribute.String("db.statement", op.String()))
	err := d.Driver.Alter(ctx, op)
	end(span, err)
	return err
}

// Tx starts a traced transaction.
func (d *TraceDriver) Tx(ctx context.Context) (Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &TraceTx{Tx: tx, driver: d}, nil
}

// TraceTx wraps a transaction with spans.
type TraceTx struct {
	Tx
	driver *TraceDriver
}

// Query runs a query within the transaction in a span.
func (tx *TraceTx) Query(ctx context.Context, query string, vars map[string]string) (*Response, error) {
	ctx, span := tx.driver.start(ctx, OpQuery, attribute.String("db.statement", query), attribute.Int("db.vars", len(vars)))
	resp, err := tx.Tx.Query(ctx, query, vars)
	end(span, err)
	return resp, err
}

// Mutate applies a mutation within the transaction in a span.
func (tx *TraceTx) Mutate(ctx context.Context, m *Mutation) (*Response, error) {
	ctx, span := tx.driver.start(ctx, OpMutate)
	resp, err := tx.Tx.Mutate(ctx, m)
	if err == nil && resp != nil {
		span.SetAttributes(attribute.Int("velograph.assigned_uids", len(resp.UIDs)))
	}
	end(span, err)
	return resp, err
}

// Commit commits the transaction in a span.
func (tx *TraceTx) Commit(ctx context.Context) error {
	ctx, span := tx.driver.start(ctx, OpCommit)
	err := tx.Tx.Commit(ctx)
	end(span, err)
	return err
}

var (
	_ Driver = (*TraceDriver)(nil)
	_ Tx     = (*TraceTx)(nil)
)
