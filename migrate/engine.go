package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/codec"
	"github.com/syssam/velograph/compiler"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/query"
	"github.com/syssam/velograph/query/filter"
	"github.com/syssam/velograph/registry"
)

// Engine applies migrations to a store.
type Engine struct {
	drv     dialect.Driver
	reg     *registry.Context
	codec   *codec.Codec
	log     *slog.Logger
	now     func() time.Time
	workers int
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets the logger of the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) error {
		if l == nil {
			return errors.New("migrate: nil logger")
		}
		e.log = l
		return nil
	}
}

// WithClock sets the clock stamping applied records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		if now == nil {
			return errors.New("migrate: nil clock")
		}
		e.now = now
		return nil
	}
}

// WithWorkers bounds the concurrent record lookups of Status.
func WithWorkers(n int) Option {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("migrate: workers must be positive, got %d", n)
		}
		e.workers = n
		return nil
	}
}

// NewEngine returns an engine applying migrations over drv. The registry
// resolves the entity types named by SetType operations and supplies type
// declarations for migrations without an embedded snapshot; it may be nil
// when every migration embeds one.
func NewEngine(drv dialect.Driver, reg *registry.Context, opts ...Option) (*Engine, error) {
	if drv == nil {
		return nil, errors.New("migrate: nil driver")
	}
	e := &Engine{
		drv:     drv,
		reg:     reg,
		codec:   codec.New(RecordRegistry()),
		log:     slog.Default(),
		now:     time.Now,
		workers: 4,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// EnsureSchema declares the record type in the store.
func (e *Engine) EnsureSchema(ctx context.Context) error {
	if err := e.drv.Alter(ctx, dialect.Operation{Schema: RecordSchemaText()}); err != nil {
		return fmt.Errorf("migrate: ensure record schema: %w", err)
	}
	return nil
}

// Records returns all migration records, ordered by generation time.
func (e *Engine) Records(ctx context.Context) ([]*Record, error) {
	return e.find(ctx, nil)
}

func (e *Engine) record(ctx context.Context, name string) (*Record, error) {
	recs, err := e.find(ctx, filter.Eq("Name", name))
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, nil
}

func (e *Engine) find(ctx context.Context, fn filter.Expr) ([]*Record, error) {
	b := query.New(RecordRegistry(), &Record{})
	if fn != nil {
		b.Func(fn)
	}
	q, err := b.Build()
	if err != nil {
		return nil, err
	}
	resp, err := e.drv.Query(ctx, q.Text, q.Vars)
	if err != nil {
		return nil, fmt.Errorf("migrate: query records: %w", err)
	}
	var blocks map[string]json.RawMessage
	if err := json.Unmarshal(resp.JSON, &blocks); err != nil {
		return nil, fmt.Errorf("migrate: decode records: %w", err)
	}
	var recs []*Record
	if raw, ok := blocks[q.Name]; ok {
		if err := e.codec.Unmarshal(raw, &recs); err != nil {
			return nil, fmt.Errorf("migrate: decode records: %w", err)
		}
	}
	sortRecords(recs)
	return recs, nil
}

func sortRecords(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].GeneratedAt.Equal(recs[j].GeneratedAt) {
			return recs[i].GeneratedAt.Before(recs[j].GeneratedAt)
		}
		return recs[i].Name < recs[j].Name
	})
}

// State is the apply state of a migration.
type State uint8

// Migration states.
const (
	// Pending migrations have no record.
	Pending State = iota
	// Started migrations have an unstamped record: a previous apply
	// failed or was cancelled.
	Started
	// Applied migrations have a stamped record.
	Applied
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case Applied:
		return "applied"
	default:
		return "pending"
	}
}

// Status is the apply state of one migration.
type Status struct {
	Migration *Migration
	// Record is nil for pending migrations.
	Record *Record
	State  State
}

// Status looks up the record of every migration of the set.
func (e *Engine) Status(ctx context.Context, set *Set) ([]Status, error) {
	list := set.List()
	out := make([]Status, len(list))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, m := range list {
		g.Go(func() error {
			rec, err := e.record(ctx, m.Name)
			if err != nil {
				return err
			}
			st := Status{Migration: m, Record: rec}
			switch {
			case rec == nil:
				st.State = Pending
			case rec.Applied():
				st.State = Applied
			default:
				st.State = Started
			}
			out[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Apply runs the Up of every migration generated after the latest apply
// time on record, in generation order. A failing migration stops the loop
// with a MigrationApplyError and leaves its record unstamped; applying
// again resumes from the top of that migration. Apply returns the names of
// the migrations applied.
func (e *Engine) Apply(ctx context.Context, set *Set) ([]string, error) {
	if err := e.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	recs, err := e.Records(ctx)
	if err != nil {
		return nil, err
	}
	var (
		latest  time.Time
		byName  = make(map[string]*Record, len(recs))
		applied []string
	)
	for _, r := range recs {
		byName[r.Name] = r
		if r.AppliedAt.After(latest) {
			latest = r.AppliedAt
		}
	}
	for _, m := range set.List() {
		if r := byName[m.Name]; r != nil && r.Applied() {
			continue
		}
		if !m.GeneratedAt.After(latest) {
			e.log.Debug("migration predates the latest apply", "migration", m.Name, "latest", latest)
			continue
		}
		if err := e.apply(ctx, m, byName[m.Name]); err != nil {
			return applied, err
		}
		applied = append(applied, m.Name)
	}
	return applied, nil
}

func (e *Engine) apply(ctx context.Context, m *Migration, rec *Record) error {
	fail := func(op string, err error) error {
		e.log.Error("migration failed", "migration", m.Name, "op", op, "error", err)
		return &velograph.MigrationApplyError{Migration: m.Name, Op: op, Cause: err}
	}
	ops, err := m.UpOps()
	if err != nil {
		return fail("", err)
	}
	if rec == nil {
		rec = &Record{Name: m.Name, GeneratedAt: m.GeneratedAt.UTC()}
		if err := e.save(ctx, rec); err != nil {
			return fail("", err)
		}
	}
	start := time.Now()
	if err := e.run(ctx, m, ops); err != nil {
		e.log.Error("migration failed", "migration", m.Name, "error", err)
		return err
	}
	rec.AppliedAt = e.now().UTC()
	if err := e.save(ctx, rec); err != nil {
		return fail("stamp", err)
	}
	e.log.Info("migration applied", "migration", m.Name, "ops", len(ops), "duration", time.Since(start))
	return nil
}

// run executes operations in order, checking for cancellation before each.
func (e *Engine) run(ctx context.Context, m *Migration, ops []Op) error {
	snap, err := m.snapshot()
	if err != nil {
		return &velograph.MigrationApplyError{Migration: m.Name, Cause: err}
	}
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return &velograph.MigrationApplyError{Migration: m.Name, Op: op.String(), Cause: err}
		}
		alter, err := e.operation(op, snap)
		if err == nil {
			err = e.drv.Alter(ctx, alter)
		}
		if err != nil {
			return &velograph.MigrationApplyError{Migration: m.Name, Op: op.String(), Cause: err}
		}
		e.log.Debug("migration op", "migration", m.Name, "op", op.String())
	}
	return nil
}

// operation turns an op into a store alteration. SetType takes the type
// declaration from the migration snapshot when present, else from the
// registry.
func (e *Engine) operation(op Op, snap *compiler.Snapshot) (dialect.Operation, error) {
	op, err := op.resolve(e.reg)
	if err != nil {
		return dialect.Operation{}, err
	}
	switch op.Kind {
	case OpSetType:
		var text string
		switch {
		case snap != nil:
			text, err = snap.TypeDeclaration(op.Name)
		case e.reg != nil:
			text, err = compiler.TypeDeclaration(e.reg, op.Name)
		default:
			err = fmt.Errorf("migrate: %s needs a snapshot or a registry", op)
		}
		if err != nil {
			return dialect.Operation{}, err
		}
		return dialect.Operation{Schema: text}, nil
	case OpDropPredicate:
		return dialect.Operation{DropAttr: op.Name}, nil
	case OpDropType:
		return dialect.Operation{DropType: op.Name}, nil
	default:
		return dialect.Operation{}, fmt.Errorf("migrate: unknown operation %s", op)
	}
}

func (e *Engine) save(ctx context.Context, rec *Record) error {
	enc, err := e.codec.Encode(rec)
	if err != nil {
		return err
	}
	set, err := json.Marshal(enc.Doc)
	if err != nil {
		return err
	}
	return e.mutate(ctx, &dialect.Mutation{Set: set}, func(resp *dialect.Response) error {
		return enc.AssignUIDs(resp.UIDs)
	})
}

func (e *Engine) mutate(ctx context.Context, m *dialect.Mutation, done func(*dialect.Response) error) (err error) {
	tx, err := e.drv.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Discard(ctx)
		}
	}()
	resp, err := tx.Mutate(ctx, m)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if done != nil {
		return done(resp)
	}
	return nil
}

// Revert runs the Down of an applied migration and deletes its record.
func (e *Engine) Revert(ctx context.Context, set *Set, name string) error {
	m, ok := set.Get(name)
	if !ok {
		return fmt.Errorf("migrate: unknown migration %s", name)
	}
	rec, err := e.record(ctx, name)
	if err != nil {
		return err
	}
	if rec == nil || !rec.Applied() {
		return fmt.Errorf("migrate: migration %s is not applied", name)
	}
	ops, err := m.DownOps()
	if err != nil {
		return err
	}
	if err := e.run(ctx, m, ops); err != nil {
		return err
	}
	del, err := json.Marshal(map[string]string{velograph.UIDPredicate: rec.UID.String()})
	if err != nil {
		return err
	}
	if err := e.mutate(ctx, &dialect.Mutation{Delete: del}, nil); err != nil {
		return fmt.Errorf("migrate: delete record of %s: %w", name, err)
	}
	e.log.Info("migration reverted", "migration", name, "ops", len(ops))
	return nil
}
