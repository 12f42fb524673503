// Package migrate evolves the schema of a store from one revision of the
// registry to the next.
//
// A migration is authored by diffing the current compiled snapshot against
// the snapshot embedded in the latest authored migration (see Generate).
// Migrations are applied in generation order by an Engine, which keeps one
// record node per migration in the store itself. A record is stamped with
// its apply time only after all Up operations succeeded.
package migrate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/syssam/velograph/compiler"
	"github.com/syssam/velograph/registry"
)

// OpKind is the kind of a migration operation.
type OpKind uint8

// Operation kinds.
const (
	OpSetType OpKind = iota + 1
	OpDropPredicate
	OpDropType
)

var opNames = [...]string{
	OpSetType:       "SetType",
	OpDropPredicate: "DropPredicate",
	OpDropType:      "DropType",
}

// String returns the builder method of the kind.
func (k OpKind) String() string {
	if int(k) < len(opNames) && opNames[k] != "" {
		return opNames[k]
	}
	return fmt.Sprintf("OpKind(%d)", k)
}

// Op is one schema operation of a migration.
type Op struct {
	Kind OpKind
	// Name is the graph type or predicate name. It is empty for a SetType
	// naming a Go entity type until resolved against a registry.
	Name string

	entity reflect.Type
}

// String returns the operation as written in migration sources, e.g.
// "SetType(Person)".
func (o Op) String() string {
	name := o.Name
	if name == "" && o.entity != nil {
		name = o.entity.Name()
	}
	return fmt.Sprintf("%s(%s)", o.Kind, name)
}

// resolve fills the graph type name of an entity-typed SetType.
func (o Op) resolve(reg *registry.Context) (Op, error) {
	if o.Name != "" || o.entity == nil {
		return o, nil
	}
	if reg == nil {
		return o, fmt.Errorf("migrate: %s requires a registry", o)
	}
	cm, err := reg.Resolve(o.entity)
	if err != nil {
		return o, err
	}
	o.Name = cm.TypeName
	return o, nil
}

// Builder collects the operations of an Up or Down function.
type Builder struct {
	ops  []Op
	errs []error
}

// SetTypeName re-asserts the declaration of a graph type: its predicates
// and its type block.
func (b *Builder) SetTypeName(name string) *Builder {
	return b.add(Op{Kind: OpSetType, Name: name})
}

// SetType re-asserts the declaration of the graph type mapped to T.
func SetType[T any](b *Builder) *Builder {
	b.ops = append(b.ops, Op{Kind: OpSetType, entity: reflect.TypeFor[T]()})
	return b
}

// DropPredicate drops a predicate and its data.
func (b *Builder) DropPredicate(name string) *Builder {
	return b.add(Op{Kind: OpDropPredicate, Name: name})
}

// DropType drops a graph type. Its predicates are kept.
func (b *Builder) DropType(name string) *Builder {
	return b.add(Op{Kind: OpDropType, Name: name})
}

func (b *Builder) add(op Op) *Builder {
	if op.Name == "" {
		b.errs = append(b.errs, fmt.Errorf("migrate: %s with empty name", op.Kind))
		return b
	}
	b.ops = append(b.ops, op)
	return b
}

// Ops returns the collected operations.
func (b *Builder) Ops() ([]Op, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return b.ops, nil
}

// Migration is one authored schema change.
type Migration struct {
	// Name identifies the migration, conventionally prefixed with the
	// generation timestamp.
	Name string
	// GeneratedAt orders migrations.
	GeneratedAt time.Time
	// Snapshot is the canonical schema text of the revision the migration
	// leads to. SetType operations assert type declarations from it.
	Snapshot string
	// Up applies the migration.
	Up func(*Builder)
	// Down partially reverts the migration.
	Down func(*Builder)
}

// UpOps returns the operations of Up.
func (m *Migration) UpOps() ([]Op, error) { return build(m.Up) }

// DownOps returns the operations of Down.
func (m *Migration) DownOps() ([]Op, error) { return build(m.Down) }

func build(f func(*Builder)) ([]Op, error) {
	b := &Builder{}
	if f != nil {
		f(b)
	}
	return b.Ops()
}

// snapshot parses the embedded snapshot, nil when absent.
func (m *Migration) snapshot() (*compiler.Snapshot, error) {
	if m.Snapshot == "" {
		return nil, nil
	}
	s, err := compiler.Parse(m.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("migrate: snapshot of %s: %w", m.Name, err)
	}
	return s, nil
}

func (m *Migration) validate() error {
	switch {
	case m == nil:
		return errors.New("migrate: nil migration")
	case m.Name == "":
		return errors.New("migrate: migration without name")
	case m.GeneratedAt.IsZero():
		return fmt.Errorf("migrate: migration %s without generation time", m.Name)
	}
	return nil
}

// Set is an ordered collection of migrations, usually populated from the
// init functions of generated sources.
type Set struct {
	mu     sync.RWMutex
	byName map[string]*Migration
}

// NewSet returns a set holding the given migrations. It panics on invalid
// or duplicate migrations.
func NewSet(ms ...*Migration) *Set {
	s := &Set{byName: make(map[string]*Migration)}
	for _, m := range ms {
		s.MustAdd(m)
	}
	return s
}

// Add adds a migration. Names are unique within a set.
func (s *Set) Add(m *Migration) error {
	if err := m.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[m.Name]; ok {
		return fmt.Errorf("migrate: duplicate migration %s", m.Name)
	}
	s.byName[m.Name] = m
	return nil
}

// MustAdd is like Add but panics on error.
func (s *Set) MustAdd(m *Migration) {
	if err := s.Add(m); err != nil {
		panic(err)
	}
}

// Get returns a migration by name.
func (s *Set) Get(name string) (*Migration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byName[name]
	return m, ok
}

// Len returns the number of migrations.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}

// List returns the migrations ordered by generation time, then name.
func (s *Set) List() []*Migration {
	s.mu.RLock()
	out := make([]*Migration, 0, len(s.byName))
	for _, m := range s.byName {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.Before(out[j].GeneratedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// LatestSnapshot returns the snapshot embedded in the most recent
// migration carrying one, or an empty snapshot.
func LatestSnapshot(s *Set) (*compiler.Snapshot, error) {
	list := s.List()
	for i := len(list) - 1; i >= 0; i-- {
		snap, err := list[i].snapshot()
		if err != nil {
			return nil, err
		}
		if snap != nil {
			return snap, nil
		}
	}
	return compiler.Parse("")
}
