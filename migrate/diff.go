package migrate

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/syssam/velograph/compiler"
)

// Delta is the difference between two schema revisions.
type Delta struct {
	// AddedPredicates are declared in the current revision only.
	AddedPredicates []string
	// ChangedPredicates are declared in both revisions with different
	// declaration lines.
	ChangedPredicates []string
	// RemovedPredicates are declared in the previous revision only.
	RemovedPredicates []string
	// AddedTypes are the graph types of the current revision only.
	AddedTypes []string
	// RemovedTypes are the graph types of the previous revision only.
	RemovedTypes []string
	// ChangedTypes are present in both revisions with different blocks.
	ChangedTypes []string
}

// Empty reports whether the revisions are equivalent.
func (d *Delta) Empty() bool {
	return len(d.AddedPredicates) == 0 && len(d.ChangedPredicates) == 0 && len(d.RemovedPredicates) == 0 &&
		len(d.AddedTypes) == 0 && len(d.RemovedTypes) == 0 && len(d.ChangedTypes) == 0
}

// String returns a summary of the delta, one change per line.
func (d *Delta) String() string {
	var b strings.Builder
	for _, g := range []struct {
		sign  string
		what  string
		names []string
	}{
		{"+", "predicate", d.AddedPredicates},
		{"~", "predicate", d.ChangedPredicates},
		{"-", "predicate", d.RemovedPredicates},
		{"+", "type", d.AddedTypes},
		{"~", "type", d.ChangedTypes},
		{"-", "type", d.RemovedTypes},
	} {
		for _, n := range g.names {
			fmt.Fprintf(&b, "%s %s %s\n", g.sign, g.what, n)
		}
	}
	return b.String()
}

// Diff compares two snapshots. A nil previous snapshot is an empty schema.
// Predicates are compared by name and declaration line, types by name and
// block, cross-reference hints included.
func Diff(prev, cur *compiler.Snapshot) *Delta {
	if prev == nil {
		prev = compiler.MustParse("")
	}
	if cur == nil {
		cur = compiler.MustParse("")
	}
	d := &Delta{}
	for _, name := range cur.PredicateNames() {
		line, _ := cur.Declaration(name)
		old, ok := prev.Declaration(name)
		switch {
		case !ok:
			d.AddedPredicates = append(d.AddedPredicates, name)
		case old != line:
			d.ChangedPredicates = append(d.ChangedPredicates, name)
		}
	}
	for _, name := range prev.PredicateNames() {
		if _, ok := cur.Declaration(name); !ok {
			d.RemovedPredicates = append(d.RemovedPredicates, name)
		}
	}
	for _, t := range cur.Types() {
		old, ok := prev.Type(t.Name)
		switch {
		case !ok:
			d.AddedTypes = append(d.AddedTypes, t.Name)
		case old.Render(true) != t.Render(true):
			d.ChangedTypes = append(d.ChangedTypes, t.Name)
		}
	}
	for _, name := range prev.TypeNames() {
		if _, ok := cur.Type(name); !ok {
			d.RemovedTypes = append(d.RemovedTypes, name)
		}
	}
	return d
}

// Plan holds the operations of a delta.
type Plan struct {
	Up   []Op
	Down []Op
}

// NewPlan turns a delta into operations against the current revision.
//
// Up re-asserts every type declaring an added or changed predicate, every
// added or changed type, then drops removed predicates and removed types.
// Down only drops the added types: predicates are never dropped on the way
// down, since a later migration may still depend on them.
func NewPlan(d *Delta, cur *compiler.Snapshot) (*Plan, error) {
	set := make(map[string]bool)
	for _, name := range slices.Concat(d.AddedPredicates, d.ChangedPredicates) {
		types := declaringTypes(cur, name)
		if len(types) == 0 {
			return nil, fmt.Errorf("migrate: predicate %q is declared by no type", name)
		}
		for _, t := range types {
			set[t] = true
		}
	}
	for _, t := range slices.Concat(d.AddedTypes, d.ChangedTypes) {
		set[t] = true
	}
	types := make([]string, 0, len(set))
	for t := range set {
		types = append(types, t)
	}
	sort.Strings(types)

	p := &Plan{}
	for _, t := range types {
		p.Up = append(p.Up, Op{Kind: OpSetType, Name: t})
	}
	for _, name := range d.RemovedPredicates {
		p.Up = append(p.Up, Op{Kind: OpDropPredicate, Name: name})
	}
	for _, name := range d.RemovedTypes {
		p.Up = append(p.Up, Op{Kind: OpDropType, Name: name})
	}
	for _, name := range d.AddedTypes {
		p.Down = append(p.Down, Op{Kind: OpDropType, Name: name})
	}
	return p, nil
}

// declaringTypes returns the types listing a predicate directly or
// through its reverse navigation.
func declaringTypes(s *compiler.Snapshot, name string) []string {
	var out []string
	for _, t := range s.Types() {
		fields := t.FieldNames()
		if slices.Contains(fields, name) || slices.Contains(fields, "~"+name) {
			out = append(out, t.Name)
		}
	}
	return out
}
