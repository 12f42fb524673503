// Package compiler renders a frozen registry into canonical schema text.
//
// The canonical text lists one declaration line per predicate, sorted by
// name, a blank line, then one block per graph type, sorted by type name:
//
//	name: string @index(exact) .
//	works_for: uid @reverse .
//
//	type Company {
//	  name
//	  <~works_for>
//	}
//
//	type Person {
//	  name
//	  works_for: Company
//	}
//
// Typed edges carry their target as a cross-reference hint. Hints are part
// of the canonical text, used to diff revisions, but are stripped from the
// text sent to the store (see Snapshot.StoreText).
package compiler

import (
	"fmt"
	"sort"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/schema/predicate"
)

// Compile renders the registry into a snapshot. The registry must be
// frozen. Compiling the same registry twice yields byte-identical text.
func Compile(reg *registry.Context) (*Snapshot, error) {
	if !reg.Frozen() {
		return nil, velograph.ErrNotFrozen
	}
	classes := reg.Classes()
	lines, err := renderPredicates(classes)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{
		predicates: lines,
		types:      make([]TypeBlock, 0, len(classes)),
	}
	for _, cm := range classes {
		s.types = append(s.types, Block(cm))
	}
	s.index()
	return s, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(reg *registry.Context) *Snapshot {
	s, err := Compile(reg)
	if err != nil {
		panic(err)
	}
	return s
}

// renderPredicates renders and deduplicates the declaration lines of all
// classes. Two different lines for one name abort the compilation.
func renderPredicates(classes []*registry.ClassMap) ([]string, error) {
	var (
		byName = make(map[string]string)
		owners = make(map[string]map[string]string)
	)
	for _, cm := range classes {
		for _, d := range cm.Declared() {
			line := d.Render()
			if owners[d.Name] == nil {
				owners[d.Name] = make(map[string]string)
			}
			owners[d.Name][cm.TypeName] = line
			if _, ok := byName[d.Name]; !ok {
				byName[d.Name] = line
			}
		}
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		for _, line := range owners[name] {
			if line != byName[name] {
				return nil, ambiguous(name, owners[name])
			}
		}
		lines = append(lines, byName[name])
	}
	return lines, nil
}

func ambiguous(name string, renderings map[string]string) error {
	e := &velograph.AmbiguousPredicateError{Predicate: name, Renderings: renderings}
	for t := range renderings {
		e.Types = append(e.Types, t)
	}
	sort.Strings(e.Types)
	return e
}

// Block returns the type block of a class map. Fields keep declaration
// order.
func Block(cm *registry.ClassMap) TypeBlock {
	b := TypeBlock{Name: cm.TypeName, Fields: make([]string, 0, len(cm.Predicates))}
	for _, d := range cm.Predicates {
		b.Fields = append(b.Fields, d.TypeField())
	}
	return b
}

// TypeDeclaration returns the store text asserting one graph type: the
// declarations of its predicates, including the forward predicates of its
// reverse navigations, followed by its type block.
func TypeDeclaration(reg *registry.Context, typeName string) (string, error) {
	cm, err := reg.ResolveType(typeName)
	if err != nil {
		return "", err
	}
	seen := make(map[string]bool)
	var lines []string
	for _, d := range cm.Predicates {
		name := d.Name
		if seen[name] {
			continue
		}
		seen[name] = true
		def, ok := reg.Predicate(name)
		if !ok {
			return "", fmt.Errorf("compiler: predicate %q of %s is not declared", name, typeName)
		}
		lines = append(lines, def.Render())
	}
	sort.Strings(lines)
	s := &Snapshot{predicates: lines, types: []TypeBlock{Block(cm)}}
	s.index()
	return s.StoreText(), nil
}

// Definitions returns the canonical predicate definitions of the registry
// keyed by name.
func Definitions(reg *registry.Context) map[string]*predicate.Definition {
	out := make(map[string]*predicate.Definition)
	for _, d := range reg.Predicates() {
		out[d.Name] = d
	}
	return out
}
