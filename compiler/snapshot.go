package compiler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/schema/predicate"
)

// Snapshot is the canonical schema of the registry at one revision.
type Snapshot struct {
	predicates []string
	types      []TypeBlock
	byName     map[string]string
	byType     map[string]TypeBlock
}

// TypeBlock is the declaration of one graph type.
type TypeBlock struct {
	// Name is the graph type name.
	Name string
	// Fields holds the rendered entries: a predicate name, "<~name>" for a
	// reverse navigation, or "name: Target" / "name: [Target]" for typed
	// edges.
	Fields []string
}

// FieldNames returns the entries without cross-reference hints, reverse
// navigations as "~name".
func (b TypeBlock) FieldNames() []string {
	names := make([]string, len(b.Fields))
	for i, f := range b.Fields {
		names[i] = fieldName(f)
	}
	return names
}

// Render returns the block text, with or without cross-reference hints.
func (b TypeBlock) Render(hints bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "type %s {\n", b.Name)
	for _, f := range b.Fields {
		if !hints {
			f = storeField(f)
		}
		sb.WriteString("  ")
		sb.WriteString(f)
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")
	return sb.String()
}

func fieldName(f string) string {
	if strings.HasPrefix(f, "<~") {
		return "~" + strings.TrimSuffix(strings.TrimPrefix(f, "<~"), ">")
	}
	if i := strings.IndexByte(f, ':'); i >= 0 {
		return strings.TrimSpace(f[:i])
	}
	return strings.Trim(strings.TrimSpace(f), "<>")
}

func storeField(f string) string {
	if strings.HasPrefix(f, "<~") {
		return f
	}
	return fieldName(f)
}

func (s *Snapshot) index() {
	s.byName = make(map[string]string, len(s.predicates))
	for _, line := range s.predicates {
		s.byName[lineName(line)] = line
	}
	s.byType = make(map[string]TypeBlock, len(s.types))
	for _, t := range s.types {
		s.byType[t.Name] = t
	}
}

func lineName(line string) string {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return strings.TrimSpace(line)
	}
	return strings.Trim(strings.TrimSpace(line[:i]), "<>")
}

// Text returns the canonical text.
func (s *Snapshot) Text() string {
	return s.render(true)
}

// String implements fmt.Stringer.
func (s *Snapshot) String() string {
	return s.Text()
}

// StoreText returns the text accepted by the store's Alter operation: the
// canonical text without cross-reference hints.
func (s *Snapshot) StoreText() string {
	return s.render(false)
}

func (s *Snapshot) render(hints bool) string {
	var b strings.Builder
	for _, line := range s.predicates {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for i, t := range s.types {
		if i > 0 || len(s.predicates) > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Render(hints))
	}
	return b.String()
}

// PredicateLines returns the declaration lines, sorted by name.
func (s *Snapshot) PredicateLines() []string {
	return slices.Clone(s.predicates)
}

// PredicateNames returns the declared predicate names, sorted.
func (s *Snapshot) PredicateNames() []string {
	names := make([]string, len(s.predicates))
	for i, line := range s.predicates {
		names[i] = lineName(line)
	}
	return names
}

// Declaration returns the declaration line of a predicate.
func (s *Snapshot) Declaration(name string) (string, bool) {
	line, ok := s.byName[name]
	return line, ok
}

// TypeNames returns the graph type names, sorted.
func (s *Snapshot) TypeNames() []string {
	names := make([]string, len(s.types))
	for i, t := range s.types {
		names[i] = t.Name
	}
	return names
}

// Type returns the block of a graph type.
func (s *Snapshot) Type(name string) (TypeBlock, bool) {
	t, ok := s.byType[name]
	return t, ok
}

// Types returns the type blocks, sorted by name.
func (s *Snapshot) Types() []TypeBlock {
	return slices.Clone(s.types)
}

// DeclaringTypes returns the types whose block lists the predicate,
// sorted.
func (s *Snapshot) DeclaringTypes(predicateName string) []string {
	var out []string
	for _, t := range s.types {
		if slices.Contains(t.FieldNames(), predicateName) {
			out = append(out, t.Name)
		}
	}
	return out
}

// Equal reports if two snapshots have the same canonical text.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Text() == o.Text()
}

// Parse reads canonical or store schema text. Lines before the first type
// block are predicate declarations; blank lines and # comments are skipped.
// CRLF line endings are accepted, as are one-line blocks such as
// "type Company { name }".
func Parse(text string) (*Snapshot, error) {
	s := &Snapshot{}
	var (
		sc      = bufio.NewScanner(strings.NewReader(text))
		current *TypeBlock
		lineNo  int
	)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimSuffix(sc.Text(), "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case current != nil:
			if s.blockLine(current, line) {
				current = nil
			}
		case strings.HasPrefix(line, "type ") && strings.Contains(line, "{"):
			i := strings.IndexByte(line, '{')
			name := strings.TrimSpace(line[len("type "):i])
			if name == "" {
				return nil, fmt.Errorf("compiler: line %d: missing type name", lineNo)
			}
			current = &TypeBlock{Name: name}
			if s.blockLine(current, line[i+1:]) {
				current = nil
			}
		case len(s.types) > 0:
			return nil, fmt.Errorf("compiler: line %d: predicate declaration after type blocks", lineNo)
		default:
			if !strings.HasSuffix(line, ".") || !strings.Contains(line, ":") {
				return nil, fmt.Errorf("compiler: line %d: invalid predicate declaration %q", lineNo, line)
			}
			s.predicates = append(s.predicates, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}
	if current != nil {
		return nil, fmt.Errorf("compiler: unterminated type block %s", current.Name)
	}
	sort.SliceStable(s.predicates, func(i, j int) bool { return lineName(s.predicates[i]) < lineName(s.predicates[j]) })
	sort.SliceStable(s.types, func(i, j int) bool { return s.types[i].Name < s.types[j].Name })
	s.index()
	return s, nil
}

// blockLine adds the comma or line separated entries of one line of a type
// block and reports whether the line closes the block.
func (s *Snapshot) blockLine(b *TypeBlock, line string) bool {
	line = strings.TrimSpace(line)
	closed := strings.HasSuffix(line, "}")
	for _, f := range strings.Split(strings.TrimSuffix(line, "}"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			b.Fields = append(b.Fields, f)
		}
	}
	if closed {
		s.types = append(s.types, *b)
	}
	return closed
}

// MustParse is like Parse but panics on error.
func MustParse(text string) *Snapshot {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

type (
	storeSchema struct {
		Schema []storePredicate `json:"schema"`
		Types  []storeType      `json:"types"`
	}
	storePredicate struct {
		Predicate  string      `json:"predicate"`
		Type       string      `json:"type"`
		Index      bool        `json:"index"`
		Tokenizer  []string    `json:"tokenizer"`
		IndexSpecs []indexSpec `json:"index_specs"`
		List       bool        `json:"list"`
		Upsert     bool        `json:"upsert"`
		Lang       bool        `json:"lang"`
		Reverse    bool        `json:"reverse"`
		Count      bool        `json:"count"`
	}
	indexSpec struct {
		Name    string `json:"name"`
		Options []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"options"`
	}
	storeType struct {
		Name   string `json:"name"`
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
)

// FromStore builds a snapshot from the JSON result of a schema query
// against the store. Internal predicates and types of the store (prefixed
// "dgraph.") are skipped. Store snapshots carry no cross-reference hints.
func FromStore(data []byte) (*Snapshot, error) {
	var ss storeSchema
	if err := json.Unmarshal(data, &ss); err != nil {
		return nil, fmt.Errorf("compiler: decode store schema: %w", err)
	}
	s := &Snapshot{}
	for _, p := range ss.Schema {
		if strings.HasPrefix(p.Predicate, "dgraph.") {
			continue
		}
		kind, err := predicate.ParseKind(p.Type)
		if err != nil {
			return nil, fmt.Errorf("compiler: predicate %q: %w", p.Predicate, err)
		}
		d := &predicate.Definition{
			Name:    p.Predicate,
			Kind:    kind,
			List:    p.List,
			Upsert:  p.Upsert,
			Lang:    p.Lang,
			Reverse: p.Reverse,
			Count:   p.Count,
		}
		for _, tok := range p.Tokenizer {
			d.Indexes = append(d.Indexes, predicate.Index(tok))
		}
		for _, spec := range p.IndexSpecs {
			if !slices.Contains(d.Indexes, predicate.Index(spec.Name)) {
				d.Indexes = append(d.Indexes, predicate.Index(spec.Name))
			}
			for _, o := range spec.Options {
				if o.Key == "metric" {
					d.Metric = predicate.Metric(o.Value)
				}
			}
		}
		d.Normalize()
		s.predicates = append(s.predicates, d.Render())
	}
	for _, t := range ss.Types {
		if strings.HasPrefix(t.Name, "dgraph.") {
			continue
		}
		b := TypeBlock{Name: t.Name}
		for _, f := range t.Fields {
			if strings.HasPrefix(f.Name, "~") {
				b.Fields = append(b.Fields, "<"+f.Name+">")
				continue
			}
			b.Fields = append(b.Fields, f.Name)
		}
		s.types = append(s.types, b)
	}
	sort.Slice(s.predicates, func(i, j int) bool { return lineName(s.predicates[i]) < lineName(s.predicates[j]) })
	sort.Slice(s.types, func(i, j int) bool { return s.types[i].Name < s.types[j].Name })
	s.index()
	return s, nil
}

// Pull fetches the current schema of the store.
func Pull(ctx context.Context, q dialect.Querier) (*Snapshot, error) {
	resp, err := q.Query(ctx, dialect.SchemaQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("compiler: pull schema: %w", err)
	}
	return FromStore(resp.JSON)
}

// TypeDeclaration returns the store text asserting one type of the
// snapshot: the declarations of the predicates its block lists, including
// the forward predicates of reverse navigations, followed by the block.
func (s *Snapshot) TypeDeclaration(typeName string) (string, error) {
	b, ok := s.Type(typeName)
	if !ok {
		return "", fmt.Errorf("compiler: snapshot has no type %q", typeName)
	}
	seen := make(map[string]bool)
	var lines []string
	for _, f := range b.FieldNames() {
		name := strings.TrimPrefix(f, "~")
		if seen[name] {
			continue
		}
		seen[name] = true
		line, ok := s.Declaration(name)
		if !ok {
			return "", fmt.Errorf("compiler: predicate %q of %s is not declared", name, typeName)
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	out := &Snapshot{predicates: lines, types: []TypeBlock{b}}
	out.index()
	return out.StoreText(), nil
}
