// Package predicate describes graph predicates: the name, scalar kind,
// list-ness, index directives and edge roles that make up one line of the
// store schema.
package predicate

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the scalar kind of a predicate.
type Kind uint8

// Scalar kinds supported by the store.
const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDateTime
	KindGeo
	KindUID
	KindPassword
	KindDefault
	KindVector
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindString:   "string",
	KindInt:      "int",
	KindFloat:    "float",
	KindBool:     "bool",
	KindDateTime: "datetime",
	KindGeo:      "geo",
	KindUID:      "uid",
	KindPassword: "password",
	KindDefault:  "default",
	KindVector:   "float32vector",
}

// String returns the store-native type name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Valid reports if the kind is one of the known scalar kinds.
func (k Kind) Valid() bool {
	return k > KindInvalid && int(k) < len(kindNames)
}

// ParseKind returns the kind for a store-native type name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if k != int(KindInvalid) && name == s {
			return Kind(k), nil
		}
	}
	return KindInvalid, fmt.Errorf("predicate: unknown scalar type %q", s)
}

// Index is an index tokenizer directive.
type Index string

// Index tokenizers. String tokenizers are rendered in a fixed order:
// fulltext, trigram, then the token family (exact, hash, term).
const (
	Fulltext Index = "fulltext"
	Trigram  Index = "trigram"
	Exact    Index = "exact"
	Hash     Index = "hash"
	Term     Index = "term"
	Int      Index = "int"
	Float    Index = "float"
	Bool     Index = "bool"
	Year     Index = "year"
	Month    Index = "month"
	Day      Index = "day"
	Hour     Index = "hour"
	Geo      Index = "geo"
	HNSW     Index = "hnsw"
)

var indexOrder = map[Index]int{
	Fulltext: 0,
	Trigram:  1,
	Exact:    2,
	Hash:     3,
	Term:     4,
	Int:      5,
	Float:    6,
	Bool:     7,
	Year:     8,
	Month:    9,
	Day:      10,
	Hour:     11,
	Geo:      12,
	HNSW:     13,
}

// Allowed returns the tokenizers valid for the given kind.
func Allowed(k Kind) []Index {
	switch k {
	case KindString:
		return []Index{Fulltext, Trigram, Exact, Hash, Term}
	case KindInt:
		return []Index{Int}
	case KindFloat:
		return []Index{Float}
	case KindBool:
		return []Index{Bool}
	case KindDateTime:
		return []Index{Year, Month, Day, Hour}
	case KindGeo:
		return []Index{Geo}
	case KindVector:
		return []Index{HNSW}
	default:
		return nil
	}
}

// Metric is the distance metric of a vector index.
type Metric string

// Vector index metrics.
const (
	Euclidean  Metric = "euclidean"
	Cosine     Metric = "cosine"
	DotProduct Metric = "dotproduct"
)

// Definition describes one predicate of the graph schema.
type Definition struct {
	// Name of the predicate in the store.
	Name string `json:"name"`
	// Kind is the scalar kind of the predicate values.
	Kind Kind `json:"kind"`
	// List reports if the predicate holds a list of values.
	List bool `json:"list,omitempty"`
	// Indexes holds the index tokenizers, kept in canonical order.
	Indexes []Index `json:"indexes,omitempty"`
	// Metric is the vector index metric. Used only with the hnsw index.
	Metric Metric `json:"metric,omitempty"`
	// Upsert adds the @upsert directive.
	Upsert bool `json:"upsert,omitempty"`
	// Lang adds the @lang directive.
	Lang bool `json:"lang,omitempty"`
	// Count adds the @count directive.
	Count bool `json:"count,omitempty"`
	// Reverse declares the predicate navigable from its target via ~name.
	Reverse bool `json:"reverse,omitempty"`
	// Inverse marks a reverse navigation of another predicate. Inverse
	// definitions are listed in type blocks as ~name and never declared.
	Inverse bool `json:"inverse,omitempty"`
	// FacetHost reports that the mapped property carries edge facets.
	FacetHost bool `json:"facet_host,omitempty"`
	// Target is the graph type name an edge points to. Empty for scalars
	// and for edges without a typed target.
	Target string `json:"target,omitempty"`
}

// IsEdge reports if the predicate holds node references.
func (d *Definition) IsEdge() bool {
	return d.Kind == KindUID
}

// Normalize sorts and deduplicates the index tokenizers.
func (d *Definition) Normalize() {
	slices.SortFunc(d.Indexes, func(a, b Index) int {
		return indexOrder[a] - indexOrder[b]
	})
	d.Indexes = slices.Compact(d.Indexes)
}

// Validate checks the directive combination of the definition.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("predicate: missing name")
	}
	if strings.ContainsAny(d.Name, " \t\n|@~<>{}") {
		return fmt.Errorf("predicate %q: invalid character in name", d.Name)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("predicate %q: invalid scalar kind", d.Name)
	}
	allowed := Allowed(d.Kind)
	for _, idx := range d.Indexes {
		if !slices.Contains(allowed, idx) {
			return fmt.Errorf("predicate %q: index %q is not valid for type %s", d.Name, idx, d.Kind)
		}
	}
	if d.Lang && d.Kind != KindString {
		return fmt.Errorf("predicate %q: @lang requires a string predicate", d.Name)
	}
	if d.Reverse && d.Kind != KindUID {
		return fmt.Errorf("predicate %q: @reverse requires a uid predicate", d.Name)
	}
	if d.Upsert && len(d.Indexes) == 0 {
		return fmt.Errorf("predicate %q: @upsert requires an index", d.Name)
	}
	if d.Metric != "" && !slices.Contains(d.Indexes, HNSW) {
		return fmt.Errorf("predicate %q: metric requires the hnsw index", d.Name)
	}
	return nil
}

// Type returns the rendered store type, e.g. "string" or "[uid]".
func (d *Definition) Type() string {
	if d.List {
		return "[" + d.Kind.String() + "]"
	}
	return d.Kind.String()
}

// Render returns the schema declaration line of the predicate:
//
//	<name>: <type> [@index(...)] [@upsert] [@lang] [@reverse] [@count] .
func (d *Definition) Render() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteString(": ")
	b.WriteString(d.Type())
	if len(d.Indexes) > 0 {
		idx := make([]Index, len(d.Indexes))
		copy(idx, d.Indexes)
		slices.SortFunc(idx, func(a, b Index) int { return indexOrder[a] - indexOrder[b] })
		idx = slices.Compact(idx)
		tokens := make([]string, len(idx))
		for i, t := range idx {
			tokens[i] = string(t)
			if t == HNSW {
				metric := d.Metric
				if metric == "" {
					metric = Euclidean
				}
				tokens[i] = fmt.Sprintf("hnsw(metric:%q)", metric)
			}
		}
		b.WriteString(" @index(")
		b.WriteString(strings.Join(tokens, ", "))
		b.WriteString(")")
	}
	if d.Upsert {
		b.WriteString(" @upsert")
	}
	if d.Lang {
		b.WriteString(" @lang")
	}
	if d.Reverse {
		b.WriteString(" @reverse")
	}
	if d.Count || (d.Reverse && d.List) {
		b.WriteString(" @count")
	}
	b.WriteString(" .")
	return b.String()
}

// TypeField returns the entry of the predicate inside a type block.
// Inverse definitions render as <~name>; typed edges carry their target as
// a cross-reference hint, [Target] for lists.
func (d *Definition) TypeField() string {
	if d.Inverse {
		return "<~" + d.Name + ">"
	}
	if d.Kind == KindUID && d.Target != "" {
		if d.List {
			return d.Name + ": [" + d.Target + "]"
		}
		return d.Name + ": " + d.Target
	}
	return d.Name
}

// Equal reports if two definitions declare the same predicate. The edge
// target and facet hosting are not compared: neither is part of the
// predicate declaration.
func (d *Definition) Equal(o *Definition) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.Name == o.Name &&
		d.Kind == o.Kind &&
		d.List == o.List &&
		d.Upsert == o.Upsert &&
		d.Lang == o.Lang &&
		d.Reverse == o.Reverse &&
		d.Inverse == o.Inverse &&
		d.Render() == o.Render()
}

// Clone returns a deep copy of the definition.
func (d *Definition) Clone() *Definition {
	c := *d
	c.Indexes = slices.Clone(d.Indexes)
	return &c
}
