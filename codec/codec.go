// Package codec converts entities to and from the JSON documents of the
// store.
//
// A document is a JSON object keyed by predicate name. The identity lives
// under "uid" and the type list under "dgraph.type". Facets of scalar
// predicates sit next to the value they annotate under "pred|facet";
// localized values use "pred@lang". Facets of edges sit inside the child
// object, also under "pred|facet". Reverse navigations appear as "~pred"
// and are read-only.
//
// Encoding and decoding are pure functions of a frozen registry and are
// safe for concurrent use.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/uid"
)

// Document is a decoded store document.
type Document = map[string]any

// Codec encodes and decodes entities of one registry.
type Codec struct {
	reg *registry.Context
	log *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithLogger sets the logger used to report retained extension data.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a codec over a frozen registry.
func New(reg *registry.Context, opts ...Option) *Codec {
	c := &Codec{reg: reg, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry of the codec.
func (c *Codec) Registry() *registry.Context {
	return c.reg
}

// Encoded is the result of encoding an entity graph.
type Encoded struct {
	// Doc is the document of the root entity.
	Doc Document
	// Docs holds one document per encoded entity, in argument order.
	Docs []Document
	// refs maps blank tokens to the entities they were minted for.
	refs map[string]reflect.Value
}

// Blanks returns the blank-node tokens minted for unsaved entities,
// sorted.
func (e *Encoded) Blanks() []string {
	tokens := make([]string, 0, len(e.refs))
	for t := range e.refs {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// AssignUIDs writes the uids assigned by the store back into the unsaved
// entities. The map is keyed by blank token, without the "_:" prefix, as
// returned in mutation responses.
func (e *Encoded) AssignUIDs(assigned map[string]string) error {
	for token, v := range e.refs {
		s, ok := assigned[token]
		if !ok {
			continue
		}
		u, err := uid.Parse(s)
		if err != nil {
			return fmt.Errorf("codec: assigned uid for %s: %w", token, err)
		}
		v.Set(reflect.ValueOf(u))
	}
	return nil
}

// Marshal encodes an entity into JSON.
func (c *Codec) Marshal(entity any) ([]byte, error) {
	enc, err := c.Encode(entity)
	if err != nil {
		return nil, err
	}
	return json.Marshal(enc.Doc)
}

// Unmarshal decodes JSON into dst. A JSON object decodes into a pointer to
// an entity, a JSON array into a pointer to a slice of entities.
func (c *Codec) Unmarshal(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	switch x := v.(type) {
	case map[string]any:
		return c.Decode(x, dst)
	case []any:
		return c.DecodeList(x, dst)
	case nil:
		return nil
	default:
		return fmt.Errorf("codec: cannot decode %T into an entity", v)
	}
}

// Decode decodes a document into dst, a pointer to an entity struct or to
// an interface implemented by mapped entities.
func (c *Codec) Decode(doc Document, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("codec: decode requires a non-nil pointer, got %T", dst)
	}
	d := newDecoder(c)
	out, err := d.node(doc, rv.Elem().Type(), rv.Elem())
	if err != nil {
		return err
	}
	rv.Elem().Set(out)
	return nil
}

// DecodeList decodes a list of documents into dst, a pointer to a slice of
// entities or entity pointers. Nodes sharing a uid across the list decode
// into the same pointer.
func (c *Codec) DecodeList(docs []any, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("codec: decode list requires a pointer to a slice, got %T", dst)
	}
	d := newDecoder(c)
	slice := rv.Elem()
	elem := slice.Type().Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(docs))
	for _, x := range docs {
		doc, ok := x.(map[string]any)
		if !ok {
			return fmt.Errorf("codec: list element is %T, not an object", x)
		}
		v, err := d.node(doc, elem, reflect.Value{})
		if err != nil {
			return err
		}
		out = reflect.Append(out, v)
	}
	slice.Set(out)
	return nil
}

func (c *Codec) class(t reflect.Type) (*registry.ClassMap, error) {
	cm, err := c.reg.Resolve(t)
	if err != nil {
		return nil, err
	}
	return cm, nil
}

func propertyError(cm *registry.ClassMap, p *registry.Property, err error) error {
	return velograph.NewMappingError(cm.TypeName, p.Name, "", err)
}
