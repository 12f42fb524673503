package codec

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/paulmach/orb"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/facet"
	"github.com/syssam/velograph/geo"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/schema/predicate"
	"github.com/syssam/velograph/uid"
	"github.com/syssam/velograph/vector"
)

// Encode encodes an entity and the entities it references into one nested
// document. Entities without a uid are given a blank-node reference; pass a
// pointer to have Encoded.AssignUIDs update them after the mutation.
// Entities reached twice, including through cycles, are written once and
// referenced by uid and type list afterwards.
func (c *Codec) Encode(entity any) (*Encoded, error) {
	return c.EncodeAll(entity)
}

// EncodeAll encodes several entities in one pass, one document each.
// Entities reachable from more than one of them share their blank-node
// reference and are written once. Doc holds the first document.
func (c *Codec) EncodeAll(entities ...any) (*Encoded, error) {
	e := &encoder{
		c:    c,
		refs: make(map[string]reflect.Value),
		seen: make(map[nodeKey]Document),
	}
	out := &Encoded{Docs: make([]Document, 0, len(entities)), refs: e.refs}
	for _, entity := range entities {
		rv, err := root(entity)
		if err != nil {
			return nil, err
		}
		doc, err := e.entity(rv)
		if err != nil {
			return nil, err
		}
		out.Docs = append(out.Docs, doc)
	}
	if len(out.Docs) > 0 {
		out.Doc = out.Docs[0]
	}
	return out, nil
}

// root returns the addressable struct value of an entity. Values are
// copied, so their uids are not written back.
func root(entity any) (reflect.Value, error) {
	rv := reflect.ValueOf(entity)
	if !rv.IsValid() {
		return reflect.Value{}, fmt.Errorf("codec: encode nil entity")
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("codec: encode nil %s", rv.Type())
		}
		return rv.Elem(), nil
	}
	cp := reflect.New(rv.Type()).Elem()
	cp.Set(rv)
	return cp, nil
}

type nodeKey struct {
	t reflect.Type
	p uintptr
}

type encoder struct {
	c    *Codec
	refs map[string]reflect.Value
	seen map[nodeKey]Document
}

func (e *encoder) entity(v reflect.Value) (Document, error) {
	cm, err := e.c.class(v.Type())
	if err != nil {
		return nil, err
	}
	var key nodeKey
	if v.CanAddr() {
		key = nodeKey{t: v.Type(), p: v.Addr().Pointer()}
		if ref, ok := e.seen[key]; ok {
			return Document{
				velograph.UIDPredicate:  ref[velograph.UIDPredicate],
				velograph.TypePredicate: ref[velograph.TypePredicate],
			}, nil
		}
	}
	idField := v.FieldByIndex(cm.UID)
	id := idField.Interface().(uid.UID)
	if id.IsZero() {
		id = uid.NewBlank()
	}
	if id.IsBlank() && idField.CanSet() {
		e.refs[id.Token()] = idField
	}
	doc := Document{
		velograph.UIDPredicate:  id.String(),
		velograph.TypePredicate: types(v, cm),
	}
	if key.p != 0 {
		e.seen[key] = doc
	}
	for _, p := range cm.Properties {
		if err := e.property(doc, v, p); err != nil {
			return nil, propertyError(cm, p, err)
		}
	}
	return doc, nil
}

// types returns the type list of an entity, always including its own graph
// type.
func types(v reflect.Value, cm *registry.ClassMap) []string {
	var list []string
	if cm.DType != nil {
		list = slices.Clone(v.FieldByIndex(cm.DType).Interface().([]string))
	}
	if !slices.Contains(list, cm.TypeName) {
		list = append(list, cm.TypeName)
	}
	return list
}

func (e *encoder) property(doc Document, v reflect.Value, p *registry.Property) error {
	fv := p.Field(v)
	if p.Kind == registry.KindFacet {
		return e.facetHost(doc, p, fv)
	}
	if p.Predicate.Inverse {
		return nil
	}
	val, ok, err := e.value(p, p.Kind, fv)
	if err != nil || !ok {
		return err
	}
	doc[p.Predicate.Name] = val
	return nil
}

// value encodes one property value of the given kind. It reports false
// when the value is absent and must be omitted.
func (e *encoder) value(p *registry.Property, kind registry.PropertyKind, fv reflect.Value) (any, bool, error) {
	switch kind {
	case registry.KindScalar:
		return scalar(p, fv)
	case registry.KindGeometry:
		return geometry(fv)
	case registry.KindVector:
		if fv.Len() == 0 {
			return nil, false, nil
		}
		vec := fv.Convert(reflect.TypeFor[[]float32]()).Interface().([]float32)
		return vector.Encode(vec), true, nil
	case registry.KindEdge:
		if !p.List {
			return e.edge(p, fv)
		}
		if fv.Len() == 0 {
			return nil, false, nil
		}
		list := make([]any, 0, fv.Len())
		for i := range fv.Len() {
			child, ok, err := e.edge(p, fv.Index(i))
			if err != nil {
				return nil, false, err
			}
			if ok {
				list = append(list, child)
			}
		}
		return list, len(list) > 0, nil
	default:
		return nil, false, fmt.Errorf("unexpected property kind %s", kind)
	}
}

func scalar(p *registry.Property, fv reflect.Value) (any, bool, error) {
	kind := p.Predicate.Kind
	if !p.List {
		return encodeScalar(kind, fv)
	}
	if fv.Len() == 0 {
		return nil, false, nil
	}
	list := make([]any, 0, fv.Len())
	for i := range fv.Len() {
		x, ok, err := encodeScalar(kind, fv.Index(i))
		if err != nil {
			return nil, false, err
		}
		if ok {
			list = append(list, x)
		}
	}
	return list, len(list) > 0, nil
}

func geometry(fv reflect.Value) (any, bool, error) {
	fv, ok := deref(fv)
	if !ok {
		return nil, false, nil
	}
	g, ok := fv.Interface().(orb.Geometry)
	if !ok {
		return nil, false, fmt.Errorf("%s is not a geometry", fv.Type())
	}
	enc, err := geo.Encode(g)
	if err != nil {
		return nil, false, err
	}
	return enc, true, nil
}

// edge encodes one referenced node: a nested document for entities, a uid
// reference for raw uid values.
func (e *encoder) edge(p *registry.Property, fv reflect.Value) (any, bool, error) {
	fv, ok := deref(fv)
	if !ok {
		return nil, false, nil
	}
	if p.Raw {
		id := fv.Interface().(uid.UID)
		if id.IsZero() {
			return nil, false, nil
		}
		return Document{velograph.UIDPredicate: id.String()}, true, nil
	}
	if fv.Kind() != reflect.Struct {
		return nil, false, fmt.Errorf("edge value %s is not an entity", fv.Type())
	}
	doc, err := e.entity(fv)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (e *encoder) facetHost(doc Document, p *registry.Property, fv reflect.Value) error {
	name := p.Predicate.Name
	if p.List {
		if fv.Len() == 0 {
			return nil
		}
		list := make([]any, 0, fv.Len())
		for i := range fv.Len() {
			child, ok, err := e.facetEdge(p, fv.Index(i))
			if err != nil {
				return err
			}
			if ok {
				list = append(list, child)
			}
		}
		if len(list) > 0 {
			doc[name] = list
		}
		return nil
	}
	hv, ok := deref(fv)
	if !ok {
		return nil
	}
	if p.Inner == registry.KindEdge {
		child, ok, err := e.facetEdge(p, hv)
		if ok {
			doc[name] = child
		}
		return err
	}
	val, ok, err := e.value(p, p.Inner, hv.FieldByName("Value"))
	if err != nil || !ok {
		return err
	}
	doc[name] = val
	if err := putFacets(doc, name, facetsOf(hv)); err != nil {
		return err
	}
	return putLocalized(doc, name, p.Predicate.Kind, hv.FieldByName("Localized").Interface().(facet.Facets))
}

// facetEdge encodes the node of a facet.Value edge with its facets inside
// the child document.
func (e *encoder) facetEdge(p *registry.Property, hv reflect.Value) (any, bool, error) {
	hv, ok := deref(hv)
	if !ok {
		return nil, false, nil
	}
	child, ok, err := e.edge(p, hv.FieldByName("Value"))
	if err != nil || !ok {
		return nil, false, err
	}
	doc := child.(Document)
	if err := putFacets(doc, p.Predicate.Name, facetsOf(hv)); err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func facetsOf(hv reflect.Value) facet.Facets {
	return hv.FieldByName("Facets").Interface().(facet.Facets)
}

func putFacets(doc Document, pred string, facets facet.Facets) error {
	for _, k := range facets.Keys() {
		if facets[k] == nil {
			continue
		}
		v, err := facet.EncodeValue(facets[k])
		if err != nil {
			return fmt.Errorf("facet %q: %w", k, err)
		}
		if v != nil {
			doc[facet.Key(pred, k)] = v
		}
	}
	return nil
}

func putLocalized(doc Document, pred string, kind predicate.Kind, values facet.Facets) error {
	for _, lang := range values.Keys() {
		if values[lang] == nil {
			continue
		}
		tag, err := facet.CanonicalLang(lang)
		if err != nil {
			return err
		}
		v, err := facet.EncodeValue(values[lang])
		if err != nil {
			return fmt.Errorf("localized %s value %q: %w", kind, lang, err)
		}
		doc[facet.LangKey(pred, tag)] = v
	}
	return nil
}

// deref follows pointers and interfaces. It reports false for nil values.
func deref(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, true
}
