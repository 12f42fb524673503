package codec

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/facet"
	"github.com/syssam/velograph/geo"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/schema/predicate"
	"github.com/syssam/velograph/uid"
	"github.com/syssam/velograph/vector"
)

type nodeID struct {
	uid string
	t   reflect.Type
}

// decoder decodes one response. Nodes sharing a uid decode into a single
// entity pointer.
type decoder struct {
	c     *Codec
	nodes map[nodeID]reflect.Value
}

func newDecoder(c *Codec) *decoder {
	return &decoder{c: c, nodes: make(map[nodeID]reflect.Value)}
}

// node decodes a document into a value of type want: an entity struct, a
// pointer to one, or an interface implemented by mapped entities. into, if
// valid and of the entity type, is decoded in place.
func (d *decoder) node(doc Document, want reflect.Type, into reflect.Value) (reflect.Value, error) {
	base := want
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	var (
		cm  *registry.ClassMap
		err error
	)
	if base.Kind() == reflect.Interface {
		cm, err = d.c.reg.ResolveConcrete(base, stringList(doc[velograph.TypePredicate]))
	} else {
		cm, err = d.c.class(base)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	var id uid.UID
	if s, ok := doc[velograph.UIDPredicate].(string); ok {
		if id, err = uid.Parse(s); err != nil {
			return reflect.Value{}, fmt.Errorf("codec: decode %s: %w", cm.TypeName, err)
		}
	}
	var target reflect.Value
	key := nodeID{uid: id.String(), t: cm.Entity}
	if ptr, ok := d.nodes[key]; ok && !id.IsZero() {
		target = ptr.Elem()
	} else {
		if into.IsValid() && into.Type() == cm.Entity && into.CanAddr() {
			target = into
		} else {
			target = reflect.New(cm.Entity).Elem()
		}
		if !id.IsZero() {
			d.nodes[key] = target.Addr()
		}
	}
	if err := d.fields(doc, target, cm, id); err != nil {
		return reflect.Value{}, err
	}
	switch {
	case want.Kind() == reflect.Interface, want.Kind() == reflect.Pointer:
		return target.Addr(), nil
	default:
		return target, nil
	}
}

// fields decodes predicates first, then facets, so that facets can be
// attached to the values they annotate.
func (d *decoder) fields(doc Document, v reflect.Value, cm *registry.ClassMap, id uid.UID) error {
	if !id.IsZero() {
		v.FieldByIndex(cm.UID).Set(reflect.ValueOf(id))
	}
	if cm.DType != nil {
		if list := stringList(doc[velograph.TypePredicate]); list != nil {
			v.FieldByIndex(cm.DType).Set(reflect.ValueOf(list))
		}
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var facets []string
	for _, k := range keys {
		if k == velograph.UIDPredicate || k == velograph.TypePredicate {
			continue
		}
		if p, ok := cm.PropertyFor(k); ok {
			if err := d.property(v, p, doc[k]); err != nil {
				return propertyError(cm, p, err)
			}
			continue
		}
		if _, _, _, ok := facet.Split(k); ok {
			facets = append(facets, k)
		}
	}
	for _, k := range facets {
		d.facet(v, cm, k, doc[k])
	}
	return nil
}

func (d *decoder) property(v reflect.Value, p *registry.Property, raw any) error {
	if raw == nil || p.Predicate.Kind == predicate.KindPassword {
		return nil
	}
	fv := p.Field(v)
	switch {
	case p.Kind == registry.KindEdge:
		return d.edges(p, fv, raw, false)
	case p.Kind == registry.KindFacet && p.Inner == registry.KindEdge:
		return d.edges(p, fv, raw, true)
	case p.Kind == registry.KindFacet:
		return d.value(p, p.Inner, host(fv).FieldByName("Value"), raw)
	default:
		return d.value(p, p.Kind, fv, raw)
	}
}

func (d *decoder) value(p *registry.Property, kind registry.PropertyKind, fv reflect.Value, raw any) error {
	switch kind {
	case registry.KindScalar:
		x, err := decodeScalars(p, fv.Type(), raw)
		if err != nil {
			return err
		}
		fv.Set(x)
	case registry.KindGeometry:
		g, err := geo.Decode(raw)
		if err != nil {
			return err
		}
		return assign(fv, reflect.ValueOf(g))
	case registry.KindVector:
		vec, err := vector.FromAny(raw)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf([]float32(vec)).Convert(fv.Type()))
	default:
		return fmt.Errorf("unexpected property kind %s", kind)
	}
	return nil
}

// edges decodes an edge property. The store returns single edges either as
// an object or as a one-element list.
func (d *decoder) edges(p *registry.Property, fv reflect.Value, raw any, hosted bool) error {
	var items []any
	switch x := raw.(type) {
	case []any:
		items = x
	case map[string]any:
		items = []any{x}
	default:
		return fmt.Errorf("edge value is %T, not an object", raw)
	}
	if !p.List {
		if len(items) == 0 {
			return nil
		}
		x, err := d.edgeItem(p, fv.Type(), items[0], hosted)
		if err != nil {
			return err
		}
		fv.Set(x)
		return nil
	}
	out := reflect.MakeSlice(fv.Type(), 0, len(items))
	for _, item := range items {
		x, err := d.edgeItem(p, fv.Type().Elem(), item, hosted)
		if err != nil {
			return err
		}
		out = reflect.Append(out, x)
	}
	fv.Set(out)
	return nil
}

// edgeItem decodes one node of an edge into a value of type t: the edge
// element itself, or a facet.Value wrapping it when hosted.
func (d *decoder) edgeItem(p *registry.Property, t reflect.Type, raw any, hosted bool) (reflect.Value, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return reflect.Value{}, fmt.Errorf("edge element is %T, not an object", raw)
	}
	var facets facet.Facets
	if hosted {
		doc, facets = splitEdgeFacets(doc, p.Predicate.Name)
	}
	var x reflect.Value
	if p.Raw {
		s, _ := doc[velograph.UIDPredicate].(string)
		id, err := uid.Parse(s)
		if err != nil {
			return reflect.Value{}, err
		}
		x = reflect.New(p.Elem).Elem()
		if err := assign(x, reflect.ValueOf(id)); err != nil {
			return reflect.Value{}, err
		}
	} else {
		var err error
		if x, err = d.node(doc, p.Elem, reflect.Value{}); err != nil {
			return reflect.Value{}, err
		}
	}
	if !hosted {
		return x, nil
	}
	return wrapHost(t, x, facets), nil
}

// splitEdgeFacets moves the facets of an edge out of the child document.
func splitEdgeFacets(doc Document, pred string) (Document, facet.Facets) {
	prefix := pred + facet.Separator
	var (
		rest   = make(Document, len(doc))
		facets facet.Facets
	)
	for k, v := range doc {
		if name, ok := strings.CutPrefix(k, prefix); ok && name != "" {
			if facets == nil {
				facets = make(facet.Facets)
			}
			facets[name] = facet.DecodeValue(v)
			continue
		}
		rest[k] = v
	}
	return rest, facets
}

func wrapHost(t reflect.Type, x reflect.Value, facets facet.Facets) reflect.Value {
	ptr := t.Kind() == reflect.Pointer
	if ptr {
		t = t.Elem()
	}
	hv := reflect.New(t)
	hv.Elem().FieldByName("Value").Set(x)
	if facets != nil {
		hv.Elem().FieldByName("Facets").Set(reflect.ValueOf(facets))
	}
	if ptr {
		return hv
	}
	return hv.Elem()
}

// host returns the settable facet.Value of a facet host field, allocating
// it when the field is a nil pointer.
func host(fv reflect.Value) reflect.Value {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		return fv.Elem()
	}
	return fv
}

// facet attaches a "pred|name" or "pred@lang" field to its host property.
// Facets of unknown or non-facet predicates are kept as extension data.
func (d *decoder) facet(v reflect.Value, cm *registry.ClassMap, key string, raw any) {
	pred, name, localized, _ := facet.Split(key)
	p, ok := cm.PropertyFor(pred)
	if !ok || p.Kind != registry.KindFacet || p.Inner == registry.KindEdge {
		d.extra(v, cm, key, raw)
		return
	}
	hv := host(p.Field(v))
	field := "Facets"
	val := facet.DecodeValue(raw)
	if localized {
		field = "Localized"
		if s, ok := raw.(string); ok {
			val = s
		}
	}
	m := hv.FieldByName(field)
	if m.IsNil() {
		m.Set(reflect.ValueOf(make(facet.Facets)))
	}
	m.SetMapIndex(reflect.ValueOf(name), reflect.ValueOf(val))
}

func (d *decoder) extra(v reflect.Value, cm *registry.ClassMap, key string, raw any) {
	if cm.Extra == nil {
		d.c.log.Debug("codec: dropping facet without host", "type", cm.TypeName, "field", key)
		return
	}
	m := v.FieldByIndex(cm.Extra)
	if m.IsNil() {
		m.Set(reflect.MakeMap(m.Type()))
	}
	val := facet.DecodeValue(raw)
	if val == nil {
		return
	}
	m.SetMapIndex(reflect.ValueOf(key), reflect.ValueOf(val))
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return x
	case string:
		return []string{x}
	default:
		return nil
	}
}
