package registry

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-openapi/inflect"
	"github.com/paulmach/orb"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/facet"
	"github.com/syssam/velograph/schema/predicate"
	"github.com/syssam/velograph/uid"
)

var (
	uidType      = reflect.TypeFor[uid.UID]()
	timeType     = reflect.TypeFor[time.Time]()
	hostType     = reflect.TypeFor[facet.Host]()
	geometryType = reflect.TypeFor[orb.Geometry]()
	stringsType  = reflect.TypeFor[[]string]()
	extraType    = reflect.TypeFor[map[string]any]()
)

// Default names of the reserved entity fields.
const (
	DefaultUIDField   = "UID"
	DefaultTypeField  = "DType"
	DefaultExtraField = "Extra"
)

// PropertyName returns the default Go field name of a predicate:
// "works_for" maps to "WorksFor" and "person.name" to "PersonName".
func PropertyName(predicateName string) string {
	return inflect.Camelize(strings.ReplaceAll(predicateName, ".", "_"))
}

// PredicateName returns the default predicate name of a Go field name:
// "WorksFor" maps to "works_for".
func PredicateName(property string) string {
	return inflect.Underscore(property)
}

// NewClassMap loads the declaration of an entity and binds every predicate
// to a field of the entity struct. Edge targets stay unresolved until the
// class map is frozen in a Context.
func NewClassMap(entity any, decl velograph.Interface) (*ClassMap, error) {
	if entity == nil || decl == nil {
		return nil, velograph.NewMappingError("", "", "nil entity or declaration", nil)
	}
	et := indirect(reflect.TypeOf(entity))
	if et.Kind() != reflect.Struct {
		return nil, velograph.NewMappingError(et.String(), "", "entity must be a struct", nil)
	}
	cfg := decl.Config()
	cm := &ClassMap{
		Entity:   et,
		Decl:     indirect(reflect.TypeOf(decl)),
		TypeName: cfg.Type,
	}
	if cm.TypeName == "" {
		cm.TypeName = et.Name()
	}
	if err := cm.loadReserved(cfg); err != nil {
		return nil, err
	}
	var (
		fields []velograph.Field
		edges  []velograph.Edge
	)
	for _, m := range decl.Mixin() {
		fields = append(fields, m.Fields()...)
		edges = append(edges, m.Edges()...)
	}
	fields = append(fields, decl.Fields()...)
	edges = append(edges, decl.Edges()...)
	for _, f := range fields {
		fd := f.Descriptor()
		if fd.Err != nil {
			return nil, velograph.NewMappingError(cm.TypeName, fd.Property, "invalid field", fd.Err)
		}
		def := fd.Predicate.Clone()
		name := fd.Property
		if name == "" {
			name = PropertyName(def.Name)
		}
		if err := cm.bind(name, def, nil); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		ed := e.Descriptor()
		if ed.Err != nil {
			return nil, velograph.NewMappingError(cm.TypeName, ed.Property, "invalid edge", ed.Err)
		}
		def := ed.Predicate.Clone()
		name := ed.Property
		if name == "" {
			name = PropertyName(ed.Name)
		}
		if err := cm.bind(name, def, ed.Type); err != nil {
			return nil, err
		}
	}
	cm.index()
	return cm, nil
}

func (c *ClassMap) loadReserved(cfg velograph.Config) error {
	name := cfg.UIDField
	if name == "" {
		name = DefaultUIDField
	}
	sf, ok := c.Entity.FieldByName(name)
	if !ok || sf.Type != uidType {
		return velograph.NewMappingError(c.TypeName, name, "entity must have a uid.UID identity field", nil)
	}
	c.UID = sf.Index
	name = cfg.TypeField
	if name == "" {
		name = DefaultTypeField
	}
	if sf, ok := c.Entity.FieldByName(name); ok {
		if sf.Type != stringsType {
			return velograph.NewMappingError(c.TypeName, name, "type-list field must be []string", nil)
		}
		c.DType = sf.Index
	} else if cfg.TypeField != "" {
		return velograph.NewMappingError(c.TypeName, name, "type-list field not found", nil)
	}
	name = cfg.ExtraField
	if name == "" {
		name = DefaultExtraField
	}
	if sf, ok := c.Entity.FieldByName(name); ok {
		if !sf.Type.ConvertibleTo(extraType) || sf.Type.Kind() != reflect.Map {
			return velograph.NewMappingError(c.TypeName, name, "extension field must be map[string]any", nil)
		}
		c.Extra = sf.Index
	} else if cfg.ExtraField != "" {
		return velograph.NewMappingError(c.TypeName, name, "extension field not found", nil)
	}
	return nil
}

func (c *ClassMap) bind(name string, def *predicate.Definition, target reflect.Type) error {
	if def.Name == velograph.UIDPredicate || def.Name == velograph.TypePredicate {
		return velograph.NewMappingError(c.TypeName, name, fmt.Sprintf("predicate %q is reserved", def.Name), nil)
	}
	for _, p := range c.Properties {
		if p.Name == name {
			return velograph.NewMappingError(c.TypeName, name, "property mapped twice", nil)
		}
		if p.Key() == key(def) {
			return velograph.NewMappingError(c.TypeName, name, fmt.Sprintf("predicate %q declared twice", def.Name), nil)
		}
	}
	sf, ok := c.Entity.FieldByName(name)
	if !ok {
		return velograph.NewMappingError(c.TypeName, name, "no such struct field", nil)
	}
	if !sf.IsExported() {
		return velograph.NewMappingError(c.TypeName, name, "struct field is not exported", nil)
	}
	if err := c.checkPath(sf.Index); err != nil {
		return velograph.NewMappingError(c.TypeName, name, err.Error(), nil)
	}
	p := &Property{
		Name:       name,
		Index:      sf.Index,
		Predicate:  def,
		Type:       sf.Type,
		targetDecl: target,
	}
	if err := classify(p); err != nil {
		return velograph.NewMappingError(c.TypeName, name, "", err)
	}
	c.Properties = append(c.Properties, p)
	c.Predicates = append(c.Predicates, def)
	return nil
}

// checkPath rejects fields promoted through embedded pointers, which
// cannot be set without allocating on the caller's behalf.
func (c *ClassMap) checkPath(index []int) error {
	t := c.Entity
	for _, i := range index[:len(index)-1] {
		t = t.Field(i).Type
		if t.Kind() == reflect.Pointer {
			return fmt.Errorf("field promoted through embedded pointer")
		}
	}
	return nil
}

func key(def *predicate.Definition) string {
	if def.Inverse {
		return "~" + def.Name
	}
	return def.Name
}

// classify resolves the shape of a property from its predicate and Go type.
func classify(p *Property) error {
	def := p.Predicate
	t := p.Type
	host := false
	switch {
	case t.Implements(hostType):
		if def.List {
			return fmt.Errorf("list predicate %q carries facets per element; use a slice of facet.Value", def.Name)
		}
		host = true
		t = hostValue(t)
	case t.Kind() == reflect.Slice && t.Elem().Implements(hostType):
		if !def.IsEdge() || !def.List {
			return fmt.Errorf("lists of facet hosts are only supported for list edges")
		}
		host = true
		p.List = true
		t = hostValue(t.Elem())
	}
	if def.FacetHost && !host {
		return fmt.Errorf("predicate %q declares facets but %s is not a facet.Value", def.Name, p.Type)
	}
	if host {
		def.FacetHost = true
		if def.Inverse {
			return fmt.Errorf("reverse navigations cannot carry facets")
		}
	}
	inner, err := classifyValue(p, t)
	if err != nil {
		return err
	}
	if host {
		p.Kind, p.Inner = KindFacet, inner
	} else {
		p.Kind = inner
	}
	return nil
}

func classifyValue(p *Property, t reflect.Type) (PropertyKind, error) {
	def := p.Predicate
	if def.Kind == predicate.KindVector {
		if t.Kind() != reflect.Slice || t.Elem().Kind() != reflect.Float32 {
			return 0, fmt.Errorf("float32vector predicate %q requires []float32, got %s", def.Name, t)
		}
		p.Elem = t
		return KindVector, nil
	}
	if t.Kind() == reflect.Slice && !p.List {
		p.List = true
		t = t.Elem()
	}
	if p.List != def.List {
		if def.List {
			return 0, fmt.Errorf("list predicate %q requires a slice, got %s", def.Name, p.Type)
		}
		return 0, fmt.Errorf("predicate %q is not a list, got %s", def.Name, p.Type)
	}
	p.Elem = t
	base := indirect(t)
	switch def.Kind {
	case predicate.KindUID:
		switch {
		case base == uidType:
			if def.Inverse {
				return 0, fmt.Errorf("reverse navigation %q must hold entities", def.Name)
			}
			p.Raw = true
		case base.Kind() == reflect.Struct, base.Kind() == reflect.Interface:
			p.Target = base
			if p.targetDecl == nil {
				return 0, fmt.Errorf("uid predicate %q holds entities; declare it with the edge package", def.Name)
			}
		default:
			return 0, fmt.Errorf("uid predicate %q cannot hold %s", def.Name, t)
		}
		return KindEdge, nil
	case predicate.KindGeo:
		if !base.Implements(geometryType) && base != geometryType {
			return 0, fmt.Errorf("geo predicate %q requires an orb.Geometry, got %s", def.Name, t)
		}
		return KindGeometry, nil
	case predicate.KindString, predicate.KindPassword:
		if base.Kind() != reflect.String {
			return 0, fmt.Errorf("%s predicate %q requires a string, got %s", def.Kind, def.Name, t)
		}
	case predicate.KindInt:
		switch base.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		default:
			return 0, fmt.Errorf("int predicate %q requires an integer, got %s", def.Name, t)
		}
	case predicate.KindFloat:
		if base.Kind() != reflect.Float32 && base.Kind() != reflect.Float64 {
			return 0, fmt.Errorf("float predicate %q requires a float, got %s", def.Name, t)
		}
	case predicate.KindBool:
		if base.Kind() != reflect.Bool {
			return 0, fmt.Errorf("bool predicate %q requires a bool, got %s", def.Name, t)
		}
	case predicate.KindDateTime:
		if base != timeType {
			return 0, fmt.Errorf("datetime predicate %q requires a time.Time, got %s", def.Name, t)
		}
	case predicate.KindDefault:
	}
	return KindScalar, nil
}

// hostValue returns the type of the Value field of a facet.Value.
func hostValue(t reflect.Type) reflect.Type {
	sf, _ := indirect(t).FieldByName("Value")
	return sf.Type
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
