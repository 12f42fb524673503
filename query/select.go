package query

import (
	"reflect"
	"strings"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/schema/predicate"
)

// selection is one line of a selection set and its nested set.
type selection struct {
	line     string
	children []selection
}

func (s selection) write(w *strings.Builder, indent int) {
	for _, c := range s.children {
		pad := strings.Repeat("  ", indent)
		if c.children == nil {
			w.WriteString(pad + c.line + "\n")
			continue
		}
		w.WriteString(pad + c.line + " {\n")
		c.write(w, indent+1)
		w.WriteString(pad + "}\n")
	}
}

var identity = []selection{
	{line: velograph.UIDPredicate},
	{line: velograph.TypePredicate},
}

func (b *Builder) selection() (selection, error) {
	if len(b.selects) == 0 {
		return b.class(b.cm, b.depth), nil
	}
	s := selection{children: append([]selection{}, identity...)}
	for _, name := range b.selects {
		p, ok := b.cm.Property(name)
		if !ok {
			p, ok = b.cm.PropertyFor(name)
		}
		if !ok {
			return selection{}, velograph.NewMappingError(b.cm.TypeName, name, "no such property", nil)
		}
		s.children = append(s.children, b.property(p, b.depth)...)
	}
	return s, nil
}

// class selects the identity and every readable property of a class.
func (b *Builder) class(cm *registry.ClassMap, depth int) selection {
	s := selection{children: append([]selection{}, identity...)}
	for _, p := range cm.Properties {
		s.children = append(s.children, b.property(p, depth)...)
	}
	return s
}

func (b *Builder) property(p *registry.Property, depth int) []selection {
	def := p.Predicate
	if def.Kind == predicate.KindPassword {
		return nil
	}
	kind := p.Kind
	facets := kind == registry.KindFacet
	if facets {
		kind = p.Inner
	}
	if kind != registry.KindEdge {
		var out []selection
		switch {
		case facets:
			out = append(out, selection{line: def.Name + " @facets"})
			if def.Lang {
				out = append(out, selection{line: def.Name + "@*"})
			}
		case def.Lang:
			out = append(out, selection{line: def.Name + "@*"})
		default:
			out = append(out, selection{line: def.Name})
		}
		return out
	}
	line := p.Key()
	if facets {
		line += " @facets"
	}
	return []selection{{line: line, children: b.edge(p, depth)}}
}

func (b *Builder) edge(p *registry.Property, depth int) []selection {
	switch {
	case p.Raw:
		return []selection{{line: velograph.UIDPredicate}}
	case depth <= 0:
		return append([]selection{}, identity...)
	case p.Target == nil || p.Target.Kind() == reflect.Interface:
		return append(append([]selection{}, identity...), selection{line: "expand(_all_)"})
	}
	cm, err := b.reg.Resolve(p.Target)
	if err != nil {
		return append([]selection{}, identity...)
	}
	return b.class(cm, depth-1).children
}
