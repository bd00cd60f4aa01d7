package bom

import (
	"slices"
)

// DependencyEdge lists the outgoing relations of one component. DependsOn and
// Provides are sets kept in insertion order.
type DependencyEdge struct {
	Ref       string   `json:"ref" bson:"ref"`
	DependsOn []string `json:"dependsOn" bson:"depends_on"`
	Provides  []string `json:"provides,omitempty" bson:"provides,omitempty"`
}

// Clone returns a deep copy of e.
func (e *DependencyEdge) Clone() *DependencyEdge {
	if e == nil {
		return nil
	}
	return &DependencyEdge{
		Ref:       e.Ref,
		DependsOn: cloneSlice(e.DependsOn),
		Provides:  cloneSlice(e.Provides),
	}
}

// Graph is an assembled dependency graph. Components are unique by BomRef
// and edges are unique by Ref. Parent, when set, describes the project root
// and is not repeated in Components.
type Graph struct {
	Parent       *Component        `json:"parent,omitempty" bson:"parent,omitempty"`
	Components   []*Component      `json:"components" bson:"components"`
	Dependencies []*DependencyEdge `json:"dependencies" bson:"dependencies"`
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Component returns the component with the given ref, including the parent.
func (g *Graph) Component(ref string) *Component {
	if g.Parent != nil && g.Parent.BomRef == ref {
		return g.Parent
	}
	for _, c := range g.Components {
		if c.BomRef == ref {
			return c
		}
	}
	return nil
}

// Edge returns the edge whose Ref is ref.
func (g *Graph) Edge(ref string) *DependencyEdge {
	for _, e := range g.Dependencies {
		if e.Ref == ref {
			return e
		}
	}
	return nil
}

// Index maps every known ref, including the parent's, to its component.
func (g *Graph) Index() map[string]*Component {
	idx := make(map[string]*Component, len(g.Components)+1)
	for _, c := range g.Components {
		if _, ok := idx[c.BomRef]; !ok {
			idx[c.BomRef] = c
		}
	}
	if g.Parent != nil && g.Parent.BomRef != "" {
		if _, ok := idx[g.Parent.BomRef]; !ok {
			idx[g.Parent.BomRef] = g.Parent
		}
	}
	return idx
}

// Refs returns the sorted component refs, excluding the parent.
func (g *Graph) Refs() []string {
	refs := make([]string, 0, len(g.Components))
	for _, c := range g.Components {
		refs = append(refs, c.BomRef)
	}
	slices.Sort(refs)
	return slices.Compact(refs)
}

// IsEmpty reports whether g has no parent, components or edges.
func (g *Graph) IsEmpty() bool {
	return g == nil || (g.Parent == nil && len(g.Components) == 0 && len(g.Dependencies) == 0)
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{Parent: g.Parent.Clone()}
	if len(g.Components) > 0 {
		out.Components = make([]*Component, len(g.Components))
		for i, c := range g.Components {
			out.Components[i] = c.Clone()
		}
	}
	if len(g.Dependencies) > 0 {
		out.Dependencies = make([]*DependencyEdge, len(g.Dependencies))
		for i, e := range g.Dependencies {
			out.Dependencies[i] = e.Clone()
		}
	}
	return out
}
