// Package assemble merges per-manifest dependency graphs into one graph
// scoped to a project root.
//
// Inputs are ordered by manifest depth relative to the project root and then
// by path, so the result does not depend on the order in which extractions
// completed. The parent of the shallowest input that has one becomes the
// parent of the merged graph. Components are merged on bom-ref with
// [normalize.Merge] and dependency lists sharing a ref are unioned.
//
// Assemble must be called once, after every contributing extraction has
// finished. It does not mutate its inputs.
package assemble

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/normalize"
)

// Defaults for the partial-tree heuristic.
const (
	DefaultPartialThreshold     = 0.5
	DefaultPartialMinComponents = 25
)

// Config holds the options that change assembly.
type Config struct {
	// PartialThreshold is the fraction of edges with an empty dependsOn above
	// which a graph is reported as a likely partial tree.
	PartialThreshold float64
	// PartialMinComponents is the component count below which the partial
	// heuristic is not applied.
	PartialMinComponents int
	// LinkSubprojects makes the merged parent depend on the parents of every
	// other input.
	LinkSubprojects bool
}

// DefaultConfig returns the default assembly options.
func DefaultConfig() Config {
	return Config{
		PartialThreshold:     DefaultPartialThreshold,
		PartialMinComponents: DefaultPartialMinComponents,
	}
}

func (c Config) withDefaults() Config {
	if c.PartialThreshold <= 0 {
		c.PartialThreshold = DefaultPartialThreshold
	}
	if c.PartialMinComponents <= 0 {
		c.PartialMinComponents = DefaultPartialMinComponents
	}
	return c
}

// Input is one per-manifest graph and the path of the manifest it came from.
type Input struct {
	Path  string
	Graph *bom.Graph
}

// Report describes the assembled graph.
type Report struct {
	// Root is the path of the input whose parent became the merged parent.
	Root string
	// Partial is set when the graph looks like an incomplete extraction.
	Partial    bool
	Edges      int
	EmptyEdges int
	// Orphans are components that no edge mentions.
	Orphans  []string
	Warnings []string
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Assemble merges inputs into one graph. Inputs with a nil graph, such as
// those of failed extractions, contribute nothing.
func Assemble(inputs []Input, projectRoot string, cfg Config) (*bom.Graph, Report) {
	cfg = cfg.withDefaults()
	ordered := Order(inputs, projectRoot)

	var (
		rep    Report
		out    = bom.NewGraph()
		comps  = make(map[string]*bom.Component)
		edges  = make(map[string]int)
		on     []*bom.RefSet
		prov   []*bom.RefSet
		others []string
	)

	for _, in := range ordered {
		if in.Graph != nil && in.Graph.Parent != nil {
			out.Parent = in.Graph.Parent.Clone()
			rep.Root = in.Path
			break
		}
	}

	addComponent := func(c *bom.Component) {
		if c == nil || c.BomRef == "" {
			return
		}
		if out.Parent != nil && c.BomRef == out.Parent.BomRef {
			normalize.Merge(out.Parent, c)
			return
		}
		if existing, ok := comps[c.BomRef]; ok {
			normalize.Merge(existing, c)
			return
		}
		clone := c.Clone()
		comps[c.BomRef] = clone
		out.Components = append(out.Components, clone)
	}

	edgeIndex := func(ref string) int {
		i, ok := edges[ref]
		if !ok {
			i = len(out.Dependencies)
			edges[ref] = i
			out.Dependencies = append(out.Dependencies, &bom.DependencyEdge{Ref: ref})
			on = append(on, bom.NewRefSet())
			prov = append(prov, bom.NewRefSet())
		}
		return i
	}

	for _, in := range ordered {
		g := in.Graph
		if g.IsEmpty() {
			continue
		}
		if g.Parent != nil && out.Parent != nil && g.Parent.BomRef != out.Parent.BomRef {
			others = append(others, g.Parent.BomRef)
		}
		addComponent(g.Parent)
		for _, c := range g.Components {
			addComponent(c)
		}
		for _, e := range g.Dependencies {
			if e == nil || e.Ref == "" {
				continue
			}
			i := edgeIndex(e.Ref)
			on[i].Add(e.DependsOn...)
			prov[i].Add(e.Provides...)
		}
	}

	if cfg.LinkSubprojects && out.Parent != nil && len(others) > 0 {
		on[edgeIndex(out.Parent.BomRef)].Add(others...)
	}

	for i, e := range out.Dependencies {
		e.DependsOn = on[i].Slice()
		e.Provides = prov[i].Slice()
	}

	inspect(out, cfg, &rep)
	return out, rep
}

// inspect fills the structural findings of rep.
func inspect(g *bom.Graph, cfg Config, rep *Report) {
	mentioned := make(map[string]bool)
	for _, e := range g.Dependencies {
		rep.Edges++
		if len(e.DependsOn) == 0 {
			rep.EmptyEdges++
		}
		mentioned[e.Ref] = true
		for _, r := range e.DependsOn {
			mentioned[r] = true
		}
		for _, r := range e.Provides {
			mentioned[r] = true
		}
	}

	for _, c := range g.Components {
		if !mentioned[c.BomRef] {
			rep.Orphans = append(rep.Orphans, c.BomRef)
		}
	}
	if len(rep.Orphans) > 0 && len(g.Dependencies) > 0 {
		rep.warnf("%d component(s) are not mentioned by any dependency edge", len(rep.Orphans))
	}

	rep.Partial = IsPartial(len(g.Components), rep.Edges, rep.EmptyEdges, cfg)
	if rep.Partial {
		rep.warnf("likely partial dependency tree: %d of %d edges have no dependencies across %d components",
			rep.EmptyEdges, rep.Edges, len(g.Components))
	}
}

// IsPartial applies the partial-tree heuristic: the graph has at least
// cfg.PartialMinComponents components and more than cfg.PartialThreshold of
// its edges are empty. Leaf-only projects of that size are reported too.
func IsPartial(components, edges, emptyEdges int, cfg Config) bool {
	cfg = cfg.withDefaults()
	if edges == 0 || components < cfg.PartialMinComponents {
		return false
	}
	return float64(emptyEdges)/float64(edges) > cfg.PartialThreshold
}

// Order returns a copy of inputs sorted by manifest depth relative to
// projectRoot and then by path.
func Order(inputs []Input, projectRoot string) []Input {
	out := slices.Clone(inputs)
	slices.SortStableFunc(out, func(a, b Input) int {
		return compare(a.Path, b.Path, projectRoot)
	})
	return out
}

// SelectRoot returns the path that wins root selection among paths, or ""
// when paths is empty.
func SelectRoot(paths []string, projectRoot string) string {
	if len(paths) == 0 {
		return ""
	}
	return slices.MinFunc(paths, func(a, b string) int {
		return compare(a, b, projectRoot)
	})
}

func compare(a, b, projectRoot string) int {
	ra, rb := rel(a, projectRoot), rel(b, projectRoot)
	if c := cmp.Compare(Depth(ra), Depth(rb)); c != 0 {
		return c
	}
	return strings.Compare(ra, rb)
}

// Depth returns the number of directories between the project root and the
// manifest at the slash-separated relative path p.
func Depth(p string) int {
	if p == "" {
		return 0
	}
	return strings.Count(p, "/")
}

func rel(p, projectRoot string) string {
	if projectRoot != "" && filepath.IsAbs(p) {
		if r, err := filepath.Rel(projectRoot, p); err == nil && !strings.HasPrefix(r, "..") {
			p = r
		}
	}
	return strings.TrimPrefix(filepath.ToSlash(p), "./")
}
