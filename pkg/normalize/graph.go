package normalize

import (
	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Graph builds the per-manifest graph for one extraction result.
//
// Packages and roots are normalized together so a root that is also listed
// as a package yields a single component. A component sharing the parent's
// bom-ref is folded into the parent. When the result names a parent and
// roots but no edge for the parent, one is synthesized from the roots.
func Graph(res *extract.Result, sourceFile string, eco purl.Ecosystem, cfg Config) (*bom.Graph, []error) {
	g := bom.NewGraph()
	if res.IsEmpty() {
		return g, nil
	}

	var errv []error
	if res.Parent != nil {
		p, err := Component(res.Parent, sourceFile, eco, cfg)
		if err != nil {
			errv = append(errv, err)
		} else {
			g.Parent = p
		}
	}

	records := make([]extract.Record, 0, len(res.Packages)+len(res.Roots))
	records = append(records, res.Packages...)
	records = append(records, res.Roots...)
	comps, cerrs := Normalize(records, sourceFile, eco, cfg)
	errv = append(errv, cerrs...)

	for _, c := range comps {
		if g.Parent != nil && c.BomRef == g.Parent.BomRef {
			Merge(g.Parent, c)
			continue
		}
		g.Components = append(g.Components, c)
	}

	edges, eerrs := Edges(res.Dependencies, cfg)
	errv = append(errv, eerrs...)
	g.Dependencies = edges

	if g.Parent != nil && g.Edge(g.Parent.BomRef) == nil && len(res.Roots) > 0 {
		roots := bom.NewRefSet()
		rootComps, _ := Normalize(res.Roots, sourceFile, eco, cfg)
		for _, c := range rootComps {
			if c.BomRef != g.Parent.BomRef {
				roots.Add(c.BomRef)
			}
		}
		g.Dependencies = append([]*bom.DependencyEdge{{Ref: g.Parent.BomRef, DependsOn: roots.Slice()}}, g.Dependencies...)
	}
	return g, errv
}
