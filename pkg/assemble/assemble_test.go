package assemble

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stackbom/pkg/bom"
)

func comp(ref string, props ...bom.Property) *bom.Component {
	return &bom.Component{BomRef: ref, Name: ref, Type: bom.TypeLibrary, Properties: props}
}

func edge(ref string, deps ...string) *bom.DependencyEdge {
	return &bom.DependencyEdge{Ref: ref, DependsOn: deps}
}

func TestSelectRoot(t *testing.T) {
	paths := []string{"/root/deep/nested/go.mod", "/root/sub/go.mod", "/root/go.mod"}
	assert.Equal(t, "/root/go.mod", SelectRoot(paths, "/root"))

	// Ties at the same depth break on path.
	assert.Equal(t, "a/go.mod", SelectRoot([]string{"b/go.mod", "a/go.mod"}, ""))
	assert.Equal(t, "", SelectRoot(nil, "/root"))

	// SelectRoot must not reorder the caller's slice.
	assert.Equal(t, "/root/deep/nested/go.mod", paths[0])
}

func TestOrder(t *testing.T) {
	in := []Input{{Path: "/r/x/y/go.mod"}, {Path: "/r/b/go.mod"}, {Path: "/r/go.mod"}, {Path: "/r/a/go.mod"}}
	got := Order(in, "/r")
	var paths []string
	for _, i := range got {
		paths = append(paths, i.Path)
	}
	assert.Equal(t, []string{"/r/go.mod", "/r/a/go.mod", "/r/b/go.mod", "/r/x/y/go.mod"}, paths)
	assert.Equal(t, "/r/x/y/go.mod", in[0].Path)
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 0, Depth("go.mod"))
	assert.Equal(t, 2, Depth("a/b/go.mod"))
	assert.Equal(t, 0, Depth(""))
}

func TestAssemble_RootSelection(t *testing.T) {
	mk := func(parent string) *bom.Graph {
		return &bom.Graph{Parent: comp(parent), Dependencies: []*bom.DependencyEdge{edge(parent)}}
	}
	inputs := []Input{
		{Path: "/root/deep/nested/go.mod", Graph: mk("pkg:golang/example.com/deep")},
		{Path: "/root/sub/go.mod", Graph: mk("pkg:golang/example.com/sub")},
		{Path: "/root/go.mod", Graph: mk("pkg:golang/example.com/root")},
	}

	g, rep := Assemble(inputs, "/root", DefaultConfig())
	require.NotNil(t, g.Parent)
	assert.Equal(t, "pkg:golang/example.com/root", g.Parent.BomRef)
	assert.Equal(t, "/root/go.mod", rep.Root)
	assert.ElementsMatch(t, []string{"pkg:golang/example.com/deep", "pkg:golang/example.com/sub"}, g.Refs())
	assert.Empty(t, g.Edge(g.Parent.BomRef).DependsOn)

	cfg := DefaultConfig()
	cfg.LinkSubprojects = true
	g, _ = Assemble(inputs, "/root", cfg)
	assert.Equal(t, []string{"pkg:golang/example.com/sub", "pkg:golang/example.com/deep"}, g.Edge(g.Parent.BomRef).DependsOn)
}

func TestAssemble_EdgeUnion(t *testing.T) {
	a, b, c := "pkg:npm/a@1", "pkg:npm/b@1", "pkg:npm/c@1"
	g1 := &bom.Graph{Components: []*bom.Component{comp(a), comp(b)}, Dependencies: []*bom.DependencyEdge{edge(a, b)}}
	g2 := &bom.Graph{Components: []*bom.Component{comp(a), comp(c)}, Dependencies: []*bom.DependencyEdge{edge(a, c)}}

	for _, inputs := range [][]Input{
		{{Path: "x/package-lock.json", Graph: g1}, {Path: "y/package-lock.json", Graph: g2}},
		{{Path: "y/package-lock.json", Graph: g2}, {Path: "x/package-lock.json", Graph: g1}},
	} {
		g, _ := Assemble(inputs, "", DefaultConfig())
		require.Len(t, g.Dependencies, 1)
		assert.Equal(t, a, g.Dependencies[0].Ref)
		assert.Equal(t, []string{b, c}, g.Dependencies[0].DependsOn)
		assert.Len(t, g.Components, 3)
	}

	// Inputs are left untouched.
	assert.Equal(t, []string{b}, g1.Dependencies[0].DependsOn)
}

func TestAssemble_MergesComponents(t *testing.T) {
	ref := "pkg:cargo/serde@1.0.0"
	g1 := &bom.Graph{Components: []*bom.Component{comp(ref, bom.Property{Name: bom.PropSrcFile, Value: "a/Cargo.lock"})}}
	g2 := &bom.Graph{Components: []*bom.Component{comp(ref, bom.Property{Name: bom.PropSrcFile, Value: "b/Cargo.lock"})}}

	g, _ := Assemble([]Input{{Path: "b/Cargo.lock", Graph: g2}, {Path: "a/Cargo.lock", Graph: g1}}, "", DefaultConfig())
	require.Len(t, g.Components, 1)
	assert.Equal(t, []bom.Property{
		{Name: bom.PropSrcFile, Value: "a/Cargo.lock"},
		{Name: bom.PropSrcFile, Value: "b/Cargo.lock"},
	}, g.Components[0].Properties)
	assert.Len(t, g1.Components[0].Properties, 1)
}

func TestAssemble_ComponentMatchingParentFolded(t *testing.T) {
	root := "pkg:npm/app@1.0.0"
	parent := comp(root)
	dup := comp(root, bom.Property{Name: "k", Value: "v"})
	g, _ := Assemble([]Input{{Path: "package-lock.json", Graph: &bom.Graph{Parent: parent, Components: []*bom.Component{dup}}}}, "", DefaultConfig())
	assert.Empty(t, g.Components)
	assert.True(t, g.Parent.HasProperty("k", "v"))
	assert.False(t, parent.HasProperty("k", "v"))
}

func TestAssemble_FailedInputsSkipped(t *testing.T) {
	g, rep := Assemble([]Input{{Path: "go.mod"}, {Path: "a/go.mod", Graph: bom.NewGraph()}}, "", DefaultConfig())
	assert.True(t, g.IsEmpty())
	assert.Empty(t, rep.Warnings)
	assert.Equal(t, "", rep.Root)
}

func TestAssemble_SelfReference(t *testing.T) {
	a := "pkg:maven/g/a@1?classifier=native"
	g, _ := Assemble([]Input{{Path: "pom.xml", Graph: &bom.Graph{
		Components:   []*bom.Component{comp(a)},
		Dependencies: []*bom.DependencyEdge{edge(a, a)},
	}}}, "", DefaultConfig())
	assert.Equal(t, []string{a}, g.Dependencies[0].DependsOn)
}

func TestAssemble_PartialTree(t *testing.T) {
	g := &bom.Graph{}
	for i := range 100 {
		ref := fmt.Sprintf("pkg:npm/p%d@1.0.0", i)
		g.Components = append(g.Components, comp(ref))
		e := edge(ref)
		if i == 0 {
			e.DependsOn = []string{"pkg:npm/p1@1.0.0"}
		}
		g.Dependencies = append(g.Dependencies, e)
	}

	out, rep := Assemble([]Input{{Path: "package-lock.json", Graph: g}}, "", DefaultConfig())
	assert.Len(t, out.Components, 100)
	assert.True(t, rep.Partial)
	assert.Equal(t, 100, rep.Edges)
	assert.Equal(t, 99, rep.EmptyEdges)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "partial")
}

func TestAssemble_FullyResolvedNotPartial(t *testing.T) {
	a, b := "pkg:npm/a@1.0.0", "pkg:npm/b@2.0.0"
	g, rep := Assemble([]Input{{Path: "a/package-lock.json", Graph: &bom.Graph{
		Components:   []*bom.Component{comp(a), comp(b)},
		Dependencies: []*bom.DependencyEdge{edge(a, b), edge(b)},
	}}}, "", DefaultConfig())
	assert.Len(t, g.Components, 2)
	assert.Len(t, g.Dependencies, 2)
	assert.False(t, rep.Partial)
	assert.Empty(t, rep.Warnings)
}

func TestAssemble_Orphans(t *testing.T) {
	a, b := "pkg:npm/a@1", "pkg:npm/b@1"
	_, rep := Assemble([]Input{{Path: "package-lock.json", Graph: &bom.Graph{
		Components:   []*bom.Component{comp(a), comp(b)},
		Dependencies: []*bom.DependencyEdge{edge(a)},
	}}}, "", DefaultConfig())
	assert.Equal(t, []string{b}, rep.Orphans)
	assert.Len(t, rep.Warnings, 1)
}

func TestIsPartial(t *testing.T) {
	cfg := Config{PartialThreshold: 0.8, PartialMinComponents: 10}
	tests := []struct {
		comps, edges, empty int
		want                bool
	}{
		{100, 100, 99, true},
		{100, 100, 80, false},
		{9, 9, 9, false},
		{10, 0, 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPartial(tt.comps, tt.edges, tt.empty, cfg), "%+v", tt)
	}
}
