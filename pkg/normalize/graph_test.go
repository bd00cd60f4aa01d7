package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

func TestEdges(t *testing.T) {
	deps := []extract.RawDependency{
		{Ref: "pkg:npm/a@1.0.0", DependsOn: []string{"pkg:npm/b@2.0.0", "PKG:npm/b@2.0.0"}},
		{Ref: "pkg:NPM/a@1.0.0", DependsOn: []string{"pkg:npm/c@1.0.0"}, Provides: []string{"pkg:npm/d@1"}},
		{Ref: "pkg:npm/%40scope/x@1", DependsOn: nil},
		{Ref: "  "},
	}

	edges, errv := Edges(deps, Config{})
	require.Empty(t, errv)
	require.Len(t, edges, 2)

	assert.Equal(t, "pkg:npm/a@1.0.0", edges[0].Ref)
	assert.Equal(t, []string{"pkg:npm/b@2.0.0", "pkg:npm/c@1.0.0"}, edges[0].DependsOn)
	assert.Equal(t, []string{"pkg:npm/d@1"}, edges[0].Provides)
	assert.Equal(t, "pkg:npm/%40scope/x@1", edges[1].Ref)
	assert.Nil(t, edges[1].DependsOn)
}

func TestEdges_UndecodableKept(t *testing.T) {
	edges, errv := Edges([]extract.RawDependency{
		{Ref: "pkg:npm/a@1", DependsOn: []string{"pkg:npm/bad@"}},
	}, Config{})
	require.Len(t, errv, 1)
	assert.Equal(t, []string{"pkg:npm/bad@"}, edges[0].DependsOn)
}

func TestEdges_MergeSubspecs(t *testing.T) {
	deps := []extract.RawDependency{
		{Ref: "pkg:cocoapods/App@1", DependsOn: []string{"pkg:cocoapods/Firebase@10#Core", "pkg:cocoapods/Firebase@10#Analytics"}},
	}
	edges, _ := Edges(deps, Config{MergeSubspecs: true})
	assert.Equal(t, []string{"pkg:cocoapods/Firebase@10"}, edges[0].DependsOn)
}

func TestCanonicalRef_NonPURL(t *testing.T) {
	got, err := CanonicalRef(" my-app ", Config{})
	require.NoError(t, err)
	assert.Equal(t, "my-app", got)
}

func TestGraph_FullyResolved(t *testing.T) {
	res := &extract.Result{
		Packages: []extract.Record{pkg("a", "1.0.0"), pkg("b", "2.0.0")},
		Dependencies: []extract.RawDependency{
			{Ref: "pkg:npm/a@1.0.0", DependsOn: []string{"pkg:npm/b@2.0.0"}},
			{Ref: "pkg:npm/b@2.0.0"},
		},
	}
	g, errv := Graph(res, "a/package-lock.json", purl.Npm, Config{})
	require.Empty(t, errv)
	assert.Len(t, g.Components, 2)
	assert.Len(t, g.Dependencies, 2)
	assert.Nil(t, g.Parent)
	v, ok := g.Components[0].Property(bom.PropSrcFile)
	assert.True(t, ok)
	assert.Equal(t, "a/package-lock.json", v)
}

func TestGraph_SynthesizesParentEdge(t *testing.T) {
	root := pkg("lib", "1.0.0")
	res := &extract.Result{
		Parent:   pkg("app", "0.1.0"),
		Packages: []extract.Record{root, pkg("app", "0.1.0", bom.Property{Name: "k", Value: "v"})},
		Roots:    []extract.Record{root},
	}
	g, errv := Graph(res, "Cargo.lock", purl.Cargo, Config{})
	require.Empty(t, errv)
	require.NotNil(t, g.Parent)
	assert.Equal(t, "pkg:cargo/app@0.1.0", g.Parent.BomRef)
	assert.True(t, g.Parent.HasProperty("k", "v"))
	require.Len(t, g.Components, 1)
	assert.Equal(t, "pkg:cargo/lib@1.0.0", g.Components[0].BomRef)

	e := g.Edge(g.Parent.BomRef)
	require.NotNil(t, e)
	assert.Equal(t, []string{"pkg:cargo/lib@1.0.0"}, e.DependsOn)
}

func TestGraph_Empty(t *testing.T) {
	g, errv := Graph(extract.Empty(), "go.mod", purl.Golang, Config{})
	assert.Empty(t, errv)
	assert.True(t, g.IsEmpty())

	g, _ = Graph(nil, "go.mod", purl.Golang, Config{})
	assert.True(t, g.IsEmpty())
}
