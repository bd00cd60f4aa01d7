package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

func lib(ref string) *bom.Component {
	c := &bom.Component{BomRef: ref, Type: bom.TypeLibrary, Evidence: extract.ManifestEvidence("package-lock.json", 1)}
	if p, err := purl.Decode(ref); err == nil {
		c.PURL = p
		c.Name = p.Name
	}
	c.AddProperty(bom.PropSrcFile, "a/package-lock.json")
	return c
}

func TestValidate_FullyResolved(t *testing.T) {
	g := &bom.Graph{
		Components: []*bom.Component{lib("pkg:npm/a@1.0.0"), lib("pkg:npm/b@2.0.0")},
		Dependencies: []*bom.DependencyEdge{
			{Ref: "pkg:npm/a@1.0.0", DependsOn: []string{"pkg:npm/b@2.0.0"}},
			{Ref: "pkg:npm/b@2.0.0"},
		},
	}
	res := Validate(g)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.True(t, res.OK())
}

func TestValidate_MissingReference(t *testing.T) {
	g := &bom.Graph{
		Components: []*bom.Component{lib("pkg:npm/a@1.0.0")},
		Dependencies: []*bom.DependencyEdge{
			{Ref: "pkg:npm/a@1.0.0", DependsOn: []string{"pkg:fake/doesnotexist@1.0"}},
		},
	}
	res := Validate(g)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "pkg:fake/doesnotexist@1.0")
}

func TestValidate_MissingReportedOnce(t *testing.T) {
	g := &bom.Graph{
		Components: []*bom.Component{lib("pkg:npm/a@1"), lib("pkg:npm/b@1")},
		Dependencies: []*bom.DependencyEdge{
			{Ref: "pkg:npm/a@1", DependsOn: []string{"pkg:npm/x@1"}},
			{Ref: "pkg:npm/b@1", DependsOn: []string{"pkg:npm/x@1"}, Provides: []string{"pkg:npm/y@1"}},
			{Ref: "pkg:npm/z@1"},
		},
	}
	res := Validate(g)
	assert.Len(t, res.Warnings, 3)
}

func TestValidate_Encoding(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		bad  bool
	}{
		{"canonical", "pkg:npm/%40angular/core@17.0.0", false},
		{"literal at in namespace", "pkg:npm/@angular/core@17.0.0", true},
		{"trailing at", "pkg:npm/a@", true},
		{"upper-case type", "pkg:NPM/a@1", true},
		{"unsorted qualifiers", "pkg:maven/g/a@1?type=jar&classifier=x", true},
		{"go module major suffix", "pkg:golang/github.com/redis/go-redis%2Fv9@v9.0.0", false},
		{"not a package url", "my-app", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &bom.Graph{Components: []*bom.Component{{BomRef: tt.ref, Type: bom.TypeApplication}}}
			res := Validate(g)
			assert.Equal(t, tt.bad, len(res.Errors) == 1, "errors: %v", res.Errors)
			assert.Equal(t, !tt.bad, res.OK())
		})
	}
}

func TestValidate_TypeConsistency(t *testing.T) {
	g := &bom.Graph{
		Components: []*bom.Component{
			lib("pkg:npm/a@1"),
			lib("pkg:pypi/b@1"),
			{BomRef: "pkg:oci/image@sha256%3Aabc", Type: bom.TypeContainer},
		},
		Dependencies: []*bom.DependencyEdge{
			{Ref: "pkg:npm/a@1", DependsOn: []string{"pkg:pypi/b@1"}},
			{Ref: "pkg:oci/image@sha256%3Aabc", DependsOn: []string{"pkg:npm/a@1", "pkg:pypi/b@1"}},
			{Ref: "pkg:pypi/b@1"},
		},
	}
	res := Validate(g)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "type:")

	res = New(Options{ContainerTypes: []purl.Ecosystem{purl.Npm}}).Validate(g)
	require.Len(t, res.Warnings, 2)
	for _, w := range res.Warnings {
		assert.Contains(t, w, "pkg:oci/image")
	}
}

func TestValidate_DanglingRoot(t *testing.T) {
	parent := &bom.Component{BomRef: "pkg:npm/app@1", Type: bom.TypeApplication}
	g := &bom.Graph{
		Parent:     parent,
		Components: []*bom.Component{lib("pkg:npm/a@1")},
		Dependencies: []*bom.DependencyEdge{
			{Ref: "pkg:npm/app@1"},
			{Ref: "pkg:npm/a@1"},
		},
	}
	res := Validate(g)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "dangling root")

	// A single edge is not flagged.
	g.Dependencies = g.Dependencies[:1]
	assert.Empty(t, Validate(g).Warnings)
}

func TestValidate_Completeness(t *testing.T) {
	bare := func(ref string) *bom.Component {
		return &bom.Component{BomRef: ref, Type: bom.TypeLibrary, PURL: purl.MustDecode(ref)}
	}
	abs := lib("pkg:cargo/serde@1")
	abs.Properties = []bom.Property{{Name: bom.PropSrcFile, Value: "/home/me/Cargo.lock"}}

	g := &bom.Graph{Components: []*bom.Component{
		bare("pkg:npm/a@1"),
		bare("pkg:npm/b@1"),
		bare("pkg:pypi/c@1"),
		bare("pkg:golang/d@v1"),
		{BomRef: "pkg:npm/app@1", Type: bom.TypeApplication},
		abs,
	}}
	res := Validate(g)
	assert.Empty(t, res.Errors)
	assert.Len(t, res.Warnings, 3, "%v", res.Warnings)

	res = New(Options{EvidenceEcosystems: []purl.Ecosystem{purl.Golang}}).Validate(g)
	assert.Len(t, res.Warnings, 3, "%v", res.Warnings)
}

func TestValidate_SourcePath(t *testing.T) {
	tests := []struct {
		src  string
		warn bool
	}{
		{"web/package-lock.json", false},
		{"/home/me/package-lock.json", true},
		{"../other/package-lock.json", true},
		{`web\package-lock.json`, true},
	}
	for _, tt := range tests {
		c := lib("pkg:npm/a@1")
		c.Properties = []bom.Property{{Name: bom.PropSrcFile, Value: tt.src}}
		res := Validate(&bom.Graph{Components: []*bom.Component{c}})
		found := false
		for _, w := range res.Warnings {
			if strings.Contains(w, "invalid "+bom.PropSrcFile) {
				found = true
			}
		}
		assert.Equal(t, tt.warn, found, "%s: %v", tt.src, res.Warnings)
	}
}

func TestValidate_Duplicates(t *testing.T) {
	a := lib("pkg:npm/a@1")
	g := &bom.Graph{
		Components:   []*bom.Component{a, a},
		Dependencies: []*bom.DependencyEdge{{Ref: a.BomRef}, {Ref: a.BomRef}},
	}
	res := Validate(g)
	assert.Len(t, res.Warnings, 2, "%v", res.Warnings)

	g.Parent = a
	g.Dependencies = nil
	res = Validate(g)
	assert.Len(t, res.Warnings, 2, "%v", res.Warnings)
}

func TestValidate_Nil(t *testing.T) {
	res := Validate(nil)
	assert.NotNil(t, res.Errors)
	assert.NotNil(t, res.Warnings)
}
