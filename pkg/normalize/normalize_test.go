package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

func pkg(name, version string, props ...bom.Property) extract.RawPackage {
	return extract.RawPackage{Name: name, Version: extract.String(version), Properties: props}
}

func TestNormalize_Dedupe(t *testing.T) {
	a := pkg("left-pad", "1.3.0", bom.Property{Name: "ResolvedUrl", Value: "https://r/a.tgz"})
	a.Author = extract.String("first")
	a.Evidence = extract.ManifestEvidence("package-lock.json", 1)

	b := pkg("left-pad", "1.3.0", bom.Property{Name: "LocalNodeModulesPath", Value: "node_modules/x/node_modules/left-pad"})
	b.Author = extract.String("second")
	b.Description = extract.String("pads left")
	b.Evidence = extract.ManifestEvidence("other", 0.2)

	comps, errv := Normalize([]extract.Record{a, b}, "web/package-lock.json", purl.Npm, Config{})
	require.Empty(t, errv)
	require.Len(t, comps, 1)

	c := comps[0]
	assert.Equal(t, "pkg:npm/left-pad@1.3.0", c.BomRef)
	assert.Equal(t, "first", c.Author)
	assert.Equal(t, "pads left", c.Description)
	assert.Equal(t, []bom.Property{
		{Name: "ResolvedUrl", Value: "https://r/a.tgz"},
		{Name: bom.PropSrcFile, Value: "web/package-lock.json"},
		{Name: "LocalNodeModulesPath", Value: "node_modules/x/node_modules/left-pad"},
	}, c.Properties)
	require.NotNil(t, c.Evidence)
	assert.Equal(t, "package-lock.json", c.Evidence.Identity[0].Methods[0].Value)
}

func TestNormalize_ConfidenceAbsent(t *testing.T) {
	r := pkg("serde", "1.0.0")
	r.Evidence = &bom.Evidence{Identity: []bom.Identity{{Field: "purl", Methods: []bom.Method{{Technique: "manifest-analysis"}}}}}

	comps, _ := Normalize([]extract.Record{r}, "Cargo.lock", purl.Cargo, Config{})
	require.Len(t, comps, 1)
	id := comps[0].Evidence.Identity[0]
	assert.Nil(t, id.Confidence)
	assert.Nil(t, id.Methods[0].Confidence)
}

func TestNormalize_EvidenceFilledWhenFirstLacksIt(t *testing.T) {
	a := pkg("x", "1")
	b := pkg("x", "1")
	b.Evidence = extract.ManifestEvidence("b.lock", 0.5)

	comps, _ := Normalize([]extract.Record{a, b}, "a.lock", purl.Npm, Config{})
	require.Len(t, comps, 1)
	require.NotNil(t, comps[0].Evidence)
	assert.Equal(t, 0.5, *comps[0].Evidence.Identity[0].Confidence)
}

func TestNormalize_Defaults(t *testing.T) {
	r := extract.RawPackage{Namespace: "@angular", Name: "core", Version: extract.String("17.0.0"), License: extract.String("MIT")}
	comps, errv := Normalize([]extract.Record{r}, "package-lock.json", purl.Npm, Config{})
	require.Empty(t, errv)
	c := comps[0]
	assert.Equal(t, "pkg:npm/%40angular/core@17.0.0", c.BomRef)
	assert.Equal(t, "@angular", c.Group)
	assert.Equal(t, bom.TypeLibrary, c.Type)
	assert.Equal(t, []bom.License{{ID: "MIT"}}, c.Licenses)
	assert.Equal(t, bom.ScopeUnset, c.Scope)

	comps, _ = Normalize([]extract.Record{r}, "package-lock.json", purl.Npm, Config{DefaultType: bom.TypeFramework})
	assert.Equal(t, bom.TypeFramework, comps[0].Type)
}

func TestNormalize_SkipsInvalid(t *testing.T) {
	recs := []extract.Record{
		extract.RawPackage{Version: extract.String("1.0")},
		pkg("ok", "1.0"),
		nil,
	}
	comps, errv := Normalize(recs, "poetry.lock", purl.PyPI, Config{})
	require.Len(t, comps, 1)
	require.Len(t, errv, 1)
	assert.True(t, errs.Is(errv[0], errs.ErrCodeInvalidIdentifier))
}

func TestNormalize_IllegalQualifierKey(t *testing.T) {
	bad := pkg("lib", "1.0")
	bad.Qualifiers = map[string]string{"a b": "c"}
	comps, errv := Normalize([]extract.Record{bad, pkg("ok", "1.0")}, "pom.xml", purl.Maven, Config{})
	require.Len(t, comps, 1)
	assert.Equal(t, "ok", comps[0].Name)
	require.Len(t, errv, 1)
	assert.True(t, errs.Is(errv[0], errs.ErrCodeInvalidIdentifier))
}

func TestNormalize_VersionAbsentVersusEmpty(t *testing.T) {
	comps, _ := Normalize([]extract.Record{
		extract.RawPackage{Name: "a"},
		extract.RawPackage{Name: "b", Version: extract.String("")},
	}, "go.mod", purl.Golang, Config{})
	require.Len(t, comps, 2)
	assert.Equal(t, "pkg:golang/a", comps[0].BomRef)
	assert.Equal(t, "pkg:golang/b", comps[1].BomRef)
}

func TestNormalize_MergeSubspecs(t *testing.T) {
	recs := []extract.Record{
		extract.RawPackage{Name: "Firebase", Version: extract.String("10.0.0"), Subpath: "Core"},
		extract.RawPackage{Name: "Firebase", Version: extract.String("10.0.0"), Subpath: "Analytics"},
	}

	comps, _ := Normalize(recs, "Podfile.lock", purl.CocoaPods, Config{})
	assert.Len(t, comps, 2)

	comps, _ = Normalize(recs, "Podfile.lock", purl.CocoaPods, Config{MergeSubspecs: true})
	require.Len(t, comps, 1)
	assert.Equal(t, "pkg:cocoapods/Firebase@10.0.0", comps[0].BomRef)
}

func TestSourcePath(t *testing.T) {
	tests := []struct {
		src, root, want string
	}{
		{"a/package-lock.json", "", "a/package-lock.json"},
		{"./go.mod", "", "go.mod"},
		{"/repo/sub/go.mod", "/repo", "sub/go.mod"},
		{"/elsewhere/go.mod", "/repo", "/elsewhere/go.mod"},
		{"/repo/go.mod", "", "/repo/go.mod"},
		{"", "/repo", ""},
	}
	for _, tt := range tests {
		if got := SourcePath(tt.src, tt.root); got != tt.want {
			t.Errorf("SourcePath(%q, %q) = %q, want %q", tt.src, tt.root, got, tt.want)
		}
	}
}

func TestParseLicense(t *testing.T) {
	tests := []struct {
		in   string
		want bom.License
	}{
		{"MIT", bom.License{ID: "MIT"}},
		{"MIT OR Apache-2.0", bom.License{Expression: "MIT OR Apache-2.0"}},
		{"(MIT)", bom.License{Expression: "(MIT)"}},
		{"GPL-2.0 WITH Classpath-exception-2.0", bom.License{Expression: "GPL-2.0 WITH Classpath-exception-2.0"}},
		{"Some custom license", bom.License{Name: "Some custom license"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLicense(tt.in), tt.in)
	}
}

func TestMerge_NilSafe(t *testing.T) {
	c := &bom.Component{BomRef: "x"}
	Merge(c, nil)
	Merge(nil, c)
	assert.Equal(t, "x", c.BomRef)
}
