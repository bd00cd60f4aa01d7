package cdx

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

var fixedTime = time.Date(2024, 5, 1, 12, 30, 0, 250, time.UTC)

func sampleGraph() *bom.Graph {
	a := &bom.Component{
		BomRef:   "pkg:npm/%40scope/a@1.0.0",
		PURL:     purl.MustDecode("pkg:npm/%40scope/a@1.0.0"),
		Type:     bom.TypeLibrary,
		Group:    "@scope",
		Name:     "a",
		Version:  "1.0.0",
		Licenses: []bom.License{{ID: "MIT"}, {Expression: "MIT OR Apache-2.0"}},
		Scope:    bom.ScopeRequired,
		Evidence: extract.ManifestEvidence("web/package-lock.json", 1),
	}
	a.AddProperty(bom.PropSrcFile, "web/package-lock.json")
	b := &bom.Component{
		BomRef: "pkg:npm/b@2.0.0",
		PURL:   purl.MustDecode("pkg:npm/b@2.0.0"),
		Type:   bom.TypeLibrary,
		Name:   "b",
		Evidence: &bom.Evidence{Identity: []bom.Identity{
			{Field: "purl", Methods: []bom.Method{{Technique: "manifest-analysis", Value: "x"}}},
			{Field: "name", Confidence: bom.Float(0.3)},
		}},
	}
	return &bom.Graph{
		Parent:     &bom.Component{BomRef: "pkg:npm/app@0.1.0", PURL: purl.MustDecode("pkg:npm/app@0.1.0"), Type: bom.TypeApplication, Name: "app", Version: "0.1.0"},
		Components: []*bom.Component{a, b},
		Dependencies: []*bom.DependencyEdge{
			{Ref: "pkg:npm/app@0.1.0", DependsOn: []string{a.BomRef}},
			{Ref: a.BomRef, DependsOn: []string{b.BomRef}, Provides: []string{"pkg:npm/c@1"}},
			{Ref: b.BomRef},
		},
	}
}

func TestCheckSpecVersion(t *testing.T) {
	v, err := CheckSpecVersion("")
	require.NoError(t, err)
	assert.Equal(t, "1.6", v)

	_, err = CheckSpecVersion("1.4")
	assert.True(t, errs.Is(err, errs.ErrCodeUnsupportedSchema))
}

func TestToDocument(t *testing.T) {
	d, err := ToDocument(sampleGraph(), "1.6", WithTimestamp(fixedTime))
	require.NoError(t, err)

	assert.Equal(t, BOMFormat, d.BOMFormat)
	assert.Equal(t, 1, d.Version)
	assert.Regexp(t, `^urn:uuid:[0-9a-f-]{36}$`, d.SerialNumber)
	require.NotNil(t, d.Metadata.Component)
	assert.Equal(t, "pkg:npm/app@0.1.0", d.Metadata.Component.BOMRef)
	assert.Equal(t, []Tool{DefaultTool()}, d.Metadata.Tools)
	require.Len(t, d.Components, 2)
	assert.Equal(t, "pkg:npm/%40scope/a@1.0.0", d.Components[0].PURL)
	assert.Equal(t, []string{"pkg:npm/c@1"}, d.Dependencies[1].Provides)
	assert.Len(t, d.Components[1].Evidence.Identity, 2)

	d15, err := ToDocument(sampleGraph(), "1.5", WithTimestamp(fixedTime))
	require.NoError(t, err)
	assert.Nil(t, d15.Dependencies[1].Provides)
	assert.Len(t, d15.Components[1].Evidence.Identity, 1)

	_, err = ToDocument(sampleGraph(), "2.0")
	assert.Error(t, err)
}

func TestSerialNumberStable(t *testing.T) {
	g := sampleGraph()
	other := sampleGraph()
	other.Components[0], other.Components[1] = other.Components[1], other.Components[0]
	assert.Equal(t, SerialNumber(g), SerialNumber(other))

	other.Components = other.Components[:1]
	assert.NotEqual(t, SerialNumber(g), SerialNumber(other))
}

func TestGraphRoundTrip(t *testing.T) {
	g := sampleGraph()
	d, err := ToDocument(g, "1.6", WithTimestamp(fixedTime))
	require.NoError(t, err)

	back, err := FromDocument(d)
	require.NoError(t, err)
	assert.Equal(t, g, back)
}

func TestFromDocument_KeysByPURL(t *testing.T) {
	d := &Document{SpecVersion: "1.5", Components: []Component{{Name: "x", PURL: "pkg:cargo/x@1"}}}
	g, err := FromDocument(d)
	require.NoError(t, err)
	assert.Equal(t, "pkg:cargo/x@1", g.Components[0].BomRef)
	assert.Equal(t, purl.Cargo, g.Components[0].Ecosystem())

	_, err = FromDocument(nil)
	assert.Error(t, err)
}

func TestBinaryRoundTrip(t *testing.T) {
	for _, v := range SpecVersions {
		t.Run(v, func(t *testing.T) {
			d, err := ToDocument(sampleGraph(), v, WithTimestamp(fixedTime))
			require.NoError(t, err)

			b, err := ToBinary(d)
			require.NoError(t, err)
			assert.False(t, IsJSON(b))

			back, err := FromBinary(b, v)
			require.NoError(t, err)
			assert.Equal(t, d, back)
		})
	}
}

func TestBinaryRoundTrip_Empty(t *testing.T) {
	d, err := ToDocument(bom.NewGraph(), "", WithTimestamp(fixedTime))
	require.NoError(t, err)
	assert.Nil(t, d.Components)

	b, err := ToBinary(d)
	require.NoError(t, err)
	back, err := FromBinary(b, "")
	require.NoError(t, err)
	assert.Equal(t, d, back)

	bare := &Document{BOMFormat: BOMFormat, SpecVersion: "1.6"}
	b, err = ToBinary(bare)
	require.NoError(t, err)
	back, err = FromBinary(b, "")
	require.NoError(t, err)
	assert.Equal(t, bare, back)
}

func TestBinaryRoundTrip_ExtraAndUnknown(t *testing.T) {
	d, err := ToDocument(sampleGraph(), "1.6", WithTimestamp(fixedTime))
	require.NoError(t, err)
	d.Extra = map[string][]byte{"annotations": []byte(`[{"text":"hi"}]`)}
	d.Components[0].Extra = map[string][]byte{"hashes": []byte(`[{"alg":"SHA-256","content":"ab"}]`)}
	d.Metadata.Extra = map[string][]byte{"lifecycles": []byte(`[{"phase":"build"}]`)}
	d.Components[0].Evidence.Extra = map[string][]byte{"occurrences": []byte(`[]`)}
	d.Components[0].Evidence.Identity[0].Extra = map[string][]byte{"concludedValue": []byte(`"pkg:npm/%40scope/a@1.0.0"`)}
	d.Components[0].Evidence.Identity[0].Methods[0].Extra = map[string][]byte{"x-origin": []byte(`"lock"`)}
	d.Components[0].Licenses[0].License.Extra = map[string][]byte{"url": []byte(`"https://opensource.org/licenses/MIT"`)}
	d.Components[0].Licenses[1].Extra = map[string][]byte{"bom-ref": []byte(`"lic-1"`)}
	d.Metadata.Tools[0].Extra = map[string][]byte{"hashes": []byte(`[{"alg":"SHA-256","content":"ab"}]`)}
	d.Dependencies[0].Extra = map[string][]byte{"x-note": []byte(`"root"`)}

	// Fields from a newer schema, e.g. definitions = 15.
	future := func(num protowire.Number) []byte {
		b := protowire.AppendTag(nil, num, protowire.BytesType)
		return protowire.AppendString(b, "future")
	}
	d.Unknown = future(15)
	d.Metadata.Unknown = future(9)
	d.Metadata.Tools[0].Unknown = future(4)
	d.Components[0].Licenses[0].Unknown = future(3)
	d.Components[0].Licenses[0].License.Unknown = future(4)
	d.Components[0].Evidence.Unknown = future(4)
	d.Components[0].Evidence.Identity[0].Unknown = future(5)
	d.Components[0].Evidence.Identity[0].Methods[0].Unknown = future(4)
	d.Dependencies[0].Unknown = future(4)

	b, err := ToBinary(d)
	require.NoError(t, err)
	back, err := FromBinary(b, "")
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestBinaryRoundTrip_UnknownEnumSpelling(t *testing.T) {
	d := &Document{BOMFormat: BOMFormat, SpecVersion: "1.6", Components: []Component{
		{Type: "application", Name: "first enum value"},
		{Type: "quantum-device", Scope: "sometimes", Name: "x"},
	}}
	b, err := ToBinary(d)
	require.NoError(t, err)
	back, err := FromBinary(b, "")
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestFromBinary_Version(t *testing.T) {
	b, err := ToBinary(&Document{BOMFormat: BOMFormat})
	require.NoError(t, err)

	d, err := FromBinary(b, "")
	require.NoError(t, err)
	assert.Equal(t, LatestSpecVersion, d.SpecVersion)

	d, err = FromBinary(b, "1.5")
	require.NoError(t, err)
	assert.Equal(t, "1.5", d.SpecVersion)

	_, err = FromBinary(b, "9.9")
	assert.True(t, errs.Is(err, errs.ErrCodeUnsupportedSchema))

	_, err = FromBinary([]byte{0x0a, 0xff}, "")
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidDocument))
}

func TestJSONRoundTrip(t *testing.T) {
	for _, v := range SpecVersions {
		t.Run(v, func(t *testing.T) {
			d, err := ToDocument(sampleGraph(), v, WithTimestamp(fixedTime))
			require.NoError(t, err)
			d.Extra = map[string][]byte{"externalReferences": []byte(`[{"type":"vcs","url":"https://x"}]`)}

			var buf bytes.Buffer
			require.NoError(t, WriteJSON(&buf, d))
			back, err := ReadJSON(&buf)
			require.NoError(t, err)
			assert.Equal(t, d, back)
		})
	}
}

func TestJSONShapePerVersion(t *testing.T) {
	g := sampleGraph()
	g.Components[1].Evidence.Identity = g.Components[1].Evidence.Identity[:1]

	shape := func(v string) map[string]any {
		d, err := ToDocument(g, v, WithTimestamp(fixedTime))
		require.NoError(t, err)
		b, err := json.Marshal(d)
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		return m
	}

	identity := func(m map[string]any) any {
		c := m["components"].([]any)[1].(map[string]any)
		return c["evidence"].(map[string]any)["identity"]
	}

	m15 := shape("1.5")
	assert.IsType(t, map[string]any{}, identity(m15))
	dep15 := m15["dependencies"].([]any)[1].(map[string]any)
	assert.NotContains(t, dep15, "provides")

	m16 := shape("1.6")
	assert.IsType(t, []any{}, identity(m16))
	dep16 := m16["dependencies"].([]any)[1].(map[string]any)
	assert.Contains(t, dep16, "provides")

	leaf := m16["dependencies"].([]any)[2].(map[string]any)
	assert.Equal(t, []any{}, leaf["dependsOn"])
}

func TestReadJSON_Foreign(t *testing.T) {
	in := `{
	  "bomFormat": "CycloneDX",
	  "specVersion": "1.5",
	  "version": 3,
	  "metadata": {
	    "timestamp": "2024-05-01T14:30:00+02:00",
	    "tools": {"components": [{"type": "application", "name": "syft"}]}
	  },
	  "components": [{
	    "type": "library", "name": "x", "purl": "pkg:pypi/x@1",
	    "evidence": {"identity": {"field": "purl", "confidence": 0.5}},
	    "hashes": [ {"alg": "SHA-256", "content": "ab"} ]
	  }],
	  "dependencies": [{"ref": "pkg:pypi/x@1"}],
	  "vulnerabilities": []
	}`
	d, err := ReadJSON(bytes.NewBufferString(in))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC), d.Metadata.Timestamp)
	assert.Nil(t, d.Metadata.Tools)
	assert.JSONEq(t, `{"components":[{"type":"application","name":"syft"}]}`, string(d.Metadata.Extra["tools"]))
	assert.Equal(t, `[{"alg":"SHA-256","content":"ab"}]`, string(d.Components[0].Extra["hashes"]))
	assert.Equal(t, `[]`, string(d.Extra["vulnerabilities"]))
	require.Len(t, d.Components[0].Evidence.Identity, 1)
	assert.Equal(t, 0.5, *d.Components[0].Evidence.Identity[0].Confidence)
	assert.Nil(t, d.Dependencies[0].DependsOn)

	// Binary and JSON round trips keep every foreign member.
	b, err := ToBinary(d)
	require.NoError(t, err)
	back, err := FromBinary(b, "")
	require.NoError(t, err)
	assert.Equal(t, d, back)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, d))
	again, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, d, again)
}

func TestReadJSON_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":     `nope`,
		"wrong format": `{"bomFormat":"SPDX","specVersion":"1.6"}`,
		"old version":  `{"bomFormat":"CycloneDX","specVersion":"1.2"}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadJSON(bytes.NewBufferString(in))
			assert.Error(t, err)
		})
	}
}

func TestWriteAndReadFile(t *testing.T) {
	dir := t.TempDir()
	d, err := ToDocument(sampleGraph(), "1.6", WithTimestamp(fixedTime))
	require.NoError(t, err)

	for _, f := range []Format{FormatJSON, FormatBinary} {
		path := filepath.Join(dir, "nested", "bom."+string(f))
		require.NoError(t, WriteFile(path, d, f))

		back, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, d, back)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files remain")

	_, err = ReadFile(filepath.Join(dir, "missing.json"))
	assert.True(t, errs.Is(err, errs.ErrCodeFileNotFound))
}

func TestWriteFile_Failure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	d, _ := ToDocument(bom.NewGraph(), "", WithTimestamp(fixedTime))
	err := WriteFile(filepath.Join(blocker, "bom.json"), d, FormatJSON)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrCodeWriteFailed))
}

func TestLoadBinaryFile(t *testing.T) {
	dir := t.TempDir()

	d, found, err := LoadBinaryFile(filepath.Join(dir, "absent.pb"), "")
	assert.Nil(t, d)
	assert.False(t, found)
	assert.NoError(t, err)

	corrupt := filepath.Join(dir, "corrupt.pb")
	require.NoError(t, os.WriteFile(corrupt, []byte{0x0a, 0x7f}, 0o644))
	_, found, err = LoadBinaryFile(corrupt, "")
	assert.True(t, found)
	assert.Error(t, err)

	good := filepath.Join(dir, "good.pb")
	doc, _ := ToDocument(sampleGraph(), "1.5", WithTimestamp(fixedTime))
	require.NoError(t, WriteFile(good, doc, FormatBinary))
	d, found, err = LoadBinaryFile(good, "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, doc, d)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "proto": FormatBinary, "binary": FormatBinary} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, FormatBinary, FormatForPath("bom.pb"))
	assert.Equal(t, FormatJSON, FormatForPath("bom.cdx.json"))
}

func TestConvert(t *testing.T) {
	d, err := ToDocument(sampleGraph(), SpecVersion16, WithTimestamp(fixedTime), WithVersion(3))
	require.NoError(t, err)

	same, err := Convert(d, "")
	require.NoError(t, err)
	assert.Same(t, d, same)

	old, err := Convert(d, SpecVersion15)
	require.NoError(t, err)
	assert.Equal(t, SpecVersion15, old.SpecVersion)
	assert.Equal(t, d.SerialNumber, old.SerialNumber)
	assert.Equal(t, 3, old.Version)
	assert.Equal(t, fixedTime.UTC(), old.Metadata.Timestamp)
	assert.Equal(t, d.Refs(), old.Refs())
	assert.Nil(t, old.Dependencies[1].Provides)
	assert.Len(t, old.Components[1].Evidence.Identity, 1)

	_, err = Convert(d, "2.0")
	assert.True(t, errs.Is(err, errs.ErrCodeUnsupportedSchema))
}

func TestForeignMembersSurviveBothForms(t *testing.T) {
	in := `{
	  "bomFormat": "CycloneDX",
	  "specVersion": "1.6",
	  "serialNumber": "urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79",
	  "version": 1,
	  "metadata": {
	    "timestamp": "2024-05-01T12:30:00Z",
	    "tools": [{"vendor": "cyclonedx", "name": "cdxgen", "version": "10.0.0",
	               "hashes": [{"alg": "SHA-256", "content": "ab"}]}],
	    "lifecycles": [{"phase": "build"}]
	  },
	  "components": [{
	    "type": "library",
	    "bom-ref": "pkg:npm/left-pad@1.3.0",
	    "name": "left-pad",
	    "version": "1.3.0",
	    "licenses": [
	      {"license": {"id": "MIT", "url": "https://opensource.org/licenses/MIT"}},
	      {"expression": "MIT OR Apache-2.0", "bom-ref": "lic-1"}
	    ],
	    "purl": "pkg:npm/left-pad@1.3.0",
	    "evidence": {
	      "identity": [{
	        "field": "purl",
	        "confidence": 0.8,
	        "concludedValue": "pkg:npm/left-pad@1.3.0",
	        "methods": [{"technique": "manifest-analysis", "confidence": 0.8,
	                     "value": "package-lock.json", "x-origin": "lock"}]
	      }],
	      "occurrences": [{"location": "node_modules/left-pad"}]
	    }
	  }],
	  "dependencies": [{"ref": "pkg:npm/left-pad@1.3.0", "dependsOn": [], "x-note": "leaf"}]
	}`
	d, err := ReadJSON(bytes.NewBufferString(in))
	require.NoError(t, err)

	b, err := ToBinary(d)
	require.NoError(t, err)
	back, err := FromBinary(b, "")
	require.NoError(t, err)
	assert.Equal(t, d, back)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, back))
	assert.JSONEq(t, in, buf.String())
}

func TestBinaryWireNumbers(t *testing.T) {
	fs, err := parseFields(encodeComponent(&Component{Type: "library"}))
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, compType, fs[0].num)
	assert.Equal(t, protowire.VarintType, fs[0].typ)
	assert.Equal(t, uint64(3), fs[0].v, "library is CLASSIFICATION_LIBRARY")

	fs, err = parseFields(encodeIdentity(&Identity{Field: "purl", Confidence: bom.Float(0.8)}))
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, uint64(4), fs[0].v, "purl is EVIDENCE_FIELD_PURL")
	assert.Equal(t, identityConfidence, fs[1].num)
	assert.Equal(t, protowire.Fixed32Type, fs[1].typ)
	assert.Equal(t, math.Float32bits(0.8), uint32(fs[1].v))

	fs, err = parseFields(encodeMethod(&Method{Technique: "manifest-analysis", Confidence: bom.Float(1)}))
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, uint64(2), fs[0].v)
	assert.Equal(t, protowire.Fixed32Type, fs[1].typ)
}

func TestBinaryConfidence(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		exact bool
	}{
		{"float32 enough", 0.25, false},
		{"short decimal", 0.3, false},
		{"needs float64", 0.123456789012, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := encodeIdentity(&Identity{Field: "name", Confidence: bom.Float(tt.value)})
			fs, err := parseFields(b)
			require.NoError(t, err)
			var hasExact bool
			for _, f := range fs {
				hasExact = hasExact || f.num == fieldExact
			}
			assert.Equal(t, tt.exact, hasExact)

			id, err := decodeIdentity(b)
			require.NoError(t, err)
			require.NotNil(t, id.Confidence)
			assert.Equal(t, tt.value, *id.Confidence)
		})
	}

	// A confidence written as a double still decodes.
	var legacy []byte
	legacy = protowire.AppendTag(legacy, identityConfidence, protowire.Fixed64Type)
	legacy = protowire.AppendFixed64(legacy, math.Float64bits(0.7))
	id, err := decodeIdentity(legacy)
	require.NoError(t, err)
	assert.Equal(t, 0.7, *id.Confidence)
}

func TestBinaryUnspecifiedClassification(t *testing.T) {
	var raw []byte
	raw = protowire.AppendTag(raw, compType, protowire.VarintType)
	raw = protowire.AppendVarint(raw, 0)
	raw = protowire.AppendTag(raw, compName, protowire.BytesType)
	raw = protowire.AppendString(raw, "x")

	c, err := decodeComponent(raw)
	require.NoError(t, err)
	assert.Empty(t, c.Type)
	assert.Equal(t, "x", c.Name)
	assert.NotEmpty(t, c.Unknown)

	again, err := decodeComponent(encodeComponent(c))
	require.NoError(t, err)
	assert.Equal(t, c, again)
}
