package cdx

import (
	"bytes"
	"math"
	"sort"
	"strconv"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// Field numbers and enum values follow the CycloneDX protobuf schema.
// fieldExtra, fieldFormat and fieldExact are private extensions: fieldExtra
// carries one JSON member the message does not model, fieldFormat a
// bomFormat other than CycloneDX, and fieldExact the float64 value of a
// confidence that float32 cannot hold.
const (
	bomSpecVersion  protowire.Number = 1
	bomVersion      protowire.Number = 2
	bomSerialNumber protowire.Number = 3
	bomMetadata     protowire.Number = 4
	bomComponents   protowire.Number = 5
	bomDependencies protowire.Number = 8
	bomProperties   protowire.Number = 12

	metaTimestamp  protowire.Number = 1
	metaTools      protowire.Number = 2
	metaComponent  protowire.Number = 4
	metaProperties protowire.Number = 8

	compType        protowire.Number = 1
	compBOMRef      protowire.Number = 3
	compAuthor      protowire.Number = 5
	compPublisher   protowire.Number = 6
	compGroup       protowire.Number = 7
	compName        protowire.Number = 8
	compVersion     protowire.Number = 9
	compDescription protowire.Number = 10
	compScope       protowire.Number = 11
	compLicenses    protowire.Number = 13
	compPURL        protowire.Number = 16
	compProperties  protowire.Number = 21
	compEvidence    protowire.Number = 23

	toolVendor  protowire.Number = 1
	toolName    protowire.Number = 2
	toolVersion protowire.Number = 3

	licenseChoiceLicense    protowire.Number = 1
	licenseChoiceExpression protowire.Number = 2
	licenseID               protowire.Number = 1
	licenseName             protowire.Number = 2

	evidenceIdentity protowire.Number = 3

	identityField      protowire.Number = 1
	identityConfidence protowire.Number = 2
	identityMethods    protowire.Number = 3

	methodTechnique  protowire.Number = 1
	methodConfidence protowire.Number = 2
	methodValue      protowire.Number = 3

	depRef          protowire.Number = 1
	depDependencies protowire.Number = 2
	depProvides     protowire.Number = 3

	propName  protowire.Number = 1
	propValue protowire.Number = 2

	fieldExtra  protowire.Number = 9000
	fieldFormat protowire.Number = 9001
	fieldExact  protowire.Number = 9002
)

var (
	// Classification 0 is CLASSIFICATION_NULL.
	componentTypes = enum{
		"application": 1, "framework": 2, "library": 3, "operating-system": 4,
		"device": 5, "file": 6, "container": 7, "firmware": 8, "device-driver": 9,
		"platform": 10, "machine-learning-model": 11, "data": 12, "cryptographic-asset": 13,
	}
	scopes         = enum{"required": 1, "optional": 2, "excluded": 3}
	identityFields = enum{
		"group": 1, "name": 2, "version": 3, "purl": 4, "cpe": 5, "swid": 6,
		"hash": 7, "omniborId": 8, "swhid": 9,
	}
	techniques = enum{
		"source-code-analysis": 0, "binary-analysis": 1, "manifest-analysis": 2,
		"ast-fingerprint": 3, "hash-comparison": 4, "instrumentation": 5,
		"dynamic-analysis": 6, "filename": 7, "attestation": 8, "other": 9,
	}
)

// enum maps the JSON spelling of an enumeration to its protobuf number.
// Spellings outside the table are written as strings in the same field.
type enum map[string]uint64

func (e enum) name(v uint64) (string, bool) {
	for k, n := range e {
		if n == v {
			return k, true
		}
	}
	return "", false
}

// ToBinary encodes d in the binary form.
func ToBinary(d *Document) ([]byte, error) {
	if d == nil {
		return nil, errs.New(errs.ErrCodeInvalidDocument, "nil document")
	}
	if d.SpecVersion != "" {
		if _, err := CheckSpecVersion(d.SpecVersion); err != nil {
			return nil, err
		}
	}

	var e encoder
	e.str(bomSpecVersion, d.SpecVersion)
	if d.Version != 0 {
		e.varint(bomVersion, uint64(int64(d.Version)))
	}
	e.str(bomSerialNumber, d.SerialNumber)
	if d.Metadata != nil {
		e.msg(bomMetadata, encodeMetadata(d.Metadata))
	}
	for i := range d.Components {
		e.msg(bomComponents, encodeComponent(&d.Components[i]))
	}
	for _, dep := range d.Dependencies {
		e.msg(bomDependencies, encodeDependency(dep))
	}
	e.properties(bomProperties, d.Properties)
	if d.BOMFormat != BOMFormat {
		e.strAlways(fieldFormat, d.BOMFormat)
	}
	e.extra(d.Extra)
	e.b = append(e.b, d.Unknown...)
	return e.b, nil
}

// FromBinary decodes a document written by [ToBinary]. The spec version
// stored in b wins; schemaVersion is used when b carries none and defaults to
// [LatestSpecVersion].
func FromBinary(b []byte, schemaVersion string) (*Document, error) {
	fs, err := parseFields(b)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode binary document")
	}

	d := &Document{BOMFormat: BOMFormat}
	for _, f := range fs {
		switch {
		case f.is(bomSpecVersion, protowire.BytesType):
			d.SpecVersion = string(f.buf)
		case f.is(bomVersion, protowire.VarintType):
			d.Version = int(int64(f.v))
		case f.is(bomSerialNumber, protowire.BytesType):
			d.SerialNumber = string(f.buf)
		case f.is(bomMetadata, protowire.BytesType):
			m, err := decodeMetadata(f.buf)
			if err != nil {
				return nil, err
			}
			d.Metadata = m
		case f.is(bomComponents, protowire.BytesType):
			c, err := decodeComponent(f.buf)
			if err != nil {
				return nil, err
			}
			d.Components = append(d.Components, *c)
		case f.is(bomDependencies, protowire.BytesType):
			dep, err := decodeDependency(f.buf)
			if err != nil {
				return nil, err
			}
			d.Dependencies = append(d.Dependencies, dep)
		case f.is(bomProperties, protowire.BytesType):
			p, err := decodeProperty(f.buf)
			if err != nil {
				return nil, err
			}
			d.Properties = append(d.Properties, p)
		case f.is(fieldFormat, protowire.BytesType):
			d.BOMFormat = string(f.buf)
		case f.is(fieldExtra, protowire.BytesType):
			if d.Extra, err = decodeExtra(d.Extra, f.buf); err != nil {
				return nil, err
			}
		default:
			d.Unknown = append(d.Unknown, f.raw...)
		}
	}

	if d.SpecVersion == "" {
		if d.SpecVersion, err = CheckSpecVersion(schemaVersion); err != nil {
			return nil, err
		}
	} else if _, err := CheckSpecVersion(d.SpecVersion); err != nil {
		return nil, err
	}
	return d, nil
}

// IsJSON reports whether data looks like a JSON document rather than the
// binary form.
func IsJSON(data []byte) bool {
	return firstByte(data) == '{'
}

func encodeMetadata(m *Metadata) []byte {
	var e encoder
	if !m.Timestamp.IsZero() {
		var ts encoder
		if s := m.Timestamp.Unix(); s != 0 {
			ts.varint(1, uint64(s))
		}
		if n := m.Timestamp.Nanosecond(); n != 0 {
			ts.varint(2, uint64(n))
		}
		e.msg(metaTimestamp, ts.b)
	}
	for i := range m.Tools {
		e.msg(metaTools, encodeTool(&m.Tools[i]))
	}
	if m.Component != nil {
		e.msg(metaComponent, encodeComponent(m.Component))
	}
	e.properties(metaProperties, m.Properties)
	e.extra(m.Extra)
	e.b = append(e.b, m.Unknown...)
	return e.b
}

func decodeMetadata(b []byte) (*Metadata, error) {
	fs, err := parseFields(b)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode metadata")
	}
	m := &Metadata{}
	for _, f := range fs {
		switch {
		case f.is(metaTimestamp, protowire.BytesType):
			ts, err := parseFields(f.buf)
			if err != nil {
				return nil, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode timestamp")
			}
			var sec, nsec int64
			for _, t := range ts {
				switch {
				case t.is(1, protowire.VarintType):
					sec = int64(t.v)
				case t.is(2, protowire.VarintType):
					nsec = int64(t.v)
				}
			}
			m.Timestamp = time.Unix(sec, nsec).UTC()
		case f.is(metaTools, protowire.BytesType):
			t, err := decodeTool(f.buf)
			if err != nil {
				return nil, err
			}
			m.Tools = append(m.Tools, t)
		case f.is(metaComponent, protowire.BytesType):
			c, err := decodeComponent(f.buf)
			if err != nil {
				return nil, err
			}
			m.Component = c
		case f.is(metaProperties, protowire.BytesType):
			p, err := decodeProperty(f.buf)
			if err != nil {
				return nil, err
			}
			m.Properties = append(m.Properties, p)
		case f.is(fieldExtra, protowire.BytesType):
			if m.Extra, err = decodeExtra(m.Extra, f.buf); err != nil {
				return nil, err
			}
		default:
			m.Unknown = append(m.Unknown, f.raw...)
		}
	}
	return m, nil
}

func encodeTool(t *Tool) []byte {
	var e encoder
	e.str(toolVendor, t.Vendor)
	e.str(toolName, t.Name)
	e.str(toolVersion, t.Version)
	e.extra(t.Extra)
	e.b = append(e.b, t.Unknown...)
	return e.b
}

func decodeTool(b []byte) (Tool, error) {
	var t Tool
	fs, err := parseFields(b)
	if err != nil {
		return t, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode tool")
	}
	for _, f := range fs {
		switch {
		case f.is(toolVendor, protowire.BytesType):
			t.Vendor = string(f.buf)
		case f.is(toolName, protowire.BytesType):
			t.Name = string(f.buf)
		case f.is(toolVersion, protowire.BytesType):
			t.Version = string(f.buf)
		case f.is(fieldExtra, protowire.BytesType):
			if t.Extra, err = decodeExtra(t.Extra, f.buf); err != nil {
				return t, err
			}
		default:
			t.Unknown = append(t.Unknown, f.raw...)
		}
	}
	return t, nil
}

func encodeComponent(c *Component) []byte {
	var e encoder
	e.enum(compType, c.Type, componentTypes)
	e.str(compBOMRef, c.BOMRef)
	e.str(compAuthor, c.Author)
	e.str(compPublisher, c.Publisher)
	e.str(compGroup, c.Group)
	e.str(compName, c.Name)
	e.str(compVersion, c.Version)
	e.str(compDescription, c.Description)
	e.enum(compScope, c.Scope, scopes)
	for i := range c.Licenses {
		e.msg(compLicenses, encodeLicense(&c.Licenses[i]))
	}
	e.str(compPURL, c.PURL)
	e.properties(compProperties, c.Properties)
	if c.Evidence != nil {
		e.msg(compEvidence, encodeEvidence(c.Evidence))
	}
	e.extra(c.Extra)
	e.b = append(e.b, c.Unknown...)
	return e.b
}

func decodeComponent(b []byte) (*Component, error) {
	fs, err := parseFields(b)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode component")
	}
	c := &Component{}
	for _, f := range fs {
		var ok bool
		switch f.num {
		case compType:
			c.Type, ok = f.enum(componentTypes)
		case compScope:
			c.Scope, ok = f.enum(scopes)
		case compBOMRef:
			c.BOMRef, ok = f.str()
		case compAuthor:
			c.Author, ok = f.str()
		case compPublisher:
			c.Publisher, ok = f.str()
		case compGroup:
			c.Group, ok = f.str()
		case compName:
			c.Name, ok = f.str()
		case compVersion:
			c.Version, ok = f.str()
		case compDescription:
			c.Description, ok = f.str()
		case compPURL:
			c.PURL, ok = f.str()
		case compLicenses:
			var l LicenseChoice
			if l, ok, err = decodeLicense(f); err != nil {
				return nil, err
			}
			if ok {
				c.Licenses = append(c.Licenses, l)
			}
		case compProperties:
			if ok = f.typ == protowire.BytesType; ok {
				p, err := decodeProperty(f.buf)
				if err != nil {
					return nil, err
				}
				c.Properties = append(c.Properties, p)
			}
		case compEvidence:
			if ok = f.typ == protowire.BytesType; ok {
				if c.Evidence, err = decodeEvidence(f.buf); err != nil {
					return nil, err
				}
			}
		case fieldExtra:
			if ok = f.typ == protowire.BytesType; ok {
				if c.Extra, err = decodeExtra(c.Extra, f.buf); err != nil {
					return nil, err
				}
			}
		}
		if !ok {
			c.Unknown = append(c.Unknown, f.raw...)
		}
	}
	return c, nil
}

func encodeLicense(l *LicenseChoice) []byte {
	var e encoder
	if l.License != nil {
		var inner encoder
		inner.str(licenseID, l.License.ID)
		inner.str(licenseName, l.License.Name)
		inner.extra(l.License.Extra)
		inner.b = append(inner.b, l.License.Unknown...)
		e.msg(licenseChoiceLicense, inner.b)
	}
	e.str(licenseChoiceExpression, l.Expression)
	e.extra(l.Extra)
	e.b = append(e.b, l.Unknown...)
	return e.b
}

func decodeLicense(f field) (LicenseChoice, bool, error) {
	var l LicenseChoice
	if f.typ != protowire.BytesType {
		return l, false, nil
	}
	fs, err := parseFields(f.buf)
	if err != nil {
		return l, false, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode license")
	}
	for _, x := range fs {
		switch {
		case x.is(licenseChoiceLicense, protowire.BytesType):
			inner, err := parseFields(x.buf)
			if err != nil {
				return l, false, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode license")
			}
			l.License = &License{}
			for _, y := range inner {
				switch {
				case y.is(licenseID, protowire.BytesType):
					l.License.ID = string(y.buf)
				case y.is(licenseName, protowire.BytesType):
					l.License.Name = string(y.buf)
				case y.is(fieldExtra, protowire.BytesType):
					if l.License.Extra, err = decodeExtra(l.License.Extra, y.buf); err != nil {
						return l, false, err
					}
				default:
					l.License.Unknown = append(l.License.Unknown, y.raw...)
				}
			}
		case x.is(licenseChoiceExpression, protowire.BytesType):
			l.Expression = string(x.buf)
		case x.is(fieldExtra, protowire.BytesType):
			if l.Extra, err = decodeExtra(l.Extra, x.buf); err != nil {
				return l, false, err
			}
		default:
			l.Unknown = append(l.Unknown, x.raw...)
		}
	}
	return l, true, nil
}

func encodeEvidence(ev *Evidence) []byte {
	var e encoder
	for i := range ev.Identity {
		e.msg(evidenceIdentity, encodeIdentity(&ev.Identity[i]))
	}
	e.extra(ev.Extra)
	e.b = append(e.b, ev.Unknown...)
	return e.b
}

func decodeEvidence(b []byte) (*Evidence, error) {
	fs, err := parseFields(b)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode evidence")
	}
	ev := &Evidence{}
	for _, f := range fs {
		switch {
		case f.is(evidenceIdentity, protowire.BytesType):
			id, err := decodeIdentity(f.buf)
			if err != nil {
				return nil, err
			}
			ev.Identity = append(ev.Identity, id)
		case f.is(fieldExtra, protowire.BytesType):
			if ev.Extra, err = decodeExtra(ev.Extra, f.buf); err != nil {
				return nil, err
			}
		default:
			ev.Unknown = append(ev.Unknown, f.raw...)
		}
	}
	return ev, nil
}

func encodeIdentity(id *Identity) []byte {
	var e encoder
	e.enum(identityField, id.Field, identityFields)
	e.float(identityConfidence, id.Confidence)
	for i := range id.Methods {
		e.msg(identityMethods, encodeMethod(&id.Methods[i]))
	}
	e.extra(id.Extra)
	e.b = append(e.b, id.Unknown...)
	return e.b
}

func decodeIdentity(b []byte) (Identity, error) {
	var id Identity
	fs, err := parseFields(b)
	if err != nil {
		return id, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode identity")
	}
	var exact *float64
	for _, f := range fs {
		var ok bool
		switch f.num {
		case identityField:
			id.Field, ok = f.enum(identityFields)
		case identityConfidence:
			id.Confidence = f.float()
			ok = id.Confidence != nil
		case identityMethods:
			if ok = f.typ == protowire.BytesType; ok {
				m, err := decodeMethod(f.buf)
				if err != nil {
					return id, err
				}
				id.Methods = append(id.Methods, m)
			}
		case fieldExact:
			exact = f.float()
			ok = exact != nil
		case fieldExtra:
			if ok = f.typ == protowire.BytesType; ok {
				if id.Extra, err = decodeExtra(id.Extra, f.buf); err != nil {
					return id, err
				}
			}
		}
		if !ok {
			id.Unknown = append(id.Unknown, f.raw...)
		}
	}
	if exact != nil {
		id.Confidence = exact
	}
	return id, nil
}

func encodeMethod(m *Method) []byte {
	var e encoder
	e.enum(methodTechnique, m.Technique, techniques)
	e.float(methodConfidence, m.Confidence)
	e.str(methodValue, m.Value)
	e.extra(m.Extra)
	e.b = append(e.b, m.Unknown...)
	return e.b
}

func decodeMethod(b []byte) (Method, error) {
	var m Method
	fs, err := parseFields(b)
	if err != nil {
		return m, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode method")
	}
	var exact *float64
	for _, f := range fs {
		var ok bool
		switch f.num {
		case methodTechnique:
			m.Technique, ok = f.enum(techniques)
		case methodConfidence:
			m.Confidence = f.float()
			ok = m.Confidence != nil
		case methodValue:
			m.Value, ok = f.str()
		case fieldExact:
			exact = f.float()
			ok = exact != nil
		case fieldExtra:
			if ok = f.typ == protowire.BytesType; ok {
				if m.Extra, err = decodeExtra(m.Extra, f.buf); err != nil {
					return m, err
				}
			}
		}
		if !ok {
			m.Unknown = append(m.Unknown, f.raw...)
		}
	}
	if exact != nil {
		m.Confidence = exact
	}
	return m, nil
}

func encodeDependency(d Dependency) []byte {
	var e encoder
	e.str(depRef, d.Ref)
	for _, r := range d.DependsOn {
		var inner encoder
		inner.str(depRef, r)
		e.msg(depDependencies, inner.b)
	}
	for _, p := range d.Provides {
		e.strAlways(depProvides, p)
	}
	e.extra(d.Extra)
	e.b = append(e.b, d.Unknown...)
	return e.b
}

func decodeDependency(b []byte) (Dependency, error) {
	var d Dependency
	fs, err := parseFields(b)
	if err != nil {
		return d, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode dependency")
	}
	for _, f := range fs {
		switch {
		case f.is(depRef, protowire.BytesType):
			d.Ref = string(f.buf)
		case f.is(depDependencies, protowire.BytesType):
			inner, err := decodeDependency(f.buf)
			if err != nil {
				return d, err
			}
			d.DependsOn = append(d.DependsOn, inner.Ref)
		case f.is(depProvides, protowire.BytesType):
			d.Provides = append(d.Provides, string(f.buf))
		case f.is(fieldExtra, protowire.BytesType):
			if d.Extra, err = decodeExtra(d.Extra, f.buf); err != nil {
				return d, err
			}
		default:
			d.Unknown = append(d.Unknown, f.raw...)
		}
	}
	return d, nil
}

func decodeProperty(b []byte) (Property, error) {
	var p Property
	fs, err := parseFields(b)
	if err != nil {
		return p, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode property")
	}
	for _, f := range fs {
		switch {
		case f.is(propName, protowire.BytesType):
			p.Name = string(f.buf)
		case f.is(propValue, protowire.BytesType):
			p.Value = string(f.buf)
		}
	}
	return p, nil
}

func decodeExtra(m map[string][]byte, b []byte) (map[string][]byte, error) {
	fs, err := parseFields(b)
	if err != nil {
		return m, errs.Wrap(errs.ErrCodeInvalidDocument, err, "decode extra member")
	}
	var key string
	var val []byte
	for _, f := range fs {
		switch {
		case f.is(1, protowire.BytesType):
			key = string(f.buf)
		case f.is(2, protowire.BytesType):
			val = bytes.Clone(f.buf)
		}
	}
	if m == nil {
		m = make(map[string][]byte)
	}
	m[key] = val
	return m, nil
}

type encoder struct {
	b []byte
}

func (e *encoder) str(num protowire.Number, s string) {
	if s != "" {
		e.strAlways(num, s)
	}
}

func (e *encoder) strAlways(num protowire.Number, s string) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, s)
}

func (e *encoder) msg(num protowire.Number, body []byte) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, body)
}

func (e *encoder) varint(num protowire.Number, v uint64) {
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

// float writes v as a protobuf float. When float32 loses part of v the
// exact value follows in fieldExact.
func (e *encoder) float(num protowire.Number, v *float64) {
	if v == nil {
		return
	}
	f := float32(*v)
	e.b = protowire.AppendTag(e.b, num, protowire.Fixed32Type)
	e.b = protowire.AppendFixed32(e.b, math.Float32bits(f))
	if widen(f) != *v {
		e.b = protowire.AppendTag(e.b, fieldExact, protowire.Fixed64Type)
		e.b = protowire.AppendFixed64(e.b, math.Float64bits(*v))
	}
}

// widen returns the float64 with the shortest decimal form of f, so a
// confidence of 0.8 reads back as 0.8.
func widen(f float32) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	if err != nil {
		return float64(f)
	}
	return v
}

func (e *encoder) enum(num protowire.Number, s string, table enum) {
	if s == "" {
		return
	}
	if v, ok := table[s]; ok {
		e.varint(num, v)
		return
	}
	e.strAlways(num, s)
}

func (e *encoder) properties(num protowire.Number, props []Property) {
	for _, p := range props {
		var pe encoder
		pe.str(propName, p.Name)
		pe.str(propValue, p.Value)
		e.msg(num, pe.b)
	}
}

func (e *encoder) extra(m map[string][]byte) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var xe encoder
		xe.strAlways(1, k)
		xe.b = protowire.AppendTag(xe.b, 2, protowire.BytesType)
		xe.b = protowire.AppendBytes(xe.b, m[k])
		e.msg(fieldExtra, xe.b)
	}
}

// field is one decoded wire field. raw holds the tag and value as read.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	buf []byte
	raw []byte
}

func (f field) is(num protowire.Number, typ protowire.Type) bool {
	return f.num == num && f.typ == typ
}

func (f field) str() (string, bool) {
	if f.typ != protowire.BytesType {
		return "", false
	}
	return string(f.buf), true
}

func (f field) enum(table enum) (string, bool) {
	switch f.typ {
	case protowire.VarintType:
		return table.name(f.v)
	case protowire.BytesType:
		return string(f.buf), true
	}
	return "", false
}

func (f field) float() *float64 {
	var v float64
	switch f.typ {
	case protowire.Fixed64Type:
		v = math.Float64frombits(f.v)
	case protowire.Fixed32Type:
		v = widen(math.Float32frombits(uint32(f.v)))
	default:
		return nil
	}
	return &v
}

func parseFields(b []byte) ([]field, error) {
	var out []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			return nil, protowire.ParseError(m)
		}
		f := field{num: num, typ: typ, raw: b[:n+m]}
		val := b[n : n+m]
		switch typ {
		case protowire.VarintType:
			f.v, _ = protowire.ConsumeVarint(val)
		case protowire.Fixed64Type:
			f.v, _ = protowire.ConsumeFixed64(val)
		case protowire.Fixed32Type:
			v, _ := protowire.ConsumeFixed32(val)
			f.v = uint64(v)
		case protowire.BytesType:
			f.buf, _ = protowire.ConsumeBytes(val)
		}
		out = append(out, f)
		b = b[n+m:]
	}
	return out, nil
}
