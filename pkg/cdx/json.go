package cdx

import (
	"bytes"
	"encoding/json"
	"slices"
	"sort"
	"time"
)

var (
	documentKeys   = []string{"bomFormat", "specVersion", "serialNumber", "version", "metadata", "components", "dependencies", "properties"}
	metadataKeys   = []string{"timestamp", "tools", "component", "properties"}
	toolKeys       = []string{"vendor", "name", "version"}
	componentKeys  = []string{"type", "bom-ref", "author", "publisher", "group", "name", "version", "description", "scope", "licenses", "purl", "properties", "evidence"}
	licenseKeys    = []string{"license", "expression"}
	licenseIDKeys  = []string{"id", "name"}
	evidenceKeys   = []string{"identity"}
	identityKeys   = []string{"field", "confidence", "methods"}
	methodKeys     = []string{"technique", "confidence", "value"}
	dependencyKeys = []string{"ref", "dependsOn", "provides"}
)

type wireDocument struct {
	BOMFormat    string            `json:"bomFormat"`
	SpecVersion  string            `json:"specVersion"`
	SerialNumber string            `json:"serialNumber,omitempty"`
	Version      int               `json:"version"`
	Metadata     json.RawMessage   `json:"metadata,omitempty"`
	Components   []json.RawMessage `json:"components"`
	Dependencies []json.RawMessage `json:"dependencies"`
	Properties   []Property        `json:"properties,omitempty"`
}

type wireMetadata struct {
	Timestamp  string          `json:"timestamp,omitempty"`
	Tools      json.RawMessage `json:"tools,omitempty"`
	Component  json.RawMessage `json:"component,omitempty"`
	Properties []Property      `json:"properties,omitempty"`
}

type wireTool struct {
	Vendor  string `json:"vendor,omitempty"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type wireComponent struct {
	Type        string            `json:"type"`
	BOMRef      string            `json:"bom-ref,omitempty"`
	Author      string            `json:"author,omitempty"`
	Publisher   string            `json:"publisher,omitempty"`
	Group       string            `json:"group,omitempty"`
	Name        string            `json:"name"`
	Version     string            `json:"version,omitempty"`
	Description string            `json:"description,omitempty"`
	Scope       string            `json:"scope,omitempty"`
	Licenses    []json.RawMessage `json:"licenses,omitempty"`
	PURL        string            `json:"purl,omitempty"`
	Properties  []Property        `json:"properties,omitempty"`
	Evidence    json.RawMessage   `json:"evidence,omitempty"`
}

type wireLicenseChoice struct {
	License    json.RawMessage `json:"license,omitempty"`
	Expression string          `json:"expression,omitempty"`
}

type wireLicense struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type wireEvidence struct {
	Identity json.RawMessage `json:"identity,omitempty"`
}

type wireIdentity struct {
	Field      string            `json:"field"`
	Confidence *float64          `json:"confidence,omitempty"`
	Methods    []json.RawMessage `json:"methods,omitempty"`
}

type wireMethod struct {
	Technique  string   `json:"technique"`
	Confidence *float64 `json:"confidence,omitempty"`
	Value      string   `json:"value,omitempty"`
}

type wireDependency struct {
	Ref       string   `json:"ref"`
	DependsOn []string `json:"dependsOn"`
	Provides  []string `json:"provides,omitempty"`
}

// MarshalJSON encodes d in the shape of its spec version.
func (d Document) MarshalJSON() ([]byte, error) {
	w := wireDocument{
		BOMFormat:    d.BOMFormat,
		SpecVersion:  d.SpecVersion,
		SerialNumber: d.SerialNumber,
		Version:      d.Version,
		Components:   make([]json.RawMessage, 0, len(d.Components)),
		Dependencies: make([]json.RawMessage, 0, len(d.Dependencies)),
		Properties:   d.Properties,
	}
	if d.Metadata != nil {
		b, err := d.Metadata.marshal(d.SpecVersion)
		if err != nil {
			return nil, err
		}
		w.Metadata = b
	}
	for i := range d.Components {
		b, err := d.Components[i].marshal(d.SpecVersion)
		if err != nil {
			return nil, err
		}
		w.Components = append(w.Components, b)
	}
	for i := range d.Dependencies {
		b, err := d.Dependencies[i].marshal()
		if err != nil {
			return nil, err
		}
		w.Dependencies = append(w.Dependencies, b)
	}
	return marshalObject(w, documentKeys, d.Extra)
}

// UnmarshalJSON decodes either schema version. It does not check bomFormat
// or specVersion; see [ReadJSON].
func (d *Document) UnmarshalJSON(data []byte) error {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtra(data, documentKeys)
	if err != nil {
		return err
	}
	*d = Document{
		BOMFormat:    w.BOMFormat,
		SpecVersion:  w.SpecVersion,
		SerialNumber: w.SerialNumber,
		Version:      w.Version,
		Properties:   nilIfEmpty(w.Properties),
		Extra:        extra,
	}
	if isPresent(w.Metadata) {
		d.Metadata = &Metadata{}
		if err := d.Metadata.unmarshal(w.Metadata); err != nil {
			return err
		}
	}
	for _, raw := range w.Components {
		var c Component
		if err := c.unmarshal(raw); err != nil {
			return err
		}
		d.Components = append(d.Components, c)
	}
	for _, raw := range w.Dependencies {
		var dep Dependency
		if err := dep.unmarshal(raw); err != nil {
			return err
		}
		d.Dependencies = append(d.Dependencies, dep)
	}
	return nil
}

func (m *Metadata) marshal(version string) ([]byte, error) {
	w := wireMetadata{Properties: m.Properties}
	if !m.Timestamp.IsZero() {
		w.Timestamp = m.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	if len(m.Tools) > 0 {
		tools := make([]json.RawMessage, 0, len(m.Tools))
		for i := range m.Tools {
			b, err := m.Tools[i].marshal()
			if err != nil {
				return nil, err
			}
			tools = append(tools, b)
		}
		b, err := json.Marshal(tools)
		if err != nil {
			return nil, err
		}
		w.Tools = b
	}
	if m.Component != nil {
		b, err := m.Component.marshal(version)
		if err != nil {
			return nil, err
		}
		w.Component = b
	}
	known := metadataKeys
	if w.Tools == nil {
		// Tools in the newer object form live in Extra.
		known = without(known, "tools")
	}
	if w.Timestamp == "" {
		known = without(known, "timestamp")
	}
	return marshalObject(w, known, m.Extra)
}

func (m *Metadata) unmarshal(data []byte) error {
	var w wireMetadata
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	known := metadataKeys
	m.Properties = nilIfEmpty(w.Properties)

	if w.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, w.Timestamp); err == nil {
			m.Timestamp = t.UTC()
		} else {
			known = without(known, "timestamp")
		}
	}
	if isPresent(w.Tools) {
		if tools, ok := unmarshalTools(w.Tools); ok {
			m.Tools = tools
		} else {
			known = without(known, "tools")
		}
	}
	if isPresent(w.Component) {
		m.Component = &Component{}
		if err := m.Component.unmarshal(w.Component); err != nil {
			return err
		}
	}

	extra, err := splitExtra(data, known)
	if err != nil {
		return err
	}
	m.Extra = extra
	return nil
}

// unmarshalTools decodes the legacy array form of tools. It reports false
// for anything else, which is then kept verbatim.
func unmarshalTools(data []byte) ([]Tool, bool) {
	if firstByte(data) != '[' {
		return nil, false
	}
	var raws []json.RawMessage
	if json.Unmarshal(data, &raws) != nil {
		return nil, false
	}
	var tools []Tool
	for _, raw := range raws {
		var t Tool
		if firstByte(raw) != '{' || t.unmarshal(raw) != nil {
			return nil, false
		}
		tools = append(tools, t)
	}
	return tools, true
}

func (t *Tool) marshal() ([]byte, error) {
	return marshalObject(wireTool{Vendor: t.Vendor, Name: t.Name, Version: t.Version}, toolKeys, t.Extra)
}

func (t *Tool) unmarshal(data []byte) error {
	var w wireTool
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtra(data, toolKeys)
	if err != nil {
		return err
	}
	*t = Tool{Vendor: w.Vendor, Name: w.Name, Version: w.Version, Extra: extra}
	return nil
}

func (c *Component) marshal(version string) ([]byte, error) {
	w := wireComponent{
		Type:        c.Type,
		BOMRef:      c.BOMRef,
		Author:      c.Author,
		Publisher:   c.Publisher,
		Group:       c.Group,
		Name:        c.Name,
		Version:     c.Version,
		Description: c.Description,
		Scope:       c.Scope,
		PURL:        c.PURL,
		Properties:  c.Properties,
	}
	for i := range c.Licenses {
		b, err := c.Licenses[i].marshal()
		if err != nil {
			return nil, err
		}
		w.Licenses = append(w.Licenses, b)
	}
	if c.Evidence != nil {
		b, err := c.Evidence.marshal(version)
		if err != nil {
			return nil, err
		}
		w.Evidence = b
	}
	return marshalObject(w, componentKeys, c.Extra)
}

func (c *Component) unmarshal(data []byte) error {
	var w wireComponent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtra(data, componentKeys)
	if err != nil {
		return err
	}
	*c = Component{
		Type:        w.Type,
		BOMRef:      w.BOMRef,
		Author:      w.Author,
		Publisher:   w.Publisher,
		Group:       w.Group,
		Name:        w.Name,
		Version:     w.Version,
		Description: w.Description,
		Scope:       w.Scope,
		PURL:        w.PURL,
		Properties:  nilIfEmpty(w.Properties),
		Extra:       extra,
	}
	for _, raw := range w.Licenses {
		var l LicenseChoice
		if err := l.unmarshal(raw); err != nil {
			return err
		}
		c.Licenses = append(c.Licenses, l)
	}
	if isPresent(w.Evidence) {
		c.Evidence = &Evidence{}
		if err := c.Evidence.unmarshal(w.Evidence); err != nil {
			return err
		}
	}
	return nil
}

func (l *LicenseChoice) marshal() ([]byte, error) {
	w := wireLicenseChoice{Expression: l.Expression}
	if l.License != nil {
		b, err := marshalObject(wireLicense{ID: l.License.ID, Name: l.License.Name}, licenseIDKeys, l.License.Extra)
		if err != nil {
			return nil, err
		}
		w.License = b
	}
	return marshalObject(w, licenseKeys, l.Extra)
}

func (l *LicenseChoice) unmarshal(data []byte) error {
	var w wireLicenseChoice
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtra(data, licenseKeys)
	if err != nil {
		return err
	}
	*l = LicenseChoice{Expression: w.Expression, Extra: extra}
	if isPresent(w.License) {
		var wl wireLicense
		if err := json.Unmarshal(w.License, &wl); err != nil {
			return err
		}
		lextra, err := splitExtra(w.License, licenseIDKeys)
		if err != nil {
			return err
		}
		l.License = &License{ID: wl.ID, Name: wl.Name, Extra: lextra}
	}
	return nil
}

// marshal writes identity as a single object for 1.5 when there is exactly
// one entry, and as an array otherwise.
func (e *Evidence) marshal(version string) ([]byte, error) {
	var w wireEvidence
	if len(e.Identity) > 0 {
		ids := make([]json.RawMessage, 0, len(e.Identity))
		for i := range e.Identity {
			b, err := e.Identity[i].marshal()
			if err != nil {
				return nil, err
			}
			ids = append(ids, b)
		}
		if version == SpecVersion15 && len(ids) == 1 {
			w.Identity = ids[0]
		} else {
			b, err := json.Marshal(ids)
			if err != nil {
				return nil, err
			}
			w.Identity = b
		}
	}
	return marshalObject(w, evidenceKeys, e.Extra)
}

func (e *Evidence) unmarshal(data []byte) error {
	var w wireEvidence
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if isPresent(w.Identity) {
		raws := []json.RawMessage{w.Identity}
		if firstByte(w.Identity) != '{' {
			raws = nil
			if err := json.Unmarshal(w.Identity, &raws); err != nil {
				return err
			}
		}
		for _, raw := range raws {
			var id Identity
			if err := id.unmarshal(raw); err != nil {
				return err
			}
			e.Identity = append(e.Identity, id)
		}
	}
	extra, err := splitExtra(data, evidenceKeys)
	if err != nil {
		return err
	}
	e.Extra = extra
	return nil
}

func (id *Identity) marshal() ([]byte, error) {
	w := wireIdentity{Field: id.Field, Confidence: id.Confidence}
	for i := range id.Methods {
		m := &id.Methods[i]
		b, err := marshalObject(wireMethod{Technique: m.Technique, Confidence: m.Confidence, Value: m.Value}, methodKeys, m.Extra)
		if err != nil {
			return nil, err
		}
		w.Methods = append(w.Methods, b)
	}
	return marshalObject(w, identityKeys, id.Extra)
}

func (id *Identity) unmarshal(data []byte) error {
	var w wireIdentity
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtra(data, identityKeys)
	if err != nil {
		return err
	}
	*id = Identity{Field: w.Field, Confidence: w.Confidence, Extra: extra}
	for _, raw := range w.Methods {
		var wm wireMethod
		if err := json.Unmarshal(raw, &wm); err != nil {
			return err
		}
		mextra, err := splitExtra(raw, methodKeys)
		if err != nil {
			return err
		}
		id.Methods = append(id.Methods, Method{Technique: wm.Technique, Confidence: wm.Confidence, Value: wm.Value, Extra: mextra})
	}
	return nil
}

func (d *Dependency) marshal() ([]byte, error) {
	w := wireDependency{Ref: d.Ref, DependsOn: d.DependsOn, Provides: d.Provides}
	if w.DependsOn == nil {
		w.DependsOn = []string{}
	}
	return marshalObject(w, dependencyKeys, d.Extra)
}

func (d *Dependency) unmarshal(data []byte) error {
	var w wireDependency
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtra(data, dependencyKeys)
	if err != nil {
		return err
	}
	*d = Dependency{
		Ref:       w.Ref,
		DependsOn: nilIfEmpty(w.DependsOn),
		Provides:  nilIfEmpty(w.Provides),
		Extra:     extra,
	}
	return nil
}

// marshalObject encodes v, which must encode as a JSON object, and appends
// the members of extra whose keys are not in known, sorted by key.
func marshalObject(v any, known []string, extra map[string][]byte) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if !slices.Contains(known, k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return b, nil
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(b[:len(b)-1])
	for _, k := range keys {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		if err := json.Compact(&buf, extra[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// splitExtra returns the members of the JSON object data whose keys are not
// in known, compacted, or nil when there are none.
func splitExtra(data []byte, known []string) (map[string][]byte, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var extra map[string][]byte
	for k, v := range all {
		if slices.Contains(known, k) {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return nil, err
		}
		if extra == nil {
			extra = make(map[string][]byte)
		}
		extra[k] = buf.Bytes()
	}
	return extra, nil
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func firstByte(raw []byte) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func without(keys []string, drop string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != drop {
			out = append(out, k)
		}
	}
	return out
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
