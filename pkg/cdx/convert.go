package cdx

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/buildinfo"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Option configures [ToDocument].
type Option func(*options)

type options struct {
	timestamp time.Time
	tools     []Tool
	version   int
}

// WithTimestamp sets the metadata timestamp. The default is the current
// time truncated to seconds.
func WithTimestamp(t time.Time) Option {
	return func(o *options) { o.timestamp = t }
}

// WithTools replaces the default tool entry.
func WithTools(tools ...Tool) Option {
	return func(o *options) { o.tools = tools }
}

// WithVersion sets the document version. The default is 1.
func WithVersion(n int) Option {
	return func(o *options) { o.version = n }
}

// DefaultTool describes this program.
func DefaultTool() Tool {
	return Tool{Vendor: buildinfo.Vendor, Name: buildinfo.Name, Version: buildinfo.Version}
}

// ToDocument converts g into a document of the given spec version. An empty
// specVersion selects [LatestSpecVersion].
//
// For "1.5" documents provides lists are dropped and only the first evidence
// identity of each component is kept.
func ToDocument(g *bom.Graph, specVersion string, opts ...Option) (*Document, error) {
	v, err := CheckSpecVersion(specVersion)
	if err != nil {
		return nil, err
	}
	o := options{version: 1, tools: []Tool{DefaultTool()}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timestamp.IsZero() {
		o.timestamp = time.Now().Truncate(time.Second)
	}

	if g == nil {
		g = bom.NewGraph()
	}
	d := &Document{
		BOMFormat:    BOMFormat,
		SpecVersion:  v,
		SerialNumber: SerialNumber(g),
		Version:      o.version,
		Metadata: &Metadata{
			Timestamp: o.timestamp.UTC(),
			Tools:     nilIfEmpty(append([]Tool(nil), o.tools...)),
		},
	}
	if g.Parent != nil {
		c := toComponent(g.Parent, v)
		d.Metadata.Component = &c
	}
	for _, c := range g.Components {
		d.Components = append(d.Components, toComponent(c, v))
	}
	for _, e := range g.Dependencies {
		dep := Dependency{Ref: e.Ref, DependsOn: nilIfEmpty(append([]string(nil), e.DependsOn...))}
		if v != SpecVersion15 {
			dep.Provides = nilIfEmpty(append([]string(nil), e.Provides...))
		}
		d.Dependencies = append(d.Dependencies, dep)
	}
	return d, nil
}

// SerialNumber derives a stable urn:uuid serial number from the refs of g,
// so regenerating an unchanged graph keeps its serial number.
func SerialNumber(g *bom.Graph) string {
	var sb strings.Builder
	sb.WriteString(buildinfo.Name)
	if g != nil {
		if g.Parent != nil {
			sb.WriteString("\n")
			sb.WriteString(g.Parent.BomRef)
		}
		for _, r := range g.Refs() {
			sb.WriteString("\n")
			sb.WriteString(r)
		}
	}
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(sb.String())).String()
}

func toComponent(c *bom.Component, version string) Component {
	out := Component{
		Type:        string(c.Type),
		BOMRef:      c.BomRef,
		Author:      c.Author,
		Publisher:   c.Publisher,
		Group:       c.Group,
		Name:        c.Name,
		Version:     c.Version,
		Description: c.Description,
		Scope:       string(c.Scope),
		Properties:  nilIfEmpty(append([]Property(nil), c.Properties...)),
	}
	if c.PURL.Type != "" {
		out.PURL = c.PURL.String()
	}
	for _, l := range c.Licenses {
		if l.Expression != "" {
			out.Licenses = append(out.Licenses, LicenseChoice{Expression: l.Expression})
			continue
		}
		out.Licenses = append(out.Licenses, LicenseChoice{License: &License{ID: l.ID, Name: l.Name}})
	}
	if c.Evidence != nil {
		ids := c.Evidence.Clone().Identity
		if version == SpecVersion15 && len(ids) > 1 {
			ids = ids[:1]
		}
		ev := &Evidence{}
		for _, id := range ids {
			cid := Identity{Field: id.Field, Confidence: id.Confidence}
			for _, m := range id.Methods {
				cid.Methods = append(cid.Methods, Method{Technique: m.Technique, Confidence: m.Confidence, Value: m.Value})
			}
			ev.Identity = append(ev.Identity, cid)
		}
		out.Evidence = ev
	}
	return out
}

// FromDocument converts d back into a graph. Component package URLs are
// decoded when possible; a component without a bom-ref is keyed by its
// package URL.
func FromDocument(d *Document) (*bom.Graph, error) {
	if d == nil {
		return nil, errs.New(errs.ErrCodeInvalidDocument, "nil document")
	}
	if _, err := CheckSpecVersion(d.SpecVersion); err != nil {
		return nil, err
	}

	g := bom.NewGraph()
	if d.Metadata != nil && d.Metadata.Component != nil {
		g.Parent = fromComponent(d.Metadata.Component)
	}
	for i := range d.Components {
		g.Components = append(g.Components, fromComponent(&d.Components[i]))
	}
	for _, dep := range d.Dependencies {
		g.Dependencies = append(g.Dependencies, &bom.DependencyEdge{
			Ref:       dep.Ref,
			DependsOn: nilIfEmpty(append([]string(nil), dep.DependsOn...)),
			Provides:  nilIfEmpty(append([]string(nil), dep.Provides...)),
		})
	}
	return g, nil
}

func fromComponent(c *Component) *bom.Component {
	out := &bom.Component{
		BomRef:      c.BOMRef,
		Type:        bom.ComponentType(c.Type),
		Group:       c.Group,
		Name:        c.Name,
		Version:     c.Version,
		Author:      c.Author,
		Publisher:   c.Publisher,
		Description: c.Description,
		Scope:       bom.Scope(c.Scope),
		Properties:  nilIfEmpty(append([]bom.Property(nil), c.Properties...)),
	}
	if out.BomRef == "" {
		out.BomRef = c.PURL
	}
	src := c.PURL
	if src == "" {
		src = c.BOMRef
	}
	if p, err := purl.Decode(src); err == nil {
		out.PURL = p
	}
	for _, l := range c.Licenses {
		switch {
		case l.Expression != "":
			out.Licenses = append(out.Licenses, bom.License{Expression: l.Expression})
		case l.License != nil:
			out.Licenses = append(out.Licenses, bom.License{ID: l.License.ID, Name: l.License.Name})
		}
	}
	if c.Evidence != nil {
		ev := &bom.Evidence{}
		for _, id := range c.Evidence.Identity {
			bid := bom.Identity{Field: id.Field, Confidence: id.Confidence}
			for _, m := range id.Methods {
				bid.Methods = append(bid.Methods, bom.Method{Technique: m.Technique, Confidence: m.Confidence, Value: m.Value})
			}
			ev.Identity = append(ev.Identity, bid)
		}
		out.Evidence = ev.Clone()
	}
	return out
}

// Convert returns d as a document of specVersion. An empty specVersion or
// the document's own version returns d unchanged. Otherwise d is rebuilt
// from its graph, keeping the serial number, version, timestamp and tools;
// members this package does not model are dropped.
func Convert(d *Document, specVersion string) (*Document, error) {
	if d == nil {
		return nil, errs.New(errs.ErrCodeInvalidDocument, "nil document")
	}
	if specVersion == "" || specVersion == d.SpecVersion {
		return d, nil
	}
	g, err := FromDocument(d)
	if err != nil {
		return nil, err
	}
	var opts []Option
	if d.Version > 0 {
		opts = append(opts, WithVersion(d.Version))
	}
	if d.Metadata != nil {
		opts = append(opts, WithTimestamp(d.Metadata.Timestamp), WithTools(d.Metadata.Tools...))
	}
	out, err := ToDocument(g, specVersion, opts...)
	if err != nil {
		return nil, err
	}
	if d.SerialNumber != "" {
		out.SerialNumber = d.SerialNumber
	}
	return out, nil
}
