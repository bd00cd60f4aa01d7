package bom

import (
	"github.com/matzehuels/stackbom/pkg/purl"
)

// ComponentType classifies a component. Values follow CycloneDX.
type ComponentType string

// Component types.
const (
	TypeApplication     ComponentType = "application"
	TypeFramework       ComponentType = "framework"
	TypeLibrary         ComponentType = "library"
	TypeContainer       ComponentType = "container"
	TypePlatform        ComponentType = "platform"
	TypeOperatingSystem ComponentType = "operating-system"
	TypeDevice          ComponentType = "device"
	TypeDeviceDriver    ComponentType = "device-driver"
	TypeFirmware        ComponentType = "firmware"
	TypeFile            ComponentType = "file"
	TypeMLModel         ComponentType = "machine-learning-model"
	TypeData            ComponentType = "data"
)

// IsLibrary reports whether t is a library or framework.
func (t ComponentType) IsLibrary() bool {
	return t == TypeLibrary || t == TypeFramework
}

// Scope is the optional dependency scope. The zero value means unset, which
// is distinct from ScopeRequired.
type Scope string

// Scopes.
const (
	ScopeUnset    Scope = ""
	ScopeRequired Scope = "required"
	ScopeOptional Scope = "optional"
	ScopeExcluded Scope = "excluded"
)

// Property names stackbom writes itself.
const (
	PropSrcFile = "SrcFile"
)

// Property is a name/value pair. Lists of properties are ordered and may hold
// duplicates.
type Property struct {
	Name  string `json:"name" bson:"name"`
	Value string `json:"value" bson:"value"`
}

// License is one license entry. Exactly one of the fields is normally set.
type License struct {
	ID         string `json:"id,omitempty" bson:"id,omitempty"`
	Name       string `json:"name,omitempty" bson:"name,omitempty"`
	Expression string `json:"expression,omitempty" bson:"expression,omitempty"`
}

// String returns whichever field is set.
func (l License) String() string {
	switch {
	case l.Expression != "":
		return l.Expression
	case l.ID != "":
		return l.ID
	}
	return l.Name
}

// Method is one identification technique backing an identity claim.
type Method struct {
	Technique  string   `json:"technique" bson:"technique"`
	Confidence *float64 `json:"confidence,omitempty" bson:"confidence,omitempty"`
	Value      string   `json:"value,omitempty" bson:"value,omitempty"`
}

// Identity is an identity evidence record. A nil Confidence means the
// extractor did not report one.
type Identity struct {
	Field      string   `json:"field" bson:"field"`
	Confidence *float64 `json:"confidence,omitempty" bson:"confidence,omitempty"`
	Methods    []Method `json:"methods,omitempty" bson:"methods,omitempty"`
}

// Evidence holds the identity evidence of a component.
type Evidence struct {
	Identity []Identity `json:"identity,omitempty" bson:"identity,omitempty"`
}

// Clone returns a deep copy of e.
func (e *Evidence) Clone() *Evidence {
	if e == nil {
		return nil
	}
	out := &Evidence{}
	for _, id := range e.Identity {
		c := Identity{Field: id.Field, Confidence: cloneFloat(id.Confidence)}
		for _, m := range id.Methods {
			c.Methods = append(c.Methods, Method{Technique: m.Technique, Confidence: cloneFloat(m.Confidence), Value: m.Value})
		}
		out.Identity = append(out.Identity, c)
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to v, for building evidence literals.
func Float(v float64) *float64 { return &v }

// Component is a node of the dependency graph, keyed by BomRef.
type Component struct {
	BomRef      string          `json:"bom-ref" bson:"bom_ref"`
	PURL        purl.PackageURL `json:"-" bson:"-"`
	Type        ComponentType   `json:"type" bson:"type"`
	Group       string          `json:"group,omitempty" bson:"group,omitempty"`
	Name        string          `json:"name" bson:"name"`
	Version     string          `json:"version,omitempty" bson:"version,omitempty"`
	Author      string          `json:"author,omitempty" bson:"author,omitempty"`
	Publisher   string          `json:"publisher,omitempty" bson:"publisher,omitempty"`
	Description string          `json:"description,omitempty" bson:"description,omitempty"`
	Licenses    []License       `json:"licenses,omitempty" bson:"licenses,omitempty"`
	Scope       Scope           `json:"scope,omitempty" bson:"scope,omitempty"`
	Properties  []Property      `json:"properties,omitempty" bson:"properties,omitempty"`
	Evidence    *Evidence       `json:"evidence,omitempty" bson:"evidence,omitempty"`
}

// Ecosystem returns the package URL type of the component.
func (c *Component) Ecosystem() purl.Ecosystem {
	return c.PURL.Type
}

// Property returns the first value of the named property.
func (c *Component) Property(name string) (string, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// HasProperty reports whether the exact name/value pair is present.
func (c *Component) HasProperty(name, value string) bool {
	for _, p := range c.Properties {
		if p.Name == name && p.Value == value {
			return true
		}
	}
	return false
}

// AddProperty appends a property unless the exact pair is already present.
func (c *Component) AddProperty(name, value string) {
	if c.HasProperty(name, value) {
		return
	}
	c.Properties = append(c.Properties, Property{Name: name, Value: value})
}

// Clone returns a deep copy of c.
func (c *Component) Clone() *Component {
	if c == nil {
		return nil
	}
	out := *c
	out.PURL.Qualifiers = append(purl.Qualifiers(nil), c.PURL.Qualifiers...)
	if len(out.PURL.Qualifiers) == 0 {
		out.PURL.Qualifiers = nil
	}
	out.Licenses = cloneSlice(c.Licenses)
	out.Properties = cloneSlice(c.Properties)
	out.Evidence = c.Evidence.Clone()
	return &out
}

func cloneSlice[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return append([]T(nil), s...)
}
