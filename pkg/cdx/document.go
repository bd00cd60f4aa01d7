package cdx

import (
	"slices"
	"time"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// Supported schema versions.
const (
	SpecVersion15 = "1.5"
	SpecVersion16 = "1.6"

	// LatestSpecVersion is used when no version is requested.
	LatestSpecVersion = SpecVersion16

	// BOMFormat is the value of the bomFormat member.
	BOMFormat = "CycloneDX"
)

// SpecVersions lists the supported schema versions, oldest first.
var SpecVersions = []string{SpecVersion15, SpecVersion16}

// CheckSpecVersion returns v, or [LatestSpecVersion] when v is empty, and an
// error when v is not supported.
func CheckSpecVersion(v string) (string, error) {
	if v == "" {
		return LatestSpecVersion, nil
	}
	if !slices.Contains(SpecVersions, v) {
		return "", errs.New(errs.ErrCodeUnsupportedSchema, "unsupported CycloneDX spec version %q (supported: %v)", v, SpecVersions)
	}
	return v, nil
}

// Property is a name/value pair.
type Property = bom.Property

// Document is a CycloneDX BOM.
//
// Every object type below keeps the JSON members it does not model in Extra,
// as compact JSON, and the binary fields it does not model in Unknown, as
// read. Both are written back unchanged.
type Document struct {
	BOMFormat    string
	SpecVersion  string
	SerialNumber string
	Version      int
	Metadata     *Metadata
	Components   []Component
	Dependencies []Dependency
	Properties   []Property

	Extra   map[string][]byte
	Unknown []byte
}

// Metadata is the metadata member of a document.
type Metadata struct {
	Timestamp  time.Time
	Tools      []Tool
	Component  *Component
	Properties []Property
	Extra      map[string][]byte
	Unknown    []byte
}

// Tool is a legacy tool entry.
type Tool struct {
	Vendor  string
	Name    string
	Version string
	Extra   map[string][]byte
	Unknown []byte
}

// Component is a CycloneDX component.
type Component struct {
	Type        string
	BOMRef      string
	Author      string
	Publisher   string
	Group       string
	Name        string
	Version     string
	Description string
	Scope       string
	Licenses    []LicenseChoice
	PURL        string
	Properties  []Property
	Evidence    *Evidence
	Extra       map[string][]byte
	Unknown     []byte
}

// LicenseChoice is either a license or an SPDX expression.
type LicenseChoice struct {
	License    *License
	Expression string
	Extra      map[string][]byte
	Unknown    []byte
}

// License names a license by SPDX id or by free-form name.
type License struct {
	ID      string
	Name    string
	Extra   map[string][]byte
	Unknown []byte
}

// Evidence is the evidence member of a component.
type Evidence struct {
	Identity []Identity
	Extra    map[string][]byte
	Unknown  []byte
}

// Identity is one identity evidence record. A nil Confidence is absent.
type Identity struct {
	Field      string
	Confidence *float64
	Methods    []Method
	Extra      map[string][]byte
	Unknown    []byte
}

// Method is one technique backing an identity.
type Method struct {
	Technique  string
	Confidence *float64
	Value      string
	Extra      map[string][]byte
	Unknown    []byte
}

// Dependency is one entry of the dependencies member.
type Dependency struct {
	Ref       string
	DependsOn []string
	Provides  []string
	Extra     map[string][]byte
	Unknown   []byte
}

// IsEmpty reports whether d holds no components and no dependencies.
func (d *Document) IsEmpty() bool {
	return d == nil || (len(d.Components) == 0 && len(d.Dependencies) == 0 &&
		(d.Metadata == nil || d.Metadata.Component == nil))
}

// Refs returns the bom-refs of the components of d, not including the
// metadata component.
func (d *Document) Refs() []string {
	refs := make([]string, 0, len(d.Components))
	for _, c := range d.Components {
		refs = append(refs, c.BOMRef)
	}
	return refs
}
