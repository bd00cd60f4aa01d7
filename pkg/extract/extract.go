package extract

import (
	"context"

	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Extractor reads one manifest or lockfile and reports the raw packages and
// dependency edges it declares.
type Extractor interface {
	// Ecosystem returns the package URL type of the packages this extractor
	// produces, unless a record overrides it.
	Ecosystem() purl.Ecosystem
	// Type returns the manifest type identifier (e.g., "package-lock.json").
	Type() string
	// Supports reports whether this extractor handles the given filename.
	Supports(filename string) bool
	// Extract parses content read from sourceFile. A nil content yields an
	// empty Result and no error.
	Extract(ctx context.Context, content []byte, sourceFile string) (*Result, error)
}

// Record is a raw package record. Extractors may return their own record
// types as long as they can present themselves as a [RawPackage].
type Record interface {
	Package() RawPackage
}

// RawPackage is the common raw record shape. Nil pointer fields are absent,
// which is distinct from present but empty.
type RawPackage struct {
	Type          purl.Ecosystem // overrides the extractor's ecosystem when set
	Namespace     string
	Name          string
	Version       *string
	Qualifiers    map[string]string
	Subpath       string
	ComponentType bom.ComponentType
	License       *string
	Author        *string
	Description   *string
	Scope         bom.Scope
	Properties    []bom.Property
	Evidence      *bom.Evidence
}

// Package implements [Record].
func (p RawPackage) Package() RawPackage { return p }

// RawDependency is one raw edge list. Refs are package URL strings as
// produced by [Ref]; they are canonicalized during normalization.
type RawDependency struct {
	Ref       string
	DependsOn []string
	Provides  []string
}

// Result is the output of a single extraction.
type Result struct {
	Packages     []Record
	Dependencies []RawDependency
	Roots        []Record // direct dependencies of the parent, when known
	Parent       Record   // the project described by the manifest, when known
}

// Empty returns a Result with no records.
func Empty() *Result {
	return &Result{}
}

// IsEmpty reports whether r carries no records at all.
func (r *Result) IsEmpty() bool {
	return r == nil || (len(r.Packages) == 0 && len(r.Dependencies) == 0 && len(r.Roots) == 0 && r.Parent == nil)
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// OptString returns nil for an empty s and a pointer to s otherwise.
func OptString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ref returns the encoded package URL for the given coordinates, or "" when
// they do not form a valid identifier.
func Ref(eco purl.Ecosystem, namespace, name, version string) string {
	p, err := purl.New(eco, namespace, name, version, nil, "")
	if err != nil {
		return ""
	}
	return p.String()
}
