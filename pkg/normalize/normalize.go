// Package normalize turns raw extractor records into canonical components.
//
// Normalization assigns every record a package URL and uses its encoded form
// as the component's bom-ref, records where the record came from in a SrcFile
// property, and merges records that describe the same package. All functions
// are pure: they read their inputs and return new values.
package normalize

import (
	"path/filepath"
	"strings"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Config holds the options that change normalization.
type Config struct {
	// MergeSubspecs folds CocoaPods subspecs into their pod by dropping the
	// subpath from identifiers and edges.
	MergeSubspecs bool
	// ProjectRoot is used to make absolute source paths relative.
	ProjectRoot string
	// DefaultType is the component type for records that do not set one.
	// Empty means library.
	DefaultType bom.ComponentType
}

func (c Config) defaultType() bom.ComponentType {
	if c.DefaultType == "" {
		return bom.TypeLibrary
	}
	return c.DefaultType
}

// Normalize converts raw records read from sourceFile into components. eco is
// the ecosystem of records that do not name their own. Records that map to the
// same bom-ref are merged with [Merge] in input order. Records that cannot be
// given an identifier are skipped and reported in the returned errors.
func Normalize(records []extract.Record, sourceFile string, eco purl.Ecosystem, cfg Config) ([]*bom.Component, []error) {
	var (
		out   []*bom.Component
		errv  []error
		index = make(map[string]*bom.Component, len(records))
	)
	src := SourcePath(sourceFile, cfg.ProjectRoot)

	for _, r := range records {
		if r == nil {
			continue
		}
		c, err := component(r.Package(), src, eco, cfg)
		if err != nil {
			errv = append(errv, err)
			continue
		}
		if existing, ok := index[c.BomRef]; ok {
			Merge(existing, c)
			continue
		}
		index[c.BomRef] = c
		out = append(out, c)
	}
	return out, errv
}

// Component normalizes a single record.
func Component(r extract.Record, sourceFile string, eco purl.Ecosystem, cfg Config) (*bom.Component, error) {
	if r == nil {
		return nil, errs.New(errs.ErrCodeInvalidInput, "nil record")
	}
	return component(r.Package(), SourcePath(sourceFile, cfg.ProjectRoot), eco, cfg)
}

func component(raw extract.RawPackage, src string, eco purl.Ecosystem, cfg Config) (*bom.Component, error) {
	typ := raw.Type
	if typ == "" {
		typ = eco
	}
	subpath := raw.Subpath
	if cfg.MergeSubspecs && typ == purl.CocoaPods {
		subpath = ""
	}

	p, err := purl.New(typ, raw.Namespace, raw.Name, deref(raw.Version), raw.Qualifiers, subpath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidIdentifier, err, "record %q in %s", raw.Name, src)
	}

	c := &bom.Component{
		BomRef:      p.String(),
		PURL:        p,
		Type:        raw.ComponentType,
		Group:       p.Namespace,
		Name:        p.Name,
		Version:     p.Version,
		Author:      deref(raw.Author),
		Description: deref(raw.Description),
		Scope:       raw.Scope,
		Evidence:    raw.Evidence.Clone(),
	}
	if c.Type == "" {
		c.Type = cfg.defaultType()
	}
	if raw.License != nil && *raw.License != "" {
		c.Licenses = []bom.License{ParseLicense(*raw.License)}
	}
	for _, prop := range raw.Properties {
		c.AddProperty(prop.Name, prop.Value)
	}
	if src != "" {
		c.AddProperty(bom.PropSrcFile, src)
	}
	return c, nil
}

// Merge folds src into dst, which keeps its identity. Scalar fields of dst
// win when set and are filled from src otherwise. Properties are
// concatenated, skipping exact duplicates. Evidence is never combined: dst
// keeps its own and only takes src's when it has none.
func Merge(dst, src *bom.Component) {
	if dst == nil || src == nil {
		return
	}
	fill := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}
	fill(&dst.Group, src.Group)
	fill(&dst.Name, src.Name)
	fill(&dst.Version, src.Version)
	fill(&dst.Author, src.Author)
	fill(&dst.Publisher, src.Publisher)
	fill(&dst.Description, src.Description)
	if dst.Type == "" {
		dst.Type = src.Type
	}
	if dst.Scope == bom.ScopeUnset {
		dst.Scope = src.Scope
	}
	if len(dst.Licenses) == 0 && len(src.Licenses) > 0 {
		dst.Licenses = append([]bom.License(nil), src.Licenses...)
	}
	for _, p := range src.Properties {
		dst.AddProperty(p.Name, p.Value)
	}
	if dst.Evidence == nil {
		dst.Evidence = src.Evidence.Clone()
	}
}

// SourcePath returns sourceFile as a slash-separated path relative to
// projectRoot. Paths that cannot be made relative are returned unchanged.
func SourcePath(sourceFile, projectRoot string) string {
	if sourceFile == "" {
		return ""
	}
	p := sourceFile
	if filepath.IsAbs(p) && projectRoot != "" {
		if rel, err := filepath.Rel(projectRoot, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
	}
	p = filepath.ToSlash(p)
	if !errs.IsAbsolutePath(p) {
		p = strings.TrimPrefix(p, "./")
	}
	return p
}

// ParseLicense classifies a license string as an SPDX expression, an SPDX-like
// identifier or a free-form name.
func ParseLicense(s string) bom.License {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, " OR ") || strings.Contains(s, " AND ") ||
		strings.Contains(s, " WITH ") || strings.HasPrefix(s, "("):
		return bom.License{Expression: s}
	case !strings.ContainsAny(s, " \t,;"):
		return bom.License{ID: s}
	}
	return bom.License{Name: s}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
