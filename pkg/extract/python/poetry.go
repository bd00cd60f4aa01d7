// Package python extracts packages and dependency edges from poetry.lock.
package python

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Properties written by this extractor.
const (
	PropCategory       = "poetry:category"
	PropPythonVersions = "poetry:pythonVersions"
)

// PoetryLock extracts poetry.lock files. It provides a full transitive
// closure of the dependency graph.
type PoetryLock struct{}

func (p *PoetryLock) Ecosystem() purl.Ecosystem { return purl.PyPI }
func (p *PoetryLock) Type() string              { return "poetry.lock" }
func (p *PoetryLock) Supports(name string) bool { return name == "poetry.lock" }

type lockFile struct {
	Packages []lockPackage `toml:"package"`
}

type lockPackage struct {
	Name           string         `toml:"name"`
	Version        string         `toml:"version"`
	Description    string         `toml:"description"`
	Category       string         `toml:"category"`
	Optional       bool           `toml:"optional"`
	PythonVersions string         `toml:"python-versions"`
	Dependencies   map[string]any `toml:"dependencies"`
}

// Extract implements [extract.Extractor].
func (p *PoetryLock) Extract(ctx context.Context, content []byte, sourceFile string) (*extract.Result, error) {
	if content == nil {
		return extract.Empty(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var lock lockFile
	if err := toml.Unmarshal(content, &lock); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "parse %s", sourceFile)
	}

	byName := make(map[string]lockPackage, len(lock.Packages))
	for _, pkg := range lock.Packages {
		byName[Normalize(pkg.Name)] = pkg
	}

	res := &extract.Result{}
	incoming := make(map[string]bool)
	refs := make([]string, len(lock.Packages))

	for i, pkg := range lock.Packages {
		refs[i] = extract.Ref(purl.PyPI, "", pkg.Name, pkg.Version)
		if refs[i] == "" {
			continue
		}

		names := make([]string, 0, len(pkg.Dependencies))
		for dep := range pkg.Dependencies {
			names = append(names, dep)
		}
		sort.Strings(names)

		deps := bom.NewRefSet()
		for _, dep := range names {
			target, ok := byName[Normalize(dep)]
			if !ok {
				continue
			}
			if to := extract.Ref(purl.PyPI, "", target.Name, target.Version); to != "" {
				deps.Add(to)
				incoming[to] = true
			}
		}
		res.Dependencies = append(res.Dependencies, extract.RawDependency{Ref: refs[i], DependsOn: deps.Slice()})
	}

	for i, pkg := range lock.Packages {
		if refs[i] == "" {
			continue
		}
		scope := bom.ScopeRequired
		if pkg.Optional || pkg.Category == "dev" {
			scope = bom.ScopeOptional
		}
		raw := extract.RawPackage{
			Name:          pkg.Name,
			Version:       extract.OptString(pkg.Version),
			ComponentType: bom.TypeLibrary,
			Description:   extract.OptString(pkg.Description),
			Scope:         scope,
			Evidence:      extract.ManifestEvidence(sourceFile, 1),
		}
		if pkg.Category != "" {
			raw.Properties = append(raw.Properties, bom.Property{Name: PropCategory, Value: pkg.Category})
		}
		if pkg.PythonVersions != "" && pkg.PythonVersions != "*" {
			raw.Properties = append(raw.Properties, bom.Property{Name: PropPythonVersions, Value: pkg.PythonVersions})
		}
		res.Packages = append(res.Packages, raw)
		if !incoming[refs[i]] {
			res.Roots = append(res.Roots, raw)
		}
	}

	return res, nil
}

var separators = regexp.MustCompile(`[-_.]+`)

// Normalize returns the PEP 503 normalized form of a distribution name.
func Normalize(name string) string {
	return separators.ReplaceAllString(strings.ToLower(name), "-")
}
