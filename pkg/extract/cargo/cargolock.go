// Package cargo extracts packages and dependency edges from Cargo.lock.
package cargo

import (
	"context"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Properties written by this extractor.
const (
	PropChecksum = "cargo:checksum"
	PropSource   = "cargo:source"
)

// CargoLock extracts Cargo.lock files. Both the current format with inline
// checksums and the legacy format with a [metadata] checksum footer are
// accepted, and a missing footer is not an error.
type CargoLock struct{}

func (c *CargoLock) Ecosystem() purl.Ecosystem { return purl.Cargo }
func (c *CargoLock) Type() string              { return "Cargo.lock" }
func (c *CargoLock) Supports(name string) bool { return name == "Cargo.lock" }

type lockFile struct {
	Version  int               `toml:"version"`
	Packages []lockPackage     `toml:"package"`
	Metadata map[string]string `toml:"metadata"`
}

type lockPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Checksum     string   `toml:"checksum"`
	Dependencies []string `toml:"dependencies"`
}

// Extract implements [extract.Extractor].
func (c *CargoLock) Extract(ctx context.Context, content []byte, sourceFile string) (*extract.Result, error) {
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
	if len(lock.Packages) == 0 {
		return extract.Empty(), nil
	}

	byName := make(map[string][]lockPackage)
	for _, p := range lock.Packages {
		byName[p.Name] = append(byName[p.Name], p)
	}

	res := &extract.Result{}
	var parentRef string
	incoming := make(map[string]bool)

	type node struct {
		ref  string
		deps []string
	}
	var nodes []node

	for _, p := range lock.Packages {
		ref := extract.Ref(purl.Cargo, "", p.Name, p.Version)
		if ref == "" {
			continue
		}
		raw := extract.RawPackage{
			Name:          p.Name,
			Version:       extract.OptString(p.Version),
			ComponentType: bom.TypeLibrary,
			Scope:         bom.ScopeRequired,
			Evidence:      extract.ManifestEvidence(sourceFile, 1),
		}
		if sum := checksum(p, lock.Metadata); sum != "" {
			raw.Properties = append(raw.Properties, bom.Property{Name: PropChecksum, Value: sum})
		}
		if p.Source != "" {
			raw.Properties = append(raw.Properties, bom.Property{Name: PropSource, Value: p.Source})
		}

		// The first workspace member (no source) describes the project.
		if p.Source == "" && parentRef == "" {
			raw.ComponentType = bom.TypeApplication
			raw.Scope = bom.ScopeUnset
			res.Parent = raw
			parentRef = ref
		} else {
			res.Packages = append(res.Packages, raw)
		}

		deps := bom.NewRefSet()
		for _, d := range p.Dependencies {
			if target, ok := resolveDep(d, byName); ok {
				if r := extract.Ref(purl.Cargo, "", target.Name, target.Version); r != "" {
					deps.Add(r)
					incoming[r] = true
				}
			}
		}
		nodes = append(nodes, node{ref: ref, deps: deps.Slice()})
	}

	for _, n := range nodes {
		res.Dependencies = append(res.Dependencies, extract.RawDependency{Ref: n.ref, DependsOn: n.deps})
	}

	// Roots are the parent's dependencies, or every package nothing depends
	// on when the lockfile has no workspace member.
	var rootRefs *bom.RefSet
	for _, n := range nodes {
		if parentRef != "" && n.ref == parentRef {
			rootRefs = bom.NewRefSet(n.deps...)
		}
	}
	for _, r := range res.Packages {
		raw := r.Package()
		ref := extract.Ref(purl.Cargo, "", raw.Name, deref(raw.Version))
		if (rootRefs != nil && rootRefs.Has(ref)) || (rootRefs == nil && !incoming[ref]) {
			res.Roots = append(res.Roots, r)
		}
	}

	return res, nil
}

// resolveDep resolves a dependency entry of the form "name", "name version"
// or "name version (source)".
func resolveDep(entry string, byName map[string][]lockPackage) (lockPackage, bool) {
	fields := strings.Fields(entry)
	if len(fields) == 0 {
		return lockPackage{}, false
	}
	candidates := byName[fields[0]]
	if len(candidates) == 0 {
		return lockPackage{}, false
	}
	if len(fields) == 1 {
		if len(candidates) == 1 {
			return candidates[0], true
		}
		// Ambiguous without a version; pick the highest for determinism.
		sorted := append([]lockPackage(nil), candidates...)
		sort.Slice(sorted, func(i, j int) bool {
			return semver.Compare("v"+sorted[i].Version, "v"+sorted[j].Version) > 0
		})
		return sorted[0], true
	}
	source := ""
	if len(fields) > 2 {
		source = strings.Trim(strings.Join(fields[2:], " "), "()")
	}
	for _, p := range candidates {
		if p.Version == fields[1] && (source == "" || p.Source == source) {
			return p, true
		}
	}
	return lockPackage{}, false
}

func checksum(p lockPackage, metadata map[string]string) string {
	if p.Checksum != "" {
		return p.Checksum
	}
	if metadata == nil || p.Source == "" {
		return ""
	}
	return metadata["checksum "+p.Name+" "+p.Version+" ("+p.Source+")"]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
