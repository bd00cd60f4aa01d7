// Package composer extracts packages and dependency edges from composer.lock.
package composer

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Properties written by this extractor.
const (
	PropSourceRef = "composer:sourceReference"
	PropDistURL   = "composer:distUrl"
)

// ComposerLock extracts composer.lock files.
type ComposerLock struct{}

func (c *ComposerLock) Ecosystem() purl.Ecosystem { return purl.Composer }
func (c *ComposerLock) Type() string              { return "composer.lock" }
func (c *ComposerLock) Supports(name string) bool { return name == "composer.lock" }

type lockFile struct {
	Packages    []lockPackage `json:"packages"`
	PackagesDev []lockPackage `json:"packages-dev"`
}

type lockPackage struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Type        string            `json:"type"`
	Description string            `json:"description"`
	License     []string          `json:"license"`
	Authors     []author          `json:"authors"`
	Require     map[string]string `json:"require"`
	Source      struct {
		Reference string `json:"reference"`
	} `json:"source"`
	Dist struct {
		URL string `json:"url"`
	} `json:"dist"`
}

type author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Extract implements [extract.Extractor].
func (c *ComposerLock) Extract(ctx context.Context, content []byte, sourceFile string) (*extract.Result, error) {
	if content == nil {
		return extract.Empty(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var lock lockFile
	if err := json.Unmarshal(content, &lock); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "parse %s", sourceFile)
	}

	type entry struct {
		pkg lockPackage
		dev bool
	}
	var all []entry
	for _, p := range lock.Packages {
		all = append(all, entry{pkg: p})
	}
	for _, p := range lock.PackagesDev {
		all = append(all, entry{pkg: p, dev: true})
	}

	byName := make(map[string]lockPackage, len(all))
	for _, e := range all {
		byName[strings.ToLower(e.pkg.Name)] = e.pkg
	}

	res := &extract.Result{}
	incoming := make(map[string]bool)
	refs := make([]string, len(all))

	for i, e := range all {
		refs[i] = refOf(e.pkg)
		if refs[i] == "" {
			continue
		}
		names := make([]string, 0, len(e.pkg.Require))
		for n := range e.pkg.Require {
			if isPlatform(n) {
				continue
			}
			names = append(names, n)
		}
		sort.Strings(names)

		deps := bom.NewRefSet()
		for _, n := range names {
			if target, ok := byName[strings.ToLower(n)]; ok {
				if to := refOf(target); to != "" {
					deps.Add(to)
					incoming[to] = true
				}
			}
		}
		res.Dependencies = append(res.Dependencies, extract.RawDependency{Ref: refs[i], DependsOn: deps.Slice()})
	}

	for i, e := range all {
		if refs[i] == "" {
			continue
		}
		raw := record(e.pkg, e.dev, sourceFile)
		res.Packages = append(res.Packages, raw)
		if !incoming[refs[i]] {
			res.Roots = append(res.Roots, raw)
		}
	}

	return res, nil
}

func record(p lockPackage, dev bool, sourceFile string) extract.RawPackage {
	ns, name := split(p.Name)
	scope := bom.ScopeRequired
	if dev {
		scope = bom.ScopeOptional
	}
	raw := extract.RawPackage{
		Namespace:     ns,
		Name:          name,
		Version:       extract.OptString(p.Version),
		ComponentType: bom.TypeLibrary,
		Description:   extract.OptString(p.Description),
		Scope:         scope,
		Evidence:      extract.ManifestEvidence(sourceFile, 1),
	}
	if p.Type == "project" || p.Type == "metapackage" {
		raw.ComponentType = bom.TypeApplication
	}
	if len(p.License) > 0 {
		raw.License = extract.String(strings.Join(p.License, " OR "))
	}
	if len(p.Authors) > 0 {
		names := make([]string, 0, len(p.Authors))
		for _, a := range p.Authors {
			if a.Name != "" {
				names = append(names, a.Name)
			}
		}
		raw.Author = extract.OptString(strings.Join(names, ", "))
	}
	if p.Source.Reference != "" {
		raw.Properties = append(raw.Properties, bom.Property{Name: PropSourceRef, Value: p.Source.Reference})
	}
	if p.Dist.URL != "" {
		raw.Properties = append(raw.Properties, bom.Property{Name: PropDistURL, Value: p.Dist.URL})
	}
	return raw
}

func refOf(p lockPackage) string {
	ns, name := split(p.Name)
	return extract.Ref(purl.Composer, ns, name, p.Version)
}

func split(full string) (string, string) {
	if ns, name, ok := strings.Cut(full, "/"); ok {
		return ns, name
	}
	return "", full
}

// isPlatform reports whether a require key names a platform package such as
// php or an extension rather than an installable package.
func isPlatform(name string) bool {
	n := strings.ToLower(name)
	return n == "php" || n == "hhvm" || n == "composer" ||
		strings.HasPrefix(n, "php-") || strings.HasPrefix(n, "ext-") ||
		strings.HasPrefix(n, "lib-") || strings.HasPrefix(n, "composer-")
}
