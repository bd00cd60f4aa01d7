// Package npm extracts packages and dependency edges from npm lockfiles.
//
// package-lock.json versions 2 and 3 are read from the flat "packages" map.
// Version 1 lockfiles, which only carry the nested "dependencies" tree, are
// flattened into the same path-keyed form first, so both share node module
// resolution.
package npm

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

const nodeModules = "node_modules/"

// Properties written by this extractor.
const (
	PropResolved  = "ResolvedUrl"
	PropLocalPath = "LocalNodeModulesPath"
	PropIntegrity = "Integrity"
)

// PackageLock extracts package-lock.json and npm-shrinkwrap.json files.
type PackageLock struct{}

func (p *PackageLock) Ecosystem() purl.Ecosystem { return purl.Npm }
func (p *PackageLock) Type() string              { return "package-lock.json" }
func (p *PackageLock) Supports(name string) bool {
	return name == "package-lock.json" || name == "npm-shrinkwrap.json"
}

type lockFile struct {
	Name            string               `json:"name"`
	Version         string               `json:"version"`
	LockfileVersion int                  `json:"lockfileVersion"`
	Packages        map[string]lockEntry `json:"packages"`
	Dependencies    map[string]v1Entry   `json:"dependencies"`
}

type lockEntry struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Resolved             string            `json:"resolved"`
	Integrity            string            `json:"integrity"`
	License              json.RawMessage   `json:"license"`
	Link                 bool              `json:"link"`
	Dev                  bool              `json:"dev"`
	Optional             bool              `json:"optional"`
	DevOptional          bool              `json:"devOptional"`
	Dependencies         map[string]string `json:"dependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
}

type v1Entry struct {
	Version      string             `json:"version"`
	Resolved     string             `json:"resolved"`
	Integrity    string             `json:"integrity"`
	Dev          bool               `json:"dev"`
	Optional     bool               `json:"optional"`
	Requires     map[string]string  `json:"requires"`
	Dependencies map[string]v1Entry `json:"dependencies"`
}

// record is the typed raw record for one installed package.
type record struct {
	path  string
	name  string
	entry lockEntry
	src   string
}

func (r record) Package() extract.RawPackage {
	ns, name := splitScope(r.name)
	scope := bom.ScopeRequired
	if r.entry.Dev || r.entry.Optional || r.entry.DevOptional {
		scope = bom.ScopeOptional
	}
	raw := extract.RawPackage{
		Namespace:     ns,
		Name:          name,
		Version:       extract.OptString(r.entry.Version),
		ComponentType: bom.TypeLibrary,
		License:       licenseString(r.entry.License),
		Scope:         scope,
		Evidence:      extract.ManifestEvidence(r.src, 1),
	}
	if r.entry.Resolved != "" {
		raw.Properties = append(raw.Properties, bom.Property{Name: PropResolved, Value: r.entry.Resolved})
	}
	if r.entry.Integrity != "" {
		raw.Properties = append(raw.Properties, bom.Property{Name: PropIntegrity, Value: r.entry.Integrity})
	}
	raw.Properties = append(raw.Properties, bom.Property{Name: PropLocalPath, Value: r.path})
	return raw
}

func (r record) ref() string {
	ns, name := splitScope(r.name)
	return extract.Ref(purl.Npm, ns, name, r.entry.Version)
}

// Extract implements [extract.Extractor].
func (p *PackageLock) Extract(ctx context.Context, content []byte, sourceFile string) (*extract.Result, error) {
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

	entries := lock.Packages
	if len(entries) == 0 && len(lock.Dependencies) > 0 {
		entries = flattenV1(lock)
	}
	if len(entries) == 0 {
		return extract.Empty(), nil
	}

	paths := make([]string, 0, len(entries))
	for path := range entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	records := make(map[string]record, len(entries))
	for _, path := range paths {
		e := entries[path]
		if path == "" || e.Link {
			continue
		}
		name := e.Name
		if name == "" {
			name = packageName(path)
		}
		if name == "" {
			continue
		}
		records[path] = record{path: path, name: name, entry: e, src: sourceFile}
	}

	res := &extract.Result{}

	rootEntry := entries[""]
	rootName, rootVersion := rootEntry.Name, rootEntry.Version
	if rootName == "" {
		rootName, rootVersion = lock.Name, lock.Version
	}
	var rootRef string
	if rootName != "" {
		ns, name := splitScope(rootName)
		res.Parent = extract.RawPackage{
			Namespace:     ns,
			Name:          name,
			Version:       extract.OptString(rootVersion),
			ComponentType: bom.TypeApplication,
		}
		rootRef = extract.Ref(purl.Npm, ns, name, rootVersion)
	}

	resolveAll := func(from string, deps ...map[string]string) []string {
		var names []string
		for _, m := range deps {
			for n := range m {
				names = append(names, n)
			}
		}
		sort.Strings(names)
		refs := bom.NewRefSet()
		for _, n := range names {
			if r, ok := resolve(records, entries, from, n); ok {
				if ref := r.ref(); ref != "" {
					refs.Add(ref)
				}
			}
		}
		return refs.Slice()
	}

	if rootRef != "" {
		direct := resolveAll("", rootEntry.Dependencies, rootEntry.DevDependencies,
			rootEntry.OptionalDependencies, rootEntry.PeerDependencies)
		if len(direct) == 0 && len(lock.Dependencies) > 0 {
			// v1 lockfiles do not record the root's own requirements.
			for _, path := range paths {
				if r, ok := records[path]; ok && strings.Count(path, nodeModules) == 1 {
					if ref := r.ref(); ref != "" {
						direct = append(direct, ref)
					}
				}
			}
			direct = bom.Dedupe(direct)
		}
		res.Dependencies = append(res.Dependencies, extract.RawDependency{Ref: rootRef, DependsOn: direct})
		for _, path := range paths {
			r, ok := records[path]
			if !ok {
				continue
			}
			for _, d := range direct {
				if r.ref() == d {
					res.Roots = append(res.Roots, r)
					break
				}
			}
		}
	}

	for _, path := range paths {
		r, ok := records[path]
		if !ok {
			continue
		}
		ref := r.ref()
		if ref == "" {
			continue
		}
		res.Packages = append(res.Packages, r)
		res.Dependencies = append(res.Dependencies, extract.RawDependency{
			Ref:       ref,
			DependsOn: resolveAll(path, r.entry.Dependencies, r.entry.OptionalDependencies, r.entry.PeerDependencies),
		})
	}

	return res, nil
}

// resolve finds the installed package that satisfies a require of name from
// the package at path, walking up the node_modules hierarchy.
func resolve(records map[string]record, entries map[string]lockEntry, from, name string) (record, bool) {
	dir := from
	for {
		candidate := nodeModules + name
		if dir != "" {
			candidate = dir + "/" + candidate
		}
		if r, ok := records[candidate]; ok {
			return r, true
		}
		if e, ok := entries[candidate]; ok && e.Link && e.Resolved != "" {
			if r, ok := records[e.Resolved]; ok {
				return r, true
			}
		}
		if dir == "" {
			return record{}, false
		}
		dir = parentDir(dir)
	}
}

// parentDir strips the last node_modules/<name> from path.
func parentDir(path string) string {
	i := strings.LastIndex(path, nodeModules)
	if i <= 0 {
		return ""
	}
	return strings.TrimSuffix(path[:i], "/")
}

// packageName derives the package name from a lockfile path key.
func packageName(path string) string {
	i := strings.LastIndex(path, nodeModules)
	if i < 0 {
		return ""
	}
	return path[i+len(nodeModules):]
}

func splitScope(name string) (string, string) {
	if strings.HasPrefix(name, "@") {
		if ns, n, ok := strings.Cut(name, "/"); ok {
			return ns, n
		}
	}
	return "", name
}

func licenseString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return extract.OptString(s)
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return extract.OptString(obj.Type)
	}
	return nil
}

func flattenV1(lock lockFile) map[string]lockEntry {
	out := map[string]lockEntry{"": {Name: lock.Name, Version: lock.Version}}
	var walk func(prefix string, deps map[string]v1Entry)
	walk = func(prefix string, deps map[string]v1Entry) {
		for name, d := range deps {
			path := nodeModules + name
			if prefix != "" {
				path = prefix + "/" + path
			}
			out[path] = lockEntry{
				Version:      d.Version,
				Resolved:     d.Resolved,
				Integrity:    d.Integrity,
				Dev:          d.Dev,
				Optional:     d.Optional,
				Dependencies: d.Requires,
			}
			walk(path, d.Dependencies)
		}
	}
	walk("", lock.Dependencies)
	return out
}
