// Package cocoapods extracts pods and dependency edges from Podfile.lock.
//
// Subspecs ("Firebase/Core") are reported as the parent pod with the subspec
// path as the package URL subpath, so the normalizer can keep them apart or
// merge them into their pod.
package cocoapods

import (
	"context"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Properties written by this extractor.
const (
	PropChecksum = "cocoapods:checksum"
	PropSpecRepo = "cocoapods:specRepo"
)

// PodfileLock extracts Podfile.lock files.
type PodfileLock struct{}

func (p *PodfileLock) Ecosystem() purl.Ecosystem { return purl.CocoaPods }
func (p *PodfileLock) Type() string              { return "Podfile.lock" }
func (p *PodfileLock) Supports(name string) bool { return name == "Podfile.lock" }

type lockFile struct {
	Pods         []yaml.Node         `yaml:"PODS"`
	Dependencies []string            `yaml:"DEPENDENCIES"`
	SpecRepos    map[string][]string `yaml:"SPEC REPOS"`
	Checksums    map[string]string   `yaml:"SPEC CHECKSUMS"`
}

type pod struct {
	name    string // full name, including any subspec
	version string
	deps    []string
}

// Extract implements [extract.Extractor].
func (p *PodfileLock) Extract(ctx context.Context, content []byte, sourceFile string) (*extract.Result, error) {
	if content == nil {
		return extract.Empty(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var lock lockFile
	if err := yaml.Unmarshal(content, &lock); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "parse %s", sourceFile)
	}

	pods := make([]pod, 0, len(lock.Pods))
	for _, n := range lock.Pods {
		pd, err := decodePod(&n)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "parse %s", sourceFile)
		}
		pods = append(pods, pd)
	}

	versions := make(map[string]string, len(pods))
	for _, pd := range pods {
		versions[pd.name] = pd.version
	}

	repos := make(map[string]string)
	for repo, names := range lock.SpecRepos {
		for _, n := range names {
			repos[n] = repo
		}
	}

	direct := make(map[string]bool, len(lock.Dependencies))
	for _, d := range lock.Dependencies {
		direct[nameOf(d)] = true
	}

	res := &extract.Result{}
	for _, pd := range pods {
		raw := p.record(pd, lock.Checksums, repos, sourceFile)
		ref := refOf(pd.name, pd.version)
		if ref == "" {
			continue
		}
		res.Packages = append(res.Packages, raw)
		if direct[pd.name] {
			res.Roots = append(res.Roots, raw)
		}

		deps := bom.NewRefSet()
		for _, d := range pd.deps {
			name := nameOf(d)
			if v, ok := versions[name]; ok {
				if to := refOf(name, v); to != "" {
					deps.Add(to)
				}
			}
		}
		res.Dependencies = append(res.Dependencies, extract.RawDependency{Ref: ref, DependsOn: deps.Slice()})
	}

	return res, nil
}

func (p *PodfileLock) record(pd pod, checksums, repos map[string]string, sourceFile string) extract.RawPackage {
	base, sub := splitSubspec(pd.name)
	raw := extract.RawPackage{
		Name:          base,
		Version:       extract.OptString(pd.version),
		Subpath:       sub,
		ComponentType: bom.TypeLibrary,
		Scope:         bom.ScopeRequired,
		Evidence:      extract.ManifestEvidence(sourceFile, 1),
	}
	if sum, ok := checksums[base]; ok {
		raw.Properties = append(raw.Properties, bom.Property{Name: PropChecksum, Value: sum})
	}
	if repo, ok := repos[base]; ok {
		raw.Properties = append(raw.Properties, bom.Property{Name: PropSpecRepo, Value: repo})
	}
	return raw
}

// decodePod reads one PODS entry, either "Name (1.0)" or a single-key map
// from that string to its dependency list.
func decodePod(n *yaml.Node) (pod, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		name, version := parseEntry(n.Value)
		return pod{name: name, version: version}, nil
	case yaml.MappingNode:
		var m map[string][]string
		if err := n.Decode(&m); err != nil {
			return pod{}, err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) == 0 {
			return pod{}, nil
		}
		name, version := parseEntry(keys[0])
		return pod{name: name, version: version, deps: m[keys[0]]}, nil
	}
	return pod{}, nil
}

// parseEntry splits "Name (1.2.3)" into name and version.
func parseEntry(s string) (string, string) {
	name, rest, ok := strings.Cut(strings.TrimSpace(s), " (")
	if !ok {
		return name, ""
	}
	return name, strings.TrimSuffix(rest, ")")
}

// nameOf returns the pod name of a dependency entry such as "Name (= 1.0)".
func nameOf(s string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(s), " ")
	return name
}

func splitSubspec(name string) (string, string) {
	base, sub, _ := strings.Cut(name, "/")
	return base, sub
}

func refOf(name, version string) string {
	base, sub := splitSubspec(name)
	p, err := purl.New(purl.CocoaPods, "", base, version, nil, sub)
	if err != nil {
		return ""
	}
	return p.String()
}
