// Package golang extracts module requirements from go.mod files.
package golang

import (
	"context"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Properties written by this extractor.
const (
	PropIndirect     = "golang:indirect"
	PropReplacedFrom = "golang:replacedFrom"
	PropLocalReplace = "golang:localReplace"
	PropGoVersion    = "golang:goVersion"
)

// GoMod extracts go.mod files. go.mod lists the module graph's selected
// versions but not the edges between them, so only the module's own edge is
// reported.
type GoMod struct{}

func (g *GoMod) Ecosystem() purl.Ecosystem { return purl.Golang }
func (g *GoMod) Type() string              { return "go.mod" }
func (g *GoMod) Supports(name string) bool { return name == "go.mod" }

// Extract implements [extract.Extractor].
func (g *GoMod) Extract(ctx context.Context, content []byte, sourceFile string) (*extract.Result, error) {
	if content == nil {
		return extract.Empty(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := modfile.Parse(sourceFile, content, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "parse %s", sourceFile)
	}

	replaces := make(map[string]*modfile.Replace, len(f.Replace))
	for _, r := range f.Replace {
		replaces[r.Old.Path+"@"+r.Old.Version] = r
		if r.Old.Version == "" {
			replaces[r.Old.Path] = r
		}
	}

	res := &extract.Result{}
	var direct []string

	for _, req := range f.Require {
		raw := requirement(req, replaces, sourceFile)
		ref := refOf(raw)
		if ref == "" {
			continue
		}
		res.Packages = append(res.Packages, raw)
		if !req.Indirect {
			res.Roots = append(res.Roots, raw)
			direct = append(direct, ref)
		}
	}

	if f.Module != nil && f.Module.Mod.Path != "" {
		ns, name := SplitPath(f.Module.Mod.Path)
		parent := extract.RawPackage{
			Namespace:     ns,
			Name:          name,
			ComponentType: bom.TypeApplication,
		}
		if f.Go != nil {
			parent.Properties = []bom.Property{{Name: PropGoVersion, Value: f.Go.Version}}
		}
		res.Parent = parent
		if ref := refOf(parent); ref != "" {
			res.Dependencies = append(res.Dependencies, extract.RawDependency{
				Ref:       ref,
				DependsOn: bom.Dedupe(direct),
			})
		}
	}

	return res, nil
}

func requirement(req *modfile.Require, replaces map[string]*modfile.Replace, sourceFile string) extract.RawPackage {
	mod := req.Mod
	var props []bom.Property
	if req.Indirect {
		props = append(props, bom.Property{Name: PropIndirect, Value: "true"})
	}

	r, ok := replaces[mod.Path+"@"+mod.Version]
	if !ok {
		r, ok = replaces[mod.Path]
	}
	if ok {
		if modfile.IsDirectoryPath(r.New.Path) {
			props = append(props, bom.Property{Name: PropLocalReplace, Value: r.New.Path})
		} else {
			props = append(props, bom.Property{Name: PropReplacedFrom, Value: mod.Path + "@" + mod.Version})
			mod = r.New
		}
	}

	ns, name := SplitPath(mod.Path)
	scope := bom.ScopeRequired
	confidence := 1.0
	if req.Indirect {
		confidence = 0.8
	}
	return extract.RawPackage{
		Namespace:     ns,
		Name:          name,
		Version:       extract.OptString(mod.Version),
		ComponentType: bom.TypeLibrary,
		Scope:         scope,
		Properties:    props,
		Evidence:      extract.ManifestEvidence(sourceFile, confidence),
	}
}

// SplitPath splits a module path into the package URL namespace and name.
// Major version suffixes stay part of the name path.
func SplitPath(path string) (namespace, name string) {
	prefix, _, _ := module.SplitPathVersion(path)
	i := strings.LastIndex(prefix, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

func refOf(p extract.RawPackage) string {
	v := ""
	if p.Version != nil {
		v = *p.Version
	}
	return extract.Ref(purl.Golang, p.Namespace, p.Name, v)
}
