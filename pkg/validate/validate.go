// Package validate checks an assembled dependency graph for structural
// defects.
//
// Every rule runs independently and the order of evaluation does not matter.
// All findings are warnings except encoding-integrity violations: a bom-ref
// that claims to be a package URL but is not in canonical encoded form means
// the identifier codec was bypassed, and that is reported as an error. A
// graph with warnings only is still a usable BOM.
//
// Validation never fails and never mutates the graph.
package validate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/stackbom/pkg/bom"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Options configures a [Validator]. The zero value uses the defaults.
type Options struct {
	// ContainerTypes are ecosystems whose components may depend on packages
	// of any other ecosystem. Defaults to [purl.DefaultContainers].
	ContainerTypes []purl.Ecosystem
	// EvidenceEcosystems restricts the SrcFile and evidence completeness
	// checks to library and framework components of these ecosystems.
	// Defaults to [DefaultEvidenceEcosystems].
	EvidenceEcosystems []purl.Ecosystem
	// Decoder memoizes identifier decoding across runs. A private decoder is
	// created when nil.
	Decoder *purl.Decoder
}

// DefaultEvidenceEcosystems are checked for SrcFile and evidence when
// [Options.EvidenceEcosystems] is empty.
var DefaultEvidenceEcosystems = []purl.Ecosystem{purl.Npm, purl.PyPI}

// Result holds the findings of a validation run. Both lists are non-nil.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether there are no errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Validator runs the validation rules. It is safe for concurrent use.
type Validator struct {
	containers []purl.Ecosystem
	evidence   []purl.Ecosystem
	dec        *purl.Decoder
}

// New returns a Validator for opts.
func New(opts Options) *Validator {
	v := &Validator{
		containers: opts.ContainerTypes,
		evidence:   opts.EvidenceEcosystems,
		dec:        opts.Decoder,
	}
	if len(v.containers) == 0 {
		v.containers = purl.DefaultContainers
	}
	if len(v.evidence) == 0 {
		v.evidence = DefaultEvidenceEcosystems
	}
	if v.dec == nil {
		v.dec = purl.NewDecoder(0)
	}
	return v
}

var defaultValidator = New(Options{})

// Validate checks g with the default options.
func Validate(g *bom.Graph) Result {
	return defaultValidator.Validate(g)
}

// Validate checks g against every rule.
func (v *Validator) Validate(g *bom.Graph) Result {
	r := &run{v: v, res: Result{Errors: []string{}, Warnings: []string{}}}
	if g == nil {
		return r.res
	}
	r.encoding(g)
	r.duplicates(g)
	r.references(g)
	r.types(g)
	r.root(g)
	r.completeness(g)
	return r.res
}

type run struct {
	v   *Validator
	res Result
}

func (r *run) warnf(format string, args ...any) {
	r.res.Warnings = append(r.res.Warnings, fmt.Sprintf(format, args...))
}

func (r *run) errorf(format string, args ...any) {
	r.res.Errors = append(r.res.Errors, fmt.Sprintf(format, args...))
}

// eachRef calls fn once for every distinct ref in g, in document order.
func eachRef(g *bom.Graph, fn func(ref string)) {
	seen := bom.NewRefSet()
	visit := func(ref string) {
		if ref != "" && seen.Add(ref) == 1 {
			fn(ref)
		}
	}
	if g.Parent != nil {
		visit(g.Parent.BomRef)
	}
	for _, c := range g.Components {
		visit(c.BomRef)
	}
	for _, e := range g.Dependencies {
		visit(e.Ref)
		for _, d := range e.DependsOn {
			visit(d)
		}
		for _, p := range e.Provides {
			visit(p)
		}
	}
}

// encoding reports package URL refs that are not in canonical encoded form.
func (r *run) encoding(g *bom.Graph) {
	eachRef(g, func(ref string) {
		if !isPURL(ref) {
			return
		}
		p, err := r.v.dec.Decode(ref)
		if err != nil {
			r.errorf("encoding: %v", err)
			return
		}
		if want := purl.Encode(p); want != ref {
			r.errorf("encoding: ref %q is not canonically encoded (expected %q)", ref, want)
		}
	})
}

func (r *run) duplicates(g *bom.Graph) {
	seen := make(map[string]int)
	for _, c := range g.Components {
		seen[c.BomRef]++
		if seen[c.BomRef] == 2 {
			r.warnf("duplicate component bom-ref %q", c.BomRef)
		}
	}
	if g.Parent != nil && seen[g.Parent.BomRef] > 0 {
		r.warnf("parent component %q is repeated in components", g.Parent.BomRef)
	}
	edges := make(map[string]int)
	for _, e := range g.Dependencies {
		edges[e.Ref]++
		if edges[e.Ref] == 2 {
			r.warnf("duplicate dependency entry for ref %q", e.Ref)
		}
	}
}

// references reports every ref used by an edge that names no component. Each
// missing ref is reported once.
func (r *run) references(g *bom.Graph) {
	idx := g.Index()
	missing := bom.NewRefSet()
	check := func(ref, role string) {
		if _, ok := idx[ref]; ok || missing.Has(ref) {
			return
		}
		missing.Add(ref)
		r.warnf("reference: %s %q does not match any component", role, ref)
	}
	for _, e := range g.Dependencies {
		check(e.Ref, "dependency ref")
		for _, d := range e.DependsOn {
			check(d, "dependsOn")
		}
		for _, p := range e.Provides {
			check(p, "provides")
		}
	}
}

// types reports edges between different ecosystems unless the depending side
// is a container type. Refs without a component are left to references.
func (r *run) types(g *bom.Graph) {
	idx := g.Index()
	for _, e := range g.Dependencies {
		from, ok := r.ecosystem(e.Ref)
		if !ok || slices.Contains(r.v.containers, from) {
			continue
		}
		for _, d := range e.DependsOn {
			if _, known := idx[d]; !known {
				continue
			}
			to, ok := r.ecosystem(d)
			if ok && to != from {
				r.warnf("type: %q (%s) depends on %q (%s)", e.Ref, from, d, to)
			}
		}
	}
}

func (r *run) root(g *bom.Graph) {
	if g.Parent == nil || g.Parent.BomRef == "" || len(g.Dependencies) <= 1 {
		return
	}
	if e := g.Edge(g.Parent.BomRef); e != nil && len(e.DependsOn) == 0 {
		r.warnf("dangling root: parent %q has no dependencies", g.Parent.BomRef)
	}
}

// completeness reports the first component whose SrcFile is not a clean
// project-relative path, and for the configured ecosystems the first library
// lacking a SrcFile property and the first lacking evidence.
func (r *run) completeness(g *bom.Graph) {
	var noSrc, noEvidence, badSrc bool
	for _, c := range g.Components {
		src, hasSrc := c.Property(bom.PropSrcFile)
		if hasSrc && !badSrc {
			if err := errs.ValidateSourcePath(src); err != nil {
				badSrc = true
				r.warnf("completeness: component %q has invalid %s %q: %s", c.BomRef, bom.PropSrcFile, src, errs.UserMessage(err))
			}
		}

		if !c.Type.IsLibrary() {
			continue
		}
		eco, ok := c.PURL.Type, c.PURL.Type != ""
		if !ok {
			eco, ok = r.ecosystem(c.BomRef)
		}
		if !ok || !slices.Contains(r.v.evidence, eco) {
			continue
		}
		if !hasSrc && !noSrc {
			noSrc = true
			r.warnf("completeness: component %q has no %s property", c.BomRef, bom.PropSrcFile)
		}
		if c.Evidence == nil && !noEvidence {
			noEvidence = true
			r.warnf("completeness: component %q has no evidence", c.BomRef)
		}
	}
}

func (r *run) ecosystem(ref string) (purl.Ecosystem, bool) {
	if !isPURL(ref) {
		return "", false
	}
	p, err := r.v.dec.Decode(ref)
	if err != nil {
		return "", false
	}
	return p.Type, true
}

func isPURL(s string) bool {
	return len(s) >= 4 && strings.EqualFold(s[:4], "pkg:")
}
