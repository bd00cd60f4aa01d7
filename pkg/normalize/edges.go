package normalize

import (
	"strings"

	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Edges canonicalizes raw dependency lists. Every ref is re-encoded so that
// equivalent spellings compare equal, members are deduplicated in first-seen
// order and lists sharing a Ref are unioned. Refs that do not decode are kept
// verbatim and reported, leaving the verdict to validation.
func Edges(deps []extract.RawDependency, cfg Config) ([]*bom.DependencyEdge, []error) {
	var (
		out   []*bom.DependencyEdge
		errv  []error
		index = make(map[string]int, len(deps))
		on    = make(map[string]*bom.RefSet, len(deps))
		prov  = make(map[string]*bom.RefSet, len(deps))
	)

	canon := func(ref string) string {
		c, err := CanonicalRef(ref, cfg)
		if err != nil {
			errv = append(errv, err)
		}
		return c
	}

	for _, d := range deps {
		ref := canon(d.Ref)
		if ref == "" {
			continue
		}
		if _, ok := index[ref]; !ok {
			index[ref] = len(out)
			out = append(out, &bom.DependencyEdge{Ref: ref})
			on[ref] = bom.NewRefSet()
			prov[ref] = bom.NewRefSet()
		}
		for _, r := range d.DependsOn {
			if c := canon(r); c != "" {
				on[ref].Add(c)
			}
		}
		for _, r := range d.Provides {
			if c := canon(r); c != "" {
				prov[ref].Add(c)
			}
		}
	}

	for _, e := range out {
		e.DependsOn = on[e.Ref].Slice()
		e.Provides = prov[e.Ref].Slice()
	}
	return out, errv
}

// CanonicalRef returns the canonical spelling of a bom-ref. Package URL refs
// are decoded and re-encoded; any other ref is returned trimmed. When a
// package URL ref does not decode, the trimmed input is returned along with
// the decode error.
func CanonicalRef(ref string, cfg Config) (string, error) {
	ref = strings.TrimSpace(ref)
	if !isPURL(ref) {
		return ref, nil
	}
	p, err := purl.Decode(ref)
	if err != nil {
		return ref, err
	}
	if cfg.MergeSubspecs && p.Type == purl.CocoaPods {
		p.Subpath = ""
	}
	return purl.Encode(p), nil
}

func isPURL(s string) bool {
	return len(s) >= 4 && strings.EqualFold(s[:4], "pkg:")
}
