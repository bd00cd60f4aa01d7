package extract

import (
	"path/filepath"
	"sort"

	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/purl"
)

// Registry holds the extractors available to a run.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns a registry over the given extractors. Detection tries
// them in the order given.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: append([]Extractor(nil), extractors...)}
}

// Extractors returns the registered extractors.
func (r *Registry) Extractors() []Extractor {
	return append([]Extractor(nil), r.extractors...)
}

// Detect finds an extractor that supports the given file path.
// Returns an error if no extractor matches.
func (r *Registry) Detect(path string) (Extractor, error) {
	name := filepath.Base(path)
	if err := errs.ValidateManifestFilename(name); err != nil {
		return nil, err
	}
	for _, e := range r.extractors {
		if e.Supports(name) {
			return e, nil
		}
	}
	return nil, errs.New(errs.ErrCodeUnsupported, "unsupported manifest: %s", name)
}

// Supports reports whether any extractor handles filename.
func (r *Registry) Supports(filename string) bool {
	_, err := r.Detect(filename)
	return err == nil
}

// Find returns the extractor with the given type.
func (r *Registry) Find(typ string) (Extractor, bool) {
	for _, e := range r.extractors {
		if e.Type() == typ {
			return e, true
		}
	}
	return nil, false
}

// Ecosystems returns the distinct ecosystems covered, sorted.
func (r *Registry) Ecosystems() []purl.Ecosystem {
	seen := make(map[purl.Ecosystem]bool)
	var out []purl.Ecosystem
	for _, e := range r.extractors {
		if !seen[e.Ecosystem()] {
			seen[e.Ecosystem()] = true
			out = append(out, e.Ecosystem())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
