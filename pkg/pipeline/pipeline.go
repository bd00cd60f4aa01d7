// Package pipeline turns a project directory into a CycloneDX document.
//
// It is shared by the CLI and the HTTP server so both run the same stages
// with the same defaults:
//
//  1. Discover: find manifests below the project root
//  2. Extract: run one extractor per manifest, concurrently, and normalize
//     each result into a per-file graph (cached by manifest content)
//  3. Assemble: merge all per-file graphs once every extraction finished
//  4. Validate: check the merged graph
//  5. Serialize: build the document and compare it with the stored one
//
// A failed extraction never fails the run; its manifest contributes an
// empty graph and the failure is reported in [Result.Files].
//
// # Usage
//
//	runner := pipeline.NewRunner(pipeline.RunnerOptions{Cache: c, Store: st, Logger: logger})
//	defer runner.Close()
//	result, err := runner.Execute(ctx, pipeline.Options{ProjectRoot: "."})
//	if err != nil {
//	    return err
//	}
//	if !result.Validation.OK() {
//	    // encoding errors
//	}
package pipeline

import (
	"io"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackbom/pkg/assemble"
	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/normalize"
	"github.com/matzehuels/stackbom/pkg/validate"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

// DefaultCacheTTL is how long a cached extraction stays valid.
const DefaultCacheTTL = 7 * 24 * time.Hour

// DefaultWorkers returns the extraction concurrency used when
// [Options.Workers] is zero.
func DefaultWorkers() int {
	return min(runtime.NumCPU(), 8)
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures one pipeline run.
type Options struct {
	// ProjectRoot is the directory to scan. Required.
	ProjectRoot string `json:"project_root"`
	// Paths lists manifests to use instead of discovering them. Relative
	// paths are resolved against ProjectRoot.
	Paths []string `json:"paths,omitempty"`
	// SpecVersion of the produced document. Defaults to the latest.
	SpecVersion string `json:"spec_version,omitempty"`
	// Workers bounds concurrent extractions. Zero selects DefaultWorkers.
	Workers int `json:"workers,omitempty"`
	// Refresh skips cache reads; results are still written.
	Refresh  bool          `json:"refresh,omitempty"`
	CacheTTL time.Duration `json:"-"`
	// Persist saves the produced document to the runner's store.
	Persist bool `json:"persist,omitempty"`

	Normalize normalize.Config `json:"-"`
	Assemble  assemble.Config  `json:"-"`
	Validate  validate.Options `json:"-"`

	// Runtime options (not serialized)
	Logger    *log.Logger `json:"-"`
	Timestamp time.Time   `json:"-"` // document timestamp; zero means now
	Tools     []cdx.Tool  `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.ProjectRoot == "" {
		return errs.New(errs.ErrCodeInvalidInput, "project root is required")
	}
	root, err := filepath.Abs(o.ProjectRoot)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInvalidPath, err, "resolve %s", o.ProjectRoot)
	}
	o.ProjectRoot = root
	o.Normalize.ProjectRoot = root

	v, err := cdx.CheckSpecVersion(o.SpecVersion)
	if err != nil {
		return err
	}
	o.SpecVersion = v

	if o.Workers < 0 {
		return errs.New(errs.ErrCodeInvalidInput, "workers must not be negative")
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers()
	}
	if o.CacheTTL == 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// =============================================================================
// Results
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	// Graph is the assembled, validated graph.
	Graph *bom.Graph
	// Document is Graph in document form.
	Document *cdx.Document

	// Files has one entry per manifest, in discovery order.
	Files []FileResult
	// Report holds the assembler's findings.
	Report assemble.Report
	// Validation holds the validator's findings.
	Validation validate.Result
	// Warnings collects every non-fatal finding of the run: normalization,
	// assembly and validation, in that order.
	Warnings []string

	// Diff compares Document with the stored document of the project. It
	// is nil when there was none.
	Diff *Diff

	Stats Stats
}

// FileResult describes the extraction of one manifest.
type FileResult struct {
	Path         string
	Extractor    string
	Components   int
	Dependencies int
	CacheHit     bool
	// Err is set when the manifest could not be read or extracted.
	Err error
	// Warnings are the normalization findings of this file.
	Warnings []string

	graph *bom.Graph
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Manifests    int
	Failed       int
	CacheHits    int
	Components   int
	Dependencies int
	ExtractTime  time.Duration
	AssembleTime time.Duration
	ValidateTime time.Duration
}
