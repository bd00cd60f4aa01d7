package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackbom/pkg/assemble"
	"github.com/matzehuels/stackbom/pkg/cache"
	"github.com/matzehuels/stackbom/pkg/cdx"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/extract/builtin"
	"github.com/matzehuels/stackbom/pkg/observability"
	"github.com/matzehuels/stackbom/pkg/storage"
	"github.com/matzehuels/stackbom/pkg/validate"
)

// Runner executes the pipeline with caching and document storage.
//
// The Runner holds no per-run state. Multiple goroutines can use the same
// Runner with different options.
type Runner struct {
	Cache    cache.Cache
	Keyer    cache.Keyer
	Store    storage.Store
	Registry *extract.Registry
	Logger   *log.Logger
}

// RunnerOptions configures [NewRunner]. Every field is optional.
type RunnerOptions struct {
	Cache    cache.Cache       // defaults to a NullCache
	Keyer    cache.Keyer       // defaults to a DefaultKeyer
	Store    storage.Store     // defaults to a NopStore
	Registry *extract.Registry // defaults to the builtin extractors
	Logger   *log.Logger
}

// NewRunner creates a runner, filling unset options with defaults.
func NewRunner(o RunnerOptions) *Runner {
	if o.Cache == nil {
		o.Cache = cache.NewNullCache()
	}
	if o.Keyer == nil {
		o.Keyer = cache.NewDefaultKeyer()
	}
	if o.Store == nil {
		o.Store = storage.NopStore{}
	}
	if o.Registry == nil {
		o.Registry = builtin.Registry()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return &Runner{Cache: o.Cache, Keyer: o.Keyer, Store: o.Store, Registry: o.Registry, Logger: o.Logger}
}

// Execute runs discovery, extraction, assembly, validation and document
// generation for opts.ProjectRoot.
//
// The returned error is reserved for failures that leave no usable result:
// invalid options, an unreadable project root, cancellation, or a failed
// save of the document. Validation errors are reported in the result.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger

	paths, err := r.manifests(opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("discovered manifests", "count", len(paths), "root", opts.ProjectRoot)

	result := &Result{}

	// Stage 1: Extract
	extractStart := time.Now()
	files, err := r.ExtractAll(ctx, paths, opts)
	if err != nil {
		return nil, err
	}
	result.Files = files
	result.Stats.ExtractTime = time.Since(extractStart)
	result.Stats.Manifests = len(files)

	inputs := make([]assemble.Input, len(files))
	for i, f := range files {
		inputs[i] = assemble.Input{Path: f.Path, Graph: f.graph}
		if f.Err != nil {
			result.Stats.Failed++
			logger.Warn("extraction failed", "file", f.Path, "error", f.Err)
		}
		if f.CacheHit {
			result.Stats.CacheHits++
		}
		for _, w := range f.Warnings {
			logger.Warn(w)
			result.Warnings = append(result.Warnings, w)
		}
	}
	logger.Info("extracted manifests",
		"manifests", result.Stats.Manifests,
		"failed", result.Stats.Failed,
		"cached", result.Stats.CacheHits,
		"duration", result.Stats.ExtractTime)

	// Stage 2: Assemble, once every extraction has finished.
	assembleStart := time.Now()
	g, report := assemble.Assemble(inputs, opts.ProjectRoot, opts.Assemble)
	result.Graph = g
	result.Report = report
	result.Stats.AssembleTime = time.Since(assembleStart)
	result.Stats.Components = len(g.Components)
	result.Stats.Dependencies = len(g.Dependencies)
	for _, w := range report.Warnings {
		logger.Warn(w)
		result.Warnings = append(result.Warnings, w)
	}
	observability.Pipeline().OnAssembleComplete(ctx, len(inputs), len(g.Components), len(g.Dependencies), report.Partial, result.Stats.AssembleTime)
	logger.Info("assembled graph",
		"components", result.Stats.Components,
		"dependencies", result.Stats.Dependencies,
		"duration", result.Stats.AssembleTime)

	// Stage 3: Validate
	validateStart := time.Now()
	result.Validation = validate.New(opts.Validate).Validate(g)
	result.Stats.ValidateTime = time.Since(validateStart)
	for _, w := range result.Validation.Warnings {
		logger.Warn(w)
		result.Warnings = append(result.Warnings, w)
	}
	for _, e := range result.Validation.Errors {
		logger.Error(e)
	}
	observability.Pipeline().OnValidateComplete(ctx, len(result.Validation.Errors), len(result.Validation.Warnings), result.Stats.ValidateTime)

	// Stage 4: Serialize
	docOpts := []cdx.Option{cdx.WithTimestamp(opts.Timestamp)}
	if len(opts.Tools) > 0 {
		docOpts = append(docOpts, cdx.WithTools(opts.Tools...))
	}
	doc, err := cdx.ToDocument(g, opts.SpecVersion, docOpts...)
	if err != nil {
		return nil, err
	}
	result.Document = doc

	if err := r.compareAndSave(ctx, result, opts, logger); err != nil {
		return result, err
	}
	return result, nil
}

// manifests returns the explicit paths of opts, made absolute, or the
// discovered ones.
func (r *Runner) manifests(opts Options) ([]string, error) {
	if len(opts.Paths) == 0 {
		return Discover(opts.ProjectRoot, r.Registry)
	}
	out := make([]string, len(opts.Paths))
	for i, p := range opts.Paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(opts.ProjectRoot, p)
		}
		out[i] = filepath.Clean(p)
	}
	return out, nil
}

// compareAndSave diffs the document against the stored one and, when
// requested and the graph has no validation errors, replaces it.
func (r *Runner) compareAndSave(ctx context.Context, result *Result, opts Options, logger *log.Logger) error {
	prev, found, err := r.Store.Load(ctx, opts.ProjectRoot)
	switch {
	case err != nil:
		logger.Warn("stored document is unreadable", "error", err)
	case found:
		d := Compare(prev, result.Document)
		result.Diff = &d
		logger.Info("compared with stored document", "added", len(d.Added), "removed", len(d.Removed))
	default:
		logger.Debug("no stored document")
	}

	if !opts.Persist || !result.Validation.OK() {
		return nil
	}
	if err := r.Store.Save(ctx, opts.ProjectRoot, result.Document); err != nil {
		return err
	}
	logger.Debug("saved document")
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// Close releases the cache and the store.
func (r *Runner) Close() error {
	var first error
	if r.Cache != nil {
		first = r.Cache.Close()
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
