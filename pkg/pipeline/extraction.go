package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/cache"
	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/normalize"
	"github.com/matzehuels/stackbom/pkg/observability"
)

// cacheKeyType labels extraction entries in cache hooks.
const cacheKeyType = "extract"

// ExtractAll extracts every path concurrently and returns one FileResult
// per path in the same order. Individual failures are recorded in the
// results; the returned error is only set when ctx is done.
func (r *Runner) ExtractAll(ctx context.Context, paths []string, opts Options) ([]FileResult, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.ExtractFile(gctx, path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ExtractFile reads, extracts and normalizes one manifest. The normalized
// graph is cached under the manifest's content hash.
func (r *Runner) ExtractFile(ctx context.Context, path string, opts Options) (res FileResult) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return FileResult{Path: path, Err: err}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(opts.ProjectRoot, path)
	}
	res.Path = path
	rel := normalize.SourcePath(path, opts.ProjectRoot)

	ex, err := r.Registry.Detect(path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Extractor = ex.Type()

	start := time.Now()
	observability.Pipeline().OnExtractStart(ctx, ex.Type(), rel)
	defer func() {
		observability.Pipeline().OnExtractComplete(ctx, ex.Type(), rel, res.Components, time.Since(start), res.Err)
	}()

	content, err := os.ReadFile(path)
	if err != nil {
		res.Err = errs.Wrap(errs.ErrCodeReadFailed, err, "read %s", rel)
		return res
	}

	key := r.Keyer.ExtractKey(ex.Type(), content, cache.ExtractKeyOpts{
		SourceFile:    rel,
		MergeSubspecs: opts.Normalize.MergeSubspecs,
		DefaultType:   string(opts.Normalize.DefaultType),
	})
	if !opts.Refresh {
		if g, ok := r.cachedGraph(ctx, key); ok {
			res.setGraph(g)
			res.CacheHit = true
			return res
		}
	}

	raw, err := safeExtract(ctx, ex, content, rel)
	if err != nil {
		res.Err = errs.Wrap(errs.ErrCodeExtractFailed, err, "%s", rel)
		return res
	}
	g, nerrs := normalize.Graph(raw, rel, ex.Ecosystem(), opts.Normalize)
	for _, e := range nerrs {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", rel, e))
	}
	res.setGraph(g)

	// Files with skipped records are not cached so their warnings repeat.
	if len(nerrs) == 0 {
		r.storeGraph(ctx, key, g, opts.CacheTTL)
	}
	return res
}

func (res *FileResult) setGraph(g *bom.Graph) {
	res.graph = g
	res.Components = len(g.Components)
	res.Dependencies = len(g.Dependencies)
}

// Graph returns the normalized graph of the manifest, or nil if extraction
// failed.
func (res *FileResult) Graph() *bom.Graph { return res.graph }

// safeExtract turns a panicking extractor into an error.
func safeExtract(ctx context.Context, ex extract.Extractor, content []byte, sourceFile string) (res *extract.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("extractor %s panicked: %v", ex.Type(), p)
		}
	}()
	return ex.Extract(ctx, content, sourceFile)
}

func (r *Runner) cachedGraph(ctx context.Context, key string) (*bom.Graph, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Debug("cache read failed", "error", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, cacheKeyType)
		return nil, false
	}
	doc, err := cdx.FromBinary(data, "")
	if err == nil {
		var g *bom.Graph
		if g, err = cdx.FromDocument(doc); err == nil {
			observability.Cache().OnCacheHit(ctx, cacheKeyType)
			return g, true
		}
	}
	r.Logger.Debug("discarding unreadable cache entry", "error", err)
	_ = r.Cache.Delete(ctx, key)
	observability.Cache().OnCacheMiss(ctx, cacheKeyType)
	return nil, false
}

func (r *Runner) storeGraph(ctx context.Context, key string, g *bom.Graph, ttl time.Duration) {
	doc, err := cdx.ToDocument(g, cdx.LatestSpecVersion, cdx.WithTimestamp(time.Unix(0, 0)))
	if err != nil {
		return
	}
	data, err := cdx.ToBinary(doc)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Debug("cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, cacheKeyType, len(data))
}
