// Package pkg provides the core libraries for stackbom.
//
// # Overview
//
// stackbom reads package manifests and lockfiles, turns every package into a
// CycloneDX component keyed by its package URL, merges the dependency graphs
// of all manifests in a project into one and writes the result as a
// CycloneDX 1.5 or 1.6 document in JSON or binary form.
//
// # Architecture
//
// The data flow through stackbom:
//
//	package-lock.json, go.mod, Cargo.lock, ...
//	         ↓
//	    [extract] package (raw records and edges per manifest)
//	         ↓
//	    [normalize] package (components with canonical bom-refs)
//	         ↓
//	    [assemble] package (one graph per project)
//	         ↓
//	    [validate] package (errors and warnings)
//	         ↓
//	    [cdx] package (CycloneDX JSON / binary)
//
// [pipeline] runs these stages with caching and stores the result for the
// next run to compare against.
//
// # Quick Start
//
// Generate a document for a project directory:
//
//	import (
//	    "context"
//	    "os"
//
//	    "github.com/matzehuels/stackbom/pkg/cdx"
//	    "github.com/matzehuels/stackbom/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(pipeline.RunnerOptions{})
//	defer runner.Close()
//
//	res, err := runner.Execute(context.Background(), pipeline.Options{ProjectRoot: "."})
//	if err != nil {
//	    return err
//	}
//	return cdx.WriteJSON(os.Stdout, res.Document)
//
// # Main Packages
//
// ## Identity and Graph
//
// [purl] - Package URL encoding and decoding with per-ecosystem
// normalization. Encoding is idempotent; decode(encode(x)) == x.
//
// [bom] - The in-memory graph: components, dependency edges, evidence and
// properties.
//
// ## Stages
//
// [extract] - The extractor interface and the built-in extractors (npm,
// Go modules, Cargo, Poetry, CocoaPods, Composer).
//
// [normalize] - Raw records to components; duplicate refs are merged.
//
// [assemble] - Root selection across nested manifests, edge union and the
// partial-tree heuristic.
//
// [validate] - Encoding integrity (errors) and advisory checks (warnings).
//
// [cdx] - Document types, conversion to and from graphs, JSON and binary
// encodings.
//
// ## Infrastructure
//
// [pipeline] - Discovery, concurrent extraction, assembly, validation and
// serialization, shared by the CLI and the HTTP API.
//
// [cache] - Extraction cache backends: file, memory, Redis, null.
//
// [storage] - Document stores for comparing runs: file, MongoDB, none.
//
// [config] - Settings from files, environment variables and .env.
//
// [server] - HTTP API for validation, conversion and assembly.
//
// [render/dot] - Graphviz DOT and SVG output of a graph.
//
// [errors] - Error codes shared by every package.
//
// [observability] - Hooks for pipeline and HTTP events.
//
// # Testing
//
//	go test ./...                 # All tests
//	go test ./pkg/assemble/...    # Specific package
//	go test -short ./...          # Skip Graphviz rendering
//
// [purl]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/purl
// [bom]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/bom
// [extract]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/extract
// [normalize]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/normalize
// [assemble]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/assemble
// [validate]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/validate
// [cdx]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/cdx
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/cache
// [storage]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/storage
// [config]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/config
// [server]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/server
// [render/dot]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/render/dot
// [errors]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/stackbom/pkg/observability
package pkg
