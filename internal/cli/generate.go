package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract/builtin"
	"github.com/matzehuels/stackbom/pkg/pipeline"
)

// generateOpts holds the flags of the generate command. Zero values defer
// to the loaded configuration.
type generateOpts struct {
	output        string
	format        string
	specVersion   string
	workers       int
	noCache       bool
	refresh       bool
	save          bool
	strict        bool
	interactive   bool
	mergeSubspecs bool
}

// generateCommand creates the generate command.
func (c *CLI) generateCommand() *cobra.Command {
	opts := generateOpts{save: true}

	cmd := &cobra.Command{
		Use:   "generate [dir]",
		Short: "Scan a project and write its CycloneDX document",
		Long: `Scan a project for lockfiles and manifests and write one CycloneDX
document describing the merged dependency graph.

Every supported manifest below dir (default: the working directory) is
extracted; .git, node_modules, vendor and paths ignored by the root
.gitignore are skipped. Extraction results are cached by file content.

The document goes to stdout unless --output is set. When a document for the
project was generated before, added and removed components are listed.

Exit status is non-zero when the graph has validation errors, or with
--strict when it has any warnings.`,
		Example: `  # Write a JSON document for the current directory
  stackbom generate > bom.json

  # Binary document for CycloneDX 1.5
  stackbom generate ./service -o bom.cdx.pb --spec-version 1.5

  # Pick the manifests to include
  stackbom generate -i`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return c.runGenerate(cmd.Context(), root, opts, cmd.Flags().Changed("merge-subspecs"))
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: json, binary (default: from config, or guessed from --output)")
	cmd.Flags().StringVar(&opts.specVersion, "spec-version", "", "CycloneDX spec version: 1.5, 1.6 (default: from config)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "j", 0, "concurrent extractions (default: from config)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the extraction cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached extractions and re-extract")
	cmd.Flags().BoolVar(&opts.save, "save", opts.save, "store the document for later comparison")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail on validation warnings too")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "choose manifests interactively")
	cmd.Flags().BoolVar(&opts.mergeSubspecs, "merge-subspecs", false, "merge CocoaPods subspecs into their pod")

	return cmd
}

// runGenerate executes the pipeline for root and writes the document.
func (c *CLI) runGenerate(ctx context.Context, root string, opts generateOpts, overrideMerge bool) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	logger := loggerFromContext(ctx)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInvalidPath, err, "resolve %s", root)
	}
	if info, err := os.Stat(absRoot); err != nil || !info.IsDir() {
		return errs.New(errs.ErrCodeInvalidPath, "%s is not a directory", root)
	}

	format, err := outputFormat(opts.format, opts.output, cfg.OutputFormat())
	if err != nil {
		return err
	}

	popts := pipelineOptions(cfg, absRoot)
	if opts.specVersion != "" {
		popts.SpecVersion = opts.specVersion
	}
	if opts.workers > 0 {
		popts.Workers = opts.workers
	}
	if overrideMerge {
		popts.Normalize.MergeSubspecs = opts.mergeSubspecs
	}
	popts.Refresh = opts.refresh
	popts.Persist = opts.save
	popts.Logger = logger

	paths, err := pipeline.Discover(absRoot, builtin.Registry())
	if err != nil {
		return err
	}
	if opts.interactive {
		paths, err = pickManifests(absRoot, paths)
		if err != nil {
			return err
		}
	}
	if len(paths) == 0 {
		printWarning("No supported manifests found in %s", root)
		if opts.interactive {
			return nil
		}
	}
	popts.Paths = paths

	runner := c.newRunner(ctx, cfg, opts.noCache)
	defer runner.Close()

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Extracting %d manifests...", len(paths)))
	if logger.GetLevel() > log.DebugLevel {
		spinner.Start()
	}
	stopTracking := trackExtraction(spinner, len(paths))
	result, runErr := runner.Execute(ctx, popts)
	stopTracking()
	spinner.Stop()

	if result == nil {
		return runErr
	}
	prog.done("generated document", "components", result.Stats.Components)

	if err := writeDocument(result.Document, opts.output, format); err != nil {
		return err
	}
	printGenerateSummary(result, absRoot, opts.output)

	if runErr != nil {
		return runErr
	}
	if !result.Validation.OK() {
		return errs.New(errs.ErrCodeInvalidDocument, "graph has %d validation error(s)", len(result.Validation.Errors))
	}
	if opts.strict && len(result.Warnings) > 0 {
		return errs.New(errs.ErrCodeInvalidDocument, "graph has %d warning(s)", len(result.Warnings))
	}
	return nil
}

// outputFormat resolves the format flag. Without one the extension of
// output decides, then the configured default.
func outputFormat(flag, output string, def cdx.Format) (cdx.Format, error) {
	if flag != "" {
		return cdx.ParseFormat(flag)
	}
	if output != "" && output != "-" {
		return cdx.FormatForPath(output), nil
	}
	return def, nil
}

// writeDocument writes d to output, or to stdout when output is empty or "-".
func writeDocument(d *cdx.Document, output string, format cdx.Format) error {
	if output == "" || output == "-" {
		data, err := cdx.Marshal(d, format)
		if err != nil {
			return err
		}
		if _, err := os.Stdout.Write(data); err != nil {
			return errs.Wrap(errs.ErrCodeWriteFailed, err, "write stdout")
		}
		return nil
	}
	return cdx.WriteFile(output, d, format)
}

func printGenerateSummary(result *pipeline.Result, root, output string) {
	s := result.Stats
	printSuccess("Generated CycloneDX %s document", result.Document.SpecVersion)
	if output != "" && output != "-" {
		printFile(output)
		defer printNextStep("Check it", "stackbom validate "+output)
	}
	printStats(s.Components, s.Dependencies, s.CacheHits, s.Manifests)

	for _, f := range result.Files {
		if f.Err != nil {
			printWarning("%s: %s", relPath(root, f.Path), errs.UserMessage(f.Err))
		}
	}
	if result.Report.Partial {
		printWarning("Dependency tree looks partial; run the package manager's install first")
	}
	if n := len(result.Warnings); n > 0 {
		printDetail("%d warning(s); run with --verbose to list them", n)
	}
	for _, e := range result.Validation.Errors {
		printError("%s", e)
	}

	if d := result.Diff; d != nil {
		if !d.Changed() {
			printInfo("No changes since the last run")
			return
		}
		for _, ref := range d.Added {
			printChange(true, ref)
		}
		for _, ref := range d.Removed {
			printChange(false, ref)
		}
	}
}

// relPath shortens path relative to root for display.
func relPath(root, path string) string {
	if root == "" {
		return path
	}
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
