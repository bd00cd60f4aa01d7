package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/render/dot"
)

// graphOpts holds the flags of the graph command.
type graphOpts struct {
	output   string
	svg      bool
	detailed bool
	direct   bool
	noCache  bool
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOpts

	cmd := &cobra.Command{
		Use:   "graph [dir|FILE]",
		Short: "Draw the dependency graph as DOT or SVG",
		Long: `Draw a dependency graph in Graphviz DOT, or as SVG with --svg.

The argument is either a CycloneDX document or a project directory, which
is scanned like 'generate' does. Missing components are drawn in red,
optional ones dashed.`,
		Example: `  stackbom graph bom.json | dot -Tpng > deps.png
  stackbom graph . --svg -o deps.svg --detailed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "."
			if len(args) == 1 {
				input = args[0]
			}
			return c.runGraph(cmd.Context(), input, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.svg, "svg", false, "render SVG with Graphviz instead of DOT")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show ecosystem, scope and source file in nodes")
	cmd.Flags().BoolVar(&opts.direct, "direct", false, "only draw the parent's direct dependencies")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the extraction cache")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, input string, opts graphOpts) error {
	g, err := c.loadGraph(ctx, input, opts.noCache)
	if err != nil {
		return err
	}

	out := []byte(dot.ToDOT(g, dot.Options{Detailed: opts.detailed, Direct: opts.direct}))
	if opts.svg {
		spinner := newSpinnerWithContext(ctx, "Rendering SVG...")
		spinner.Start()
		out, err = dot.RenderSVG(ctx, string(out))
		if err != nil {
			spinner.StopWithError("Rendering failed")
			return err
		}
		spinner.Stop()
	}

	if opts.output == "" || opts.output == "-" {
		if _, err := os.Stdout.Write(out); err != nil {
			return errs.Wrap(errs.ErrCodeWriteFailed, err, "write stdout")
		}
		return nil
	}
	if err := cdx.AtomicWrite(opts.output, out); err != nil {
		return err
	}
	printSuccess("Drew %d components", len(g.Components))
	printFile(opts.output)
	return nil
}

// loadGraph reads input as a document, or runs the pipeline when it is a
// directory.
func (c *CLI) loadGraph(ctx context.Context, input string, noCache bool) (*bom.Graph, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "stat %s", input)
	}
	if !info.IsDir() {
		d, err := cdx.ReadFile(input)
		if err != nil {
			return nil, err
		}
		return cdx.FromDocument(d)
	}

	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(input)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "resolve %s", input)
	}
	runner := c.newRunner(ctx, cfg, noCache)
	defer runner.Close()

	opts := pipelineOptions(cfg, root)
	opts.Logger = loggerFromContext(ctx)
	spinner := newSpinnerWithContext(ctx, "Scanning "+input+"...")
	spinner.Start()
	result, err := runner.Execute(ctx, opts)
	spinner.Stop()
	if err != nil {
		return nil, err
	}
	return result.Graph, nil
}
