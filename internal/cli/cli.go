// Package cli implements the stackbom command-line interface.
//
// # Commands
//
//   - generate: Scan a project and write its CycloneDX document
//   - validate: Check existing documents
//   - convert: Re-encode a document as JSON or binary, or for another schema version
//   - graph: Draw the dependency graph as DOT or SVG
//   - serve: Run the HTTP API
//   - cache: Manage the extraction cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// attached to the command context and passed into the pipeline.
//
// # Configuration
//
// Settings come from stackbom.{toml,yaml,json} (or --config), STACKBOM_*
// environment variables and a .env file; flags override them.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbom/pkg/buildinfo"
	"github.com/matzehuels/stackbom/pkg/cache"
	"github.com/matzehuels/stackbom/pkg/config"
	"github.com/matzehuels/stackbom/pkg/pipeline"
	"github.com/matzehuels/stackbom/pkg/storage"
)

// appName is the application name used for directories and display.
const appName = buildinfo.Name

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "stackbom builds CycloneDX dependency graphs from lockfiles",
		Long: `stackbom scans a project for package manifests and lockfiles, normalizes
every package into a CycloneDX component, merges the per-file dependency
graphs into one and writes it as a CycloneDX 1.5 or 1.6 document.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: stackbom.{toml,yaml,json} in . or the user config dir)")

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads the settings once per process.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner backed by the configured cache and
// document store.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, noCache bool) *pipeline.Runner {
	logger := loggerFromContext(ctx)

	var ch cache.Cache = cache.NewNullCache()
	if !noCache {
		opened, err := cache.Open(cfg.CacheOptions())
		if err != nil {
			logger.Warn("cache unavailable, continuing without", "error", err)
		} else {
			ch = opened
		}
	}

	st, err := storage.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logger.Warn("document store unavailable, continuing without", "error", err)
		st = storage.NopStore{}
	}

	return pipeline.NewRunner(pipeline.RunnerOptions{
		Cache:  ch,
		Keyer:  cfg.Keyer(),
		Store:  st,
		Logger: logger,
	})
}

// pipelineOptions maps the settings onto pipeline options for root.
func pipelineOptions(cfg *config.Config, root string) pipeline.Options {
	return pipeline.Options{
		ProjectRoot: root,
		SpecVersion: cfg.SpecVersion,
		Workers:     cfg.Workers,
		CacheTTL:    cfg.Cache.TTL,
		Normalize:   cfg.NormalizeConfig(root),
		Assemble:    cfg.AssembleConfig(),
		Validate:    cfg.ValidateOptions(),
	}
}

// cacheDir returns the configured cache directory, or the default one.
func cacheDir(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return cache.DefaultDir()
}
