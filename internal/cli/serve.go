package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbom/pkg/cache"
	"github.com/matzehuels/stackbom/pkg/config"
	"github.com/matzehuels/stackbom/pkg/server"
)

// shutdownTimeout bounds how long in-flight requests may take after the
// server was told to stop.
const shutdownTimeout = 10 * time.Second

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted.

Routes:
  GET  /healthz       liveness probe
  POST /v1/validate   check a document
  POST /v1/convert    re-encode a document (?to=json|binary&specVersion=)
  POST /v1/assemble   merge documents of one project

Conversions are cached in memory, or in Redis when the configured cache
backend is redis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: from config, :8080)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	logger := loggerFromContext(ctx)

	opts := serverOptions(cfg)
	if addr != "" {
		opts.Addr = addr
	}
	opts.Logger = logger
	if strings.EqualFold(cfg.Cache.Backend, cache.BackendRedis) {
		ch, err := cache.Open(cfg.CacheOptions())
		if err != nil {
			logger.Warn("redis unavailable, caching in memory", "error", err)
		} else {
			opts.Cache = ch
		}
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	printKeyValue("Listening", srv.Addr())
	printKeyValue("Max body", fmt.Sprintf("%d bytes", opts.MaxBodyBytes))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// serverOptions maps the settings onto server options.
func serverOptions(cfg *config.Config) server.Options {
	return server.Options{
		Addr:         cfg.Server.Addr,
		MaxBodyBytes: cfg.Server.MaxBody,
		Validate:     cfg.ValidateOptions(),
		Assemble:     cfg.AssembleConfig(),
	}
}
