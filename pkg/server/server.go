// Package server exposes document validation, conversion and assembly over
// HTTP.
//
// # Routes
//
//	GET  /healthz       liveness probe
//	POST /v1/validate   JSON or binary document -> {ok, errors, warnings}
//	POST /v1/convert    document -> document, ?to=json|binary&specVersion=1.5|1.6
//	POST /v1/assemble   {projectRoot, documents: [{path, document}]} -> merged document
//
// Errors are returned as {"code": ..., "message": ...} with a status derived
// from the error code.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackbom/pkg/assemble"
	"github.com/matzehuels/stackbom/pkg/cache"
	"github.com/matzehuels/stackbom/pkg/validate"
)

// Defaults.
const (
	DefaultAddr         = ":8080"
	DefaultMaxBodyBytes = 32 << 20
	DefaultCacheTTL     = time.Hour
)

// Options configures a [Server]. Every field is optional.
type Options struct {
	Addr string
	// MaxBodyBytes limits request bodies. Larger requests get 413.
	MaxBodyBytes int64
	// Cache holds conversion results keyed by request content. Defaults to
	// a MemoryCache.
	Cache    cache.Cache
	CacheTTL time.Duration
	Validate validate.Options
	Assemble assemble.Config
	Logger   *log.Logger
}

// Server is the HTTP API.
type Server struct {
	opts       Options
	validator  *validate.Validator
	httpServer *http.Server
}

// New returns a server for opts.
func New(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Cache == nil {
		mem, err := cache.NewMemoryCache(cache.DefaultMemorySize)
		if err != nil {
			return nil, err
		}
		opts.Cache = mem
	}

	s := &Server{opts: opts, validator: validate.New(opts.Validate)}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.opts.Logger.Info("starting API server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the cache.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if cerr := s.opts.Cache.Close(); err == nil {
		err = cerr
	}
	return err
}
