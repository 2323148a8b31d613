// Package server exposes the gateway over HTTP.
//
// It owns routing, input validation, admission control, response mapping and
// the operational endpoints (/health, /ready, /metrics). All data requests
// are delegated to a gateway.Resolver.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/Sternrassler/rickmorty-gateway/pkg/gateway"
	"github.com/Sternrassler/rickmorty-gateway/pkg/metrics"
	"github.com/Sternrassler/rickmorty-gateway/pkg/ratelimit"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ReadyCheck reports whether a dependency is ready to serve traffic.
type ReadyCheck func(ctx context.Context) error

// Options configures a Server.
type Options struct {
	// Environment is reported by /health.
	Environment string

	// ExposeErrors adds the underlying error text to non-404 error bodies.
	ExposeErrors bool

	// CORSOrigin is the allowed CORS origin ("*" for any).
	CORSOrigin string

	// TrustProxy takes the caller identity from X-Forwarded-For.
	TrustProxy bool

	// Ready is called by /ready. Nil means always ready.
	Ready ReadyCheck
}

// Server is the HTTP front of the gateway.
type Server struct {
	resolver *gateway.Resolver
	limiter  ratelimit.Limiter
	opts     Options
	logger   zerolog.Logger
	started  time.Time
	now      func() time.Time
	handler  http.Handler
}

// New creates a server and builds its handler chain.
func New(resolver *gateway.Resolver, limiter ratelimit.Limiter, opts Options, logger zerolog.Logger) *Server {
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}

	s := &Server{
		resolver: resolver,
		limiter:  limiter,
		opts:     opts,
		logger:   logger,
		started:  time.Now(),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.cors(h)
	h = s.accessLog(h)
	h = s.recoverPanics(h)
	s.handler = otelhttp.NewHandler(h, "rickmorty-gateway")

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.Handle("GET /api/characters", s.limit(s.handleListCharacters))
	mux.Handle("GET /api/characters/filter", s.limit(s.handleFilterCharacters))
	mux.Handle("GET /api/characters/search/{name}", s.limit(s.handleSearchCharacters))
	mux.Handle("GET /api/characters/{id}", s.limit(s.handleGetCharacter))

	mux.Handle("GET /api/episodes", s.limit(s.handleListEpisodes))
	mux.Handle("GET /api/episodes/season/{season}", s.limit(s.handleEpisodesBySeason))
	mux.Handle("GET /api/episodes/{id}", s.limit(s.handleGetEpisode))

	mux.Handle("GET /api/locations", s.limit(s.handleListLocations))
	mux.Handle("GET /api/locations/search/{name}", s.limit(s.handleSearchLocations))
	mux.Handle("GET /api/locations/{id}", s.limit(s.handleGetLocation))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// HTTPServer returns an http.Server for addr serving this handler.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
