// Command gateway serves the Rick and Morty API through a caching, rate-limited HTTP front.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/rickmorty-gateway/internal/config"
	"github.com/Sternrassler/rickmorty-gateway/internal/server"
	"github.com/Sternrassler/rickmorty-gateway/pkg/cache"
	"github.com/Sternrassler/rickmorty-gateway/pkg/gateway"
	"github.com/Sternrassler/rickmorty-gateway/pkg/logging"
	"github.com/Sternrassler/rickmorty-gateway/pkg/origin"
	"github.com/Sternrassler/rickmorty-gateway/pkg/pagination"
	"github.com/Sternrassler/rickmorty-gateway/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.Setup(logging.DefaultConfig())
		l.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.LogLevel),
		Pretty:  cfg.LogPretty,
		Output:  os.Stderr,
		Service: "rickmorty-gateway",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Startup failed")
	}
	defer a.close()

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Addr()).Msg("Listen failed")
	}

	if err := a.run(ctx, ln); err != nil {
		logger.Fatal().Err(err).Msg("Gateway stopped with error")
	}
	logger.Info().Msg("Gateway stopped")
}

// app holds the wired components of one gateway process.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	redis    *redis.Client
	store    cache.Store
	resolver *gateway.Resolver
	limiter  ratelimit.Limiter
	server   *server.Server
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	redisClient, err := cache.Connect(ctx, cache.Options{
		RedisAddr:     cfg.RedisAddr(),
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Connect:       cache.DefaultBackoffConfig(),
	}, logging.Component(logger, "cache"))
	if err != nil && !errors.Is(err, cache.ErrNotConfigured) {
		logger.Warn().Err(err).Msg("Redis unreachable, using in-process cache and rate limiter")
	}

	store := cache.Select(redisClient, cache.RedisOptions{}, logging.Component(logger, "cache"))

	src, err := origin.New(origin.Config{
		BaseURL:   cfg.OriginURL,
		Timeout:   cfg.OriginTimeout,
		UserAgent: cfg.UserAgent,
	}, logging.Component(logger, "origin"))
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, err
	}

	resolver := gateway.NewResolver(store, src, gateway.Options{
		TTL:          cfg.CacheTTL(),
		SingleFlight: cfg.CacheSingleFlight,
	}, logging.Component(logger, "resolver"))

	// The limiter shares the store's connection pool when Redis is in use.
	var limiterClient *redis.Client
	rs, shared := store.(*cache.RedisStore)
	if shared {
		limiterClient = rs.Client()
	}
	limiter := ratelimit.NewLimiter(limiterClient, ratelimit.Config{
		Window: cfg.RateLimitWindow(),
		Max:    cfg.RateLimitMaxRequests,
	}, logging.Component(logger, "ratelimit"))

	opts := server.Options{
		Environment:  cfg.Environment,
		ExposeErrors: cfg.IsDevelopment(),
		CORSOrigin:   cfg.CORSOrigin,
		TrustProxy:   cfg.TrustProxy,
	}
	if shared {
		opts.Ready = rs.Ping
	}

	logger.Info().
		Str("origin", cfg.OriginURL).
		Str("cache", store.Backend()).
		Dur("cache_ttl", cfg.CacheTTL()).
		Int("rate_limit", cfg.RateLimitMaxRequests).
		Dur("rate_window", cfg.RateLimitWindow()).
		Msg("Gateway configured")

	return &app{
		cfg:      cfg,
		logger:   logger,
		redis:    redisClient,
		store:    store,
		resolver: resolver,
		limiter:  limiter,
		server:   server.New(resolver, limiter, opts, logging.Component(logger, "server")),
	}, nil
}

// run serves on ln until ctx is cancelled, then shuts down gracefully.
func (a *app) run(ctx context.Context, ln net.Listener) error {
	srv := a.server.HTTPServer(ln.Addr().String())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", ln.Addr().String()).Msg("Listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Dur("timeout", a.cfg.ShutdownTimeout).Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if s, ok := a.store.(*cache.MemoryStore); ok {
		g.Go(func() error {
			s.Run(gctx, a.cfg.CacheSweepInterval)
			return nil
		})
	}
	if l, ok := a.limiter.(*ratelimit.MemoryLimiter); ok {
		g.Go(func() error {
			l.Run(gctx, a.cfg.RateLimitWindow())
			return nil
		})
	}

	if len(a.cfg.CacheWarmResources) > 0 {
		g.Go(func() error {
			a.warm(gctx)
			return nil
		})
	}

	return g.Wait()
}

// warm fills the cache with every page of the configured collections.
// Failures are logged and never stop the gateway.
func (a *app) warm(ctx context.Context) {
	bf := pagination.NewBatchFetcher(a.resolver, pagination.DefaultConfig())
	for _, name := range a.cfg.CacheWarmResources {
		res, err := gateway.ParseResource(name)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Skipping warm-up resource")
			continue
		}

		start := time.Now()
		pages, err := bf.FetchAllPages(ctx, string(res))
		if err != nil {
			a.logger.Warn().Err(err).
				Str("resource", string(res)).
				Int("pages", len(pages)).
				Msg("Cache warm-up incomplete")
			continue
		}
		a.logger.Info().
			Str("resource", string(res)).
			Int("pages", len(pages)).
			Dur("duration", time.Since(start)).
			Msg("Cache warmed")
	}
}

// close releases the cache backend. A RedisStore owns the shared client.
func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Closing cache")
	}
}
