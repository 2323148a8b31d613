// Package gateway implements the cache-aside orchestration between the
// cache store and the origin API.
//
// Every logical request is reduced to a Request, turned into a deterministic
// cache key and resolved as follows: a cache hit is returned without touching
// the origin; on a miss the origin is called once and a Found payload is
// written back with the configured TTL. NotFound and transport failures are
// never cached.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/rickmorty-gateway/pkg/cache"
	"github.com/Sternrassler/rickmorty-gateway/pkg/origin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the lifetime of cached origin payloads.
const DefaultTTL = 900 * time.Second

var (
	// ErrNotFound is returned when the origin confirms the resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidRequest is returned for malformed requests.
	ErrInvalidRequest = errors.New("invalid request")
)

var (
	resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rmgw_gateway_resolve_total",
		Help: "Total resolve calls by resource and result (hit, miss, not_found, error)",
	}, []string{"resource", "result"})

	coalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rmgw_gateway_coalesced_total",
		Help: "Total resolve calls that shared an in-flight origin fetch",
	})
)

// Origin fetches a single document from the upstream API.
type Origin interface {
	Fetch(ctx context.Context, path string, query url.Values) origin.Outcome
}

// Options configures a Resolver.
type Options struct {
	// TTL of cached payloads. Values <= 0 disable caching.
	TTL time.Duration

	// SingleFlight coalesces concurrent misses for the same key into one origin call.
	SingleFlight bool
}

// DefaultOptions returns the default resolver options.
func DefaultOptions() Options {
	return Options{
		TTL:          DefaultTTL,
		SingleFlight: true,
	}
}

// Resolver is the cache-aside orchestrator. It is safe for concurrent use.
type Resolver struct {
	store  cache.Store
	origin Origin
	opts   Options
	group  singleflight.Group
	logger zerolog.Logger
}

// NewResolver creates a resolver over the given store and origin.
func NewResolver(store cache.Store, src Origin, opts Options, logger zerolog.Logger) *Resolver {
	if store == nil {
		panic("gateway: store must not be nil")
	}
	if src == nil {
		panic("gateway: origin must not be nil")
	}
	return &Resolver{
		store:  store,
		origin: src,
		opts:   opts,
		logger: logger,
	}
}

// Resolve returns the payload for req.
//
// Errors: ErrNotFound when the origin reports the resource absent,
// ErrInvalidRequest for malformed requests, a wrapped *origin.TransportError
// for origin failures, or the context error if ctx ends while waiting on a
// shared fetch.
func (r *Resolver) Resolve(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.Key().String()
	resource := string(req.Resource)

	if payload, ok := r.store.Get(ctx, key); ok {
		resolveTotal.WithLabelValues(resource, "hit").Inc()
		r.logger.Debug().Str("key", key).Msg("Cache hit")
		return payload, nil
	}

	r.logger.Debug().Str("key", key).Msg("Cache miss")

	outcome, err := r.load(ctx, key, req)
	if err != nil {
		return nil, err
	}

	switch outcome.Kind {
	case origin.Found:
		resolveTotal.WithLabelValues(resource, "miss").Inc()
		return outcome.Payload, nil

	case origin.NotFound:
		resolveTotal.WithLabelValues(resource, "not_found").Inc()
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)

	default:
		resolveTotal.WithLabelValues(resource, "error").Inc()
		r.logger.Warn().
			Err(outcome.Err).
			Str("operation", string(req.Operation)).
			Str("key", key).
			Str("error_class", string(outcome.Err.Class)).
			Msg("Origin fetch failed")
		return nil, fmt.Errorf("resolve %s: %w", key, outcome.Err)
	}
}

// load fetches from the origin, coalescing with in-flight fetches when enabled.
func (r *Resolver) load(ctx context.Context, key string, req Request) (origin.Outcome, error) {
	if !r.opts.SingleFlight {
		return r.fill(ctx, key, req), nil
	}

	// The shared fetch must outlive any single caller's cancellation.
	fillCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.fill(fillCtx, key, req), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			coalescedTotal.Inc()
		}
		return res.Val.(origin.Outcome), nil
	case <-ctx.Done():
		return origin.Outcome{}, fmt.Errorf("resolve %s: %w", key, ctx.Err())
	}
}

func (r *Resolver) fill(ctx context.Context, key string, req Request) origin.Outcome {
	path, query := req.Target()
	outcome := r.origin.Fetch(ctx, path, query)

	switch outcome.Kind {
	case origin.Found:
		r.store.Set(ctx, key, outcome.Payload, r.opts.TTL)
	case origin.NotFound, origin.TransportFailure:
		// never cached
	default:
		outcome = origin.FailureOutcome(&origin.TransportError{
			Class: origin.ErrorClassDecode,
			Path:  path,
			Err:   fmt.Errorf("unknown outcome kind %d", outcome.Kind),
		})
	}
	return outcome
}

// Invalidate removes the cached payload of req.
func (r *Resolver) Invalidate(ctx context.Context, req Request) {
	r.store.Delete(ctx, req.Key().String())
}

// Purge removes every cached payload.
func (r *Resolver) Purge(ctx context.Context) {
	r.store.Clear(ctx)
	r.logger.Info().Str("backend", r.store.Backend()).Msg("Cache purged")
}

// Backend returns the name of the cache backend in use.
func (r *Resolver) Backend() string {
	return r.store.Backend()
}

// ListCharacters returns a page of characters, optionally filtered.
func (r *Resolver) ListCharacters(ctx context.Context, page int, filter CharacterFilter) (json.RawMessage, error) {
	return r.Resolve(ctx, Request{Resource: Character, Operation: OpList, Params: filter.params(), Page: page})
}

// GetCharacter returns one character.
func (r *Resolver) GetCharacter(ctx context.Context, id int) (json.RawMessage, error) {
	return r.Resolve(ctx, Request{Resource: Character, Operation: OpGet, ID: id})
}

// SearchCharacters returns characters whose name matches.
func (r *Resolver) SearchCharacters(ctx context.Context, name string) (json.RawMessage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	return r.Resolve(ctx, Request{Resource: Character, Operation: OpSearch, Params: map[string]string{"name": name}})
}

// FilterCharacters returns characters matching status, species or gender.
// At least one of them must be set.
func (r *Resolver) FilterCharacters(ctx context.Context, filter CharacterFilter, page int) (json.RawMessage, error) {
	if !filter.HasAttributes() {
		return nil, fmt.Errorf("%w: at least one of status, species or gender is required", ErrInvalidRequest)
	}
	filter.Name = ""
	return r.Resolve(ctx, Request{Resource: Character, Operation: OpFilter, Params: filter.params(), Page: page})
}

// ListEpisodes returns a page of episodes.
func (r *Resolver) ListEpisodes(ctx context.Context, page int) (json.RawMessage, error) {
	return r.Resolve(ctx, Request{Resource: Episode, Operation: OpList, Page: page})
}

// GetEpisode returns one episode.
func (r *Resolver) GetEpisode(ctx context.Context, id int) (json.RawMessage, error) {
	return r.Resolve(ctx, Request{Resource: Episode, Operation: OpGet, ID: id})
}

// EpisodesBySeason returns the episodes whose code starts with the season prefix.
func (r *Resolver) EpisodesBySeason(ctx context.Context, season int) (json.RawMessage, error) {
	if season < 1 {
		return nil, fmt.Errorf("%w: season must be a positive integer", ErrInvalidRequest)
	}
	return r.Resolve(ctx, Request{Resource: Episode, Operation: OpSeason, Params: map[string]string{"episode": SeasonCode(season)}})
}

// ListLocations returns a page of locations.
func (r *Resolver) ListLocations(ctx context.Context, page int) (json.RawMessage, error) {
	return r.Resolve(ctx, Request{Resource: Location, Operation: OpList, Page: page})
}

// GetLocation returns one location.
func (r *Resolver) GetLocation(ctx context.Context, id int) (json.RawMessage, error) {
	return r.Resolve(ctx, Request{Resource: Location, Operation: OpGet, ID: id})
}

// SearchLocations returns locations whose name matches.
func (r *Resolver) SearchLocations(ctx context.Context, name string) (json.RawMessage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	return r.Resolve(ctx, Request{Resource: Location, Operation: OpSearch, Params: map[string]string{"name": name}})
}
