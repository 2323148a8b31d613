// Package cache provides the gateway's cache store with two interchangeable
// backends: an in-process sharded map and Redis.
//
// Both backends implement Store and share the same semantics:
//
//   - Get serves a payload only while now < expiry
//   - Set overwrites the entry and resets its expiry to now + ttl
//   - backend faults never reach the caller; they degrade to a miss or a
//     dropped write and are logged and counted
//
// # Backend Selection
//
// The backend is chosen once at startup:
//
//	store := cache.Open(ctx, cache.Options{
//		RedisAddr: "localhost:6379",
//		Connect:   cache.DefaultBackoffConfig(),
//	}, logger)
//	defer store.Close()
//
// With an empty RedisAddr, or when Redis does not answer the startup pings,
// Open returns a MemoryStore. Callers that need the Redis client for other
// components use Connect and Select directly.
//
// # Keys
//
//	key := cache.Key{
//		Resource:  "character",
//		Operation: "list",
//		Params:    map[string]string{"status": "alive"},
//		Page:      2,
//	}
//	key.String() // character:list:page=2:status=alive
//
// # Metrics
//
//   - rmgw_cache_hits_total{backend}
//   - rmgw_cache_misses_total{backend}
//   - rmgw_cache_entries{backend} (memory backend)
//   - rmgw_cache_expired_total{backend}
//   - rmgw_cache_errors_total{operation}
package cache
