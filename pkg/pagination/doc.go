// Package pagination walks paginated Rick and Morty collections in parallel.
//
// Collection documents carry an info block with the total page count. This
// package fetches page 1 to learn that count, then spreads the remaining
// pages over a small worker pool. The gateway uses it to warm the cache at
// startup by walking each configured collection through the resolver.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(resolver, pagination.DefaultConfig())
//	pages, err := fetcher.FetchAllPages(ctx, "character")
//
// The batch fetcher:
//   - Fetches the first page to determine total pages
//   - Spawns a worker pool (default 4 workers)
//   - Distributes remaining pages across workers
//   - Returns partial data together with the first worker error
package pagination
