// Package query serves reads through the entity cache.
//
// Client.Query implements stale-while-revalidate over a cache.Store:
//
//   - a fresh entry is returned without calling the fetcher;
//   - a time-stale entry is returned at once and refreshed in the background;
//   - a missing or invalidated entry, or a Fresh() query, waits for the fetch.
//
// Concurrent fetches for one key share a single transport call
// (golang.org/x/sync/singleflight). A caller whose context ends stops
// waiting, but the fetch runs to completion and still populates the cache.
//
// Watch subscribes to a key and registers its fetcher, so invalidating a
// watched key refetches it immediately instead of on next access.
package query
