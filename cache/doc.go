// Package cache provides an in-memory HTTP response cache that sits between
// incoming requests and the application's route handlers.
//
// Two pieces make it up:
//
//   - Store maps a composite key (method, path+query, caller identity) to a
//     captured response body and a small set of replayable headers. Entries
//     expire lazily: a read that finds an entry older than the TTL of the
//     route it was asked about deletes it and reports a miss. There is no
//     background sweeper and no capacity bound.
//   - Middleware intercepts GET requests. A fresh entry is replayed with
//     X-Cache: HIT and the downstream handler never runs. On a miss the
//     request is forwarded and an observer on the ResponseWriter captures a
//     2xx response into the store, marking it X-Cache: MISS, while the bytes
//     reach the client exactly as the handler wrote them.
//
// # Basic Usage
//
//	store := cache.NewStore(cache.DefaultTTLPolicy())
//	mw := cache.NewMiddleware(store, cache.MiddlewareConfig{
//		Exclusions: []string{"/api/auth/session"},
//	})
//	http.ListenAndServe(":8080", mw.Handler(appRouter))
//
// # TTL resolution
//
// TTLs are looked up by exact request path at read time, from the routePath
// the reader passes to Get. The writer's routePath is kept for metric labels
// only. All query variants of a path therefore share one TTL but have
// distinct entries.
package cache
