// Package health reports whether the service and its components can serve.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. An
// Aggregator runs a set of checkers under a shared timeout and folds their
// results into an overall status. Mount exposes the usual probe endpoints on
// a chi router:
//
//	agg := health.NewAggregator()
//	agg.Register("response-cache", cache.NewStoreChecker(store, 50000))
//	agg.Register("heap", health.NewHeapChecker(health.HeapCheckerConfig{Limit: 512 << 20}))
//	health.Mount(router, agg)
//
// Degraded components keep readiness green. Only an Unhealthy component
// takes the instance out of rotation.
package health
