// Package health reports the health of a running cache engine.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. The
// package ships checkers for the entity store (share of entries whose last
// fetch failed), the session (token lifecycle state) and the transport
// circuit breaker. An Aggregator runs them together:
//
//	agg := health.NewAggregator()
//	agg.Register("store", health.NewStoreChecker(store, health.StoreCheckerConfig{}))
//	agg.Register("session", health.NewSessionChecker(sess))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// Handler exposes the aggregate as JSON for applications that embed the
// engine in a service.
package health
