// Package cache provides the entity cache store used by the query and
// mutation layers.
//
// Values are addressed by hierarchical Keys. The Store keeps one Entry per key
// with its fetch status, last update time and subscriber count, evaluates
// staleness against a per-entity-type Policy, and supports invalidation by key
// prefix.
package cache
