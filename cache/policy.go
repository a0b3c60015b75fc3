package cache

import "time"

// NeverStale marks an entity type whose entries stay fresh once fetched.
const NeverStale time.Duration = -1

// Policy configures staleness and garbage collection.
type Policy struct {
	// DefaultStaleTime is how long an entry stays fresh after a successful
	// write when its entity type has no override.
	// Default: 30 seconds
	DefaultStaleTime time.Duration

	// StaleTimes overrides DefaultStaleTime per entity type.
	// A value of NeverStale means infinite freshness.
	StaleTimes map[string]time.Duration

	// GCTime is how long an unsubscribed entry is retained after its last
	// access before Collect drops it. Zero disables collection.
	// Default: 5 minutes
	GCTime time.Duration
}

// DefaultPolicy returns the default cache policy.
// DefaultStaleTime: 30s, GCTime: 5m, no per-type overrides.
func DefaultPolicy() Policy {
	return Policy{
		DefaultStaleTime: 30 * time.Second,
		StaleTimes:       make(map[string]time.Duration),
		GCTime:           5 * time.Minute,
	}
}

// WithStaleTime returns a copy of p with the stale time for entityType set to d.
func (p Policy) WithStaleTime(entityType string, d time.Duration) Policy {
	times := make(map[string]time.Duration, len(p.StaleTimes)+1)
	for k, v := range p.StaleTimes {
		times[k] = v
	}
	times[entityType] = d
	p.StaleTimes = times
	return p
}

// StaleTime returns the freshness window for entityType.
func (p Policy) StaleTime(entityType string) time.Duration {
	if d, ok := p.StaleTimes[entityType]; ok {
		return d
	}
	return p.DefaultStaleTime
}

// IsStale reports whether an entry last written at updated is stale at now.
func (p Policy) IsStale(entityType string, updated, now time.Time) bool {
	window := p.StaleTime(entityType)
	if window == NeverStale {
		return false
	}
	return !now.Before(updated.Add(window))
}
