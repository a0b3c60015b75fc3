package mutation

import (
	"context"

	"github.com/jonwraymond/entitycache/cache"
	"github.com/jonwraymond/entitycache/fetch"
	"github.com/jonwraymond/entitycache/keys"
	"github.com/jonwraymond/entitycache/observe"
)

// SnapshotKind tells where a delete learned the state of its target.
type SnapshotKind int

const (
	// HasSnapshot means the detail entry was cached. It can be restored and
	// its foreign keys drive a precise cascade.
	HasSnapshot SnapshotKind = iota
	// RecoveredSnapshot means the entity was fetched before the delete.
	// Nothing can be restored, but the cascade is still precise.
	RecoveredSnapshot
	// NoSnapshotFallback means the entity state is unknown. The cascade
	// falls back to invalidating every key carrying the relation tag.
	NoSnapshotFallback
)

// String returns the string representation of the kind.
func (k SnapshotKind) String() string {
	switch k {
	case HasSnapshot:
		return "cached"
	case RecoveredSnapshot:
		return "recovered"
	default:
		return "fallback"
	}
}

// Snapshot is the state captured at the start of a delete.
type Snapshot struct {
	Kind SnapshotKind

	// Target is the detail key being deleted.
	Target cache.Key

	// Entry is the cached entry, valid only for HasSnapshot.
	Entry cache.Entry

	// Dependents are the keys derived from the entity's foreign keys.
	Dependents []cache.Key
}

func (c *Coordinator) snapshot(ctx context.Context, req Request) Snapshot {
	target := keys.Detail(req.Entity, req.ID)
	rel, hasRel := c.relations[req.Entity]

	if e, ok := c.store.Read(target); ok && e.HasData {
		snap := Snapshot{Kind: HasSnapshot, Target: target, Entry: e}
		if hasRel {
			if deps, ok := rel.Dependents(e.Value); ok {
				snap.Dependents = deps
			}
		}
		return snap
	}

	snap := Snapshot{Kind: NoSnapshotFallback, Target: target}
	if !hasRel {
		return snap
	}
	if req.Recover == nil {
		c.mw.Logger().Warn(ctx, "no snapshot for delete", observe.F("key", target.String()))
		return snap
	}

	recoverFn := fetch.Resilient(req.Recover, c.recoverExec)
	v, err := c.call(ctx, "recover", target, nil, recoverFn)
	if err != nil {
		c.mw.Logger().Warn(ctx, "snapshot recovery failed",
			observe.F("key", target.String()), observe.F("error", err))
		return snap
	}
	deps, ok := rel.Dependents(v)
	if !ok {
		c.mw.Logger().Warn(ctx, "recovered entity has no foreign keys", observe.F("key", target.String()))
		return snap
	}
	return Snapshot{Kind: RecoveredSnapshot, Target: target, Dependents: deps}
}
