package mutation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/entitycache/cache"
	"github.com/jonwraymond/entitycache/entity"
	"github.com/jonwraymond/entitycache/fetch"
	"github.com/jonwraymond/entitycache/keys"
	"github.com/jonwraymond/entitycache/observe"
	"github.com/jonwraymond/entitycache/resilience"
)

// Op is a mutation operation.
type Op int

const (
	// OpCreate creates a new entity.
	OpCreate Op = iota + 1
	// OpUpdate replaces an existing entity.
	OpUpdate
	// OpDelete deletes an existing entity.
	OpDelete
)

// String returns the string representation of the operation.
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Request describes one mutation.
type Request struct {
	Entity keys.EntityType
	Op     Op

	// ID identifies the entity for OpUpdate and OpDelete.
	ID string

	// Payload is handed to Fetch as the request body.
	Payload any

	// Fetch performs the mutation against the remote API.
	Fetch fetch.Func

	// Recover fetches the entity before a delete when it is not cached, to
	// learn its foreign keys. Optional.
	Recover fetch.Func
}

// Session is the part of the session lifecycle the coordinator drives.
// *session.Session implements it.
type Session interface {
	Set(token string, ttl time.Duration) error
	Clear()
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSession sets the session updated by Login, Register and Logout.
func WithSession(s Session) Option {
	return func(c *Coordinator) {
		c.session = s
	}
}

// WithMiddleware wraps every transport call with m.
// Default: observe.NopMiddleware().
func WithMiddleware(m *observe.Middleware) Option {
	return func(c *Coordinator) {
		c.mw = m
	}
}

// WithRecoverExecutor runs Recover fetches through exec. Mutations
// themselves are never retried.
func WithRecoverExecutor(exec *resilience.Executor) Option {
	return func(c *Coordinator) {
		c.recoverExec = exec
	}
}

// WithRelation sets or replaces the relation of entity type t.
func WithRelation(t keys.EntityType, r Relation) Option {
	return func(c *Coordinator) {
		c.relations[t] = r
	}
}

// Coordinator applies mutations and keeps the cache consistent with them.
//
// Contract:
// - Concurrency: safe for concurrent use. Mutations on the same id are not
// serialized; the last one to complete wins in the cache.
// - Context: the transport call runs on a context without cancellation. A
// caller whose ctx ends gets ctx.Err() while the mutation completes and
// reconciles the cache in the background.
// - Errors: transport errors are returned unchanged, after any rollback.
// An auth rejection also clears the session and every auth-scoped key.
// - Invalidation caused by a mutation happens before Mutate returns.
type Coordinator struct {
	store       *cache.Store
	session     Session
	mw          *observe.Middleware
	recoverExec *resilience.Executor
	relations   map[keys.EntityType]Relation

	wg sync.WaitGroup
}

// NewCoordinator creates a Coordinator over store with DefaultRelations.
func NewCoordinator(store *cache.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		relations: DefaultRelations(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mw == nil {
		c.mw = observe.NopMiddleware()
	}
	return c
}

// Mutate applies req and returns the transport's result.
func (c *Coordinator) Mutate(ctx context.Context, req Request) (any, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	detached := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		var r result
		switch req.Op {
		case OpCreate:
			r.v, r.err = c.create(detached, req)
		case OpUpdate:
			r.v, r.err = c.update(detached, req)
		case OpDelete:
			r.v, r.err = c.delete(detached, req)
		}
		if fetch.KindOf(r.err) == fetch.KindAuthRejected {
			c.dropAuth(detached)
		}
		done <- r
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dropAuth forgets the rejected credentials and every auth-scoped key.
func (c *Coordinator) dropAuth(ctx context.Context) {
	if c.session != nil {
		c.session.Clear()
	}
	n := c.store.RemovePrefix(keys.AuthAll())
	c.mw.Logger().Warn(ctx, "credentials rejected, session cleared", observe.F("removed", n))
}

// Wait blocks until every mutation started so far has completed.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (r Request) validate() error {
	if r.Fetch == nil {
		return ErrNoFetcher
	}
	switch r.Op {
	case OpCreate:
		return nil
	case OpUpdate, OpDelete:
		if r.ID == "" {
			return ErrMissingID
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownOp, int(r.Op))
	}
}

func (c *Coordinator) create(ctx context.Context, req Request) (any, error) {
	v, err := c.call(ctx, req.Op.String(), keys.Lists(req.Entity), req.Payload, req.Fetch)
	if err != nil {
		return nil, err
	}

	meta := opMeta(req.Op.String(), keys.Lists(req.Entity))
	n := c.store.Invalidate(keys.Lists(req.Entity))
	if rel, ok := c.relations[req.Entity]; ok {
		deps, known := rel.Dependents(req.Payload)
		if !known {
			deps, known = rel.Dependents(v)
		}
		n += c.cascade(ctx, rel, deps, known)
	}
	c.mw.Metrics().RecordInvalidation(ctx, meta, n)
	return v, nil
}

func (c *Coordinator) update(ctx context.Context, req Request) (any, error) {
	target := keys.Detail(req.Entity, req.ID)
	v, err := c.call(ctx, req.Op.String(), target, req.Payload, req.Fetch)
	if err != nil {
		return nil, err
	}

	c.store.Write(target, v)
	if req.Entity == keys.Users {
		c.syncCurrentUser(req.ID, v)
	}

	n := c.store.Invalidate(keys.Lists(req.Entity))
	if rel, ok := c.relations[req.Entity]; ok {
		if deps, known := rel.Dependents(v); known {
			n += c.cascade(ctx, rel, deps, true)
		}
	}
	c.mw.Metrics().RecordInvalidation(ctx, opMeta(req.Op.String(), target), n)
	return v, nil
}

// syncCurrentUser writes v into the current user key when the cached
// current user is the updated user.
func (c *Coordinator) syncCurrentUser(id string, v any) {
	e, ok := c.store.Read(keys.CurrentUser())
	if !ok || !e.HasData {
		return
	}
	if current, ok := entity.IDOf(e.Value); ok && current == id {
		c.store.Write(keys.CurrentUser(), v)
	}
}

func (c *Coordinator) delete(ctx context.Context, req Request) (any, error) {
	snap := c.snapshot(ctx, req)
	c.store.Remove(snap.Target)

	v, err := c.call(ctx, req.Op.String(), snap.Target, req.Payload, req.Fetch)
	if err != nil {
		if snap.Kind == HasSnapshot {
			c.store.Restore(snap.Entry)
		}
		c.mw.Logger().Info(ctx, "delete rolled back",
			observe.F("key", snap.Target.String()), observe.F("snapshot", snap.Kind.String()))
		return nil, err
	}

	// A query may have refilled the target while the delete was in flight.
	c.store.Remove(snap.Target)
	n := c.store.Invalidate(keys.Lists(req.Entity))
	if rel, ok := c.relations[req.Entity]; ok {
		n += c.cascade(ctx, rel, snap.Dependents, len(snap.Dependents) > 0)
	}
	c.mw.Metrics().RecordInvalidation(ctx, opMeta(req.Op.String(), snap.Target), n)
	return v, nil
}

// cascade invalidates deps, or every key tagged with the relation when the
// dependents are unknown. It returns the number of invalidated entries.
func (c *Coordinator) cascade(ctx context.Context, rel Relation, deps []cache.Key, known bool) int {
	if known {
		n := 0
		for _, k := range deps {
			n += c.store.Invalidate(k)
		}
		return n
	}
	c.mw.Logger().Warn(ctx, "foreign keys unknown, invalidating by tag", observe.F("tag", rel.Tag))
	return c.store.InvalidateMatching(func(k cache.Key) bool { return k.Contains(rel.Tag) })
}

func (c *Coordinator) call(ctx context.Context, op string, key cache.Key, payload any, fn fetch.Func) (any, error) {
	return c.mw.Call(ctx, opMeta(op, key), func(ctx context.Context) (any, error) {
		return fn(ctx, key, payload)
	})
}

func opMeta(op string, key cache.Key) observe.OpMeta {
	return observe.OpMeta{Op: op, Entity: key.EntityType(), Key: key.String()}
}
