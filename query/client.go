package query

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/entitycache/cache"
	"github.com/jonwraymond/entitycache/fetch"
	"github.com/jonwraymond/entitycache/keys"
	"github.com/jonwraymond/entitycache/observe"
	"github.com/jonwraymond/entitycache/resilience"
)

// maxSupersededFetches bounds how often run refetches a key that was
// invalidated while its fetch was in flight.
const maxSupersededFetches = 3

// Client executes queries against a Store.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: a caller whose ctx ends gets ctx.Err(); the fetch itself runs on
// a context without cancellation and still writes its result.
// - Errors: fetch errors are returned unchanged to waiting callers.
// Background refresh errors are recorded on the entry and logged.
type Client struct {
	store          *cache.Store
	group          singleflight.Group
	mw             *observe.Middleware
	exec           *resilience.Executor
	onAuthRejected func(ctx context.Context)

	mu       sync.Mutex
	watchers map[string]*watcher

	bg sync.WaitGroup
}

type watcher struct {
	key     cache.Key
	fetcher fetch.Func
	refs    int
}

// NewClient creates a Client over store and registers it as the store's
// refetch hook.
func NewClient(store *cache.Store, opts ...ClientOption) *Client {
	c := &Client{
		store:    store,
		watchers: make(map[string]*watcher),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mw == nil {
		c.mw = observe.NopMiddleware()
	}
	store.OnRefetch(c.refetch)
	return c
}

// Store returns the underlying store.
func (c *Client) Store() *cache.Store {
	return c.store
}

// Query returns the value at key, fetching it with fetcher when needed.
func (c *Client) Query(ctx context.Context, key cache.Key, fetcher fetch.Func, opts ...Option) (any, error) {
	o := queryOptions{enabled: true}
	for _, opt := range opts {
		opt(&o)
	}

	meta := opMeta("query", key)
	e, ok := c.store.Read(key)
	cached := ok && e.HasData

	if !o.enabled {
		if cached {
			return e.Value, nil
		}
		return nil, ErrDisabled
	}

	if cached && !e.Invalidated && !o.fresh {
		c.mw.Metrics().RecordLookup(ctx, meta, true)
		if e.Status != cache.StatusLoading && c.store.IsStale(e) {
			c.background(ctx, key, fetcher, opMeta("refetch", key))
		}
		return e.Value, nil
	}

	c.mw.Metrics().RecordLookup(ctx, meta, false)
	return c.await(ctx, key, fetcher, meta)
}

// Get is Query with a typed result.
func Get[T any](ctx context.Context, c *Client, key cache.Key, fetcher fetch.Func, opts ...Option) (T, error) {
	var zero T
	v, err := c.Query(ctx, key, fetcher, opts...)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrUnexpectedType, key, v)
	}
	return t, nil
}

// Prefetch starts a background fetch of key unless a fresh value is cached.
// It does not wait and does not report errors.
func (c *Client) Prefetch(ctx context.Context, key cache.Key, fetcher fetch.Func) {
	if e, ok := c.store.Read(key); ok && (e.Status == cache.StatusLoading || !c.store.IsStale(e)) {
		return
	}
	c.background(ctx, key, fetcher, opMeta("prefetch", key))
}

// Watch subscribes listener to key and loads it if needed. While at least
// one watch on key is active, invalidating key refetches it with fetcher
// immediately. The returned stop function is idempotent.
func (c *Client) Watch(ctx context.Context, key cache.Key, fetcher fetch.Func, listener cache.Listener) (stop func()) {
	id := key.ID()

	c.mu.Lock()
	w, ok := c.watchers[id]
	if !ok {
		w = &watcher{key: key}
		c.watchers[id] = w
	}
	w.fetcher = fetcher
	w.refs++
	c.mu.Unlock()

	unsubscribe := c.store.Subscribe(key, listener)
	c.Prefetch(ctx, key, fetcher)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			c.mu.Lock()
			defer c.mu.Unlock()
			if w, ok := c.watchers[id]; ok {
				w.refs--
				if w.refs == 0 {
					delete(c.watchers, id)
				}
			}
		})
	}
}

// Wait blocks until all background refreshes started so far have finished.
func (c *Client) Wait() {
	c.bg.Wait()
}

func (c *Client) refetch(key cache.Key) {
	c.mu.Lock()
	w, ok := c.watchers[key.ID()]
	var fetcher fetch.Func
	if ok {
		fetcher = w.fetcher
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	c.background(context.Background(), key, fetcher, opMeta("refetch", key))
}

func (c *Client) await(ctx context.Context, key cache.Key, fetcher fetch.Func, meta observe.OpMeta) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.ID(), func() (any, error) {
		return c.run(detached, key, fetcher, meta)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) background(ctx context.Context, key cache.Key, fetcher fetch.Func, meta observe.OpMeta) {
	detached := context.WithoutCancel(ctx)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		res := <-c.group.DoChan(key.ID(), func() (any, error) {
			return c.run(detached, key, fetcher, meta)
		})
		if res.Err != nil {
			c.mw.Logger().Warn(detached, "background refresh failed",
				observe.F("key", key.String()), observe.F("error", res.Err))
		}
	}()
}

// run performs the fetch and applies its outcome to the store. It is only
// called inside the singleflight group, so callers joining it receive the
// refetched value when the key was invalidated mid-flight.
func (c *Client) run(ctx context.Context, key cache.Key, fetcher fetch.Func, meta observe.OpMeta) (any, error) {
	call := fetch.Resilient(fetcher, c.exec)
	for attempt := 1; ; attempt++ {
		gen := c.store.MarkLoading(key)
		v, err := c.mw.Call(ctx, meta, func(ctx context.Context) (any, error) {
			return call(ctx, key, nil)
		})
		if err != nil {
			c.fail(ctx, key, err)
			return nil, err
		}

		if c.store.WriteIfCurrent(key, v, gen) {
			return v, nil
		}
		if attempt >= maxSupersededFetches {
			c.mw.Logger().Warn(ctx, "key kept changing during fetch, leaving it idle",
				observe.F("key", key.String()), observe.F("attempts", attempt))
			return v, nil
		}
		c.mw.Logger().Debug(ctx, "key changed during fetch, refetching", observe.F("key", key.String()))
	}
}

func (c *Client) fail(ctx context.Context, key cache.Key, err error) {
	switch fetch.KindOf(err) {
	case fetch.KindNotFound:
		c.store.Remove(key)
	case fetch.KindAuthRejected:
		c.store.Fail(key, err)
		c.store.RemovePrefix(keys.AuthAll())
		if c.onAuthRejected != nil {
			c.onAuthRejected(ctx)
		}
	default:
		c.store.Fail(key, err)
	}
}

func opMeta(op string, key cache.Key) observe.OpMeta {
	return observe.OpMeta{Op: op, Entity: key.EntityType(), Key: key.String()}
}
