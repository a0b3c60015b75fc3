package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/entitycache/cache"
	"github.com/jonwraymond/entitycache/entity"
	"github.com/jonwraymond/entitycache/fetch"
	"github.com/jonwraymond/entitycache/keys"
	"github.com/jonwraymond/entitycache/resilience"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestClient(t *testing.T, opts ...ClientOption) (*Client, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := cache.NewStore(keys.DefaultPolicy(), cache.WithClock(clock.Now))
	return NewClient(store, opts...), clock
}

// countingFetcher returns a fetcher that counts its calls and yields the
// results of next in order.
func countingFetcher(calls *atomic.Int32, next func(n int32) (any, error)) fetch.Func {
	return func(context.Context, cache.Key, any) (any, error) {
		return next(calls.Add(1))
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestQuery_FreshEntryDoesNotFetch(t *testing.T) {
	c, _ := newTestClient(t)
	key := keys.Detail(keys.Computers, "c1")
	c.Store().Write(key, "cached")

	var calls atomic.Int32
	got, err := c.Query(context.Background(), key, countingFetcher(&calls, func(int32) (any, error) {
		return "fetched", nil
	}))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got != "cached" {
		t.Errorf("Query() = %v, want cached", got)
	}
	if calls.Load() != 0 {
		t.Errorf("fetcher called %d times, want 0", calls.Load())
	}
}

func TestQuery_ConcurrentCallersShareOneFetch(t *testing.T) {
	c, _ := newTestClient(t)
	key := keys.Detail(keys.Computers, "c1")

	var calls atomic.Int32
	fetcher := countingFetcher(&calls, func(int32) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return entity.Computer{ID: "c1", Hostname: "host"}, nil
	})

	var wg sync.WaitGroup
	results := make([]any, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Query(context.Background(), key, fetcher)
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("fetcher called %d times, want 1", calls.Load())
	}
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Errorf("caller %d got %v, want %v", i, results[i], results[0])
		}
	}
}

func TestQuery_StaleWhileRevalidate(t *testing.T) {
	c, clock := newTestClient(t)
	key := keys.Lists(keys.Projects)
	c.Store().Write(key, "v1")
	clock.Advance(31 * time.Second)

	var calls atomic.Int32
	got, err := c.Query(context.Background(), key, countingFetcher(&calls, func(int32) (any, error) {
		return "v2", nil
	}))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got != "v1" {
		t.Errorf("Query() = %v, want the stale value v1", got)
	}

	c.Wait()
	e, _ := c.Store().Read(key)
	if e.Value != "v2" || e.Status != cache.StatusSuccess {
		t.Errorf("entry after refresh = %v/%v, want v2/success", e.Value, e.Status)
	}
	if calls.Load() != 1 {
		t.Errorf("fetcher called %d times, want 1", calls.Load())
	}
}

func TestQuery_BackgroundFailureKeepsValue(t *testing.T) {
	c, clock := newTestClient(t)
	key := keys.Lists(keys.Projects)
	c.Store().Write(key, "v1")
	written, _ := c.Store().Read(key)
	clock.Advance(time.Minute)

	failure := fetch.NetworkError(errors.New("offline"))
	got, err := c.Query(context.Background(), key, func(context.Context, cache.Key, any) (any, error) {
		return nil, failure
	})
	if err != nil || got != "v1" {
		t.Fatalf("Query() = %v, %v; want v1, nil", got, err)
	}

	c.Wait()
	e, ok := c.Store().Read(key)
	if !ok || !e.HasData || e.Value != "v1" {
		t.Fatalf("entry = %+v, want the old value kept", e)
	}
	if e.Status != cache.StatusError || !errors.Is(e.Err, fetch.ErrNetworkFailure) {
		t.Errorf("entry status/err = %v/%v, want error/network failure", e.Status, e.Err)
	}
	if !e.LastUpdated.Equal(written.LastUpdated) {
		t.Errorf("LastUpdated changed on failed refresh")
	}
}

func TestQuery_MissFailurePropagatesAndAllowsRetry(t *testing.T) {
	c, _ := newTestClient(t)
	key := keys.Detail(keys.Users, "u1")

	var calls atomic.Int32
	fetcher := countingFetcher(&calls, func(n int32) (any, error) {
		if n == 1 {
			return nil, fetch.FromStatus(422, "bad request")
		}
		return entity.User{ID: "u1"}, nil
	})

	if _, err := c.Query(context.Background(), key, fetcher); !errors.Is(err, fetch.ErrValidation) {
		t.Fatalf("first Query() error = %v, want validation", err)
	}
	if e, ok := c.Store().Read(key); ok {
		t.Fatalf("entry after failure = %+v, want the key absent", e)
	}

	got, err := c.Query(context.Background(), key, fetcher)
	if err != nil {
		t.Fatalf("retry Query() error = %v", err)
	}
	if u, ok := got.(entity.User); !ok || u.ID != "u1" {
		t.Fatalf("retry Query() = %v, want user u1", got)
	}
}

func TestQuery_NotFoundRemovesEntry(t *testing.T) {
	c, _ := newTestClient(t)
	key := keys.Detail(keys.Projects, "p9")
	c.Store().Write(key, "old")
	c.Store().Invalidate(key)

	_, err := c.Query(context.Background(), key, func(context.Context, cache.Key, any) (any, error) {
		return nil, fetch.FromStatus(404, "no such project")
	})
	if !errors.Is(err, fetch.ErrNotFound) {
		t.Fatalf("Query() error = %v, want not found", err)
	}
	if _, ok := c.Store().Read(key); ok {
		t.Fatal("entry should be removed after a 404")
	}
}

func TestQuery_AuthRejectedRemovesAuthKeys(t *testing.T) {
	var hookCalls atomic.Int32
	c, _ := newTestClient(t, WithAuthRejected(func(context.Context) { hookCalls.Add(1) }))
	c.Store().Write(keys.CurrentUser(), entity.User{ID: "u1"})

	key := keys.Lists(keys.Computers)
	_, err := c.Query(context.Background(), key, func(context.Context, cache.Key, any) (any, error) {
		return nil, fetch.FromStatus(401, "expired")
	})
	if !errors.Is(err, fetch.ErrAuthRejected) {
		t.Fatalf("Query() error = %v, want auth rejected", err)
	}
	if _, ok := c.Store().Read(keys.CurrentUser()); ok {
		t.Error("current user should be removed")
	}
	if hookCalls.Load() != 1 {
		t.Errorf("auth hook called %d times, want 1", hookCalls.Load())
	}
}

func TestQuery_DetachedCallerStillPopulatesCache(t *testing.T) {
	c, _ := newTestClient(t)
	key := keys.Detail(keys.Computers, "c2")

	release := make(chan struct{})
	fetcher := func(ctx context.Context, _ cache.Key, _ any) (any, error) {
		<-release
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return "done", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Query(ctx, key, fetcher)
		errc <- err
	}()

	eventually(t, func() bool {
		e, ok := c.Store().Read(key)
		return ok && e.Status == cache.StatusLoading
	})
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("detached caller error = %v, want context.Canceled", err)
	}

	close(release)
	eventually(t, func() bool {
		e, ok := c.Store().Read(key)
		return ok && e.HasData && e.Value == "done"
	})
}

func TestQuery_InvalidatedEntryWaitsForFetch(t *testing.T) {
	c, _ := newTestClient(t)
	key := keys.ComputerAttachments("c1")
	c.Store().Write(key, "before")
	c.Store().Invalidate(keys.Detail(keys.Computers, "c1"))

	got, err := c.Query(context.Background(), key, fetch.Static("after"))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got != "after" {
		t.Errorf("Query() = %v, want after", got)
	}
}

func TestQuery_InvalidationDuringFetchRefetches(t *testing.T) {
	c, _ := newTestClient(t)
	key := keys.ComputerAttachments("c1")

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetcher := countingFetcher(&calls, func(n int32) (any, error) {
		if n == 1 {
			close(started)
			<-release
			return []string{"old"}, nil
		}
		return []string{"old", "new"}, nil
	})

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := c.Query(context.Background(), key, fetcher)
		done <- result{v, err}
	}()

	<-started
	if n := c.Store().Invalidate(keys.Detail(keys.Computers, "c1")); n != 1 {
		t.Fatalf("Invalidate() = %d, want 1", n)
	}
	close(release)

	r := <-done
	if r.err != nil || len(r.v.([]string)) != 2 {
		t.Fatalf("Query() = %v, %v; want the refetched list", r.v, r.err)
	}
	e, _ := c.Store().Read(key)
	if got, _ := e.Value.([]string); len(got) != 2 || e.Invalidated || e.Status != cache.StatusSuccess {
		t.Errorf("entry = %+v, want refetched success", e)
	}
	if calls.Load() != 2 {
		t.Errorf("fetcher called %d times, want 2", calls.Load())
	}
}

func TestQuery_FreshOptionForcesFetch(t *testing.T) {
	c, _ := newTestClient(t)
	key := keys.Detail(keys.Users, "u1")
	c.Store().Write(key, "cached")

	got, err := c.Query(context.Background(), key, fetch.Static("fetched"), Fresh())
	if err != nil || got != "fetched" {
		t.Fatalf("Query(Fresh) = %v, %v; want fetched", got, err)
	}
}

func TestQuery_Disabled(t *testing.T) {
	c, _ := newTestClient(t)
	key := keys.UserProjectKeys("u1")

	var calls atomic.Int32
	fetcher := countingFetcher(&calls, func(int32) (any, error) { return "x", nil })

	if _, err := c.Query(context.Background(), key, fetcher, Enabled(false)); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Query(disabled) error = %v, want ErrDisabled", err)
	}

	c.Store().Write(key, "cached")
	got, err := c.Query(context.Background(), key, fetcher, Enabled(false))
	if err != nil || got != "cached" {
		t.Fatalf("Query(disabled) = %v, %v; want cached", got, err)
	}
	if calls.Load() != 0 {
		t.Errorf("disabled query fetched %d times", calls.Load())
	}
}

func TestGet_Typed(t *testing.T) {
	c, _ := newTestClient(t)
	key := keys.Detail(keys.Users, "u1")

	u, err := Get[entity.User](context.Background(), c, key, fetch.Static(entity.User{ID: "u1", Name: "Ada"}))
	if err != nil || u.Name != "Ada" {
		t.Fatalf("Get() = %+v, %v", u, err)
	}

	if _, err := Get[entity.Project](context.Background(), c, key, fetch.Static(nil)); !errors.Is(err, ErrUnexpectedType) {
		t.Fatalf("Get() with wrong type error = %v, want ErrUnexpectedType", err)
	}
}

func TestWatch_InvalidationRefetchesImmediately(t *testing.T) {
	c, _ := newTestClient(t)
	key := keys.ComputerAttachments("c1")

	var calls atomic.Int32
	fetcher := countingFetcher(&calls, func(n int32) (any, error) { return n, nil })

	var mu sync.Mutex
	var seen []cache.Entry
	stop := c.Watch(context.Background(), key, fetcher, func(e cache.Entry) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})
	c.Wait()

	if e, _ := c.Store().Read(key); e.Value != int32(1) {
		t.Fatalf("initial load = %v, want 1", e.Value)
	}

	c.Store().Invalidate(keys.Detail(keys.Computers, "c1"))
	c.Wait()
	if e, _ := c.Store().Read(key); e.Value != int32(2) || e.Invalidated {
		t.Fatalf("after invalidation = %+v, want refetched value 2", e)
	}

	mu.Lock()
	last := seen[len(seen)-1]
	mu.Unlock()
	if last.Status != cache.StatusSuccess || last.Subscribers != 1 {
		t.Errorf("last notification = %+v, want success with 1 subscriber", last)
	}

	stop()
	stop()
	c.Store().Invalidate(key)
	c.Wait()
	if calls.Load() != 2 {
		t.Errorf("fetcher called %d times after stop, want 2", calls.Load())
	}
	if e, _ := c.Store().Read(key); e.Status != cache.StatusIdle {
		t.Errorf("unwatched invalidated entry status = %v, want idle", e.Status)
	}
}

func TestQuery_ExecutorRetriesNetworkFailures(t *testing.T) {
	exec := fetch.NewExecutor(resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, resilience.CircuitBreakerConfig{})
	c, _ := newTestClient(t, WithExecutor(exec))

	var calls atomic.Int32
	fetcher := countingFetcher(&calls, func(n int32) (any, error) {
		if n < 3 {
			return nil, fetch.NetworkError(errors.New("reset"))
		}
		return "ok", nil
	})

	got, err := c.Query(context.Background(), keys.Lists(keys.Invites), fetcher)
	if err != nil || got != "ok" {
		t.Fatalf("Query() = %v, %v; want ok", got, err)
	}
	if calls.Load() != 3 {
		t.Errorf("fetcher called %d times, want 3", calls.Load())
	}
}
