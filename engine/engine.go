package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/entitycache/cache"
	"github.com/jonwraymond/entitycache/config"
	"github.com/jonwraymond/entitycache/fetch"
	"github.com/jonwraymond/entitycache/health"
	"github.com/jonwraymond/entitycache/mutation"
	"github.com/jonwraymond/entitycache/observe"
	"github.com/jonwraymond/entitycache/query"
	"github.com/jonwraymond/entitycache/resilience"
	"github.com/jonwraymond/entitycache/session"
)

// Option configures New.
type Option func(*options)

type options struct {
	now    func() time.Time
	mirror session.Mirror
}

// WithClock replaces time.Now in the store and the session.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithMirror overrides the session mirror selected by the configuration.
func WithMirror(m session.Mirror) Option {
	return func(o *options) {
		o.mirror = m
	}
}

// Engine owns one instance of every component.
type Engine struct {
	cfg      config.Config
	observer observe.Observer
	logger   observe.Logger
	store    *cache.Store
	session  *session.Session
	exec     *resilience.Executor
	query    *query.Client
	mutation *mutation.Coordinator
	health   *health.Aggregator
	redis    *redis.Client

	stopGC    chan struct{}
	gcDone    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New builds an Engine from cfg.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, err
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("engine: metrics: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		observer: obs,
		logger:   obs.Logger().With(observe.F("component", "engine")),
	}

	mirror := o.mirror
	if mirror == nil {
		mirror, err = e.newMirror(cfg.Session)
		if err != nil {
			_ = obs.Shutdown(ctx)
			return nil, err
		}
	}

	e.store = cache.NewStore(cfg.Cache.Policy(), cache.WithClock(o.now))
	e.session = session.New(mirror,
		session.WithClock(o.now),
		session.WithBuffer(cfg.Session.ExpiryBuffer),
		session.WithLogger(obs.Logger()),
	)
	e.exec = fetch.NewExecutor(cfg.Retry.Resilience(), cfg.Circuit.Resilience())
	e.query = query.NewClient(e.store,
		query.WithMiddleware(mw),
		query.WithExecutor(e.exec),
		query.WithAuthRejected(func(context.Context) { e.session.Clear() }),
	)
	e.mutation = mutation.NewCoordinator(e.store,
		mutation.WithSession(e.session),
		mutation.WithMiddleware(mw),
		mutation.WithRecoverExecutor(e.exec),
	)

	e.health = health.NewAggregator(health.AggregatorConfig{Timeout: cfg.Health.Timeout})
	e.health.Register("store", health.NewStoreChecker(e.store, health.StoreCheckerConfig{ErrorRatio: cfg.Health.ErrorRatio}))
	e.health.Register("session", health.NewSessionChecker(e.session))
	if cb := e.exec.CircuitBreaker(); cb != nil {
		e.health.Register("transport", health.NewCircuitChecker(cb))
	}

	if cfg.Cache.GCInterval > 0 && cfg.Cache.GCTime > 0 {
		e.stopGC = make(chan struct{})
		e.gcDone = make(chan struct{})
		go e.collect(cfg.Cache.GCInterval)
	}

	e.logger.Info(ctx, "engine started",
		observe.F("mirror", cfg.Session.Mirror),
		observe.F("gc_interval", cfg.Cache.GCInterval.String()))
	return e, nil
}

func (e *Engine) newMirror(cfg config.SessionConfig) (session.Mirror, error) {
	switch cfg.Mirror {
	case config.MirrorFile:
		return session.NewFileMirror(cfg.File), nil
	case config.MirrorRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("engine: redis url: %w", err)
		}
		e.redis = redis.NewClient(opts)
		return session.NewRedisMirror(e.redis, cfg.RedisKey), nil
	default:
		return session.NewMemoryMirror(), nil
	}
}

func (e *Engine) collect(interval time.Duration) {
	defer close(e.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopGC:
			return
		case <-ticker.C:
			if n := e.store.Collect(); n > 0 {
				e.logger.Debug(context.Background(), "collected entries", observe.F("count", n))
			}
		}
	}
}

// Store returns the entity store.
func (e *Engine) Store() *cache.Store { return e.store }

// Session returns the session.
func (e *Engine) Session() *session.Session { return e.session }

// Query returns the query client.
func (e *Engine) Query() *query.Client { return e.query }

// Mutations returns the mutation coordinator.
func (e *Engine) Mutations() *mutation.Coordinator { return e.mutation }

// Logger returns the engine's logger.
func (e *Engine) Logger() observe.Logger { return e.logger }

// Authorized wraps a transport function with the engine's session, using
// the configured expiry buffer.
func (e *Engine) Authorized(next fetch.Func, opts ...fetch.AuthOption) fetch.Func {
	opts = append([]fetch.AuthOption{fetch.WithExpiryBuffer(e.cfg.Session.ExpiryBuffer)}, opts...)
	return fetch.Authorized(next, e.session, opts...)
}

// Health runs every health check and returns the aggregate result.
func (e *Engine) Health(ctx context.Context) health.Result {
	return e.health.Checker().Check(ctx)
}

// HealthHandler returns an HTTP handler reporting the engine's health.
func (e *Engine) HealthHandler() http.Handler {
	return health.Handler(e.health)
}

// Close stops the collector, waits for background fetches and mutations,
// tears down the session and flushes telemetry. It is safe to call twice.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		if e.stopGC != nil {
			close(e.stopGC)
			<-e.gcDone
		}
		e.query.Wait()
		e.mutation.Wait()

		var errs []error
		if e.cfg.Session.ClearOnClose {
			if err := e.session.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if e.redis != nil {
			if err := e.redis.Close(); err != nil {
				errs = append(errs, fmt.Errorf("engine: redis close: %w", err))
			}
		}
		if err := e.observer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}
