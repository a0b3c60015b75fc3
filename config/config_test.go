package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/entitycache/cache"
)

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	policy := cfg.Cache.Policy()
	if policy.DefaultStaleTime != 30*time.Second {
		t.Errorf("DefaultStaleTime = %v, want 30s", policy.DefaultStaleTime)
	}
	if policy.StaleTime("config") != cache.NeverStale {
		t.Errorf("config stale time = %v, want NeverStale", policy.StaleTime("config"))
	}
	if cfg.Session.Mirror != MirrorMemory || cfg.Session.ExpiryBuffer != time.Minute {
		t.Errorf("session defaults = %+v", cfg.Session)
	}
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("SESSION_DIR", "/tmp/ec")
	data := []byte(`
cache:
  default_stale_time: 45s
  stale_times:
    computers: 2m
    preferences: never
  gc_time: 10m
session:
  expiry_buffer: 90s
  mirror: file
  file: ${SESSION_DIR}/session.json
retry:
  max_attempts: 5
  initial_delay: 50ms
circuit:
  max_failures: 2
observe:
  service_name: accounts
  logging:
    enabled: true
    level: debug
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	policy := cfg.Cache.Policy()
	tests := []struct {
		entity string
		want   time.Duration
	}{
		{"computers", 2 * time.Minute},
		{"preferences", cache.NeverStale},
		{"config", cache.NeverStale},
		{"users", 45 * time.Second},
	}
	for _, tc := range tests {
		if got := policy.StaleTime(tc.entity); got != tc.want {
			t.Errorf("StaleTime(%s) = %v, want %v", tc.entity, got, tc.want)
		}
	}
	if policy.GCTime != 10*time.Minute {
		t.Errorf("GCTime = %v", policy.GCTime)
	}
	if cfg.Session.File != "/tmp/ec/session.json" || cfg.Session.ExpiryBuffer != 90*time.Second {
		t.Errorf("session = %+v", cfg.Session)
	}
	if r := cfg.Retry.Resilience(); r.MaxAttempts != 5 || r.InitialDelay != 50*time.Millisecond || r.Multiplier != 2 {
		t.Errorf("retry = %+v", r)
	}
	if cfg.Circuit.Resilience().MaxFailures != 2 {
		t.Errorf("circuit = %+v", cfg.Circuit)
	}
	if cfg.Observe.ServiceName != "accounts" || cfg.Observe.Logging.Level != "debug" {
		t.Errorf("observe = %+v", cfg.Observe)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"missing env", "session:\n  redis_url: ${ENTITYCACHE_TEST_UNSET}\n", ErrMissingEnv},
		{"file mirror without path", "session:\n  mirror: file\n", ErrInvalidMirror},
		{"redis mirror without url", "session:\n  mirror: redis\n", ErrInvalidMirror},
		{"unknown mirror", "session:\n  mirror: cookie\n", ErrInvalidMirror},
		{"bad stale time", "cache:\n  default_stale_time: soon\n", ErrInvalidDuration},
		{"negative buffer", "session:\n  expiry_buffer: -5s\n", ErrInvalidDuration},
		{"negative per-type stale time", "cache:\n  stale_times:\n    computers: -5s\n", ErrInvalidDuration},
		{"bad ratio", "health:\n  error_ratio: 1.5\n", ErrInvalidHealth},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.data)); !errors.Is(err, tc.want) {
				t.Fatalf("Parse() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParse_NeverStalePerType(t *testing.T) {
	cfg, err := Parse([]byte("cache:\n  stale_times:\n    invites: never\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := time.Duration(cfg.Cache.StaleTimes["invites"]); got != cache.NeverStale {
		t.Errorf("invites stale time = %v, want NeverStale", got)
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("cache:\n  stale: 1s\n"))
	if err == nil || !strings.Contains(err.Error(), "stale") {
		t.Fatalf("Parse() error = %v, want unknown field error", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entitycache.yaml")
	if err := os.WriteFile(path, []byte("retry:\n  max_attempts: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Retry.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", cfg.Retry.MaxAttempts)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) error = %v, want ErrNotExist", err)
	}
}

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	if _, err := ExpandEnvStrict("a=${PRESENT} b=${ENTITYCACHE_MISSING}"); err == nil || !strings.Contains(err.Error(), "ENTITYCACHE_MISSING") {
		t.Fatalf("expected missing var error, got %v", err)
	}

	out, err := ExpandEnvStrict("$$${PRESENT}")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if out != "$ok" {
		t.Fatalf("ExpandEnvStrict() = %q, want %q", out, "$ok")
	}
}

func TestDuration_MarshalYAML(t *testing.T) {
	if v, _ := Duration(cache.NeverStale).MarshalYAML(); v != "never" {
		t.Errorf("MarshalYAML(NeverStale) = %v", v)
	}
	if v, _ := Duration(90 * time.Second).MarshalYAML(); v != "1m30s" {
		t.Errorf("MarshalYAML(90s) = %v", v)
	}
}
