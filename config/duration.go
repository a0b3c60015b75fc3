package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/entitycache/cache"
)

// Duration is a staleness window written as a Go duration ("30s") or as
// "never" for cache.NeverStale.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Value == "never" {
		*d = Duration(cache.NeverStale)
		return nil
	}
	v, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("%w: line %d: %q", ErrInvalidDuration, value.Line, value.Value)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	if time.Duration(d) == cache.NeverStale {
		return "never", nil
	}
	return time.Duration(d).String(), nil
}
