package config

import "errors"

var (
	// ErrMissingEnv indicates ${VAR} references to unset variables.
	ErrMissingEnv = errors.New("config: missing environment variables")

	// ErrInvalidDuration indicates a negative or unparsable duration.
	ErrInvalidDuration = errors.New("config: invalid duration")

	// ErrInvalidMirror indicates an unknown session mirror kind or a mirror
	// without its required location.
	ErrInvalidMirror = errors.New("config: invalid session mirror")

	// ErrInvalidRetry indicates out-of-range retry settings.
	ErrInvalidRetry = errors.New("config: invalid retry settings")

	// ErrInvalidHealth indicates out-of-range health settings.
	ErrInvalidHealth = errors.New("config: invalid health settings")
)
