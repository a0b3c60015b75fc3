// Package config loads engine configuration from YAML.
//
// Files are expanded with ExpandEnvStrict before decoding, so secrets such
// as a Redis URL can be supplied as ${VAR}. Unknown fields are rejected.
//
//	cache:
//	  default_stale_time: 30s
//	  stale_times:
//	    config: never
//	    computers: 2m
//	  gc_time: 5m
//	session:
//	  mirror: file
//	  file: ${HOME}/.entitycache/session.json
//	retry:
//	  max_attempts: 3
//	observe:
//	  service_name: entitycache
//	  logging:
//	    enabled: true
//	    level: info
package config
