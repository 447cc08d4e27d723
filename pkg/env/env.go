// Package env reads process environment variables directly, for the few
// knobs (log format, PORT overrides) that live outside the envconfig-managed
// Config.
package env

import "os"

// Get returns the named variable's value, or fallback when unset or empty.
func Get(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
