package env

import (
	"os"
	"strings"
)

// Get returns the first non-blank value among keys, or fallback when none is
// set. Earlier keys win.
func Get(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}
