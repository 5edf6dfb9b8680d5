package utils

import (
	"net/url"
	"strings"
	"sync"
)

var (
	allowedMu      sync.RWMutex
	allowedOrigins = map[string]bool{}
)

// SetAllowedOrigins registers the browser origins the API accepts, typically
// the frontend base URL from configuration. Localhost origins are always
// allowed for development.
func SetAllowedOrigins(origins ...string) {
	allowedMu.Lock()
	defer allowedMu.Unlock()
	allowedOrigins = map[string]bool{}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			allowedOrigins[o] = true
		}
	}
}

// IsAllowedOrigin checks whether an Origin header value should be trusted.
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	origin = strings.TrimRight(origin, "/")

	allowedMu.RLock()
	ok := allowedOrigins[origin]
	allowedMu.RUnlock()
	if ok {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	hostname := parsed.Hostname()
	return hostname == "localhost" || hostname == "127.0.0.1"
}
