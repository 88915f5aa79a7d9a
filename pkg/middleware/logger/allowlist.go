package logger

import (
	"net/http"
	"strings"
	"sync"
)

var (
	quietMu    sync.RWMutex
	quietPaths = map[string]struct{}{
		"/ping":    {},
		"/metrics": {},
	}
)

// AddQuietPaths extends the set of paths that skip access logging.
func AddQuietPaths(paths ...string) {
	quietMu.Lock()
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" {
			quietPaths[p] = struct{}{}
		}
	}
	quietMu.Unlock()
}

// Probes and scrapes only succeed quietly; failures are still logged.
func shouldSkip(r *http.Request, status int) bool {
	if status >= http.StatusBadRequest {
		return false
	}
	quietMu.RLock()
	_, ok := quietPaths[r.URL.Path]
	quietMu.RUnlock()
	return ok
}
