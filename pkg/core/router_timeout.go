package core

import (
	"context"
	"net/http"
	"time"
)

const defaultVerifyTimeout = 10 * time.Second

// withTimeout bounds a verify handler, including any key fetch it triggers.
// A non-positive d falls back to defaultVerifyTimeout.
func withTimeout(next http.HandlerFunc, d time.Duration) http.HandlerFunc {
	if d <= 0 {
		d = defaultVerifyTimeout
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}
