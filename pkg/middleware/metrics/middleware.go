package metrics

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/agegate/pkg/gate"
)

// Collect produces the HTTP middleware that records the counters/histogram.
func Collect(gates *gate.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			startTime := time.Now()

			defer func() {
				// Skip self-scrape and any additional caller-configured paths
				if isSkipPath(r) {
					return
				}

				endTime := time.Since(startTime)

				state := "unknown"
				if gates != nil {
					state = gateState(gates.Inspect(r))
				}

				code := strconv.Itoa(ww.Status())
				route := routePattern(r)
				method := r.Method

				totalHttpRequestsByGate.WithLabelValues(state).Inc()
				totalHttpRequestsToRoute.WithLabelValues(code, route, method).Inc()
				totalHttpRequests.WithLabelValues(code, method).Inc()
				responseTime.Observe(endTime.Seconds())
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func gateState(d gate.Decision) string {
	switch {
	case d.Verified:
		return "verified"
	case d.Required:
		return "required"
	default:
		return "open"
	}
}
