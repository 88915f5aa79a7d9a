package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agegate_http_response_seconds",
			Help:    "http response time.",
			Buckets: []float64{0.005, 0.05, 0.5, 1, 5, 10},
		},
	)

	totalHttpRequestsByGate = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agegate_http_requests_by_gate_total", Help: "http requests by gate state"},
		[]string{"gate"},
	)

	totalHttpRequestsToRoute = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agegate_http_requests_to_route_total", Help: "http requests to route"},
		[]string{"code", "route", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agegate_http_requests_total", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)

	verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agegate_verifications_total", Help: "token verifications by outcome code"},
		[]string{"code"},
	)

	jwksResolves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agegate_jwks_resolve_total", Help: "key set resolutions by source"},
		[]string{"source"},
	)

	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agegate_gate_decisions_total", Help: "gate-required decisions"},
		[]string{"required"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsByGate,
		totalHttpRequestsToRoute,
		totalHttpRequests,
		verifications,
		jwksResolves,
		gateDecisions,
	)
}
