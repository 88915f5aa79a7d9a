package core

import (
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"
	hmetrics "github.com/joeydtaylor/agegate/pkg/middleware/metrics"
)

// GateCheckPath serves forward-auth checks from an edge proxy.
const GateCheckPath = "/gate/check"

func BuildRouter(d BuildDeps) http.Handler {
	r := d.Router
	r.Use(chimd.RequestID, chimd.Recoverer, chimd.Heartbeat("/ping"))
	if d.LogMW != nil {
		r.Use(d.LogMW.Handler())
	}
	// metrics collector that reads gate state without recording decisions;
	// gate checks are already counted as gate decisions
	hmetrics.AddMetricsSkipPaths(GateCheckPath)
	r.Use(hmetrics.Collect(d.Gates))

	if d.Metrics != nil {
		r.Get("/metrics", d.Metrics)
	}

	timeout := d.Timeout
	h := &handlers{svc: d.Service, gates: d.Gates}

	r.Post("/verify", withTimeout(h.verify, timeout))
	r.Post("/verify/provider/{provider}", withTimeout(h.verifyProvider, timeout))
	r.Get("/status", http.HandlerFunc(h.status))
	r.Get(GateCheckPath, http.HandlerFunc(h.gateCheck))
	r.Post("/logout", http.HandlerFunc(h.logout))
	return r.Mux()
}
