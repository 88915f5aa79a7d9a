package logger

import (
	"net/http"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/agegate/pkg/gate"
	"go.uber.org/zap"
)

// Middleware writes one access record per request. Request bodies carry
// tokens and session ids and are never logged.
type Middleware struct {
	access *zap.Logger
	gates  *gate.Manager
}

func New(access *zap.Logger, gates *gate.Manager) *Middleware {
	if access == nil {
		access = zap.NewNop()
	}
	return &Middleware{access: access, gates: gates}
}

func (m *Middleware) Handler() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)

			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}

			start := time.Now()
			defer func() {
				if shouldSkip(r, ww.Status()) {
					return
				}
				lat := time.Since(start)

				// nil-safe gate lookups
				required := false
				level := ""
				if m.gates != nil {
					d := m.gates.Inspect(r)
					required = d.Required
					level = d.Payload.Level
				}

				m.access.Info("",
					zap.String("dateTime", start.UTC().Format(time.RFC1123)),
					zap.String("requestId", chimd.GetReqID(r.Context())),
					zap.String("httpScheme", scheme),
					zap.Bool("gateRequired", required),
					zap.String("verifiedLevel", level),
					zap.String("httpProto", r.Proto),
					zap.String("httpMethod", r.Method),
					zap.String("remoteAddr", r.RemoteAddr),
					zap.String("uri", r.URL.Path),
					zap.Duration("lat", lat),
					zap.Int("responseSize", ww.BytesWritten()),
					zap.Int("status", ww.Status()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
