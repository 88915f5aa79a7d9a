package serverfx

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/joeydtaylor/agegate/pkg/core"
	"github.com/joeydtaylor/agegate/pkg/policy"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ---------- Lifecycle (key warm-up + HTTP server) ----------

type serverDeps struct {
	fx.In
	Logger  *zap.Logger
	Policy  *policy.Config
	Service *core.Service
	App     http.Handler `name:"app"`
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
	}
}

func registerHooks(lc fx.Lifecycle, d serverDeps) {
	sc := d.Policy.Server()
	srv := newServer(sc.Listen, d.App)
	useTLS := fileExists(sc.TLSCert) && fileExists(sc.TLSKey)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Prime the key cache; a cold cache only costs the first request.
			d.Service.WarmUp(ctx)

			// Start HTTP.
			if useTLS {
				d.Logger.Info("server starting (TLS)", zap.String("addr", sc.Listen), zap.String("cert", sc.TLSCert))
				go func() {
					if err := srv.ListenAndServeTLS(sc.TLSCert, sc.TLSKey); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			} else {
				d.Logger.Info("server starting (PLAINTEXT)", zap.String("addr", sc.Listen))
				srv.TLSConfig = nil
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping")
			return srv.Shutdown(ctx)
		},
	})
}
