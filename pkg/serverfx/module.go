package serverfx

import (
	"net/http"
	"os"

	"github.com/joeydtaylor/agegate/pkg/assertion"
	"github.com/joeydtaylor/agegate/pkg/core"
	"github.com/joeydtaylor/agegate/pkg/events"
	"github.com/joeydtaylor/agegate/pkg/gate"
	"github.com/joeydtaylor/agegate/pkg/keycache"
	"github.com/joeydtaylor/agegate/pkg/middleware/logger"
	"github.com/joeydtaylor/agegate/pkg/middleware/metrics"
	"github.com/joeydtaylor/agegate/pkg/policy"
	"github.com/joeydtaylor/agegate/pkg/transport/httpx"
	"github.com/joeydtaylor/agegate/pkg/verifier"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ---------- Options ----------

type Config struct {
	Service       string // for logs only
	ConfigEnv     string // e.g. AGEGATE_CONFIG
	DefaultConfig string // e.g. "agegate.toml"
}

type Option func(*Config)

func WithService(s string) Option          { return func(c *Config) { c.Service = s } }
func WithConfigEnv(k string) Option        { return func(c *Config) { c.ConfigEnv = k } }
func WithDefaultConfig(path string) Option { return func(c *Config) { c.DefaultConfig = path } }

func defaultConfig() Config {
	return Config{
		Service:       "agegate",
		ConfigEnv:     "AGEGATE_CONFIG",
		DefaultConfig: "agegate.toml",
	}
}

// Module returns a complete Fx option set; add app-specific fx.Invoke(...) alongside.
func Module(opts ...Option) fx.Option {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return fx.Options(
		// Config into DI
		fx.Provide(func() Config { return cfg }),
		fx.Provide(providePolicy),
		// Ambient middleware
		logger.Module,
		metrics.Module,
		fx.Provide(fx.Annotate(metrics.NewPromHttpHandler, fx.ResultTags(`name:"metrics"`))),
		// Router impl
		fx.Provide(httpx.NewChi),
		// Domain
		fx.Provide(
			provideKeyCache,
			provideVerifier,
			provideGates,
			provideNormalizer,
			providePublisher,
			provideService,
		),
		// Router
		fx.Provide(fx.Annotate(
			provideRouter,
			fx.ParamTags(``, ``, ``, `name:"metrics"`, ``, ``), // svc,gates,lm,m,r,cfg
			fx.ResultTags(`name:"app"`),
		)),
		// Lifecycle
		fx.Invoke(registerHooks),
	)
}

// ---------- Providers ----------

func providePolicy(c Config, zl *zap.Logger) (*policy.Config, error) {
	path := envOr(c.ConfigEnv, c.DefaultConfig)
	pc, err := policy.Load(path, true)
	if err != nil {
		return nil, err
	}
	zl.Info("policy loaded",
		zap.String("service", c.Service),
		zap.String("path", path),
		zap.String("mode", string(pc.Mode())),
		zap.Int("minAge", pc.MinAge()),
		zap.Strings("issuers", pc.AcceptedIssuers()),
	)
	return pc, nil
}

func provideKeyCache(pc *policy.Config, zl *zap.Logger, rec metrics.Recorder) (keycache.Resolver, error) {
	return keycache.NewFileCache(pc.KeyCacheDir(), pc.KeyCacheTTL(), pc.FetchTimeout(),
		keycache.WithLogger(zl.Named("keycache")),
		keycache.WithRecorder(rec),
	)
}

func provideVerifier(pc *policy.Config, keys keycache.Resolver, zl *zap.Logger, rec metrics.Recorder) *verifier.Verifier {
	return verifier.New(pc, keys,
		verifier.WithLogger(zl.Named("verifier")),
		verifier.WithRecorder(rec),
	)
}

func provideGates(pc *policy.Config, rec metrics.Recorder) *gate.Manager {
	return gate.NewManager(pc, gate.WithRecorder(rec))
}

func provideNormalizer(pc *policy.Config, gates *gate.Manager) *assertion.Normalizer {
	return assertion.NewNormalizer(pc, gates)
}

func providePublisher(lc fx.Lifecycle, pc *policy.Config, zl *zap.Logger) (events.Publisher, error) {
	p, err := events.NewPublisher(pc.Relay(), zl.Named("relay"))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(p.Close))
	return p, nil
}

func provideService(
	pc *policy.Config,
	v *verifier.Verifier,
	n *assertion.Normalizer,
	keys keycache.Resolver,
	pub events.Publisher,
	zl *zap.Logger,
) *core.Service {
	return core.NewService(core.ServiceDeps{
		Verifier:   v,
		Normalizer: n,
		Keys:       keys,
		JWKSURLs:   pc.JWKSURLs(),
		Events:     pub,
		Logger:     zl.Named("service"),
	})
}

// ---------- Router ----------

func provideRouter(
	svc *core.Service,
	gates *gate.Manager,
	lm *logger.Middleware,
	/* name:"metrics" */ m http.Handler,
	r httpx.Router,
	pc *policy.Config,
) http.Handler {
	return core.BuildRouter(core.BuildDeps{
		Service: svc,
		Gates:   gates,
		LogMW:   lm,
		Metrics: m,
		Router:  r,
		Timeout: pc.FetchTimeout() * 2,
	})
}

// ---------- tiny helpers ----------

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
