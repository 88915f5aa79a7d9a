package policy

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

// overrides lists the settings that may be supplied through the environment.
// Zero values mean "not set" and leave the file value untouched.
type overrides struct {
	Mode              string `env:"AGEGATE_MODE"`
	Secret            string `env:"AGEGATE_SECRET"`
	MinAge            int    `env:"AGEGATE_MIN_AGE"`
	AllowCustomIssuer bool   `env:"AGEGATE_ALLOW_CUSTOM_ISSUER"`

	ProductionIssuer string `env:"AGEGATE_PRODUCTION_ISSUER"`
	ProductionJWKS   string `env:"AGEGATE_PRODUCTION_JWKS_URL"`
	DemoIssuer       string `env:"AGEGATE_DEMO_ISSUER"`
	DemoJWKS         string `env:"AGEGATE_DEMO_JWKS_URL"`

	CookieName string `env:"AGEGATE_COOKIE_NAME"`
	CookieTTL  int    `env:"AGEGATE_COOKIE_TTL_SECONDS"`

	GateHeaderName  string `env:"AGEGATE_GATE_HEADER_NAME"`
	GateHeaderValue string `env:"AGEGATE_GATE_HEADER_VALUE"`

	KeyCacheDir string `env:"AGEGATE_KEYCACHE_DIR"`

	Listen  string `env:"SERVER_LISTEN_ADDRESS"`
	TLSCert string `env:"SSL_SERVER_CERTIFICATE"`
	TLSKey  string `env:"SSL_SERVER_KEY"`

	RelayTarget string `env:"ELECTRICIAN_TARGET"`
}

// ApplyEnv overlays environment settings onto f. A nil environ reads the
// process environment.
func ApplyEnv(f *File, environ map[string]string) error {
	var o overrides
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	setStr(&f.Mode, o.Mode)
	setStr(&f.Secret, o.Secret)
	setInt(&f.MinAge, o.MinAge)
	if o.AllowCustomIssuer {
		f.AllowCustomIssuer = true
	}
	setStr(&f.Issuer.Production.Issuer, o.ProductionIssuer)
	setStr(&f.Issuer.Production.JWKSURL, o.ProductionJWKS)
	setStr(&f.Issuer.Demo.Issuer, o.DemoIssuer)
	setStr(&f.Issuer.Demo.JWKSURL, o.DemoJWKS)
	setStr(&f.Cookie.Name, o.CookieName)
	setInt(&f.Cookie.TTLSeconds, o.CookieTTL)
	setStr(&f.Gate.HeaderName, o.GateHeaderName)
	setStr(&f.Gate.HeaderValue, o.GateHeaderValue)
	setStr(&f.KeyCache.Dir, o.KeyCacheDir)
	setStr(&f.Server.Listen, o.Listen)
	setStr(&f.Server.TLSCert, o.TLSCert)
	setStr(&f.Server.TLSKey, o.TLSKey)
	setStr(&f.Relay.Target, o.RelayTarget)
	return nil
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
