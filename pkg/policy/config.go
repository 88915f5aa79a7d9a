// Package policy validates deployment configuration into an immutable Config
// read by every other component.
package policy

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joeydtaylor/agegate/pkg/keycache"
)

type Mode string

const (
	ModeProduction Mode = "production"
	ModeDemo       Mode = "demo"
)

const (
	MinSecretBytes = 32
	maxLeeway      = 5 * time.Minute
	maxFetch       = 30 * time.Second
)

// Issuer pairs an accepted issuer with the JWKS that signs its tokens.
type Issuer struct {
	Issuer  string
	JWKSURL string
}

// Config is the validated, immutable policy. All accessors return copies.
type Config struct {
	mode         Mode
	secret       []byte
	minAge       int
	leeway       time.Duration
	issuers      []Issuer
	allowCustom  bool
	providerName string
	providers    map[string]struct{}
	cookieName   string
	cookieTTL    time.Duration
	gateHeader   string
	gateValue    string
	gatePage     string
	cacheDir     string
	cacheTTL     time.Duration
	fetchTimeout time.Duration
	server       ServerFile
	relay        RelayFile
}

// New validates f. Any invalid field fails construction.
func New(f File) (*Config, error) {
	var errs []error
	bad := func(format string, a ...any) { errs = append(errs, fmt.Errorf(format, a...)) }

	c := &Config{
		mode:         Mode(strings.ToLower(strings.TrimSpace(f.Mode))),
		secret:       []byte(f.Secret),
		minAge:       f.MinAge,
		leeway:       time.Duration(f.LeewaySeconds) * time.Second,
		allowCustom:  f.AllowCustomIssuer,
		providerName: strings.TrimSpace(f.ProviderName),
		providers:    map[string]struct{}{},
		cookieName:   strings.TrimSpace(f.Cookie.Name),
		cookieTTL:    time.Duration(f.Cookie.TTLSeconds) * time.Second,
		gateHeader:   http.CanonicalHeaderKey(strings.TrimSpace(f.Gate.HeaderName)),
		gateValue:    strings.TrimSpace(f.Gate.HeaderValue),
		gatePage:     strings.TrimSpace(f.Gate.PageURL),
		cacheDir:     strings.TrimSpace(f.KeyCache.Dir),
		cacheTTL:     time.Duration(f.KeyCache.TTLSeconds) * time.Second,
		fetchTimeout: time.Duration(f.KeyCache.FetchTimeoutMS) * time.Millisecond,
		server:       f.Server,
		relay:        f.Relay,
	}

	if c.mode != ModeProduction && c.mode != ModeDemo {
		bad("mode %q must be production or demo", f.Mode)
	}
	if len(c.secret) < MinSecretBytes {
		bad("secret must be at least %d bytes", MinSecretBytes)
	}
	if c.minAge < 1 {
		bad("min_age must be positive")
	}
	if f.LeewaySeconds < 0 || c.leeway > maxLeeway {
		bad("leeway_seconds must be within [0, %d]", int(maxLeeway.Seconds()))
	}

	addIssuer := func(label string, is IssuerFile) {
		iss := strings.TrimSpace(is.Issuer)
		u := strings.TrimSpace(is.JWKSURL)
		if iss == "" {
			bad("%s issuer is required", label)
			return
		}
		if err := keycache.CheckURL(u); err != nil {
			bad("%s jwks_url: %w", label, err)
			return
		}
		c.issuers = append(c.issuers, Issuer{Issuer: iss, JWKSURL: u})
	}
	addIssuer("production", f.Issuer.Production)
	if c.mode == ModeDemo {
		addIssuer("demo", f.Issuer.Demo)
	}
	if len(f.Issuer.Custom) > 0 {
		if !c.allowCustom {
			bad("custom issuers configured but allow_custom_issuer is false")
		} else {
			for i, is := range f.Issuer.Custom {
				addIssuer(fmt.Sprintf("custom[%d]", i), is)
			}
		}
	}

	if c.providerName == "" {
		bad("provider_name is required")
	}
	for _, p := range f.Providers {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || strings.ContainsAny(p, " /") {
			bad("provider name %q is invalid", p)
			continue
		}
		c.providers[p] = struct{}{}
	}

	if !validCookieName(c.cookieName) {
		bad("cookie name %q is invalid", f.Cookie.Name)
	}
	if c.cookieTTL <= 0 {
		bad("cookie ttl_seconds must be positive")
	}
	if c.gateHeader == "" || c.gateValue == "" {
		bad("gate header_name and header_value are required")
	}
	if c.gatePage == "" || (!strings.HasPrefix(c.gatePage, "/") && keycache.CheckURL(c.gatePage) != nil) {
		bad("gate page_url must be a path or an https URL")
	}

	if c.cacheDir == "" {
		bad("keycache dir is required")
	}
	if c.cacheTTL <= 0 {
		bad("keycache ttl_seconds must be positive")
	}
	if c.fetchTimeout <= 0 || c.fetchTimeout > maxFetch {
		bad("keycache fetch_timeout_ms must be within (0, %d]", maxFetch.Milliseconds())
	}

	if strings.TrimSpace(c.relay.Target) != "" {
		if strings.TrimSpace(c.relay.Topic) == "" {
			bad("relay topic is required when target is set")
		}
		if strings.EqualFold(c.relay.Encrypt, "aesgcm") {
			k, err := hex.DecodeString(strings.TrimSpace(c.relay.AES256KeyHex))
			if err != nil || len(k) != 32 {
				bad("relay aes256_key_hex must be 64 hex chars")
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return c, nil
}

func validCookieName(n string) bool {
	if n == "" {
		return false
	}
	for _, r := range n {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune("()<>@,;:\\\"/[]?={}", r) {
			return false
		}
	}
	return true
}

func (c *Config) Mode() Mode {
	return c.mode
}

func (c *Config) IsDemo() bool {
	return c.mode == ModeDemo
}

func (c *Config) MinAge() int {
	return c.minAge
}

func (c *Config) Leeway() time.Duration {
	return c.leeway
}

// Secret returns a copy of the HMAC secret.
func (c *Config) Secret() []byte {
	return append([]byte(nil), c.secret...)
}

// Issuers returns the trusted issuer/JWKS pairs for the active mode:
// production only, demo plus production in demo mode, and custom entries
// when opted into.
func (c *Config) Issuers() []Issuer {
	return append([]Issuer(nil), c.issuers...)
}

// AcceptedIssuers returns the issuer strings from Issuers.
func (c *Config) AcceptedIssuers() []string {
	out := make([]string, 0, len(c.issuers))
	for _, is := range c.issuers {
		out = append(out, is.Issuer)
	}
	return out
}

// JWKSURLs returns the distinct JWKS URLs for the active mode, in trust order.
func (c *Config) JWKSURLs() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(c.issuers))
	for _, is := range c.issuers {
		if _, ok := seen[is.JWKSURL]; ok {
			continue
		}
		seen[is.JWKSURL] = struct{}{}
		out = append(out, is.JWKSURL)
	}
	return out
}

func (c *Config) AllowCustomIssuer() bool {
	return c.allowCustom
}

func (c *Config) ProviderName() string {
	return c.providerName
}

// AllowsProvider reports whether a foreign provider result may be accepted
// under name.
func (c *Config) AllowsProvider(name string) bool {
	_, ok := c.providers[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (c *Config) CookieName() string {
	return c.cookieName
}

func (c *Config) CookieTTL() time.Duration {
	return c.cookieTTL
}

func (c *Config) GateHeader() (string, string) {
	return c.gateHeader, c.gateValue
}

func (c *Config) GatePageURL() string {
	return c.gatePage
}

func (c *Config) KeyCacheDir() string {
	return c.cacheDir
}

func (c *Config) KeyCacheTTL() time.Duration {
	return c.cacheTTL
}

func (c *Config) FetchTimeout() time.Duration {
	return c.fetchTimeout
}

func (c *Config) Server() ServerFile {
	return c.server
}

// Relay returns the relay settings; StaticHeaders is copied.
func (c *Config) Relay() RelayFile {
	r := c.relay
	if c.relay.StaticHeaders != nil {
		r.StaticHeaders = make(map[string]string, len(c.relay.StaticHeaders))
		for k, v := range c.relay.StaticHeaders {
			r.StaticHeaders[k] = v
		}
	}
	return r
}
