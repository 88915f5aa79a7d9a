// Package gate issues and validates the signed session cookie that records a
// successful age verification, and decides when the gate applies.
package gate

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joeydtaylor/agegate/pkg/agetier"
	"github.com/joeydtaylor/agegate/pkg/policy"
)

var (
	ErrMalformed  = errors.New("gate: malformed cookie")
	ErrSignature  = errors.New("gate: signature mismatch")
	ErrUnverified = errors.New("gate: payload not verified")
	ErrExpired    = errors.New("gate: cookie expired")
	ErrNoCookie   = errors.New("gate: no cookie")
)

// Payload is the signed cookie body. Field order is the wire order.
type Payload struct {
	Verified bool   `json:"verified"`
	Exp      int64  `json:"exp"`
	Level    string `json:"level"`
}

// Expires returns exp as a time.
func (p Payload) Expires() time.Time { return time.Unix(p.Exp, 0).UTC() }

// Recorder observes gate-required decisions.
type Recorder interface {
	GateDecided(required bool)
}

type Manager struct {
	secret []byte
	name   string
	ttl    time.Duration

	headerName  string
	headerValue string
	demo        bool
	pageURL     string

	now func() time.Time
	rec Recorder
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }
func WithRecorder(r Recorder) Option        { return func(m *Manager) { m.rec = r } }

func NewManager(cfg *policy.Config, opts ...Option) *Manager {
	name, value := cfg.GateHeader()
	m := &Manager{
		secret:      cfg.Secret(),
		name:        cfg.CookieName(),
		ttl:         cfg.CookieTTL(),
		headerName:  name,
		headerValue: value,
		demo:        cfg.IsDemo(),
		pageURL:     cfg.GatePageURL(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) CookieName() string { return m.name }

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a verified payload for level expiring one TTL from now.
func (m *Manager) Issue(level string) (string, Payload, error) {
	if !agetier.Valid(level) {
		return "", Payload{}, fmt.Errorf("issue cookie: %w", agetier.ErrInvalid)
	}
	p := Payload{
		Verified: true,
		Exp:      m.now().Add(m.ttl).Unix(),
		Level:    level,
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", Payload{}, fmt.Errorf("issue cookie: %w", err)
	}
	return base64.StdEncoding.EncodeToString(body) + "." + m.sign(body), p, nil
}

// Validate checks the signature before trusting any field, then requires
// verified=true, a well-formed level and exp in the future.
func (m *Manager) Validate(value string) (Payload, error) {
	enc, sig, ok := strings.Cut(value, ".")
	if !ok || enc == "" || sig == "" {
		return Payload{}, ErrMalformed
	}
	body, err := base64.StdEncoding.Strict().DecodeString(enc)
	if err != nil {
		return Payload{}, ErrMalformed
	}
	if subtle.ConstantTimeCompare([]byte(sig), []byte(m.sign(body))) != 1 {
		return Payload{}, ErrSignature
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, ErrMalformed
	}
	if !p.Verified || !agetier.Valid(p.Level) {
		return Payload{}, ErrUnverified
	}
	if !m.now().Before(p.Expires()) {
		return Payload{}, ErrExpired
	}
	return p, nil
}

// ValidateCookies looks up the session cookie in an explicit name→value map.
func (m *Manager) ValidateCookies(cookies map[string]string) (Payload, error) {
	v, ok := cookies[m.name]
	if !ok || v == "" {
		return Payload{}, ErrNoCookie
	}
	return m.Validate(v)
}

// Cookie wraps an issued value with the session cookie attributes.
func (m *Manager) Cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Clear returns a cookie that removes the session cookie.
func (m *Manager) Clear() *http.Cookie {
	c := m.Cookie("")
	c.MaxAge = -1
	return c
}

func (m *Manager) sign(body []byte) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
