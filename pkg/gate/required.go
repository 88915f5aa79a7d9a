package gate

import (
	"net/http"
	"strings"
)

// Required reports whether the gate applies: always in demo mode, otherwise
// only when the configured header carries the configured value. Both name
// and value compare case-insensitively, and headers need not be canonical.
func (m *Manager) Required(headers map[string][]string) bool {
	required := m.demo || m.headerMatches(headers)
	if m.rec != nil {
		m.rec.GateDecided(required)
	}
	return required
}

func (m *Manager) headerMatches(headers map[string][]string) bool {
	for k, vs := range headers {
		if !strings.EqualFold(k, m.headerName) {
			continue
		}
		for _, v := range vs {
			if strings.EqualFold(strings.TrimSpace(v), m.headerValue) {
				return true
			}
		}
	}
	return false
}

// Decision is the gate state of one request.
type Decision struct {
	Required bool
	Verified bool
	Payload  Payload
}

// Allowed reports whether the request may pass the gate.
func (d Decision) Allowed() bool { return !d.Required || d.Verified }

// Decide evaluates explicit headers and cookies.
func (m *Manager) Decide(headers map[string][]string, cookies map[string]string) Decision {
	d := Decision{Required: m.Required(headers)}
	d.Verified, d.Payload = m.verified(cookies)
	return d
}

// Inspect is Decide over r without recording the decision. Access logging
// uses it so requests are not counted twice.
func (m *Manager) Inspect(r *http.Request) Decision {
	d := Decision{Required: m.demo || m.headerMatches(r.Header)}
	d.Verified, d.Payload = m.verified(CookieMap(r))
	return d
}

func (m *Manager) verified(cookies map[string]string) (bool, Payload) {
	p, err := m.ValidateCookies(cookies)
	return err == nil, p
}

// CookieMap flattens request cookies; the first occurrence of a name wins.
func CookieMap(r *http.Request) map[string]string {
	out := map[string]string{}
	for _, c := range r.Cookies() {
		if _, seen := out[c.Name]; !seen {
			out[c.Name] = c.Value
		}
	}
	return out
}
