package gate

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

type ctxKey struct{}

// FromContext returns the decision stored by Middleware.
func FromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(ctxKey{}).(Decision)
	return d, ok
}

// Middleware protects an application. Requests that need the gate and carry
// no valid session cookie are redirected (303) to the gate page with a
// return_to pointing back at the original path.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := m.Decide(r.Header, CookieMap(r))

			// 1) allowed, or already on the gate page
			if d.Allowed() || m.isGatePage(r.URL.Path) {
				ctx := context.WithValue(r.Context(), ctxKey{}, d)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// 2) bounce to the gate page
			http.Redirect(w, r, m.RedirectURL(r.URL.RequestURI()), http.StatusSeeOther)
		})
	}
}

// RedirectURL is the gate page URL with return_to set when returnTo is a
// safe relative path.
func (m *Manager) RedirectURL(returnTo string) string {
	u, err := url.Parse(m.pageURL)
	if err != nil {
		return m.pageURL
	}
	if rt := SafeReturnTo(returnTo); rt != "" {
		q := u.Query()
		q.Set("return_to", rt)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (m *Manager) isGatePage(path string) bool {
	u, err := url.Parse(m.pageURL)
	return err == nil && u.Host == "" && u.Path == path
}

// SafeReturnTo returns raw when it is a same-origin relative path, "" otherwise.
func SafeReturnTo(raw string) string {
	if raw == "" || raw[0] != '/' || strings.HasPrefix(raw, "//") {
		return ""
	}
	if strings.ContainsAny(raw, "\\\r\n\t") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return ""
	}
	return raw
}
