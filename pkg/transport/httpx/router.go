// Package httpx hides the concrete router behind a small interface.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router is the routing surface the HTTP layer depends on.
type Router interface {
	Handle(method, path string, h http.Handler)
	Get(path string, h http.Handler)
	Post(path string, h http.Handler)
	Mux() http.Handler
	Use(mw ...func(http.Handler) http.Handler)
}

// chiRouter is the default Router backed by github.com/go-chi/chi/v5.
type chiRouter struct{ r *chi.Mux }

// NewChi returns a chi-backed Router whose 404 and 405 answers are JSON.
func NewChi() Router {
	r := chi.NewRouter()
	r.NotFound(jsonStatus(http.StatusNotFound, `{"ok":false,"code":"not_found"}`))
	r.MethodNotAllowed(jsonStatus(http.StatusMethodNotAllowed, `{"ok":false,"code":"method_not_allowed"}`))
	return &chiRouter{r: r}
}

func (c *chiRouter) Handle(method, path string, h http.Handler) { c.r.Method(method, path, h) }
func (c *chiRouter) Get(path string, h http.Handler)            { c.r.Method(http.MethodGet, path, h) }
func (c *chiRouter) Post(path string, h http.Handler)           { c.r.Method(http.MethodPost, path, h) }
func (c *chiRouter) Mux() http.Handler                          { return c.r }
func (c *chiRouter) Use(mw ...func(http.Handler) http.Handler)  { c.r.Use(mw...) }

func jsonStatus(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}
