// Package keycache resolves JSON Web Key Sets for verification. The file
// backed implementation serves a local TTL cache and falls back to stale data
// when the key endpoint cannot be reached.
package keycache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoKeySet is returned when neither fresh nor cached data exist for a URL.
var ErrNoKeySet = errors.New("no key set available")

// Resolver returns the key set published at url.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*KeySet, error)
}

// HTTPDoer is satisfied by *http.Client and allows easy mocking in tests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Recorder observes where each resolution was served from.
type Recorder interface {
	JWKSResolved(source string)
}

const (
	SourceFresh   = "fresh"
	SourceFetched = "fetched"
	SourceStale   = "stale"
	SourceError   = "error"
)

// Static is a Resolver over fixed in-memory key sets. It never touches the
// filesystem or network.
type Static map[string]*KeySet

func (s Static) Resolve(_ context.Context, url string) (*KeySet, error) {
	if ks, ok := s[url]; ok && ks != nil {
		return ks, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoKeySet, url)
}
