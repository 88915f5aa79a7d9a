package keycache

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInsecureURL is returned for JWKS URLs that are not plain https URLs.
var ErrInsecureURL = errors.New("jwks url must be https without credentials")

// CheckURL rejects anything but an absolute https URL with a host and no
// embedded userinfo. It performs no network access.
func CheckURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInsecureURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInsecureURL, err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("%w: scheme %q", ErrInsecureURL, u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("%w: userinfo present", ErrInsecureURL)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrInsecureURL)
	}
	return nil
}
