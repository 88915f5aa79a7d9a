package keycache

import (
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	jose "github.com/go-jose/go-jose/v4"
)

// ErrMalformedKeySet is returned when a JWKS document fails validation.
var ErrMalformedKeySet = errors.New("malformed jwks")

// KeySet is a validated JWKS document indexed by key id.
type KeySet struct {
	raw  []byte
	keys map[string]crypto.PublicKey
}

// ParseKeySet validates raw as a JWKS: a non-empty "keys" array whose entries
// all carry a non-empty kty and kid. Entries go-jose cannot decode stay
// listed but resolve to no key.
func ParseKeySet(raw []byte) (*KeySet, error) {
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeySet, err)
	}
	if len(doc.Keys) == 0 {
		return nil, fmt.Errorf("%w: no keys", ErrMalformedKeySet)
	}

	ks := &KeySet{
		raw:  append([]byte(nil), raw...),
		keys: make(map[string]crypto.PublicKey, len(doc.Keys)),
	}
	for i, entry := range doc.Keys {
		var head struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
		}
		if err := json.Unmarshal(entry, &head); err != nil {
			return nil, fmt.Errorf("%w: key %d: %v", ErrMalformedKeySet, i, err)
		}
		if strings.TrimSpace(head.Kty) == "" || strings.TrimSpace(head.Kid) == "" {
			return nil, fmt.Errorf("%w: key %d missing kty or kid", ErrMalformedKeySet, i)
		}

		// The first usable entry for a kid wins; unusable ones only list it.
		existing, listed := ks.keys[head.Kid]
		if existing != nil {
			continue
		}
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(entry); err != nil {
			if !listed {
				ks.keys[head.Kid] = nil
			}
			continue
		}
		if !jwk.IsPublic() {
			jwk = jwk.Public()
		}
		ks.keys[head.Kid] = jwk.Key
	}
	return ks, nil
}

// Raw returns a copy of the original document.
func (k *KeySet) Raw() []byte { return append([]byte(nil), k.raw...) }

// Key returns the public key registered under kid. Listed-but-unusable
// entries report false.
func (k *KeySet) Key(kid string) (crypto.PublicKey, bool) {
	if k == nil {
		return nil, false
	}
	pub, ok := k.keys[kid]
	if !ok || pub == nil {
		return nil, false
	}
	return pub, true
}

// KeyIDs lists every kid in the set, sorted.
func (k *KeySet) KeyIDs() []string {
	out := make([]string, 0, len(k.keys))
	for kid := range k.keys {
		out = append(out, kid)
	}
	sort.Strings(out)
	return out
}
