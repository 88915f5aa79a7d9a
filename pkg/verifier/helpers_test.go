package verifier

import (
	"encoding/base64"
	"strings"
	"testing"
)

func b64(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

// tamperPayload swaps the age tier inside an already signed token.
func tamperPayload(t *testing.T, tok string) string {
	t.Helper()
	parts := strings.SplitN(tok, ".", 3)
	body, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	forged := strings.Replace(string(body), `"21+"`, `"99+"`, 1)
	if forged == string(body) {
		t.Fatal("payload did not contain tier")
	}
	return parts[0] + "." + b64(forged) + "." + parts[2]
}
