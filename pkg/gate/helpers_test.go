package gate

import "encoding/base64"

func decodeStrict(s string) ([]byte, error) { return base64.StdEncoding.Strict().DecodeString(s) }

// forge signs an arbitrary body with m's secret.
func forge(m *Manager, body string) string {
	return base64.StdEncoding.EncodeToString([]byte(body)) + "." + m.sign([]byte(body))
}
