package policy

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// File is the on-disk (TOML) shape of the configuration. It is only a
// carrier: New validates it into an immutable Config.
type File struct {
	Mode              string   `toml:"mode"`
	Secret            string   `toml:"secret"`
	MinAge            int      `toml:"min_age"`
	LeewaySeconds     int      `toml:"leeway_seconds"`
	AllowCustomIssuer bool     `toml:"allow_custom_issuer"`
	ProviderName      string   `toml:"provider_name"`
	Providers         []string `toml:"providers"`

	Issuer   IssuerSet    `toml:"issuer"`
	Cookie   CookieFile   `toml:"cookie"`
	Gate     GateFile     `toml:"gate"`
	KeyCache KeyCacheFile `toml:"keycache"`
	Server   ServerFile   `toml:"server"`
	Relay    RelayFile    `toml:"relay"`
}

type IssuerSet struct {
	Production IssuerFile   `toml:"production"`
	Demo       IssuerFile   `toml:"demo"`
	Custom     []IssuerFile `toml:"custom"`
}

type IssuerFile struct {
	Issuer  string `toml:"issuer"`
	JWKSURL string `toml:"jwks_url"`
}

type CookieFile struct {
	Name       string `toml:"name"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

type GateFile struct {
	HeaderName  string `toml:"header_name"`
	HeaderValue string `toml:"header_value"`
	PageURL     string `toml:"page_url"`
}

type KeyCacheFile struct {
	Dir            string `toml:"dir"`
	TTLSeconds     int    `toml:"ttl_seconds"`
	FetchTimeoutMS int    `toml:"fetch_timeout_ms"`
}

type ServerFile struct {
	Listen  string `toml:"listen"`
	TLSCert string `toml:"tls_cert"`
	TLSKey  string `toml:"tls_key"`
}

// RelayFile configures the optional electrician relay that receives
// assertion events. An empty Target disables it.
type RelayFile struct {
	Target        string            `toml:"target"`
	Topic         string            `toml:"topic"`
	TLSEnable     bool              `toml:"tls_enable"`
	TLSClientCert string            `toml:"tls_client_cert"`
	TLSClientKey  string            `toml:"tls_client_key"`
	TLSCA         string            `toml:"tls_ca"`
	Compress      string            `toml:"compress"`
	Encrypt       string            `toml:"encrypt"`
	AES256KeyHex  string            `toml:"aes256_key_hex"`
	StaticHeaders map[string]string `toml:"static_headers"`
}

// Defaults returns a File with every optional field populated.
func Defaults() File {
	return File{
		Mode:          string(ModeProduction),
		MinAge:        18,
		LeewaySeconds: 60,
		ProviderName:  "agegate",
		Cookie: CookieFile{
			Name:       "age_verified",
			TTLSeconds: 86400,
		},
		Gate: GateFile{
			HeaderName:  "X-Age-Gate",
			HeaderValue: "required",
			PageURL:     "/age-gate",
		},
		KeyCache: KeyCacheFile{
			Dir:            "var/jwks",
			TTLSeconds:     3600,
			FetchTimeoutMS: 5000,
		},
		Server: ServerFile{Listen: ":4000"},
		Relay: RelayFile{
			Topic:         "agegate.assertions",
			TLSClientCert: "keys/tls/client.crt",
			TLSClientKey:  "keys/tls/client.key",
			TLSCA:         "keys/tls/ca.crt",
		},
	}
}

// LoadFile reads path over Defaults. A missing file is not an error when
// optional is true; everything may then come from the environment.
func LoadFile(path string, optional bool) (File, error) {
	f := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return f, nil
		}
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// Load reads path, applies AGEGATE_* environment overrides and validates the
// result.
func Load(path string, optional bool) (*Config, error) {
	f, err := LoadFile(path, optional)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(&f, nil); err != nil {
		return nil, err
	}
	return New(f)
}
