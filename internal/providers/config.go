package providers

import (
	"fmt"
	"net/url"
	"strings"
)

// CredentialSource records where a Config's API key came from.
type CredentialSource string

const (
	SourceNone    CredentialSource = ""
	SourceRequest CredentialSource = "request"
	SourceServer  CredentialSource = "server"
)

// Config is the per-provider configuration used for a single request.
// Values are rebuilt on every request and never written to storage.
type Config struct {
	Kind          Kind
	BaseURL       string
	APIKey        string
	Model         string
	MaxTokens     int
	Temperature   float64
	ContextTokens int // prompt budget; 0 means unbounded
	KeySource     CredentialSource
}

// Usable reports whether the mandatory field for the kind is present:
// an API key for hosted providers, a parseable URL for the local runtime.
func (c Config) Usable() bool {
	return c.Missing() == ""
}

// Missing describes the absent mandatory field, or "" when the config is usable.
func (c Config) Missing() string {
	if c.Kind.Hosted() {
		if strings.TrimSpace(c.APIKey) == "" {
			return "API key"
		}
		return ""
	}
	if err := ValidateBaseURL(c.BaseURL); err != nil {
		return "server URL"
	}
	return ""
}

// String renders the config without its secret.
func (c Config) String() string {
	key := "none"
	if c.APIKey != "" {
		key = "set(" + string(c.KeySource) + ")"
	}
	return fmt.Sprintf("%s{url=%s model=%s key=%s}", c.Kind, c.BaseURL, c.Model, key)
}

// ValidateBaseURL checks that raw is an absolute http(s) URL with a host.
func ValidateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}

func trimBase(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	return strings.TrimRight(raw, "/")
}
