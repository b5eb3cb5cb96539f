package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Setting represents a system-wide configuration setting
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting keys for application settings
const (
	SettingKeyAIProvider  = "ai_provider"
	SettingKeyDenyWords   = "deny_words"
	SettingKeyMaxTokens   = "max_tokens"
	SettingKeyTemperature = "temperature"
)

// AppSettings is the org-wide view of persisted application settings
type AppSettings struct {
	AIProvider  string    `json:"ai_provider"`
	DenyWords   string    `json:"deny_words"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature string    `json:"temperature"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultAppSettings are used for keys that were never saved. Zero values
// mean the server defaults apply.
func DefaultAppSettings() AppSettings {
	return AppSettings{}
}

// WithDefaults fills unsaved fields with the server defaults for display
func (s AppSettings) WithDefaults(selection string, maxTokens int, temperature float64) AppSettings {
	if s.AIProvider == "" {
		s.AIProvider = selection
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = maxTokens
	}
	if s.Temperature == "" {
		s.Temperature = strconv.FormatFloat(temperature, 'f', -1, 64)
	}
	return s
}

// DenyWordList splits DenyWords into lower-cased entries
func (s AppSettings) DenyWordList() []string {
	var words []string
	for _, w := range strings.Split(s.DenyWords, ",") {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// TemperatureValue parses Temperature, returning 0 when unset or invalid
func (s AppSettings) TemperatureValue() float64 {
	v, err := strconv.ParseFloat(s.Temperature, 64)
	if err != nil {
		return 0
	}
	return v
}

// UpdateSettingsRequest is the body of PUT /api/settings/. Nil fields are left unchanged.
type UpdateSettingsRequest struct {
	AIProvider  *string `json:"ai_provider,omitempty"`
	DenyWords   *string `json:"deny_words,omitempty"`
	MaxTokens   *int    `json:"max_tokens,omitempty"`
	Temperature *string `json:"temperature,omitempty"`
}

var temperaturePattern = regexp.MustCompile(`^[0-1](\.[0-9]+)?$`)

// Validate checks bounds on every set field. Provider names are validated by the caller.
func (r *UpdateSettingsRequest) Validate() error {
	if r.MaxTokens != nil && (*r.MaxTokens < 100 || *r.MaxTokens > 4000) {
		return fmt.Errorf("max_tokens must be between 100 and 4000")
	}
	if r.Temperature != nil {
		if !temperaturePattern.MatchString(*r.Temperature) {
			return fmt.Errorf("temperature must be a number between 0 and 1")
		}
		if v, err := strconv.ParseFloat(*r.Temperature, 64); err != nil || v > 1 {
			return fmt.Errorf("temperature must be a number between 0 and 1")
		}
	}
	return nil
}

// ProviderSelectionRequest is the body of the provider selection endpoints
type ProviderSelectionRequest struct {
	AIProvider string `json:"ai_provider"`
}

// ProviderStatusResponse is the reply of GET /api/settings/provider
type ProviderStatusResponse struct {
	AIProvider         string          `json:"ai_provider"`
	AvailableProviders map[string]bool `json:"available_providers"`
}

// TestConnectionRequest is the body of POST /api/settings/test-connection
type TestConnectionRequest struct {
	Provider  string `json:"provider"`
	APIKey    string `json:"api_key,omitempty"`
	OllamaURL string `json:"ollama_url,omitempty"`
	Model     string `json:"model,omitempty"`
}
