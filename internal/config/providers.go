package config

import (
	"campusbot/internal/providers"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderSettings are the server defaults for one provider kind
type ProviderSettings struct {
	BaseURL       string  `yaml:"base_url"`
	APIKey        string  `yaml:"api_key"`
	Model         string  `yaml:"model"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	ContextTokens int     `yaml:"context_tokens"`
	// ShareServerKey allows APIKey to back requests in auto mode.
	ShareServerKey bool `yaml:"share_server_key"`
	// ShareServerURL lets requests without X-Ollama-URL use BaseURL.
	// Only meaningful for the local runtime.
	ShareServerURL bool `yaml:"share_server_url"`
}

// ProviderDefaults is the read-mostly server view of every provider.
// Instances are immutable once published through a DefaultsStore.
type ProviderDefaults struct {
	Selection   providers.Selection `yaml:"ai_provider"`
	HostedOrder []providers.Kind    `yaml:"auto_hosted_order"`
	Timeout     time.Duration       `yaml:"timeout"`
	Ollama      ProviderSettings    `yaml:"ollama"`
	OpenAI      ProviderSettings    `yaml:"openai"`
	Gemini      ProviderSettings    `yaml:"gemini"`
}

// BuiltinProviderDefaults returns the values used when neither file nor env set anything
func BuiltinProviderDefaults() *ProviderDefaults {
	return &ProviderDefaults{
		Selection:   providers.SelectionAuto,
		HostedOrder: []providers.Kind{providers.KindOpenAI, providers.KindGemini},
		Timeout:     60 * time.Second,
		Ollama: ProviderSettings{
			BaseURL:        "http://localhost:11434",
			Model:          providers.DefaultOllamaModel,
			MaxTokens:      1000,
			Temperature:    0.7,
			ContextTokens:  8192,
			ShareServerURL: true,
		},
		OpenAI: ProviderSettings{
			BaseURL:       providers.DefaultOpenAIBaseURL,
			Model:         providers.DefaultOpenAIModel,
			MaxTokens:     1000,
			Temperature:   0.7,
			ContextTokens: 8192,
		},
		Gemini: ProviderSettings{
			BaseURL:       providers.DefaultGeminiBaseURL,
			Model:         providers.DefaultGeminiModel,
			MaxTokens:     1000,
			Temperature:   0.7,
			ContextTokens: 32768,
		},
	}
}

// For returns the settings of kind k
func (d *ProviderDefaults) For(k providers.Kind) ProviderSettings {
	switch k {
	case providers.KindOllama:
		return d.Ollama
	case providers.KindOpenAI:
		return d.OpenAI
	case providers.KindGemini:
		return d.Gemini
	}
	return ProviderSettings{}
}

// HasServerKey reports whether a server-held key exists for a hosted kind
func (d *ProviderDefaults) HasServerKey(k providers.Kind) bool {
	return k.Hosted() && strings.TrimSpace(d.For(k).APIKey) != ""
}

// Validate rejects defaults that can never serve a request
func (d *ProviderDefaults) Validate() error {
	if d.Selection != "" && !d.Selection.IsAuto() {
		if _, ok := d.Selection.Kind(); !ok {
			return &providers.ConfigError{Reason: fmt.Sprintf("unknown AI_PROVIDER %q", d.Selection)}
		}
	}
	if d.Ollama.BaseURL != "" {
		if err := providers.ValidateBaseURL(d.Ollama.BaseURL); err != nil {
			return &providers.ConfigError{Provider: providers.KindOllama, Reason: err.Error()}
		}
	}
	seen := map[providers.Kind]bool{}
	for _, k := range d.HostedOrder {
		if !k.Hosted() {
			return &providers.ConfigError{Reason: fmt.Sprintf("AUTO_HOSTED_ORDER contains %q, which is not a hosted provider", k)}
		}
		if seen[k] {
			return &providers.ConfigError{Reason: fmt.Sprintf("AUTO_HOSTED_ORDER lists %q twice", k)}
		}
		seen[k] = true
	}
	if d.Timeout <= 0 {
		return &providers.ConfigError{Reason: "PROVIDER_TIMEOUT must be positive"}
	}
	return nil
}

// LoadProviderDefaults reads the YAML file at path (a missing file is not an
// error), applies environment overrides and validates the result.
func LoadProviderDefaults(path string) (*ProviderDefaults, error) {
	d := BuiltinProviderDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, d); err != nil {
				return nil, fmt.Errorf("failed to parse providers file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read providers file: %w", err)
		}
	}

	if err := applyProviderEnv(d); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func applyProviderEnv(d *ProviderDefaults) error {
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		sel, err := providers.ParseSelection(v)
		if err != nil {
			return &providers.ConfigError{Reason: err.Error()}
		}
		d.Selection = sel
	}
	if v := os.Getenv("AUTO_HOSTED_ORDER"); v != "" {
		order := make([]providers.Kind, 0, 2)
		for _, name := range splitList(v) {
			k, err := providers.ParseKind(name)
			if err != nil {
				return &providers.ConfigError{Reason: "AUTO_HOSTED_ORDER: " + err.Error()}
			}
			order = append(order, k)
		}
		d.HostedOrder = order
	}
	d.Timeout = getDurationEnv("PROVIDER_TIMEOUT", d.Timeout)

	d.Ollama.BaseURL = getEnv("OLLAMA_BASE_URL", d.Ollama.BaseURL)
	d.Ollama.Model = getEnv("OLLAMA_MODEL", d.Ollama.Model)
	d.Ollama.ShareServerURL = getBoolEnv("OLLAMA_SHARE_SERVER_URL", d.Ollama.ShareServerURL)

	d.OpenAI.APIKey = getEnv("OPENAI_API_KEY", d.OpenAI.APIKey)
	d.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", d.OpenAI.BaseURL)
	d.OpenAI.Model = getEnv("OPENAI_MODEL", d.OpenAI.Model)
	d.OpenAI.ShareServerKey = getBoolEnv("OPENAI_SHARE_SERVER_KEY", d.OpenAI.ShareServerKey)

	d.Gemini.APIKey = getEnv("GOOGLE_API_KEY", getEnv("GEMINI_API_KEY", d.Gemini.APIKey))
	d.Gemini.BaseURL = getEnv("GEMINI_BASE_URL", d.Gemini.BaseURL)
	d.Gemini.Model = getEnv("GEMINI_MODEL", d.Gemini.Model)
	d.Gemini.ShareServerKey = getBoolEnv("GEMINI_SHARE_SERVER_KEY", d.Gemini.ShareServerKey)

	for _, s := range []*ProviderSettings{&d.Ollama, &d.OpenAI, &d.Gemini} {
		s.Temperature = getFloatEnv("TEMPERATURE", s.Temperature)
		s.MaxTokens = getIntEnv("MAX_TOKENS", s.MaxTokens)
	}
	return nil
}

// DefaultsStore publishes ProviderDefaults with an atomic swap so readers never
// see a partially updated value.
type DefaultsStore struct {
	p atomic.Pointer[ProviderDefaults]
}

// NewDefaultsStore creates a store holding d
func NewDefaultsStore(d *ProviderDefaults) *DefaultsStore {
	s := &DefaultsStore{}
	if d == nil {
		d = BuiltinProviderDefaults()
	}
	s.p.Store(d)
	return s
}

// Load returns the current defaults
func (s *DefaultsStore) Load() *ProviderDefaults {
	return s.p.Load()
}

// Store replaces the current defaults
func (s *DefaultsStore) Store(d *ProviderDefaults) {
	s.p.Store(d)
}

// Reload re-reads path and swaps the result in. On error the previous
// defaults stay in place.
func (s *DefaultsStore) Reload(path string) error {
	d, err := LoadProviderDefaults(path)
	if err != nil {
		return err
	}
	s.Store(d)
	return nil
}
