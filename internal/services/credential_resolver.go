package services

import (
	"campusbot/internal/config"
	"campusbot/internal/providers"
	"fmt"
	"strings"
	"time"
)

// Credential headers sent by the client on every chat request. Keys are held
// by the browser and never stored server-side.
const (
	HeaderOpenAIKey   = "X-OpenAI-Key"
	HeaderOpenAIModel = "X-OpenAI-Model"
	HeaderGeminiKey   = "X-Gemini-Key"
	HeaderGeminiModel = "X-Gemini-Model"
	HeaderOllamaURL   = "X-Ollama-URL"
	HeaderOllamaModel = "X-Ollama-Model"
	HeaderAIProvider  = "X-AI-Provider"
)

// RequestCredentials are the per-request provider values taken from headers
type RequestCredentials struct {
	Selection   string
	OpenAIKey   string
	OpenAIModel string
	GeminiKey   string
	GeminiModel string
	OllamaURL   string
	OllamaModel string
}

// CredentialsFromHeaders reads the credential headers through get, which is
// usually fiber's c.Get.
func CredentialsFromHeaders(get func(key string, defaultValue ...string) string) RequestCredentials {
	return RequestCredentials{
		Selection:   strings.TrimSpace(get(HeaderAIProvider)),
		OpenAIKey:   strings.TrimSpace(get(HeaderOpenAIKey)),
		OpenAIModel: strings.TrimSpace(get(HeaderOpenAIModel)),
		GeminiKey:   strings.TrimSpace(get(HeaderGeminiKey)),
		GeminiModel: strings.TrimSpace(get(HeaderGeminiModel)),
		OllamaURL:   strings.TrimSpace(get(HeaderOllamaURL)),
		OllamaModel: strings.TrimSpace(get(HeaderOllamaModel)),
	}
}

func (rc RequestCredentials) key(k providers.Kind) string {
	switch k {
	case providers.KindOpenAI:
		return rc.OpenAIKey
	case providers.KindGemini:
		return rc.GeminiKey
	}
	return ""
}

func (rc RequestCredentials) model(k providers.Kind) string {
	switch k {
	case providers.KindOllama:
		return rc.OllamaModel
	case providers.KindOpenAI:
		return rc.OpenAIModel
	case providers.KindGemini:
		return rc.GeminiModel
	}
	return ""
}

// Preferences are the persisted selections and generation settings that sit
// between the request headers and the server defaults.
type Preferences struct {
	User        string // per-user saved ai_provider, "" = none
	Org         string // org-wide ai_provider setting, "" = none
	MaxTokens   int
	Temperature *float64
}

// EffectiveSettings is the request-scoped merged provider view. It is built
// fresh per request and never cached or persisted.
type EffectiveSettings struct {
	Selection   providers.Selection
	Configs     map[providers.Kind]providers.Config
	HostedOrder []providers.Kind
	Timeout     time.Duration
}

// Config returns the resolved configuration for k
func (s EffectiveSettings) Config(k providers.Kind) providers.Config {
	if cfg, ok := s.Configs[k]; ok {
		return cfg
	}
	return providers.Config{Kind: k}
}

// Available reports, per kind, whether the resolved config is usable
func (s EffectiveSettings) Available() map[string]bool {
	out := make(map[string]bool, len(providers.AllKinds()))
	for _, k := range providers.AllKinds() {
		out[string(k)] = s.Config(k).Usable()
	}
	return out
}

// ResolveCredentials merges request headers, saved preferences and server
// defaults into EffectiveSettings. Precedence is headers, then the user's
// saved preference, then the org setting, then server defaults.
//
// Server-held hosted keys are attached only in auto mode and only when the
// provider's ShareServerKey flag is set. The server Ollama URL is used only
// when ShareServerURL is set. Client values are never validated here: a bad
// one leaves its kind unusable instead of failing the request. It has no
// side effects.
func ResolveCredentials(req RequestCredentials, prefs Preferences, defaults *config.ProviderDefaults) (EffectiveSettings, error) {
	if defaults == nil {
		defaults = config.BuiltinProviderDefaults()
	}

	selection, err := resolveSelection(req.Selection, prefs, defaults.Selection)
	if err != nil {
		return EffectiveSettings{}, err
	}

	settings := EffectiveSettings{
		Selection:   selection,
		Configs:     make(map[providers.Kind]providers.Config, 3),
		HostedOrder: hostedOrder(defaults.HostedOrder),
		Timeout:     defaults.Timeout,
	}

	for _, k := range providers.AllKinds() {
		def := defaults.For(k)
		cfg := providers.Config{
			Kind:          k,
			BaseURL:       def.BaseURL,
			Model:         firstNonEmpty(req.model(k), def.Model),
			MaxTokens:     def.MaxTokens,
			Temperature:   def.Temperature,
			ContextTokens: def.ContextTokens,
		}
		if prefs.MaxTokens > 0 {
			cfg.MaxTokens = prefs.MaxTokens
		}
		if prefs.Temperature != nil {
			cfg.Temperature = *prefs.Temperature
		}

		if k == providers.KindOllama {
			cfg.BaseURL = ""
			if def.ShareServerURL {
				cfg.BaseURL = def.BaseURL
				cfg.KeySource = providers.SourceServer
			}
			// a malformed header only makes this kind unusable; Plan reports it
			if req.OllamaURL != "" {
				cfg.BaseURL = req.OllamaURL
				cfg.KeySource = providers.SourceRequest
			}
		} else {
			switch {
			case req.key(k) != "":
				cfg.APIKey = req.key(k)
				cfg.KeySource = providers.SourceRequest
			case selection.IsAuto() && def.ShareServerKey && defaults.HasServerKey(k):
				cfg.APIKey = def.APIKey
				cfg.KeySource = providers.SourceServer
			}
		}
		settings.Configs[k] = cfg
	}

	return settings, nil
}

func resolveSelection(header string, prefs Preferences, fallback providers.Selection) (providers.Selection, error) {
	layers := []struct {
		name  string
		value string
	}{
		{HeaderAIProvider + " header", header},
		{"saved preference", prefs.User},
		{"organization setting", prefs.Org},
	}
	for _, l := range layers {
		if strings.TrimSpace(l.value) == "" {
			continue
		}
		sel, err := providers.ParseSelection(l.value)
		if err != nil {
			return "", &providers.ConfigError{Reason: fmt.Sprintf("%s: %v", l.name, err)}
		}
		return sel, nil
	}
	if fallback == "" {
		return providers.SelectionAuto, nil
	}
	return fallback, nil
}

func hostedOrder(order []providers.Kind) []providers.Kind {
	out := make([]providers.Kind, 0, 2)
	seen := map[providers.Kind]bool{}
	for _, k := range order {
		if k.Hosted() && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	// kinds left out of the configured order still take part, after it
	for _, k := range providers.AllKinds() {
		if k.Hosted() && !seen[k] {
			out = append(out, k)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
