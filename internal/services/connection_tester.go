package services

import (
	"campusbot/internal/config"
	"campusbot/internal/models"
	"campusbot/internal/providers"
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// MaxConnectionTestTimeout caps every connection test
const MaxConnectionTestTimeout = 5 * time.Second

// Principal is the caller of a request. The zero value is anonymous.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// Authenticated reports whether the principal carries a user id
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// IsAdmin reports whether the principal has the admin role
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// ConnectionTester probes one provider with caller-supplied or server
// default settings. It never persists anything.
type ConnectionTester struct {
	registry *providers.Registry
	defaults *config.DefaultsStore
	timeout  time.Duration
}

// NewConnectionTester creates a tester. timeout is capped at MaxConnectionTestTimeout.
func NewConnectionTester(registry *providers.Registry, defaults *config.DefaultsStore, timeout time.Duration) *ConnectionTester {
	if timeout <= 0 || timeout > MaxConnectionTestTimeout {
		timeout = MaxConnectionTestTimeout
	}
	return &ConnectionTester{
		registry: registry,
		defaults: defaults,
		timeout:  timeout,
	}
}

// Test runs the cheapest probe for req.Provider. Problems are reported in the
// result, never as an error. Testing against the server default Ollama URL
// requires an authenticated caller (an admin when the URL is not shared), and a hosted test without a key in the
// request (which would use the server-held key) requires an admin.
func (t *ConnectionTester) Test(ctx context.Context, req models.TestConnectionRequest, principal Principal) *providers.TestResult {
	kind, err := providers.ParseKind(req.Provider)
	if err != nil {
		return &providers.TestResult{Success: false, Message: "Invalid provider. Must be one of: ollama, openai, gemini"}
	}

	cfg, result := t.buildConfig(kind, req, principal)
	if result != nil {
		return result
	}

	adapter, ok := t.registry.Get(kind)
	if !ok {
		return &providers.TestResult{Success: false, Message: fmt.Sprintf("%s is not supported", kind.DisplayName())}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	res := adapter.TestConnection(ctx, cfg)
	if res == nil {
		res = &providers.TestResult{Success: false, Message: "Connection test returned no result"}
	}
	log.Printf("🧪 [CONN-TEST] %s by %s: success=%v (%dms)", kind, principalLabel(principal), res.Success, time.Since(start).Milliseconds())
	return res
}

func (t *ConnectionTester) buildConfig(kind providers.Kind, req models.TestConnectionRequest, principal Principal) (providers.Config, *providers.TestResult) {
	defaults := t.defaults.Load()
	def := defaults.For(kind)

	cfg := providers.Config{
		Kind:          kind,
		BaseURL:       def.BaseURL,
		Model:         firstNonEmpty(strings.TrimSpace(req.Model), def.Model),
		MaxTokens:     def.MaxTokens,
		Temperature:   def.Temperature,
		ContextTokens: def.ContextTokens,
	}

	if kind == providers.KindOllama {
		if url := strings.TrimSpace(req.OllamaURL); url != "" {
			if err := providers.ValidateBaseURL(url); err != nil {
				return cfg, &providers.TestResult{Success: false, Message: "Invalid Ollama URL", Details: err.Error()}
			}
			cfg.BaseURL = url
			cfg.KeySource = providers.SourceRequest
			return cfg, nil
		}
		if !principal.Authenticated() || (!def.ShareServerURL && !principal.IsAdmin()) {
			return cfg, &providers.TestResult{Success: false, Message: "Ollama URL is required"}
		}
		cfg.KeySource = providers.SourceServer
		if cfg.Missing() != "" {
			return cfg, &providers.TestResult{Success: false, Message: "No Ollama URL is configured on the server"}
		}
		return cfg, nil
	}

	if key := strings.TrimSpace(req.APIKey); key != "" {
		cfg.APIKey = key
		cfg.KeySource = providers.SourceRequest
		return cfg, nil
	}
	if !principal.IsAdmin() {
		return cfg, &providers.TestResult{Success: false, Message: "API key is required"}
	}
	if !defaults.HasServerKey(kind) {
		return cfg, &providers.TestResult{Success: false, Message: fmt.Sprintf("No %s API key is configured on the server", kind.DisplayName())}
	}
	cfg.APIKey = def.APIKey
	cfg.KeySource = providers.SourceServer
	return cfg, nil
}

func principalLabel(p Principal) string {
	if !p.Authenticated() {
		return "anonymous"
	}
	return p.UserID
}
