package config

import (
	"campusbot/internal/providers"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadProviderDefaults_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `
ai_provider: openai
auto_hosted_order: [gemini, openai]
timeout: 30s
ollama:
  base_url: http://gpu-box:11434
  model: llama3
openai:
  model: gpt-4o-mini
  share_server_key: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("OPENAI_API_KEY", "sk-server")

	d, err := LoadProviderDefaults(path)
	if err != nil {
		t.Fatalf("LoadProviderDefaults failed: %v", err)
	}

	if d.Selection != providers.Selection(providers.KindOpenAI) {
		t.Errorf("Expected openai selection, got %q", d.Selection)
	}
	if len(d.HostedOrder) != 2 || d.HostedOrder[0] != providers.KindGemini {
		t.Errorf("Expected file hosted order, got %v", d.HostedOrder)
	}
	if d.Timeout != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %s", d.Timeout)
	}
	if d.Ollama.BaseURL != "http://gpu-box:11434" || d.Ollama.Model != "llama3" {
		t.Errorf("Unexpected ollama defaults %+v", d.Ollama)
	}
	if d.OpenAI.Model != "gpt-4o" {
		t.Errorf("Expected env to override file model, got %q", d.OpenAI.Model)
	}
	if !d.OpenAI.ShareServerKey || !d.HasServerKey(providers.KindOpenAI) {
		t.Error("Expected shared OpenAI server key")
	}
	if d.Gemini.Model != providers.DefaultGeminiModel {
		t.Errorf("Expected builtin gemini model, got %q", d.Gemini.Model)
	}
}

func TestLoadProviderDefaults_MissingFile(t *testing.T) {
	d, err := LoadProviderDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Missing file should fall back to builtin defaults: %v", err)
	}
	if !d.Selection.IsAuto() {
		t.Errorf("Expected auto selection by default, got %q", d.Selection)
	}
	if d.OpenAI.ShareServerKey || d.Gemini.ShareServerKey {
		t.Error("Server keys must not be shared by default")
	}
}

func TestLoadProviderDefaults_OllamaURLSharing(t *testing.T) {
	d, err := LoadProviderDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !d.Ollama.ShareServerURL {
		t.Error("Expected the server Ollama URL to be shared by default")
	}

	t.Setenv("OLLAMA_SHARE_SERVER_URL", "false")
	d, err = LoadProviderDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if d.Ollama.ShareServerURL {
		t.Error("Expected OLLAMA_SHARE_SERVER_URL=false to stop sharing")
	}
}

func TestLoadProviderDefaults_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad ollama url", map[string]string{"OLLAMA_BASE_URL": "localhost:11434"}},
		{"local kind in hosted order", map[string]string{"AUTO_HOSTED_ORDER": "openai,ollama"}},
		{"unknown kind in hosted order", map[string]string{"AUTO_HOSTED_ORDER": "anthropic"}},
		{"unknown provider", map[string]string{"AI_PROVIDER": "claude"}},
		{"zero timeout", map[string]string{"PROVIDER_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadProviderDefaults("")
			var cfgErr *providers.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
		})
	}
}

func TestDefaultsStore_ReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte("ollama:\n  model: phi3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewDefaultsStore(nil)
	if err := store.Reload(path); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := store.Load().Ollama.Model; got != "phi3" {
		t.Fatalf("Expected phi3, got %q", got)
	}

	if err := os.WriteFile(path, []byte("ollama: [not, a, map"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.Reload(path); err == nil {
		t.Fatal("Expected parse error")
	}
	if got := store.Load().Ollama.Model; got != "phi3" {
		t.Errorf("Expected previous defaults to survive a bad reload, got %q", got)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("PROVIDERS_FILE", filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("ALLOWED_EMAIL_DOMAINS", "Uni.edu, staff.uni.edu")
	t.Setenv("CONNECTION_TEST_TIMEOUT", "30")
	t.Setenv("CHAT_HISTORY_TURNS", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.AllowedEmailDomains) != 2 || cfg.AllowedEmailDomains[0] != "uni.edu" {
		t.Errorf("Unexpected domains %v", cfg.AllowedEmailDomains)
	}
	if cfg.ConnectionTestTimeout != 5*time.Second {
		t.Errorf("Expected connection test timeout capped at 5s, got %s", cfg.ConnectionTestTimeout)
	}
	if cfg.ChatHistoryTurns != 4 {
		t.Errorf("Expected 4 history turns, got %d", cfg.ChatHistoryTurns)
	}
}
