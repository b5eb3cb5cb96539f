package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultOllamaModel is used when neither the request nor the server names a model.
const DefaultOllamaModel = "gemma:7b"

// OllamaAdapter talks to a local Ollama runtime through its native API.
type OllamaAdapter struct {
	http *transport
}

// NewOllamaAdapter creates the local runtime adapter.
func NewOllamaAdapter(client *http.Client) *OllamaAdapter {
	return &OllamaAdapter{http: newTransport(KindOllama, client)}
}

func (a *OllamaAdapter) Kind() Kind { return KindOllama }

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Generate calls POST /api/chat without streaming.
func (a *OllamaAdapter) Generate(ctx context.Context, req Request, cfg Config) (string, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}

	options := map[string]any{"temperature": cfg.Temperature}
	if cfg.MaxTokens > 0 {
		options["num_predict"] = cfg.MaxTokens
	}

	body := ollamaChatRequest{
		Model:    model,
		Messages: req.Messages(),
		Stream:   false,
		Options:  options,
	}

	var resp ollamaChatResponse
	if err := a.http.doJSON(ctx, http.MethodPost, ollamaBase(cfg)+"/api/chat", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", &UpstreamError{Provider: KindOllama, Kind: ErrMalformed, Message: "runtime reported an error", Detail: resp.Error}
	}
	if resp.Message == nil {
		return "", malformed(KindOllama, "response has no message", nil)
	}
	return resp.Message.Content, nil
}

// ListModels returns the names of locally installed models via GET /api/tags.
func (a *OllamaAdapter) ListModels(ctx context.Context, cfg Config) ([]string, error) {
	var resp ollamaTagsResponse
	if err := a.http.doJSON(ctx, http.MethodGet, ollamaBase(cfg)+"/api/tags", nil, nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		names = append(names, name)
	}
	return names, nil
}

// TestConnection lists installed models; an empty list is a warning, not a failure.
func (a *OllamaAdapter) TestConnection(ctx context.Context, cfg Config) *TestResult {
	if err := ValidateBaseURL(cfg.BaseURL); err != nil {
		return &TestResult{Success: false, Message: "Ollama URL is required", Details: err.Error()}
	}

	names, err := a.ListModels(ctx, cfg)
	if err != nil {
		return &TestResult{
			Success: false,
			Message: fmt.Sprintf("Cannot connect to Ollama at %s", ollamaBase(cfg)),
			Details: describeFailure(err),
		}
	}

	if len(names) == 0 {
		return &TestResult{
			Success: true,
			Message: "Connected to Ollama, but no models are installed",
			Details: "Pull a model first, for example: ollama pull " + DefaultOllamaModel,
		}
	}

	result := &TestResult{
		Success: true,
		Message: fmt.Sprintf("Connected to Ollama. Found %d model(s)", len(names)),
	}
	if cfg.Model != "" && !hasModel(names, cfg.Model) {
		result.Details = fmt.Sprintf("Model %q is not installed. Available: %s", cfg.Model, strings.Join(names, ", "))
	}
	return result
}

func ollamaBase(cfg Config) string {
	// Accept URLs that point at the OpenAI-compatible /v1 prefix too.
	return strings.TrimSuffix(trimBase(cfg.BaseURL, ""), "/v1")
}

func hasModel(names []string, model string) bool {
	for _, n := range names {
		if n == model || strings.TrimSuffix(n, ":latest") == model {
			return true
		}
	}
	return false
}

// describeFailure renders an adapter error for connection-test details
// without any raw upstream body.
func describeFailure(err error) string {
	if ue, ok := AsUpstream(err); ok {
		if ue.StatusCode != 0 {
			return fmt.Sprintf("%s (HTTP %d)", ue.Kind.describe(), ue.StatusCode)
		}
		return ue.Kind.describe()
	}
	return "request failed"
}
