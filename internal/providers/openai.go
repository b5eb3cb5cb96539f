package providers

import (
	"context"
	"fmt"
	"net/http"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4"
)

// OpenAIAdapter calls the OpenAI chat completions API.
type OpenAIAdapter struct {
	http *transport
}

// NewOpenAIAdapter creates the OpenAI adapter.
func NewOpenAIAdapter(client *http.Client) *OpenAIAdapter {
	return &OpenAIAdapter{http: newTransport(KindOpenAI, client)}
}

func (a *OpenAIAdapter) Kind() Kind { return KindOpenAI }

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (a *OpenAIAdapter) headers(cfg Config) map[string]string {
	return map[string]string{"Authorization": "Bearer " + cfg.APIKey}
}

// Generate calls POST /chat/completions.
func (a *OpenAIAdapter) Generate(ctx context.Context, req Request, cfg Config) (string, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	temperature := cfg.Temperature
	body := openAIChatRequest{
		Model:       model,
		Messages:    req.Messages(),
		MaxTokens:   cfg.MaxTokens,
		Temperature: &temperature,
	}

	var resp openAIChatResponse
	url := trimBase(cfg.BaseURL, DefaultOpenAIBaseURL) + "/chat/completions"
	if err := a.http.doJSON(ctx, http.MethodPost, url, a.headers(cfg), body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", malformed(KindOpenAI, "response has no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// ListModels returns model ids visible to the key via GET /models.
func (a *OpenAIAdapter) ListModels(ctx context.Context, cfg Config) ([]string, error) {
	var resp openAIModelsResponse
	url := trimBase(cfg.BaseURL, DefaultOpenAIBaseURL) + "/models"
	if err := a.http.doJSON(ctx, http.MethodGet, url, a.headers(cfg), nil, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// TestConnection validates the key by listing models, which costs no tokens.
func (a *OpenAIAdapter) TestConnection(ctx context.Context, cfg Config) *TestResult {
	if cfg.APIKey == "" {
		return &TestResult{Success: false, Message: "OpenAI API key is required"}
	}

	ids, err := a.ListModels(ctx, cfg)
	if err != nil {
		msg := "Failed to connect to OpenAI"
		if ue, ok := AsUpstream(err); ok && ue.Kind == ErrAuthFailure {
			msg = "Invalid OpenAI API key"
		}
		return &TestResult{Success: false, Message: msg, Details: describeFailure(err)}
	}

	result := &TestResult{
		Success: true,
		Message: fmt.Sprintf("OpenAI API key is valid. Found %d model(s)", len(ids)),
	}
	if cfg.Model != "" && !hasModel(ids, cfg.Model) {
		result.Details = fmt.Sprintf("Model %q is not available for this key", cfg.Model)
	}
	return result
}
