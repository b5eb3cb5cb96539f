package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash-exp"
)

// GeminiAdapter calls the Google Generative Language API.
type GeminiAdapter struct {
	http *transport
}

// NewGeminiAdapter creates the Gemini adapter.
func NewGeminiAdapter(client *http.Client) *GeminiAdapter {
	return &GeminiAdapter{http: newTransport(KindGemini, client)}
}

func (a *GeminiAdapter) Kind() Kind { return KindGemini }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (a *GeminiAdapter) headers(cfg Config) map[string]string {
	return map[string]string{"x-goog-api-key": cfg.APIKey}
}

func geminiModelPath(cfg Config) string {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}
	model = strings.TrimPrefix(model, "models/")
	return trimBase(cfg.BaseURL, DefaultGeminiBaseURL) + "/models/" + url.PathEscape(model)
}

// Generate calls POST /models/{model}:generateContent.
func (a *GeminiAdapter) Generate(ctx context.Context, req Request, cfg Config) (string, error) {
	body := geminiRequest{}
	if strings.TrimSpace(req.System) != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, m := range req.History {
		body.Contents = append(body.Contents, geminiContent{Role: geminiRole(m.Role), Parts: []geminiPart{{Text: m.Content}}})
	}
	body.Contents = append(body.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}})

	// temperature is always resolved, so 0 means deterministic output
	genCfg := map[string]any{"temperature": cfg.Temperature}
	if cfg.MaxTokens > 0 {
		genCfg["maxOutputTokens"] = cfg.MaxTokens
	}
	body.GenerationConfig = genCfg

	var resp geminiResponse
	if err := a.http.doJSON(ctx, http.MethodPost, geminiModelPath(cfg)+":generateContent", a.headers(cfg), body, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", &UpstreamError{Provider: KindGemini, Kind: ErrMalformed, Message: "prompt blocked", Detail: resp.PromptFeedback.BlockReason}
		}
		return "", malformed(KindGemini, "response has no candidates", nil)
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// TestConnection fetches the configured model's metadata, which validates
// the key without spending tokens.
func (a *GeminiAdapter) TestConnection(ctx context.Context, cfg Config) *TestResult {
	if cfg.APIKey == "" {
		return &TestResult{Success: false, Message: "Gemini API key is required"}
	}

	var meta struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	}
	if err := a.http.doJSON(ctx, http.MethodGet, geminiModelPath(cfg), a.headers(cfg), nil, &meta); err != nil {
		msg := "Failed to connect to Google Gemini"
		if ue, ok := AsUpstream(err); ok {
			switch ue.Kind {
			case ErrAuthFailure:
				msg = "Invalid Gemini API key"
			case ErrMalformed:
				if ue.StatusCode == http.StatusNotFound {
					msg = "Gemini API key is valid, but the model was not found"
				}
			}
		}
		return &TestResult{Success: false, Message: msg, Details: describeFailure(err)}
	}

	name := meta.DisplayName
	if name == "" {
		name = strings.TrimPrefix(meta.Name, "models/")
	}
	return &TestResult{
		Success: true,
		Message: fmt.Sprintf("Gemini API key is valid. Model %s is available", name),
	}
}

func geminiRole(r Role) string {
	if r == RoleAssistant {
		return "model"
	}
	return "user"
}
