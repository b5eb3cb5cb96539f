package providers

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Role is a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is everything an adapter needs to produce one reply.
type Request struct {
	System  string
	History []Message
	Prompt  string
}

// Messages flattens the request into system + history + user prompt.
func (r Request) Messages() []Message {
	msgs := make([]Message, 0, len(r.History)+2)
	if strings.TrimSpace(r.System) != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: r.System})
	}
	msgs = append(msgs, r.History...)
	msgs = append(msgs, Message{Role: RoleUser, Content: r.Prompt})
	return msgs
}

// TestResult is the outcome of a connection test. It is never persisted.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Adapter is the uniform contract every provider implements.
type Adapter interface {
	Kind() Kind
	// Generate returns the completion text. An empty completion is valid.
	// Failures are always *UpstreamError.
	Generate(ctx context.Context, req Request, cfg Config) (string, error)
	// TestConnection performs the cheapest available probe. It never fails;
	// problems are reported through TestResult.
	TestConnection(ctx context.Context, cfg Config) *TestResult
}

// ModelLister is implemented by adapters that can enumerate models.
type ModelLister interface {
	ListModels(ctx context.Context, cfg Config) ([]string, error)
}

// Registry maps each Kind to its adapter.
type Registry struct {
	adapters map[Kind]Adapter
}

// NewRegistry builds a registry from the given adapters; later entries win.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Kind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Kind()] = a
	}
	return r
}

// NewDefaultRegistry wires the three built-in adapters over one HTTP client.
func NewDefaultRegistry(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return NewRegistry(
		NewOllamaAdapter(client),
		NewOpenAIAdapter(client),
		NewGeminiAdapter(client),
	)
}

// Get returns the adapter for k.
func (r *Registry) Get(k Kind) (Adapter, bool) {
	a, ok := r.adapters[k]
	return a, ok
}
