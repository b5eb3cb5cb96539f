package providers

import (
	"fmt"
	"strings"
)

// Kind identifies one model backend. The set is closed: adding a backend
// means adding a Kind here and an Adapter for it.
type Kind string

const (
	KindOllama Kind = "ollama"
	KindOpenAI Kind = "openai"
	KindGemini Kind = "gemini"
)

// AllKinds returns every known kind, local runtime first.
func AllKinds() []Kind {
	return []Kind{KindOllama, KindOpenAI, KindGemini}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindOllama, KindOpenAI, KindGemini:
		return true
	}
	return false
}

// Hosted reports whether k is a hosted API that needs an API key.
func (k Kind) Hosted() bool {
	return k == KindOpenAI || k == KindGemini
}

// DisplayName is the human readable provider name used in user-facing messages.
func (k Kind) DisplayName() string {
	switch k {
	case KindOllama:
		return "Ollama"
	case KindOpenAI:
		return "OpenAI"
	case KindGemini:
		return "Google Gemini"
	}
	return string(k)
}

// ParseKind parses a provider name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("invalid AI provider %q: must be one of ollama, openai, gemini", s)
	}
	return k, nil
}

// Selection is either a concrete Kind or SelectionAuto.
type Selection string

// SelectionAuto tries every usable provider in priority order.
const SelectionAuto Selection = "auto"

// ParseSelection parses "auto" or a provider name.
func ParseSelection(s string) (Selection, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == string(SelectionAuto) {
		return SelectionAuto, nil
	}
	k, err := ParseKind(v)
	if err != nil {
		return "", fmt.Errorf("invalid AI provider %q: must be one of openai, gemini, ollama, auto", s)
	}
	return Selection(k), nil
}

// IsAuto reports whether the selection is auto mode.
func (s Selection) IsAuto() bool {
	return s == SelectionAuto
}

// Kind returns the concrete kind for a non-auto selection.
func (s Selection) Kind() (Kind, bool) {
	k := Kind(s)
	return k, k.Valid()
}
