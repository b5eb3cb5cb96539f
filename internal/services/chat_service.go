package services

import (
	"campusbot/internal/knowledge"
	"campusbot/internal/logging"
	"campusbot/internal/models"
	"campusbot/internal/providers"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultHistoryTurns is how many past turns are sent with each prompt
const DefaultHistoryTurns = 10

// Chat errors surfaced to handlers
var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = fmt.Errorf("message exceeds %d characters", models.MaxMessageLength)
	ErrDeniedContent  = errors.New("message contains restricted content")
	ErrInvalidTitle   = errors.New("title must be between 1 and 255 characters")
)

const systemPrompt = `You are a helpful university chatbot assistant.

Answer questions about the university using the knowledge base excerpts provided below when they are relevant:
- Academic calendars, schedules, dates and holidays
- Administrative policies, procedures, fees and contact information
- Course materials and educational resources

Be friendly, informative and professional. Keep answers clear and concise.
If the excerpts do not contain the answer, say that the information has not been added to the knowledge base yet instead of guessing.`

// Retriever returns knowledge base context for a query
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// AppSettingsSource provides the org-wide application settings
type AppSettingsSource interface {
	GetAppSettings(ctx context.Context) (models.AppSettings, error)
}

// ChatReply is the result of one handled message
type ChatReply struct {
	ChatID   string
	Message  string
	Provider providers.Kind
	Attempts []providers.Attempt
}

// ChatService glues history, retrieval and provider selection together for
// one message. It keeps no per-request state between calls.
type ChatService struct {
	history      HistoryStore
	selector     *ProviderSelector
	retriever    Retriever
	settings     AppSettingsSource
	metrics      *Metrics
	historyTurns int
}

// NewChatService creates a chat service. retriever, settings and metrics may be nil.
func NewChatService(history HistoryStore, selector *ProviderSelector, retriever Retriever, settings AppSettingsSource, metrics *Metrics, historyTurns int) *ChatService {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &ChatService{
		history:      history,
		selector:     selector,
		retriever:    retriever,
		settings:     settings,
		metrics:      metrics,
		historyTurns: historyTurns,
	}
}

// HandleMessage answers text in the chat chatID, creating a chat first when
// chatID is empty. The turn is stored only when a provider answered.
func (s *ChatService) HandleMessage(ctx context.Context, principal Principal, chatID, text string, settings EffectiveSettings, opts ...ExecuteOption) (*ChatReply, error) {
	start := time.Now()
	logger := logging.WithRequest("", principal.UserID, chatID)
	opts = append([]ExecuteOption{WithLogger(logger)}, opts...)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > models.MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	if err := s.checkDenyWords(ctx, text); err != nil {
		s.metrics.RecordChatError("denied")
		return nil, err
	}

	chat, err := s.openChat(ctx, principal, chatID)
	if err != nil {
		return nil, err
	}

	req := providers.Request{
		System:  s.buildSystemPrompt(ctx, text, logger),
		History: s.loadHistory(ctx, chat.ID, logger),
		Prompt:  text,
	}

	result, err := s.selector.Execute(ctx, settings, req, opts...)
	if err != nil {
		s.metrics.RecordChatError(errorType(err))
		return nil, err
	}

	turn := &models.ChatTurn{
		ChatID:           chat.ID,
		UserMessage:      text,
		AssistantMessage: result.Text,
		Provider:         string(result.Provider),
	}
	if err := s.history.AppendTurn(ctx, turn); err != nil {
		log.Printf("⚠️  [CHAT] Failed to save turn for chat %s: %v", chat.ID, err)
	}

	s.metrics.RecordChatRequest(time.Since(start))

	return &ChatReply{
		ChatID:   chat.ID,
		Message:  result.Text,
		Provider: result.Provider,
		Attempts: result.Attempts,
	}, nil
}

func (s *ChatService) checkDenyWords(ctx context.Context, text string) error {
	if s.settings == nil {
		return nil
	}
	app, err := s.settings.GetAppSettings(ctx)
	if err != nil {
		log.Printf("⚠️  [CHAT] Failed to load deny words: %v", err)
		return nil
	}
	lower := strings.ToLower(text)
	for _, w := range app.DenyWordList() {
		if strings.Contains(lower, w) {
			return ErrDeniedContent
		}
	}
	return nil
}

func (s *ChatService) openChat(ctx context.Context, principal Principal, chatID string) (*models.Chat, error) {
	if chatID == "" {
		chat, err := s.history.CreateChat(ctx, principal.UserID, models.DefaultChatTitle)
		if err != nil {
			return nil, err
		}
		log.Printf("💬 [CHAT] Created chat %s for %s", chat.ID, principalLabel(principal))
		return chat, nil
	}
	return s.ownedChat(ctx, principal, chatID)
}

// ownedChat loads a non-archived chat belonging to principal. Anonymous
// callers may only use anonymous chats.
func (s *ChatService) ownedChat(ctx context.Context, principal Principal, chatID string) (*models.Chat, error) {
	chat, err := s.history.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.Archived || chat.UserID != principal.UserID {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

func (s *ChatService) buildSystemPrompt(ctx context.Context, text string, logger *slog.Logger) string {
	if s.retriever == nil {
		return systemPrompt
	}
	excerpts, err := s.retriever.Retrieve(ctx, text)
	if err != nil {
		logger.Warn("knowledge retrieval degraded, answering without context", "error", err)
		s.metrics.RecordChatError("retrieval_degraded")
		return systemPrompt
	}
	if strings.TrimSpace(excerpts) == "" {
		return systemPrompt + "\n\nNo knowledge base excerpts matched this question."
	}
	return systemPrompt + "\n\nKnowledge base excerpts:\n\n" + excerpts
}

func (s *ChatService) loadHistory(ctx context.Context, chatID string, logger *slog.Logger) []providers.Message {
	turns, err := s.history.RecentTurns(ctx, chatID, s.historyTurns)
	if err != nil {
		logger.Warn("failed to load chat history", "error", err)
		return nil
	}
	msgs := make([]providers.Message, 0, len(turns)*2)
	for _, t := range turns {
		msgs = append(msgs,
			providers.Message{Role: providers.RoleUser, Content: t.UserMessage},
			providers.Message{Role: providers.RoleAssistant, Content: t.AssistantMessage},
		)
	}
	return msgs
}

// ListChats returns the principal's non-archived chats
func (s *ChatService) ListChats(ctx context.Context, principal Principal) ([]models.Chat, error) {
	return s.history.ListChats(ctx, principal.UserID)
}

// GetChat returns a chat with its full history
func (s *ChatService) GetChat(ctx context.Context, principal Principal, chatID string) (*models.ChatWithMessages, error) {
	chat, err := s.ownedChat(ctx, principal, chatID)
	if err != nil {
		return nil, err
	}
	turns, err := s.history.Turns(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	return &models.ChatWithMessages{
		ID:        chat.ID,
		Title:     chat.Title,
		UpdatedAt: chat.UpdatedAt,
		Messages:  turns,
	}, nil
}

// RenameChat sets a new title
func (s *ChatService) RenameChat(ctx context.Context, principal Principal, chatID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > 255 {
		return ErrInvalidTitle
	}
	if _, err := s.ownedChat(ctx, principal, chatID); err != nil {
		return err
	}
	return s.history.RenameChat(ctx, chatID, title)
}

// ArchiveChat hides a chat from the list. Archived chats cannot be continued.
func (s *ChatService) ArchiveChat(ctx context.Context, principal Principal, chatID string) error {
	if _, err := s.ownedChat(ctx, principal, chatID); err != nil {
		return err
	}
	return s.history.ArchiveChat(ctx, chatID)
}

func errorType(err error) string {
	var (
		cfgErr       *providers.ConfigError
		compositeErr *providers.CompositeError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "config_error"
	case errors.As(err, &compositeErr):
		return "all_providers_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "internal"
}

var _ Retriever = (*knowledge.Base)(nil)
