package services

import (
	"campusbot/internal/knowledge"
	"campusbot/internal/models"
	"campusbot/internal/providers"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type stubRetriever struct {
	text  string
	err   error
	calls int
}

func (r *stubRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	r.calls++
	return r.text, r.err
}

type stubAppSettings struct {
	app models.AppSettings
}

func (s stubAppSettings) GetAppSettings(ctx context.Context) (models.AppSettings, error) {
	return s.app, nil
}

func newTestChatService(fakes *fakeSet, retriever Retriever, app models.AppSettings) (*ChatService, *MemoryHistoryStore) {
	store := NewMemoryHistoryStore()
	sel := NewProviderSelector(fakes.registry(), nil, nil)
	return NewChatService(store, sel, retriever, stubAppSettings{app: app}, nil, 2), store
}

var alice = Principal{UserID: "alice", Email: "alice@uni.edu", Role: models.RoleUser}

func TestHandleMessage_CreatesChatAndStoresTurn(t *testing.T) {
	fakes := newFakeSet()
	svc, store := newTestChatService(fakes, nil, models.AppSettings{})
	ctx := context.Background()

	reply, err := svc.HandleMessage(ctx, alice, "", "When does the semester start?", testSettings(providers.SelectionAuto))
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if reply.ChatID == "" || reply.Message != "from ollama" || reply.Provider != providers.KindOllama {
		t.Errorf("unexpected reply %+v", reply)
	}

	turns, _ := store.Turns(ctx, reply.ChatID)
	if len(turns) != 1 || turns[0].Provider != "ollama" || turns[0].UserMessage != "When does the semester start?" {
		t.Errorf("unexpected stored turns %+v", turns)
	}

	chat, _ := store.GetChat(ctx, reply.ChatID)
	if chat.UserID != "alice" {
		t.Errorf("chat owner = %q, want alice", chat.UserID)
	}
}

func TestHandleMessage_FailureStoresNothing(t *testing.T) {
	fakes := newFakeSet()
	fakes.ollama.err = upstream(providers.KindOllama, providers.ErrUnreachable)
	fakes.openai.err = upstream(providers.KindOpenAI, providers.ErrUnreachable)
	fakes.gemini.err = upstream(providers.KindGemini, providers.ErrUnreachable)
	svc, store := newTestChatService(fakes, nil, models.AppSettings{})
	ctx := context.Background()

	chat, _ := store.CreateChat(ctx, alice.UserID, models.DefaultChatTitle)
	_, err := svc.HandleMessage(ctx, alice, chat.ID, "hello", testSettings(providers.SelectionAuto))

	var composite *providers.CompositeError
	if !errors.As(err, &composite) {
		t.Fatalf("expected CompositeError, got %v", err)
	}
	turns, _ := store.Turns(ctx, chat.ID)
	if len(turns) != 0 {
		t.Errorf("failed generation must not store a turn, got %d", len(turns))
	}
}

func TestHandleMessage_SendsRecentHistory(t *testing.T) {
	fakes := newFakeSet()
	svc, store := newTestChatService(fakes, nil, models.AppSettings{})
	ctx := context.Background()

	chat, _ := store.CreateChat(ctx, alice.UserID, models.DefaultChatTitle)
	for i := 0; i < 4; i++ {
		store.AppendTurn(ctx, &models.ChatTurn{ChatID: chat.ID, UserMessage: fmt.Sprintf("q%d", i), AssistantMessage: fmt.Sprintf("a%d", i), Provider: "ollama"})
	}

	if _, err := svc.HandleMessage(ctx, alice, chat.ID, "next", testSettings(providers.SelectionAuto)); err != nil {
		t.Fatal(err)
	}

	history := fakes.ollama.calls[0].History
	if len(history) != 4 {
		t.Fatalf("expected the last 2 turns as 4 messages, got %d", len(history))
	}
	if history[0].Content != "q2" || history[0].Role != providers.RoleUser || history[3].Content != "a3" {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestHandleMessage_DenyWords(t *testing.T) {
	fakes := newFakeSet()
	svc, _ := newTestChatService(fakes, nil, models.AppSettings{DenyWords: "cheat, exam answers"})

	_, err := svc.HandleMessage(context.Background(), alice, "", "Give me the EXAM ANSWERS please", testSettings(providers.SelectionAuto))
	if !errors.Is(err, ErrDeniedContent) {
		t.Fatalf("expected ErrDeniedContent, got %v", err)
	}
	if fakes.ollama.callCount() != 0 {
		t.Error("denied message must not reach a provider")
	}
}

func TestHandleMessage_Validation(t *testing.T) {
	svc, _ := newTestChatService(newFakeSet(), nil, models.AppSettings{})
	ctx := context.Background()

	if _, err := svc.HandleMessage(ctx, alice, "", "   ", testSettings(providers.SelectionAuto)); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	long := strings.Repeat("a", models.MaxMessageLength+1)
	if _, err := svc.HandleMessage(ctx, alice, "", long, testSettings(providers.SelectionAuto)); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestHandleMessage_ForeignChatNotFound(t *testing.T) {
	svc, store := newTestChatService(newFakeSet(), nil, models.AppSettings{})
	ctx := context.Background()

	chat, _ := store.CreateChat(ctx, "bob", models.DefaultChatTitle)
	if _, err := svc.HandleMessage(ctx, alice, chat.ID, "hi", testSettings(providers.SelectionAuto)); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("expected ErrChatNotFound for foreign chat, got %v", err)
	}
	if _, err := svc.HandleMessage(ctx, alice, "nope", "hi", testSettings(providers.SelectionAuto)); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("expected ErrChatNotFound for unknown chat, got %v", err)
	}
}

func TestHandleMessage_RetrievalContextAndDegradation(t *testing.T) {
	fakes := newFakeSet()
	retriever := &stubRetriever{text: "From calendar.txt:\nClasses begin Sept 2"}
	svc, _ := newTestChatService(fakes, retriever, models.AppSettings{})

	if _, err := svc.HandleMessage(context.Background(), alice, "", "when do classes begin", testSettings(providers.SelectionAuto)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fakes.ollama.calls[0].System, "Classes begin Sept 2") {
		t.Error("retrieved context missing from system prompt")
	}

	retriever.err = fmt.Errorf("%w: disk gone", knowledge.ErrRetrievalDegraded)
	reply, err := svc.HandleMessage(context.Background(), alice, "", "when do classes begin", testSettings(providers.SelectionAuto))
	if err != nil {
		t.Fatalf("retrieval failure must not fail the request: %v", err)
	}
	if reply.Message == "" {
		t.Error("expected a reply without context")
	}
	if strings.Contains(fakes.ollama.calls[1].System, "Classes begin") {
		t.Error("degraded retrieval must not carry stale context")
	}
}

func TestChatManagement(t *testing.T) {
	svc, store := newTestChatService(newFakeSet(), nil, models.AppSettings{})
	ctx := context.Background()

	reply, err := svc.HandleMessage(ctx, alice, "", "hello", testSettings(providers.SelectionAuto))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.RenameChat(ctx, alice, reply.ChatID, "  Registration  "); err != nil {
		t.Fatalf("RenameChat failed: %v", err)
	}
	if err := svc.RenameChat(ctx, alice, reply.ChatID, ""); !errors.Is(err, ErrInvalidTitle) {
		t.Errorf("expected ErrInvalidTitle, got %v", err)
	}
	bob := Principal{UserID: "bob"}
	if err := svc.RenameChat(ctx, bob, reply.ChatID, "mine now"); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("expected ErrChatNotFound for other user, got %v", err)
	}

	full, err := svc.GetChat(ctx, alice, reply.ChatID)
	if err != nil {
		t.Fatal(err)
	}
	if full.Title != "Registration" || len(full.Messages) != 1 {
		t.Errorf("unexpected chat %+v", full)
	}

	chats, _ := svc.ListChats(ctx, alice)
	if len(chats) != 1 {
		t.Errorf("expected 1 chat, got %d", len(chats))
	}

	if err := svc.ArchiveChat(ctx, alice, reply.ChatID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.HandleMessage(ctx, alice, reply.ChatID, "again", testSettings(providers.SelectionAuto)); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("archived chat cannot be continued, got %v", err)
	}
	chats, _ = store.ListChats(ctx, alice.UserID)
	if len(chats) != 0 {
		t.Errorf("archived chat still listed")
	}
}
