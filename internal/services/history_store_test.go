package services

import (
	"campusbot/internal/database"
	"campusbot/internal/models"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "campusbot_test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	return db
}

func historyStores(t *testing.T) map[string]HistoryStore {
	return map[string]HistoryStore{
		"memory": NewMemoryHistoryStore(),
		"sqlite": NewSQLHistoryStore(newTestDB(t)),
	}
}

func TestHistoryStore_ChatLifecycle(t *testing.T) {
	for name, store := range historyStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			chat, err := store.CreateChat(ctx, "user-1", models.DefaultChatTitle)
			if err != nil {
				t.Fatalf("CreateChat failed: %v", err)
			}
			if chat.ID == "" {
				t.Fatal("expected chat id")
			}

			got, err := store.GetChat(ctx, chat.ID)
			if err != nil {
				t.Fatalf("GetChat failed: %v", err)
			}
			if got.UserID != "user-1" || got.Title != models.DefaultChatTitle {
				t.Errorf("unexpected chat %+v", got)
			}

			if err := store.RenameChat(ctx, chat.ID, "Exams"); err != nil {
				t.Fatalf("RenameChat failed: %v", err)
			}
			got, _ = store.GetChat(ctx, chat.ID)
			if got.Title != "Exams" {
				t.Errorf("expected renamed title, got %q", got.Title)
			}

			if err := store.ArchiveChat(ctx, chat.ID); err != nil {
				t.Fatalf("ArchiveChat failed: %v", err)
			}
			list, err := store.ListChats(ctx, "user-1")
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 0 {
				t.Errorf("archived chat should not be listed, got %d", len(list))
			}
		})
	}
}

func TestHistoryStore_UnknownChat(t *testing.T) {
	for name, store := range historyStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.GetChat(ctx, "missing"); !errors.Is(err, ErrChatNotFound) {
				t.Errorf("GetChat: expected ErrChatNotFound, got %v", err)
			}
			if err := store.RenameChat(ctx, "missing", "x"); !errors.Is(err, ErrChatNotFound) {
				t.Errorf("RenameChat: expected ErrChatNotFound, got %v", err)
			}
			err := store.AppendTurn(ctx, &models.ChatTurn{ChatID: "missing", UserMessage: "a", AssistantMessage: "b", Provider: "ollama"})
			if !errors.Is(err, ErrChatNotFound) {
				t.Errorf("AppendTurn: expected ErrChatNotFound, got %v", err)
			}
		})
	}
}

func TestHistoryStore_TurnsOrdering(t *testing.T) {
	for name, store := range historyStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			chat, err := store.CreateChat(ctx, "user-1", models.DefaultChatTitle)
			if err != nil {
				t.Fatal(err)
			}

			base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
			for i := 0; i < 5; i++ {
				turn := &models.ChatTurn{
					ChatID:           chat.ID,
					UserMessage:      fmt.Sprintf("q%d", i),
					AssistantMessage: fmt.Sprintf("a%d", i),
					Provider:         "openai",
					CreatedAt:        base.Add(time.Duration(i) * time.Second),
				}
				if err := store.AppendTurn(ctx, turn); err != nil {
					t.Fatalf("AppendTurn failed: %v", err)
				}
				if turn.ID == "" {
					t.Error("expected turn id to be set")
				}
			}

			recent, err := store.RecentTurns(ctx, chat.ID, 3)
			if err != nil {
				t.Fatal(err)
			}
			if len(recent) != 3 {
				t.Fatalf("expected 3 recent turns, got %d", len(recent))
			}
			for i, want := range []string{"q2", "q3", "q4"} {
				if recent[i].UserMessage != want {
					t.Errorf("recent[%d] = %q, want %q", i, recent[i].UserMessage, want)
				}
			}

			all, err := store.Turns(ctx, chat.ID)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 5 || all[0].UserMessage != "q0" || all[4].AssistantMessage != "a4" {
				t.Errorf("unexpected full history %+v", all)
			}
		})
	}
}

func TestHistoryStore_ListOrderAndOwnership(t *testing.T) {
	for name, store := range historyStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			older, _ := store.CreateChat(ctx, "user-1", "older")
			newer, _ := store.CreateChat(ctx, "user-1", "newer")
			if _, err := store.CreateChat(ctx, "user-2", "someone else"); err != nil {
				t.Fatal(err)
			}

			// a turn on the older chat makes it the most recent
			turn := &models.ChatTurn{
				ChatID: older.ID, UserMessage: "q", AssistantMessage: "a", Provider: "gemini",
				CreatedAt: time.Now().UTC().Add(time.Minute),
			}
			if err := store.AppendTurn(ctx, turn); err != nil {
				t.Fatal(err)
			}

			list, err := store.ListChats(ctx, "user-1")
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 2 {
				t.Fatalf("expected 2 chats, got %d", len(list))
			}
			if list[0].ID != older.ID || list[1].ID != newer.ID {
				t.Errorf("expected most recently updated first, got %s, %s", list[0].Title, list[1].Title)
			}
		})
	}
}
