package services

import (
	"campusbot/internal/models"
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrChatNotFound is returned for unknown, archived or foreign chats
var ErrChatNotFound = errors.New("chat not found")

// HistoryStore persists chats and their completed turns
type HistoryStore interface {
	CreateChat(ctx context.Context, userID, title string) (*models.Chat, error)
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	// ListChats returns the user's non-archived chats, most recently updated first
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)
	RenameChat(ctx context.Context, chatID, title string) error
	ArchiveChat(ctx context.Context, chatID string) error
	// AppendTurn stores a completed turn and bumps the chat's updated time
	AppendTurn(ctx context.Context, turn *models.ChatTurn) error
	// RecentTurns returns up to limit of the newest turns in chronological order
	RecentTurns(ctx context.Context, chatID string, limit int) ([]models.ChatTurn, error)
	// Turns returns the full history in chronological order
	Turns(ctx context.Context, chatID string) ([]models.ChatTurn, error)
}

// MemoryHistoryStore keeps history in process memory. It is used when no
// database is configured and in tests.
type MemoryHistoryStore struct {
	mu     sync.RWMutex
	chats  map[string]*models.Chat
	turns  map[string][]models.ChatTurn
	nextID int64
	now    func() time.Time
}

// NewMemoryHistoryStore creates an empty in-memory store
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		chats: make(map[string]*models.Chat),
		turns: make(map[string][]models.ChatTurn),
		now:   time.Now,
	}
}

func (s *MemoryHistoryStore) CreateChat(ctx context.Context, userID, title string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	chat := &models.Chat{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.chats[chat.ID] = chat

	c := *chat
	return &c, nil
}

func (s *MemoryHistoryStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	c := *chat
	return &c, nil
}

func (s *MemoryHistoryStore) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]models.Chat, 0)
	for _, c := range s.chats {
		if c.UserID == userID && !c.Archived {
			chats = append(chats, *c)
		}
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

func (s *MemoryHistoryStore) RenameChat(ctx context.Context, chatID, title string) error {
	return s.update(chatID, func(c *models.Chat) { c.Title = title })
}

func (s *MemoryHistoryStore) ArchiveChat(ctx context.Context, chatID string) error {
	return s.update(chatID, func(c *models.Chat) { c.Archived = true })
}

func (s *MemoryHistoryStore) update(chatID string, fn func(*models.Chat)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	fn(chat)
	chat.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryHistoryStore) AppendTurn(ctx context.Context, turn *models.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[turn.ChatID]
	if !ok {
		return ErrChatNotFound
	}

	s.nextID++
	turn.ID = strconv.FormatInt(s.nextID, 10)
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now().UTC()
	}
	s.turns[turn.ChatID] = append(s.turns[turn.ChatID], *turn)
	chat.UpdatedAt = turn.CreatedAt
	return nil
}

func (s *MemoryHistoryStore) RecentTurns(ctx context.Context, chatID string, limit int) ([]models.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[chatID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]models.ChatTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryHistoryStore) Turns(ctx context.Context, chatID string) ([]models.ChatTurn, error) {
	return s.RecentTurns(ctx, chatID, 0)
}
