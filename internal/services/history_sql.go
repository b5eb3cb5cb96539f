package services

import (
	"campusbot/internal/database"
	"campusbot/internal/models"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SQLHistoryStore stores chats in the relational database (MySQL or SQLite)
type SQLHistoryStore struct {
	db *database.DB
}

// NewSQLHistoryStore creates a store over an initialized database
func NewSQLHistoryStore(db *database.DB) *SQLHistoryStore {
	return &SQLHistoryStore{db: db}
}

func (s *SQLHistoryStore) CreateChat(ctx context.Context, userID, title string) (*models.Chat, error) {
	now := time.Now().UTC()
	chat := &models.Chat{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, title, archived, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		chat.ID, chat.UserID, chat.Title, false, chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

func (s *SQLHistoryStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, archived, created_at, updated_at FROM chats WHERE id = ?`, chatID,
	).Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.Archived, &chat.CreatedAt, &chat.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (s *SQLHistoryStore) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, archived, created_at, updated_at FROM chats
		 WHERE user_id = ? AND archived = ? ORDER BY updated_at DESC`,
		userID, false,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]models.Chat, 0)
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Archived, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (s *SQLHistoryStore) RenameChat(ctx context.Context, chatID, title string) error {
	return s.exec(ctx, `UPDATE chats SET title = ?, updated_at = ? WHERE id = ?`, title, time.Now().UTC(), chatID)
}

func (s *SQLHistoryStore) ArchiveChat(ctx context.Context, chatID string) error {
	return s.exec(ctx, `UPDATE chats SET archived = ?, updated_at = ? WHERE id = ?`, true, time.Now().UTC(), chatID)
}

func (s *SQLHistoryStore) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	if n == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (s *SQLHistoryStore) AppendTurn(ctx context.Context, turn *models.ChatTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = ? WHERE id = ?`, turn.CreatedAt, turn.ChatID)
	if err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO messages (chat_id, user_message, assistant_message, provider, created_at) VALUES (?, ?, ?, ?, ?)`,
		turn.ChatID, turn.UserMessage, turn.AssistantMessage, turn.Provider, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		turn.ID = strconv.FormatInt(id, 10)
	}

	return tx.Commit()
}

func (s *SQLHistoryStore) RecentTurns(ctx context.Context, chatID string, limit int) ([]models.ChatTurn, error) {
	if limit <= 0 {
		return s.Turns(ctx, chatID)
	}
	turns, err := s.queryTurns(ctx,
		`SELECT id, chat_id, user_message, assistant_message, provider, created_at FROM messages
		 WHERE chat_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *SQLHistoryStore) Turns(ctx context.Context, chatID string) ([]models.ChatTurn, error) {
	return s.queryTurns(ctx,
		`SELECT id, chat_id, user_message, assistant_message, provider, created_at FROM messages
		 WHERE chat_id = ? ORDER BY created_at ASC, id ASC`,
		chatID,
	)
}

func (s *SQLHistoryStore) queryTurns(ctx context.Context, query string, args ...interface{}) ([]models.ChatTurn, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	turns := make([]models.ChatTurn, 0)
	for rows.Next() {
		var (
			t  models.ChatTurn
			id int64
		)
		if err := rows.Scan(&id, &t.ChatID, &t.UserMessage, &t.AssistantMessage, &t.Provider, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		t.ID = strconv.FormatInt(id, 10)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
