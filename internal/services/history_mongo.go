package services

import (
	"campusbot/internal/database"
	"campusbot/internal/models"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoTurn is the stored form of a ChatTurn. Seq orders turns within a chat.
type mongoTurn struct {
	ChatID           string    `bson:"chatId"`
	Seq              int64     `bson:"seq"`
	UserMessage      string    `bson:"userMessage"`
	AssistantMessage string    `bson:"assistantMessage"`
	Provider         string    `bson:"provider"`
	CreatedAt        time.Time `bson:"createdAt"`
}

func (t mongoTurn) toModel() models.ChatTurn {
	return models.ChatTurn{
		ID:               strconv.FormatInt(t.Seq, 10),
		ChatID:           t.ChatID,
		UserMessage:      t.UserMessage,
		AssistantMessage: t.AssistantMessage,
		Provider:         t.Provider,
		CreatedAt:        t.CreatedAt,
	}
}

// MongoHistoryStore stores chats in MongoDB. Used when MONGODB_URI is set.
type MongoHistoryStore struct {
	chats *mongo.Collection
	turns *mongo.Collection
}

// NewMongoHistoryStore creates a store over the chat collections of db
func NewMongoHistoryStore(db *database.MongoDB) *MongoHistoryStore {
	return &MongoHistoryStore{
		chats: db.Collection(database.CollectionChats),
		turns: db.Collection(database.CollectionChatTurns),
	}
}

func (s *MongoHistoryStore) CreateChat(ctx context.Context, userID, title string) (*models.Chat, error) {
	now := time.Now().UTC()
	chat := &models.Chat{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.chats.InsertOne(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

func (s *MongoHistoryStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	err := s.chats.FindOne(ctx, bson.M{"chatId": chatID}).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (s *MongoHistoryStore) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := s.chats.Find(ctx, bson.M{"userId": userID, "archived": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer cursor.Close(ctx)

	chats := make([]models.Chat, 0)
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}
	return chats, nil
}

func (s *MongoHistoryStore) RenameChat(ctx context.Context, chatID, title string) error {
	return s.update(ctx, chatID, bson.M{"title": title})
}

func (s *MongoHistoryStore) ArchiveChat(ctx context.Context, chatID string) error {
	return s.update(ctx, chatID, bson.M{"archived": true})
}

func (s *MongoHistoryStore) update(ctx context.Context, chatID string, set bson.M) error {
	set["updatedAt"] = time.Now().UTC()
	res, err := s.chats.UpdateOne(ctx, bson.M{"chatId": chatID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (s *MongoHistoryStore) AppendTurn(ctx context.Context, turn *models.ChatTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	res, err := s.chats.UpdateOne(ctx,
		bson.M{"chatId": turn.ChatID},
		bson.M{"$set": bson.M{"updatedAt": turn.CreatedAt}},
	)
	if err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}

	doc := mongoTurn{
		ChatID:           turn.ChatID,
		Seq:              turn.CreatedAt.UnixNano(),
		UserMessage:      turn.UserMessage,
		AssistantMessage: turn.AssistantMessage,
		Provider:         turn.Provider,
		CreatedAt:        turn.CreatedAt,
	}
	if _, err := s.turns.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	turn.ID = strconv.FormatInt(doc.Seq, 10)
	return nil
}

func (s *MongoHistoryStore) RecentTurns(ctx context.Context, chatID string, limit int) ([]models.ChatTurn, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	turns, err := s.find(ctx, chatID, opts)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *MongoHistoryStore) Turns(ctx context.Context, chatID string) ([]models.ChatTurn, error) {
	return s.find(ctx, chatID, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
}

func (s *MongoHistoryStore) find(ctx context.Context, chatID string, opts *options.FindOptions) ([]models.ChatTurn, error) {
	cursor, err := s.turns.Find(ctx, bson.M{"chatId": chatID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer cursor.Close(ctx)

	turns := make([]models.ChatTurn, 0)
	for cursor.Next(ctx) {
		var doc mongoTurn
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode turn: %w", err)
		}
		turns = append(turns, doc.toModel())
	}
	return turns, cursor.Err()
}
