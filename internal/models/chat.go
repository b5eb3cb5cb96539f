package models

import "time"

// Chat is one conversation. Anonymous chats have an empty UserID.
type Chat struct {
	ID        string    `json:"id" bson:"chatId"`
	UserID    string    `json:"-" bson:"userId"`
	Title     string    `json:"title" bson:"title"`
	Archived  bool      `json:"-" bson:"archived"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" bson:"updatedAt"`
}

// ChatTurn is one completed exchange. Turns are only stored after the
// provider answered successfully.
type ChatTurn struct {
	ID               string    `json:"id" bson:"-"`
	ChatID           string    `json:"chat_id" bson:"chatId"`
	UserMessage      string    `json:"human" bson:"userMessage"`
	AssistantMessage string    `json:"bot" bson:"assistantMessage"`
	Provider         string    `json:"provider" bson:"provider"`
	CreatedAt        time.Time `json:"created_at" bson:"createdAt"`
}

// DefaultChatTitle is used for chats created without a title
const DefaultChatTitle = "New Chat"

// MaxMessageLength bounds a single user message
const MaxMessageLength = 5000

// MessageRequest is the body of the chat message endpoints
type MessageRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id,omitempty"`
}

// MessageResponse is the reply of the chat message endpoints
type MessageResponse struct {
	Success  bool   `json:"success"`
	ChatID   string `json:"chat_id"`
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
}

// ChatWithMessages is a chat and its full history
type ChatWithMessages struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	UpdatedAt time.Time  `json:"updated_at"`
	Messages  []ChatTurn `json:"messages"`
}

// RenameChatRequest is the body of PUT /api/chat/rename/:id
type RenameChatRequest struct {
	Title string `json:"title"`
}
