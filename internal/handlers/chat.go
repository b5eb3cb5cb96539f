package handlers

import (
	"bufio"
	"campusbot/internal/models"
	"campusbot/internal/providers"
	"campusbot/internal/services"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// maxStreamDuration bounds a streamed request after the handler returned
const maxStreamDuration = 5 * time.Minute

// ChatHandler serves the chat endpoints
type ChatHandler struct {
	chatService *services.ChatService
	resolver    *SettingsResolver
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService, resolver *SettingsResolver) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		resolver:    resolver,
	}
}

// Message answers one user message
// POST /api/chat/message, /api/chat/prompt, /api/chat/prompt_public
func (h *ChatHandler) Message(c *fiber.Ctx) error {
	var req models.MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	settings, err := h.resolver.Resolve(c)
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	reply, err := h.chatService.HandleMessage(ctx, principal(c), req.ChatID, req.Message, settings,
		services.WithLogger(requestLogger(c, req.ChatID)))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(models.MessageResponse{
		Success:  true,
		ChatID:   reply.ChatID,
		Message:  reply.Message,
		Provider: string(reply.Provider),
	})
}

// Stream answers one message as server-sent events: a status event per
// provider attempt, then content and complete, or a single error event.
// POST /api/chat/prompt/stream
func (h *ChatHandler) Stream(c *fiber.Ctx) error {
	var req models.MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Message) == "" {
		return respondError(c, services.ErrEmptyMessage)
	}

	settings, err := h.resolver.Resolve(c)
	if err != nil {
		return respondError(c, err)
	}

	// fiber recycles the Ctx once the handler returns
	caller := principal(c)
	logger := requestLogger(c, req.ChatID)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithTimeout(context.Background(), maxStreamDuration)
		defer cancel()

		send := func(event string, data interface{}) {
			if err := writeEvent(w, event, data); err != nil {
				// client went away
				cancel()
			}
		}

		hook := services.WithAttemptHook(func(index int, kind providers.Kind) {
			send("status", fiber.Map{
				"attempt":  index + 1,
				"provider": kind,
				"message":  fmt.Sprintf("Asking %s...", kind.DisplayName()),
			})
		})

		reply, err := h.chatService.HandleMessage(ctx, caller, req.ChatID, req.Message, settings,
			services.WithLogger(logger), hook)
		if err != nil {
			_, body := errorBody(err)
			send("error", body)
			return
		}

		send("content", models.MessageResponse{
			Success:  true,
			ChatID:   reply.ChatID,
			Message:  reply.Message,
			Provider: string(reply.Provider),
		})
		send("complete", fiber.Map{"chat_id": reply.ChatID})
	})

	return nil
}

func writeEvent(w *bufio.Writer, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("❌ [CHAT] Failed to encode %s event: %v", event, err)
		return nil
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return w.Flush()
}

// List returns the caller's chats, most recent first
// GET /api/chat/
func (h *ChatHandler) List(c *fiber.Ctx) error {
	chats, err := h.chatService.ListChats(c.UserContext(), principal(c))
	if err != nil {
		return respondError(c, err)
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	return c.JSON(fiber.Map{
		"success": true,
		"chats":   chats,
	})
}

// Messages returns a chat with its full history
// GET /api/chat/messages/:id
func (h *ChatHandler) Messages(c *fiber.Ctx) error {
	chat, err := h.chatService.GetChat(c.UserContext(), principal(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(chat)
}

// Rename changes a chat's title
// PUT /api/chat/rename/:id
func (h *ChatHandler) Rename(c *fiber.Ctx) error {
	var req models.RenameChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if err := h.chatService.RenameChat(c.UserContext(), principal(c), c.Params("id"), req.Title); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Archive hides a chat from the list
// DELETE /api/chat/archive/:id
func (h *ChatHandler) Archive(c *fiber.Ctx) error {
	if err := h.chatService.ArchiveChat(c.UserContext(), principal(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
