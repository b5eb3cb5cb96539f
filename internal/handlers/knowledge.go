package handlers

import (
	"campusbot/internal/knowledge"
	"campusbot/internal/models"
	"campusbot/internal/services"
	"log"

	"github.com/gofiber/fiber/v2"
)

// KnowledgeHandler serves the knowledge base admin endpoints
type KnowledgeHandler struct {
	base    *knowledge.Base
	metrics *services.Metrics
}

// NewKnowledgeHandler creates a new knowledge handler. metrics may be nil.
func NewKnowledgeHandler(base *knowledge.Base, metrics *services.Metrics) *KnowledgeHandler {
	return &KnowledgeHandler{base: base, metrics: metrics}
}

// Upload stores a document in a category
// POST /api/knowledge/upload (multipart: file, category)
func (h *KnowledgeHandler) Upload(c *fiber.Ctx) error {
	category, err := knowledge.ParseCategory(c.FormValue("category"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Printf("❌ [UPLOAD] Failed to parse file: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided or invalid file",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Printf("❌ [UPLOAD] Failed to open file: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process file",
		})
	}
	defer file.Close()

	doc, err := h.base.Save(category, fileHeader.Filename, file)
	if err != nil {
		log.Printf("⚠️  [UPLOAD] Rejected %s: %v", fileHeader.Filename, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.metrics.SetKnowledgeDocuments(len(h.base.Documents()))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"document": doc,
	})
}

// Documents lists every indexed document
// GET /api/knowledge/documents
func (h *KnowledgeHandler) Documents(c *fiber.Ctx) error {
	docs := h.base.Documents()
	if docs == nil {
		docs = []models.KnowledgeDocument{}
	}
	return c.JSON(fiber.Map{
		"documents": docs,
		"total":     len(docs),
	})
}

// Reindex reloads the knowledge base from disk
// POST /api/knowledge/reindex
func (h *KnowledgeHandler) Reindex(c *fiber.Ctx) error {
	if err := h.base.Reload(); err != nil {
		log.Printf("❌ [KNOWLEDGE] Reindex failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reindex knowledge base",
		})
	}

	total := len(h.base.Documents())
	h.metrics.SetKnowledgeDocuments(total)
	return c.JSON(fiber.Map{
		"success": true,
		"total":   total,
	})
}
