package models

import "time"

// KnowledgeDocument describes one indexed knowledge base file
type KnowledgeDocument struct {
	Category   string    `json:"category"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Lines      int       `json:"lines"`
	ModifiedAt time.Time `json:"modified_at"`
}
