package jobs

import (
	"campusbot/internal/knowledge"
	"campusbot/internal/services"
	"context"
)

// KnowledgeReindex periodically rebuilds the knowledge base index. It
// catches changes the file watcher missed, such as edits on network mounts.
type KnowledgeReindex struct {
	base    *knowledge.Base
	metrics *services.Metrics
}

// NewKnowledgeReindex creates the reindex job. metrics may be nil.
func NewKnowledgeReindex(base *knowledge.Base, metrics *services.Metrics) *KnowledgeReindex {
	return &KnowledgeReindex{base: base, metrics: metrics}
}

// Run reloads every document
func (k *KnowledgeReindex) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := k.base.Reload(); err != nil {
		return err
	}
	k.metrics.SetKnowledgeDocuments(len(k.base.Documents()))
	return nil
}
