package sessions

import (
	"context"

	"github.com/orbit-agents/orbit/internal/compaction"
	"github.com/orbit-agents/orbit/pkg/models"
)

// BoundedHistory loads a session's messages and bounds them before anything
// downstream sees them: the most recent limit messages come back verbatim and
// everything older is folded into the returned digest. The digest is recorded
// on the session snapshot so inspection tools see it and it survives
// restarts; the caller persists the session on its next write.
func BoundedHistory(ctx context.Context, store Store, session *models.Session, limit int) (string, []models.Message, error) {
	history, err := store.History(ctx, session.ID, 0)
	if err != nil {
		return "", nil, err
	}
	flat := make([]models.Message, len(history))
	for i, msg := range history {
		flat[i] = *msg
	}

	summary, kept := compaction.Bound(flat, limit)
	session.Summary = summary
	return summary, kept, nil
}
