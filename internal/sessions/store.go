// Package sessions persists conversation sessions and their message history.
package sessions

import (
	"context"
	"errors"

	"github.com/orbit-agents/orbit/pkg/models"
)

// ErrSessionNotFound is returned when a session id resolves to nothing.
var ErrSessionNotFound = errors.New("session not found")

// Store is the persistence contract the orchestrator depends on. Message
// history is append-only and ordered by ordinal; session rows are full
// snapshots where the last write wins.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, ownerID string, opts ListOptions) ([]*models.Session, error)

	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error
	History(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
}

// ListOptions configures session listing.
type ListOptions struct {
	// State filters to sessions in the given state when non-empty.
	State models.SessionState
	Limit int
}
