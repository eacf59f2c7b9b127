package sessions

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbit-agents/orbit/pkg/models"
)

func seededStore(t *testing.T, n int) (*MemoryStore, *models.Session) {
	t.Helper()
	store := NewMemoryStore()
	session := &models.Session{State: models.StateIdle}
	require.NoError(t, store.Create(context.Background(), session))
	for i := 0; i < n; i++ {
		msg := &models.Message{Role: models.RoleUser, Content: fmt.Sprintf("note %d", i)}
		require.NoError(t, store.AppendMessage(context.Background(), session.ID, msg))
	}
	return store, session
}

func TestBoundedHistoryUnderLimit(t *testing.T) {
	store, session := seededStore(t, 5)

	summary, kept, err := BoundedHistory(context.Background(), store, session, 30)
	require.NoError(t, err)
	assert.Empty(t, summary)
	require.Len(t, kept, 5)
	assert.Equal(t, "note 0", kept[0].Content)
}

func TestBoundedHistoryFoldsAndRecordsDigest(t *testing.T) {
	store, session := seededStore(t, 40)

	summary, kept, err := BoundedHistory(context.Background(), store, session, 30)
	require.NoError(t, err)
	require.Len(t, kept, 30)
	assert.Equal(t, "note 10", kept[0].Content)
	assert.Contains(t, summary, "note 0")
	assert.Equal(t, summary, session.Summary, "digest is recorded on the session snapshot")
}

func TestBoundedHistoryIsStableAcrossTurns(t *testing.T) {
	store, session := seededStore(t, 40)
	ctx := context.Background()

	first, _, err := BoundedHistory(ctx, store, session, 30)
	require.NoError(t, err)

	// Another turn lands; re-bounding must not duplicate digest lines for
	// messages that were already folded.
	require.NoError(t, store.AppendMessage(ctx, session.ID, &models.Message{Role: models.RoleUser, Content: "note 40"}))
	second, _, err := BoundedHistory(ctx, store, session, 30)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(second, "note 0\n"), "oldest message folded exactly once")
	assert.Equal(t, 1, strings.Count(first, "note 0\n"))
	assert.Contains(t, second, "note 10", "newly evicted message joins the digest")
}

func TestBoundedHistoryMissingSession(t *testing.T) {
	store := NewMemoryStore()
	_, _, err := BoundedHistory(context.Background(), store, &models.Session{ID: "nope"}, 30)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
