package sessions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/orbit-agents/orbit/internal/observability"
	"github.com/orbit-agents/orbit/pkg/models"
)

// CachedStore layers an in-memory hot tier over a durable store. Reads hit
// memory first and fall back to the durable tier, repopulating memory on a
// hit. Writes go to both tiers; a durable-tier failure is logged and counted
// but does not fail the call, so a session survives its run on the hot tier
// and loses only durability, not progress.
type CachedStore struct {
	hot     *MemoryStore
	durable Store
	logger  *slog.Logger
}

// NewCachedStore wraps durable with a fresh memory tier.
func NewCachedStore(durable Store, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		hot:     NewMemoryStore(),
		durable: durable,
		logger:  logger,
	}
}

func (c *CachedStore) Create(ctx context.Context, session *models.Session) error {
	if err := c.hot.Create(ctx, session); err != nil {
		return err
	}
	c.writeThrough(ctx, "create", session.ID, func() error {
		return c.durable.Create(ctx, session)
	})
	return nil
}

func (c *CachedStore) Get(ctx context.Context, id string) (*models.Session, error) {
	if session, err := c.hot.Get(ctx, id); err == nil {
		return session, nil
	}
	session, err := c.durable.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.repopulate(ctx, session)
	return session, nil
}

func (c *CachedStore) Update(ctx context.Context, session *models.Session) error {
	err := c.hot.Update(ctx, session)
	if errors.Is(err, ErrSessionNotFound) {
		// Evicted from the hot tier; restore it so subsequent reads are warm.
		err = c.hot.Create(ctx, session)
	}
	if err != nil {
		return err
	}
	c.writeThrough(ctx, "update", session.ID, func() error {
		return c.durable.Update(ctx, session)
	})
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, id string) error {
	if err := c.hot.Delete(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	c.writeThrough(ctx, "delete", id, func() error {
		return c.durable.Delete(ctx, id)
	})
	return nil
}

// List reads the durable tier; listings span sessions long evicted from
// memory. It degrades to the hot tier when the durable read fails.
func (c *CachedStore) List(ctx context.Context, ownerID string, opts ListOptions) ([]*models.Session, error) {
	out, err := c.durable.List(ctx, ownerID, opts)
	if err != nil {
		c.logger.Warn("durable list failed, serving hot tier", "error", err)
		return c.hot.List(ctx, ownerID, opts)
	}
	return out, nil
}

func (c *CachedStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if err := c.hot.AppendMessage(ctx, sessionID, msg); err != nil {
		return err
	}
	c.writeThrough(ctx, "append_message", sessionID, func() error {
		return c.durable.AppendMessage(ctx, sessionID, msg)
	})
	return nil
}

func (c *CachedStore) History(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	if history, err := c.hot.History(ctx, sessionID, limit); err == nil {
		return history, nil
	}
	return c.durable.History(ctx, sessionID, limit)
}

// StartJanitor evicts idle hot-tier sessions every interval until ctx ends.
// Evicted sessions remain readable from the durable tier.
func (c *CachedStore) StartJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.hot.EvictIdle(time.Now().Add(-maxIdle)); n > 0 {
					c.logger.Debug("evicted idle sessions", "count", n)
				}
			}
		}
	}()
}

func (c *CachedStore) writeThrough(ctx context.Context, op, sessionID string, fn func() error) {
	if c.durable == nil {
		return
	}
	if err := fn(); err != nil {
		observability.RecordPersistenceFailure()
		c.logger.Error("durable store write failed", "op", op, "session_id", sessionID, "error", err)
	}
}

func (c *CachedStore) repopulate(ctx context.Context, session *models.Session) {
	if err := c.hot.Create(ctx, session); err != nil {
		return
	}
	history, err := c.durable.History(ctx, session.ID, 0)
	if err != nil {
		return
	}
	for _, msg := range history {
		_ = c.hot.AppendMessage(ctx, session.ID, msg)
	}
}
