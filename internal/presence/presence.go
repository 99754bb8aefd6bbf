// Package presence keeps the online flag and last-seen time of users in step
// with their connections.
package presence

import (
	"context"
	"sync"
	"time"

	"chat-relay/internal/domain"

	"github.com/sirupsen/logrus"
)

type Store interface {
	FindUser(ctx context.Context, id string) (*domain.User, error)
	UpdatePresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
}

// ConnectionCache counts a user's live connections across processes.
type ConnectionCache interface {
	AddConnection(ctx context.Context, userID, connID string) error
	RemoveConnection(ctx context.Context, userID, connID string) error
	CountConnections(ctx context.Context, userID string) (int, error)
}

// Status is the presence view served to clients.
type Status struct {
	UserID      string    `json:"userId"`
	IsOnline    bool      `json:"isOnline"`
	LastSeen    time.Time `json:"lastSeen"`
	Connections int       `json:"connections"`
}

// Tracker marks a user offline only when their last connection closes.
type Tracker struct {
	store Store
	cache ConnectionCache
	log   logrus.FieldLogger
	now   func() time.Time

	// local counts connections per user when no cache is configured.
	mu    sync.Mutex
	local map[string]int
}

// NewTracker builds a tracker. cache may be nil in single-process mode, in
// which case connections are counted in this process.
func NewTracker(store Store, cache ConnectionCache, log logrus.FieldLogger) *Tracker {
	return &Tracker{
		store: store,
		cache: cache,
		log:   log.WithField("component", "presence"),
		now:   func() time.Time { return time.Now().UTC() },
		local: make(map[string]int),
	}
}

// OnConnect marks userID online. Failures are logged only.
func (t *Tracker) OnConnect(ctx context.Context, userID, connID string) {
	log := t.log.WithFields(logrus.Fields{"user_id": userID, "conn_id": connID})
	if err := t.store.UpdatePresence(ctx, userID, true, t.now()); err != nil {
		log.WithError(err).Warn("Failed to mark user online")
	}
	if t.cache == nil {
		t.mu.Lock()
		t.local[userID]++
		t.mu.Unlock()
	} else if err := t.cache.AddConnection(ctx, userID, connID); err != nil {
		log.WithError(err).Warn("Failed to cache connection")
	}
	log.Debug("User connected")
}

// OnDisconnect drops connID and, once userID has no connection left, marks
// the user offline with the time it was last seen. Failures are logged only.
func (t *Tracker) OnDisconnect(ctx context.Context, userID, connID string) {
	log := t.log.WithFields(logrus.Fields{"user_id": userID, "conn_id": connID})
	if n := t.release(ctx, userID, connID, log); n > 0 {
		log.WithField("connections", n).Debug("User still connected elsewhere")
		return
	}
	if err := t.store.UpdatePresence(ctx, userID, false, t.now()); err != nil {
		log.WithError(err).Warn("Failed to mark user offline")
	}
	log.Debug("User disconnected")
}

// release removes connID and returns how many connections userID still has.
// Cache failures count as none left.
func (t *Tracker) release(ctx context.Context, userID, connID string, log logrus.FieldLogger) int {
	if t.cache == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		n := t.local[userID] - 1
		if n <= 0 {
			delete(t.local, userID)
			return 0
		}
		t.local[userID] = n
		return n
	}

	if err := t.cache.RemoveConnection(ctx, userID, connID); err != nil {
		log.WithError(err).Warn("Failed to drop cached connection")
		return 0
	}
	n, err := t.cache.CountConnections(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Failed to count connections")
		return 0
	}
	return n
}

// Connections returns how many live connections userID has.
func (t *Tracker) Connections(ctx context.Context, userID string) (int, error) {
	if t.cache == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.local[userID], nil
	}
	return t.cache.CountConnections(ctx, userID)
}

// Status returns the presence of userID.
func (t *Tracker) Status(ctx context.Context, userID string) (*Status, error) {
	u, err := t.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	n, err := t.Connections(ctx, userID)
	if err != nil {
		t.log.WithError(err).WithField("user_id", userID).Warn("Failed to count connections")
	}
	return &Status{UserID: u.ID, IsOnline: u.IsOnline, LastSeen: u.LastSeen, Connections: n}, nil
}
