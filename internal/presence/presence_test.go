package presence_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"chat-relay/internal/presence"
	"chat-relay/internal/store/storetest"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu    sync.Mutex
	conns map[string]map[string]bool
	err   error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{conns: make(map[string]map[string]bool)}
}

func (m *memoryCache) AddConnection(_ context.Context, userID, connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.conns[userID] == nil {
		m.conns[userID] = make(map[string]bool)
	}
	m.conns[userID][connID] = true
	return nil
}

func (m *memoryCache) RemoveConnection(_ context.Context, userID, connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.conns[userID], connID)
	return nil
}

func (m *memoryCache) CountConnections(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns[userID]), m.err
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestTracker_ConnectDisconnect(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := storetest.SeedUser(t, s, "user1")
	cache := newMemoryCache()
	tracker := presence.NewTracker(s, cache, quietLogger())

	connectTime := time.Now().UTC().Add(-time.Millisecond)
	tracker.OnConnect(ctx, u.ID, "c1")

	status, err := tracker.Status(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, status.IsOnline)
	assert.Equal(t, 1, status.Connections)

	tracker.OnDisconnect(ctx, u.ID, "c1")

	status, err = tracker.Status(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, status.IsOnline)
	assert.Equal(t, 0, status.Connections)
	assert.False(t, status.LastSeen.Before(connectTime), "lastSeen %s before connect %s", status.LastSeen, connectTime)
}

func TestTracker_FailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	cache := newMemoryCache()
	cache.err = errors.New("redis down")
	tracker := presence.NewTracker(s, cache, quietLogger())

	assert.NotPanics(t, func() {
		tracker.OnConnect(ctx, "no-such-user", "c1")
		tracker.OnDisconnect(ctx, "no-such-user", "c1")
	})

	_, err := tracker.Connections(ctx, "no-such-user")
	assert.Error(t, err)
}

func TestTracker_WithoutCache(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := storetest.SeedUser(t, s, "user1")
	tracker := presence.NewTracker(s, nil, quietLogger())

	tracker.OnConnect(ctx, u.ID, "c1")
	tracker.OnConnect(ctx, u.ID, "c2")
	n, err := tracker.Connections(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tracker.OnDisconnect(ctx, u.ID, "c1")
	status, err := tracker.Status(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, status.IsOnline)
	assert.Equal(t, 1, status.Connections)

	tracker.OnDisconnect(ctx, u.ID, "c2")
	status, err = tracker.Status(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, status.IsOnline)
	assert.Equal(t, 0, status.Connections)
}

func TestTracker_StaysOnlineWhileAnotherConnectionIsOpen(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := storetest.SeedUser(t, s, "user1")
	cache := newMemoryCache()
	tracker := presence.NewTracker(s, cache, quietLogger())

	tracker.OnConnect(ctx, u.ID, "phone")
	tracker.OnConnect(ctx, u.ID, "laptop")

	tracker.OnDisconnect(ctx, u.ID, "phone")
	status, err := tracker.Status(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, status.IsOnline)
	assert.Equal(t, 1, status.Connections)

	tracker.OnDisconnect(ctx, u.ID, "laptop")
	status, err = tracker.Status(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, status.IsOnline)
}
