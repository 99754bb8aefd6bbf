package room_test

import (
	"context"
	"testing"
	"time"

	"chat-relay/internal/domain"
	"chat-relay/internal/relay"
	"chat-relay/internal/relay/relaytest"
	"chat-relay/internal/room"
	"chat-relay/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivate_IsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"a", "b"},
		{"user-9", "user-10"},
		{"64f1c2", "64f1c1"},
		{"same", "same"},
	}
	for _, p := range pairs {
		assert.Equal(t, room.Private(p[0], p[1]), room.Private(p[1], p[0]))
	}
	assert.Equal(t, "a-b", room.Private("b", "a"))
}

func TestAddresses(t *testing.T) {
	assert.Equal(t, "group:g1", room.Group("g1"))
	assert.Equal(t, "user:u1", room.User("u1"))
}

func TestRouter_JoinPrivate(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	local := relay.NewLocal()
	router := room.NewRouter(local, s)

	aConn := relaytest.NewRecorder()
	bConn := relaytest.NewRecorder()

	joinedA, err := router.JoinPrivate(ctx, aConn, "a", "b")
	require.NoError(t, err)
	joinedB, err := router.JoinPrivate(ctx, bConn, "b", "a")
	require.NoError(t, err)

	assert.Equal(t, "a-b", joinedA.Room)
	assert.Equal(t, "b", joinedA.RecipientID)
	assert.Equal(t, joinedA.Room, joinedB.Room)

	require.NoError(t, relay.Publish(ctx, local, joinedA.Room, "x", nil))
	assert.Equal(t, "x", aConn.Next(t, time.Second).Event)
	assert.Equal(t, "x", bConn.Next(t, time.Second).Event)

	_, err = router.JoinPrivate(ctx, aConn, "a", "")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Equal(t, "Recipient ID is required", domain.PublicMessage(err, ""))
}

func TestRouter_JoinGroup(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	member := storetest.SeedUser(t, s, "member")
	outsider := storetest.SeedUser(t, s, "outsider")
	g := storetest.SeedGroup(t, s, "team", []string{member.ID}, nil)

	local := relay.NewLocal()
	router := room.NewRouter(local, s)

	t.Run("member", func(t *testing.T) {
		conn := relaytest.NewRecorder()
		joined, err := router.JoinGroup(ctx, conn, member.ID, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g.ID, joined.GroupID)
		assert.True(t, local.IsJoined(room.Group(g.ID), conn))
	})

	t.Run("non-member is denied and not subscribed", func(t *testing.T) {
		conn := relaytest.NewRecorder()
		_, err := router.JoinGroup(ctx, conn, outsider.ID, g.ID)
		require.Error(t, err)
		assert.Equal(t, domain.KindAuthorization, domain.KindOf(err))
		assert.Equal(t, "Access denied to group", domain.PublicMessage(err, ""))
		assert.False(t, local.IsJoined(room.Group(g.ID), conn))

		require.NoError(t, relay.Publish(ctx, local, room.Group(g.ID), "x", nil))
		_, ok := conn.Try(50 * time.Millisecond)
		assert.False(t, ok)
	})

	t.Run("unknown group", func(t *testing.T) {
		conn := relaytest.NewRecorder()
		_, err := router.JoinGroup(ctx, conn, member.ID, "missing")
		assert.Equal(t, "Access denied to group", domain.PublicMessage(err, ""))
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := router.JoinGroup(ctx, relaytest.NewRecorder(), member.ID, "")
		assert.Equal(t, "Group ID is required", domain.PublicMessage(err, ""))
	})
}

func TestRouter_Leave(t *testing.T) {
	ctx := context.Background()
	local := relay.NewLocal()
	router := room.NewRouter(local, storetest.New(t))
	conn := relaytest.NewRecorder()

	joined, err := router.JoinPrivate(ctx, conn, "a", "b")
	require.NoError(t, err)

	left, err := router.Leave(ctx, conn, joined.Room)
	require.NoError(t, err)
	assert.Equal(t, "a-b", left.Room)
	assert.False(t, local.IsJoined("a-b", conn))
}
