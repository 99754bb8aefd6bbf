package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"chat-relay/internal/auth"
	"chat-relay/internal/chat"
	"chat-relay/internal/codec"
	"chat-relay/internal/domain"
	"chat-relay/internal/ephemeral"
	"chat-relay/internal/gateway"
	"chat-relay/internal/presence"
	"chat-relay/internal/relay"
	"chat-relay/internal/room"
	"chat-relay/internal/store"
	"chat-relay/internal/store/storetest"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type written struct {
	messageType int
	data        []byte
}

// fakeConn is an in-memory transport. Frames pushed with send are read by
// the gateway; everything the gateway writes lands in out.
type fakeConn struct {
	in        chan []byte
	out       chan written
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan written, 256),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case raw := <-f.in:
		return websocket.TextMessage, raw, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return io.ErrClosedPipe
	default:
	}
	f.out <- written{messageType: messageType, data: data}
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) send(t *testing.T, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	require.NoError(t, err)
	f.in <- raw
}

// expect reads frames until one named event arrives.
func (f *fakeConn) expect(t *testing.T, event string) json.RawMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case w := <-f.out:
			if w.messageType != websocket.TextMessage {
				continue
			}
			var frame domain.Frame
			require.NoError(t, json.Unmarshal(w.data, &frame))
			if frame.Event == event {
				return frame.Data
			}
		case <-deadline:
			t.Fatalf("no %q frame within 2s", event)
			return nil
		}
	}
}

// quiet asserts that no frame named event arrives within d.
func (f *fakeConn) quiet(t *testing.T, event string, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case w := <-f.out:
			var frame domain.Frame
			if json.Unmarshal(w.data, &frame) == nil && frame.Event == event {
				t.Fatalf("unexpected %q frame: %s", event, frame.Data)
			}
		case <-deadline:
			return
		}
	}
}

type harness struct {
	store   *store.Store
	relay   *relay.Local
	tokens  *auth.JWTManager
	chat    *chat.Broadcaster
	gateway *gateway.Gateway
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := storetest.New(t)
	local := relay.NewLocal()
	log := quietLogger()
	tokens := auth.NewJWTManager(auth.JWTConfig{SecretKey: "secret", AccessTokenDuration: time.Hour})

	broadcaster := chat.NewBroadcaster(s, codec.New(1000), local, nil, chat.Config{MaxMessageLength: 5000}, log)
	gw := gateway.New(
		auth.NewVerifier(tokens, nil, s, log),
		local,
		room.NewRouter(local, s),
		broadcaster,
		presence.NewTracker(s, nil, log),
		ephemeral.NewChannel(local, log),
		gateway.Config{SendBufferSize: 64},
		log,
	)
	return &harness{store: s, relay: local, tokens: tokens, chat: broadcaster, gateway: gw}
}

type client struct {
	*fakeConn
	user *domain.User
	done chan struct{}
}

// connect serves a new connection for u and waits for the connected frame.
func (h *harness) connect(t *testing.T, u *domain.User) *client {
	t.Helper()
	token, err := h.tokens.GenerateAccessToken(u.ID, u.Username)
	require.NoError(t, err)

	c := &client{fakeConn: newFakeConn(), user: u, done: make(chan struct{})}
	go func() {
		defer close(c.done)
		h.gateway.Serve(context.Background(), c.fakeConn, token)
	}()
	t.Cleanup(func() {
		_ = c.Close()
		<-c.done
	})

	var payload domain.ConnectedPayload
	require.NoError(t, json.Unmarshal(c.expect(t, domain.EventConnected), &payload))
	require.Equal(t, u.ID, payload.UserID)
	return c
}

func (c *client) disconnect(t *testing.T) {
	t.Helper()
	_ = c.Close()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after close")
	}
}

func TestServe_RejectsBadHandshake(t *testing.T) {
	h := newHarness(t)
	conn := newFakeConn()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.gateway.Serve(context.Background(), conn, "")
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after rejected handshake")
	}

	first := <-conn.out
	var frame domain.Frame
	require.NoError(t, json.Unmarshal(first.data, &frame))
	assert.Equal(t, domain.EventConnectError, frame.Event)
	assert.JSONEq(t, `{"message":"Authentication error: No token provided"}`, string(frame.Data))

	closing := <-conn.out
	assert.Equal(t, websocket.CloseMessage, closing.messageType)
	assert.Equal(t, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Authentication error: No token provided"), closing.data)
}

func TestServe_PrivateMessageScenario(t *testing.T) {
	h := newHarness(t)
	user1 := storetest.SeedUser(t, h.store, "user1")
	user2 := storetest.SeedUser(t, h.store, "user2")
	a := h.connect(t, user1)
	b := h.connect(t, user2)

	a.send(t, domain.EventJoinPrivateChat, map[string]string{"recipientId": user2.ID})
	var joined domain.JoinedPrivateChatPayload
	require.NoError(t, json.Unmarshal(a.expect(t, domain.EventJoinedPrivateChat), &joined))
	assert.Equal(t, room.Private(user1.ID, user2.ID), joined.Room)

	b.send(t, domain.EventJoinPrivateChat, map[string]string{"recipientId": user1.ID})
	b.expect(t, domain.EventJoinedPrivateChat)

	a.send(t, domain.EventSendPrivateMessage, map[string]string{"recipientId": user2.ID, "content": "hi"})

	for _, c := range []*client{a, b} {
		var payload domain.NewMessagePayload
		require.NoError(t, json.Unmarshal(c.expect(t, domain.EventNewPrivateMessage), &payload))
		assert.Equal(t, "hi", payload.Message.Content)
		assert.Equal(t, "user1", payload.Message.Sender.Username)
	}
}

func TestServe_GroupAccessDenied(t *testing.T) {
	h := newHarness(t)
	member := storetest.SeedUser(t, h.store, "member")
	outsider := storetest.SeedUser(t, h.store, "outsider")
	g := storetest.SeedGroup(t, h.store, "team", []string{member.ID}, nil)

	m := h.connect(t, member)
	o := h.connect(t, outsider)

	o.send(t, domain.EventJoinGroupChat, map[string]string{"groupId": g.ID})
	assert.JSONEq(t, `{"message":"Access denied to group"}`, string(o.expect(t, domain.EventError)))

	m.send(t, domain.EventJoinGroupChat, map[string]string{"groupId": g.ID})
	m.expect(t, domain.EventJoinedGroupChat)
	m.send(t, domain.EventSendGroupMessage, map[string]string{"groupId": g.ID, "content": "members only"})
	m.expect(t, domain.EventNewGroupMessage)

	o.quiet(t, domain.EventNewGroupMessage, 50*time.Millisecond)
}

func TestServe_ErrorBoundary(t *testing.T) {
	h := newHarness(t)
	u := storetest.SeedUser(t, h.store, "user1")
	c := h.connect(t, u)

	c.in <- []byte("not json")
	assert.JSONEq(t, `{"message":"Invalid event payload"}`, string(c.expect(t, domain.EventError)))

	c.send(t, "shout", nil)
	assert.JSONEq(t, `{"message":"Unknown event: shout"}`, string(c.expect(t, domain.EventError)))

	c.send(t, domain.EventSendPrivateMessage, map[string]string{"recipientId": "", "content": "x"})
	assert.JSONEq(t, `{"message":"Recipient ID and content are required"}`, string(c.expect(t, domain.EventError)))

	c.send(t, domain.EventAddReaction, map[string]string{"messageId": "m1", "reaction": "wow"})
	assert.JSONEq(t, `{"message":"Invalid message ID or reaction"}`, string(c.expect(t, domain.EventError)))

	c.send(t, domain.EventMarkMessageAsRead, map[string]string{"messageId": "missing"})
	c.quiet(t, domain.EventError, 50*time.Millisecond)

	// The connection survives every failure above.
	c.send(t, domain.EventPing, nil)
	var pong domain.PongPayload
	require.NoError(t, json.Unmarshal(c.expect(t, domain.EventPong), &pong))
	_, err := time.Parse(time.RFC3339, pong.Timestamp)
	assert.NoError(t, err)
}

func TestServe_LeaveChat(t *testing.T) {
	h := newHarness(t)
	u := storetest.SeedUser(t, h.store, "user1")
	c := h.connect(t, u)

	c.send(t, domain.EventJoinPrivateChat, map[string]string{"recipientId": "other"})
	var joined domain.JoinedPrivateChatPayload
	require.NoError(t, json.Unmarshal(c.expect(t, domain.EventJoinedPrivateChat), &joined))

	c.send(t, domain.EventLeaveChat, map[string]string{"room": joined.Room})
	assert.JSONEq(t, `{"room":"`+joined.Room+`"}`, string(c.expect(t, domain.EventLeftChat)))

	require.NoError(t, relay.Publish(context.Background(), h.relay, joined.Room, "afterLeave", nil))
	c.quiet(t, "afterLeave", 50*time.Millisecond)

	c.send(t, domain.EventLeaveChat, map[string]string{"room": room.User(u.ID)})
	assert.JSONEq(t, `{"message":"Not joined to room"}`, string(c.expect(t, domain.EventError)))
}

func TestServe_TypingInGroup(t *testing.T) {
	h := newHarness(t)
	alice := storetest.SeedUser(t, h.store, "alice")
	bob := storetest.SeedUser(t, h.store, "bob")
	g := storetest.SeedGroup(t, h.store, "team", []string{alice.ID, bob.ID}, nil)

	a := h.connect(t, alice)
	b := h.connect(t, bob)
	for _, c := range []*client{a, b} {
		c.send(t, domain.EventJoinGroupChat, map[string]string{"groupId": g.ID})
		c.expect(t, domain.EventJoinedGroupChat)
	}

	a.send(t, domain.EventTyping, map[string]string{"chatType": "group", "groupId": g.ID})
	var payload domain.TypingPayload
	require.NoError(t, json.Unmarshal(b.expect(t, domain.EventUserTyping), &payload))
	assert.Equal(t, domain.TypingPayload{UserID: alice.ID, Username: "alice"}, payload)
	a.quiet(t, domain.EventUserTyping, 50*time.Millisecond)

	a.send(t, domain.EventStopTyping, map[string]string{"chatType": "private", "recipientId": bob.ID})
	b.expect(t, domain.EventUserStoppedTyping)
}

func TestServe_DisconnectCleansUp(t *testing.T) {
	h := newHarness(t)
	u := storetest.SeedUser(t, h.store, "user1")
	connectTime := time.Now().UTC().Add(-time.Millisecond)
	c := h.connect(t, u)

	online, err := h.store.FindUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, online.IsOnline)

	c.send(t, domain.EventJoinPrivateChat, map[string]string{"recipientId": "other"})
	var joined domain.JoinedPrivateChatPayload
	require.NoError(t, json.Unmarshal(c.expect(t, domain.EventJoinedPrivateChat), &joined))

	c.disconnect(t)

	offline, err := h.store.FindUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, offline.IsOnline)
	assert.False(t, offline.LastSeen.Before(connectTime))

	for _, address := range []string{joined.Room, room.User(u.ID)} {
		assert.Zero(t, h.relay.Count(address), address)
	}
}

func TestServe_RemovedMemberLeavesGroupRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := storetest.SeedUser(t, h.store, "admin")
	member := storetest.SeedUser(t, h.store, "member")
	g, err := h.chat.CreateGroup(ctx, identity(admin), "team", []string{member.ID})
	require.NoError(t, err)

	a := h.connect(t, admin)
	m := h.connect(t, member)
	for _, c := range []*client{a, m} {
		c.send(t, domain.EventJoinGroupChat, map[string]string{"groupId": g.ID})
		c.expect(t, domain.EventJoinedGroupChat)
	}
	require.Equal(t, 2, h.relay.Count(room.Group(g.ID)))

	_, err = h.chat.RemoveMember(ctx, admin.ID, g.ID, member.ID)
	require.NoError(t, err)

	var removed domain.MemberPayload
	require.NoError(t, json.Unmarshal(m.expect(t, domain.EventMemberRemoved), &removed))
	assert.Equal(t, member.ID, removed.UserID)
	require.Eventually(t, func() bool {
		return h.relay.Count(room.Group(g.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	a.send(t, domain.EventSendGroupMessage, map[string]string{"groupId": g.ID, "content": "members only"})
	a.expect(t, domain.EventNewGroupMessage)
	m.quiet(t, domain.EventNewGroupMessage, 100*time.Millisecond)

	m.send(t, domain.EventSendGroupMessage, map[string]string{"groupId": g.ID, "content": "still here?"})
	var denied domain.ErrorPayload
	require.NoError(t, json.Unmarshal(m.expect(t, domain.EventError), &denied))
	assert.Equal(t, "Access denied to group", denied.Message)
}

func TestServe_DeletedGroupEmptiesRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := storetest.SeedUser(t, h.store, "admin")
	member := storetest.SeedUser(t, h.store, "member")
	g, err := h.chat.CreateGroup(ctx, identity(admin), "team", []string{member.ID})
	require.NoError(t, err)

	m := h.connect(t, member)
	m.send(t, domain.EventJoinGroupChat, map[string]string{"groupId": g.ID})
	m.expect(t, domain.EventJoinedGroupChat)

	require.NoError(t, h.chat.DeleteGroup(ctx, admin.ID, g.ID))
	m.expect(t, domain.EventGroupDeleted)
	require.Eventually(t, func() bool {
		return h.relay.Count(room.Group(g.ID)) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func identity(u *domain.User) domain.Identity {
	return domain.Identity{UserID: u.ID, Username: u.Username, Status: u.Status}
}
