package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientEvent(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		event string
		want  ClientEvent
	}{
		{
			name:  "join private",
			raw:   `{"event":"joinPrivateChat","data":{"recipientId":"u2"}}`,
			event: EventJoinPrivateChat,
			want:  JoinPrivateChat{RecipientID: "u2"},
		},
		{
			name:  "join group",
			raw:   `{"event":"joinGroupChat","data":{"groupId":"g1"}}`,
			event: EventJoinGroupChat,
			want:  JoinGroupChat{GroupID: "g1"},
		},
		{
			name:  "send group",
			raw:   `{"event":"sendGroupMessage","data":{"groupId":"g1","content":"yo"}}`,
			event: EventSendGroupMessage,
			want:  SendGroupMessage{GroupID: "g1", Content: "yo"},
		},
		{
			name:  "stop typing sets flag",
			raw:   `{"event":"stopTyping","data":{"chatType":"private","recipientId":"u2"}}`,
			event: EventStopTyping,
			want:  Typing{ChatType: ChatPrivate, RecipientID: "u2", Stop: true},
		},
		{
			name:  "missing data decodes to zero value",
			raw:   `{"event":"joinGroupChat"}`,
			event: EventJoinGroupChat,
			want:  JoinGroupChat{},
		},
		{
			name:  "ping",
			raw:   `{"event":"ping"}`,
			event: EventPing,
			want:  Ping{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, ev, err := DecodeClientEvent([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.event, name)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDecodeClientEvent_Errors(t *testing.T) {
	_, _, err := DecodeClientEvent([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrMalformedFrame))

	name, _, err := DecodeClientEvent([]byte(`{"event":"selfDestruct"}`))
	assert.True(t, errors.Is(err, ErrUnknownEvent))
	assert.Equal(t, "selfDestruct", name)

	_, _, err = DecodeClientEvent([]byte(`{"event":"addReaction","data":{"messageId":5}}`))
	assert.True(t, errors.Is(err, ErrMalformedFrame))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Access denied to group", PublicMessage(NewAuthorizationError("Access denied to group"), "fallback"))
	assert.Equal(t, "fallback", PublicMessage(NewInfrastructureError("db down", errors.New("boom")), "fallback"))
	assert.Equal(t, "fallback", PublicMessage(errors.New("plain"), "fallback"))
	assert.Equal(t, KindNotFound, KindOf(NewNotFoundError("Message not found")))
	assert.Equal(t, KindInfrastructure, KindOf(errors.New("plain")))
}

func TestMessageHelpers(t *testing.T) {
	msg := &Message{
		Sender:      PublicUser{ID: "a"},
		RecipientID: "b",
		Reactions:   []Reaction{{UserID: "a", Reaction: "like"}},
		ReadBy:      []ReadReceipt{{UserID: "b"}},
	}
	assert.True(t, msg.HasReaction("a", "like"))
	assert.False(t, msg.HasReaction("a", "love"))
	assert.True(t, msg.IsReadBy("b"))
	assert.False(t, msg.IsReadBy("a"))
	assert.True(t, msg.IsParticipant("a"))
	assert.True(t, msg.IsParticipant("b"))
	assert.False(t, msg.IsParticipant("c"))
	assert.True(t, IsValidReaction("angry"))
	assert.False(t, IsValidReaction("meh"))
}
