package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Server to client event names.
const (
	EventConnected            = "connected"
	EventConnectError         = "connect_error"
	EventError                = "error"
	EventPong                 = "pong"
	EventJoinedPrivateChat    = "joinedPrivateChat"
	EventJoinedGroupChat      = "joinedGroupChat"
	EventLeftChat             = "leftChat"
	EventNewPrivateMessage    = "newPrivateMessage"
	EventNewGroupMessage      = "newGroupMessage"
	EventMessageRead          = "messageRead"
	EventMessageReactionAdded = "messageReactionAdded"
	EventMessageEdited        = "messageEdited"
	EventMessageDeleted       = "messageDeleted"
	EventMessagePinned        = "messagePinned"
	EventUserTyping           = "userTyping"
	EventUserStoppedTyping    = "userStoppedTyping"
	EventGroupUpdated         = "groupUpdated"
	EventGroupDeleted         = "groupDeleted"
	EventMemberAdded          = "memberAdded"
	EventMemberRemoved        = "memberRemoved"
)

// Frame is the JSON shape of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame encodes payload as the data of a frame named event.
func NewFrame(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// Envelope is the unit the relay moves between processes. Data is already
// encoded so every process delivers identical bytes.
type Envelope struct {
	ID         string          `json:"id"`
	Address    string          `json:"address"`
	Event      string          `json:"event"`
	Data       json.RawMessage `json:"data"`
	ExceptConn string          `json:"exceptConn,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewEnvelope builds an envelope for address carrying payload.
func NewEnvelope(address, event string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.New().String(),
		Address:   address,
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	}, nil
}

// Frame renders the envelope as a client frame.
func (e Envelope) Frame() ([]byte, error) {
	return json.Marshal(Frame{Event: e.Event, Data: e.Data})
}

// MutationEvent describes a persisted change to a conversation. MessageID is
// the canonical stored id of the message concerned and empty for group
// membership changes.
type MutationEvent struct {
	Name      string      `json:"event"`
	Address   string      `json:"address"`
	MessageID string      `json:"messageId,omitempty"`
	Actor     string      `json:"actor"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Outbound payloads.

type ErrorPayload struct {
	Message string `json:"message"`
}

type ConnectedPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type PongPayload struct {
	Timestamp string `json:"timestamp"`
}

type JoinedPrivateChatPayload struct {
	Room        string `json:"room"`
	RecipientID string `json:"recipientId"`
}

type JoinedGroupChatPayload struct {
	GroupID string `json:"groupId"`
}

type LeftChatPayload struct {
	Room string `json:"room"`
}

type NewMessagePayload struct {
	Message *Message `json:"message"`
}

type MessageReadPayload struct {
	MessageID string `json:"messageId"`
	ReadBy    string `json:"readBy"`
}

type ReactionAddedPayload struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
}

type MessageEditedPayload struct {
	MessageID string    `json:"messageId"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"editedAt"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
	DeletedBy string `json:"deletedBy"`
}

type MessagePinnedPayload struct {
	MessageID string    `json:"messageId"`
	PinnedBy  string    `json:"pinnedBy"`
	PinnedAt  time.Time `json:"pinnedAt"`
}

type GroupUpdatedPayload struct {
	GroupID   string `json:"groupId"`
	Name      string `json:"name"`
	UpdatedBy string `json:"updatedBy"`
}

type GroupDeletedPayload struct {
	GroupID   string `json:"groupId"`
	DeletedBy string `json:"deletedBy"`
}

// MemberPayload announces a membership change of UserID.
type MemberPayload struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
	ActorID string `json:"actorId"`
}

type TypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}
