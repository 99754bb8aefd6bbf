package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client to server event names.
const (
	EventJoinPrivateChat    = "joinPrivateChat"
	EventJoinGroupChat      = "joinGroupChat"
	EventLeaveChat          = "leaveChat"
	EventSendPrivateMessage = "sendPrivateMessage"
	EventSendGroupMessage   = "sendGroupMessage"
	EventMarkMessageAsRead  = "markMessageAsRead"
	EventAddReaction        = "addReaction"
	EventTyping             = "typing"
	EventStopTyping         = "stopTyping"
	EventPing               = "ping"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event")
)

// ClientEvent is the closed set of events a connection may send. The
// unexported marker keeps implementations inside this package.
type ClientEvent interface {
	clientEvent()
}

type JoinPrivateChat struct {
	RecipientID string `json:"recipientId"`
}

type JoinGroupChat struct {
	GroupID string `json:"groupId"`
}

type LeaveChat struct {
	Room string `json:"room"`
}

type SendPrivateMessage struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

type SendGroupMessage struct {
	GroupID string `json:"groupId"`
	Content string `json:"content"`
}

type MarkMessageAsRead struct {
	MessageID string `json:"messageId"`
}

type AddReaction struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
}

// Typing carries both typing and stopTyping; Stop is set from the event name.
type Typing struct {
	ChatType    ChatType `json:"chatType"`
	RecipientID string   `json:"recipientId,omitempty"`
	GroupID     string   `json:"groupId,omitempty"`
	Stop        bool     `json:"-"`
}

type Ping struct{}

func (JoinPrivateChat) clientEvent()    {}
func (JoinGroupChat) clientEvent()      {}
func (LeaveChat) clientEvent()          {}
func (SendPrivateMessage) clientEvent() {}
func (SendGroupMessage) clientEvent()   {}
func (MarkMessageAsRead) clientEvent()  {}
func (AddReaction) clientEvent()        {}
func (Typing) clientEvent()             {}
func (Ping) clientEvent()               {}

// DecodeClientEvent parses a raw websocket frame into its typed event.
func DecodeClientEvent(raw []byte) (string, ClientEvent, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var ev ClientEvent
	switch frame.Event {
	case EventJoinPrivateChat:
		var e JoinPrivateChat
		if err := decodeData(frame.Data, &e); err != nil {
			return frame.Event, nil, err
		}
		ev = e
	case EventJoinGroupChat:
		var e JoinGroupChat
		if err := decodeData(frame.Data, &e); err != nil {
			return frame.Event, nil, err
		}
		ev = e
	case EventLeaveChat:
		var e LeaveChat
		if err := decodeData(frame.Data, &e); err != nil {
			return frame.Event, nil, err
		}
		ev = e
	case EventSendPrivateMessage:
		var e SendPrivateMessage
		if err := decodeData(frame.Data, &e); err != nil {
			return frame.Event, nil, err
		}
		ev = e
	case EventSendGroupMessage:
		var e SendGroupMessage
		if err := decodeData(frame.Data, &e); err != nil {
			return frame.Event, nil, err
		}
		ev = e
	case EventMarkMessageAsRead:
		var e MarkMessageAsRead
		if err := decodeData(frame.Data, &e); err != nil {
			return frame.Event, nil, err
		}
		ev = e
	case EventAddReaction:
		var e AddReaction
		if err := decodeData(frame.Data, &e); err != nil {
			return frame.Event, nil, err
		}
		ev = e
	case EventTyping, EventStopTyping:
		var e Typing
		if err := decodeData(frame.Data, &e); err != nil {
			return frame.Event, nil, err
		}
		e.Stop = frame.Event == EventStopTyping
		ev = e
	case EventPing:
		ev = Ping{}
	default:
		return frame.Event, nil, fmt.Errorf("%w: %s", ErrUnknownEvent, frame.Event)
	}
	return frame.Event, ev, nil
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return nil
}
