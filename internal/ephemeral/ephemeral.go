// Package ephemeral relays signals that are never stored, such as typing
// indicators.
package ephemeral

import (
	"context"

	"chat-relay/internal/domain"
	"chat-relay/internal/relay"
	"chat-relay/internal/room"

	"github.com/sirupsen/logrus"
)

// Origin is the connection a signal comes from.
type Origin interface {
	ID() string
	Joined(address string) bool
}

type Channel struct {
	relay relay.Relay
	log   logrus.FieldLogger
}

func NewChannel(r relay.Relay, log logrus.FieldLogger) *Channel {
	return &Channel{relay: r, log: log.WithField("component", "ephemeral")}
}

// Typing tells the other side of a conversation that from is typing.
func (c *Channel) Typing(ctx context.Context, from domain.Identity, origin Origin, target domain.Typing) {
	c.signal(ctx, origin, target, domain.EventUserTyping, domain.TypingPayload{
		UserID:   from.UserID,
		Username: from.Username,
	})
}

// StopTyping clears a previous Typing signal.
func (c *Channel) StopTyping(ctx context.Context, from domain.Identity, origin Origin, target domain.Typing) {
	c.signal(ctx, origin, target, domain.EventUserStoppedTyping, domain.TypingPayload{UserID: from.UserID})
}

// signal publishes without acknowledgment. Targets that do not resolve to an
// address are ignored.
func (c *Channel) signal(ctx context.Context, origin Origin, target domain.Typing, event string, payload domain.TypingPayload) {
	address, except := resolve(origin, target)
	if address == "" {
		return
	}

	env, err := domain.NewEnvelope(address, event, payload)
	if err != nil {
		return
	}
	env.ExceptConn = except
	if err := c.relay.Publish(ctx, env); err != nil {
		c.log.WithError(err).WithField("address", address).Debug("Dropped typing signal")
	}
}

func resolve(origin Origin, target domain.Typing) (address, except string) {
	switch target.ChatType {
	case domain.ChatPrivate:
		if target.RecipientID == "" {
			return "", ""
		}
		return room.User(target.RecipientID), ""
	case domain.ChatGroup:
		if target.GroupID == "" {
			return "", ""
		}
		address := room.Group(target.GroupID)
		if !origin.Joined(address) {
			return "", ""
		}
		return address, origin.ID()
	default:
		return "", ""
	}
}
