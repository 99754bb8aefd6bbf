// Package gateway runs the lifecycle of authenticated client connections and
// routes their events to the chat, room, presence and typing components.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-relay/internal/chat"
	"chat-relay/internal/domain"
	"chat-relay/internal/ephemeral"
	"chat-relay/internal/presence"
	"chat-relay/internal/relay"
	"chat-relay/internal/room"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const defaultSendBuffer = 256

// Authenticator resolves a handshake credential to an identity.
type Authenticator interface {
	Verify(ctx context.Context, credential string) (domain.Identity, error)
}

type Config struct {
	SendBufferSize int
}

type Gateway struct {
	auth     Authenticator
	relay    relay.Relay
	rooms    *room.Router
	chat     *chat.Broadcaster
	presence *presence.Tracker
	typing   *ephemeral.Channel
	config   Config
	log      logrus.FieldLogger
}

func New(auth Authenticator, r relay.Relay, rooms *room.Router, broadcaster *chat.Broadcaster, tracker *presence.Tracker, typing *ephemeral.Channel, config Config, log logrus.FieldLogger) *Gateway {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = defaultSendBuffer
	}
	return &Gateway{
		auth:     auth,
		relay:    r,
		rooms:    rooms,
		chat:     broadcaster,
		presence: tracker,
		typing:   typing,
		config:   config,
		log:      log.WithField("component", "gateway"),
	}
}

// Authenticate verifies credential once per connection.
func (g *Gateway) Authenticate(ctx context.Context, credential string) (domain.Identity, error) {
	identity, err := g.auth.Verify(ctx, credential)
	if err != nil {
		if domain.KindOf(err) != domain.KindAuthentication {
			return domain.Identity{}, domain.NewAuthenticationError("Authentication error: Invalid token", err)
		}
		return domain.Identity{}, err
	}
	return identity, nil
}

// Serve blocks for the lifetime of conn. It returns once the client has
// disconnected and every cleanup step has run.
func (g *Gateway) Serve(ctx context.Context, conn Conn, credential string) {
	defer conn.Close()

	identity, err := g.Authenticate(ctx, credential)
	if err != nil {
		g.reject(conn, err)
		return
	}

	// Writes started by a handler finish even after the client is gone.
	work := context.WithoutCancel(ctx)

	c := newConnection(conn, identity, g.config.SendBufferSize, g.log)
	c.onEvict = func(address string) { g.evict(work, c, address) }
	log := c.log

	personal := room.User(identity.UserID)
	if err := g.relay.Join(work, personal, c); err != nil {
		log.WithError(err).Warn("Failed to join personal room")
	} else {
		c.markJoined(personal)
	}

	g.presence.OnConnect(work, identity.UserID, c.ID())
	defer func() {
		g.relay.LeaveAll(work, c)
		g.presence.OnDisconnect(work, identity.UserID, c.ID())
		c.stop()
		log.Info("Client disconnected")
	}()

	c.Emit(domain.EventConnected, domain.ConnectedPayload{UserID: identity.UserID, Username: identity.Username})
	log.Info("Client connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("Read failed")
			}
			return
		}
		g.dispatch(work, c, raw)
	}
}

// evict unsubscribes c from a group room it no longer belongs to.
func (g *Gateway) evict(ctx context.Context, c *Connection, address string) {
	if !c.Joined(address) {
		return
	}
	log := c.log.WithField("address", address)
	if err := g.relay.Leave(ctx, address, c); err != nil {
		log.WithError(err).Warn("Failed to leave room after membership change")
	}
	c.markLeft(address)
	log.Info("Left room after membership change")
}

func (g *Gateway) reject(conn Conn, err error) {
	message := domain.PublicMessage(err, "Authentication error: Invalid token")
	g.log.WithError(err).Info("Handshake rejected")

	if frame, ferr := domain.NewFrame(domain.EventConnectError, domain.ErrorPayload{Message: message}); ferr == nil {
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
}

// dispatch decodes one frame and runs its handler behind the error boundary.
func (g *Gateway) dispatch(ctx context.Context, c *Connection, raw []byte) {
	name, ev, err := domain.DecodeClientEvent(raw)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEvent) {
			c.emitError(fmt.Sprintf("Unknown event: %s", name))
			return
		}
		c.emitError("Invalid event payload")
		return
	}

	fallback := fallbackMessage(name)
	defer func() {
		if r := recover(); r != nil {
			c.log.WithFields(logrus.Fields{"event": name, "panic": r}).Error("Recovered from panic in handler")
			c.emitError(fallback)
		}
	}()

	if err := g.handle(ctx, c, ev); err != nil {
		if domain.KindOf(err) == domain.KindInfrastructure {
			c.log.WithError(err).WithField("event", name).Error("Handler failed")
		}
		c.emitError(domain.PublicMessage(err, fallback))
	}
}

func fallbackMessage(event string) string {
	switch event {
	case domain.EventJoinPrivateChat:
		return "Failed to join private chat"
	case domain.EventJoinGroupChat:
		return "Failed to join group chat"
	case domain.EventLeaveChat:
		return "Failed to leave chat"
	case domain.EventSendPrivateMessage, domain.EventSendGroupMessage:
		return "Failed to send message"
	case domain.EventAddReaction:
		return "Failed to add reaction"
	default:
		return "Internal server error"
	}
}

// handle is the single router for inbound events.
func (g *Gateway) handle(ctx context.Context, c *Connection, ev domain.ClientEvent) error {
	identity := c.Identity()

	switch e := ev.(type) {
	case domain.JoinPrivateChat:
		joined, err := g.rooms.JoinPrivate(ctx, c, identity.UserID, e.RecipientID)
		if err != nil {
			return err
		}
		c.markJoined(joined.Room)
		c.Emit(domain.EventJoinedPrivateChat, joined)

	case domain.JoinGroupChat:
		joined, err := g.rooms.JoinGroup(ctx, c, identity.UserID, e.GroupID)
		if err != nil {
			return err
		}
		c.markJoined(room.Group(joined.GroupID))
		c.Emit(domain.EventJoinedGroupChat, joined)

	case domain.LeaveChat:
		if e.Room == room.User(identity.UserID) || !c.Joined(e.Room) {
			return domain.NewValidationError("Not joined to room")
		}
		left, err := g.rooms.Leave(ctx, c, e.Room)
		if err != nil {
			return err
		}
		c.markLeft(left.Room)
		c.Emit(domain.EventLeftChat, left)

	case domain.SendPrivateMessage:
		_, err := g.chat.SendPrivateMessage(ctx, identity, e.RecipientID, e.Content)
		return err

	case domain.SendGroupMessage:
		_, err := g.chat.SendGroupMessage(ctx, identity, e.GroupID, e.Content)
		return err

	case domain.MarkMessageAsRead:
		// Read receipts never report failure to the client.
		if err := g.chat.MarkRead(ctx, e.MessageID, identity.UserID); err != nil {
			c.log.WithError(err).WithField("message_id", e.MessageID).Warn("Failed to mark message read")
		}

	case domain.AddReaction:
		return g.chat.AddReaction(ctx, e.MessageID, identity, e.Reaction)

	case domain.Typing:
		if e.Stop {
			g.typing.StopTyping(ctx, identity, c, e)
		} else {
			g.typing.Typing(ctx, identity, c, e)
		}

	case domain.Ping:
		c.Emit(domain.EventPong, domain.PongPayload{Timestamp: time.Now().UTC().Format(time.RFC3339)})

	default:
		return fmt.Errorf("unhandled event %T", ev)
	}
	return nil
}
