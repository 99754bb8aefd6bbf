// Package chat persists conversation mutations and announces each one to the
// conversation's room once the write has completed.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"chat-relay/internal/domain"
	"chat-relay/internal/relay"
	"chat-relay/internal/room"

	"github.com/sirupsen/logrus"
)

// Store is the persistence the broadcaster needs. *store.Store satisfies it.
type Store interface {
	room.GroupFinder
	FindUser(ctx context.Context, id string) (*domain.User, error)
	CreateMessage(ctx context.Context, m *domain.Message) error
	FindMessage(ctx context.Context, id string) (*domain.Message, error)
	UpdateMessageContent(ctx context.Context, id, content string, compressed bool, editedAt time.Time) error
	SoftDeleteMessage(ctx context.Context, id string, at time.Time) error
	PinMessage(ctx context.Context, id, userID string, at time.Time) error
	AddReaction(ctx context.Context, messageID string, r domain.Reaction) error
	AddReadReceipt(ctx context.Context, messageID, userID string, at time.Time) (bool, error)
	ListPrivateMessages(ctx context.Context, a, b string, offset, limit int) ([]*domain.Message, error)
	ListGroupMessages(ctx context.Context, groupID string, offset, limit int) ([]*domain.Message, error)
	LatestPrivateMessages(ctx context.Context, userID string) ([]*domain.Message, error)
	FindPublicUsers(ctx context.Context, ids []string) (map[string]domain.PublicUser, error)

	CreateGroup(ctx context.Context, g *domain.Group) error
	ListGroupsForUser(ctx context.Context, userID string) ([]*domain.Group, error)
	RenameGroup(ctx context.Context, id, name string) error
	DeleteGroup(ctx context.Context, id string) error
	AddGroupMember(ctx context.Context, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
	SetGroupAdmin(ctx context.Context, groupID, userID string, admin bool) error
}

// ContentCodec transforms content between its stored and readable forms.
type ContentCodec interface {
	Encode(content string) (string, bool, error)
	Decode(stored string, compressed bool) (string, error)
}

// Mirror receives a copy of every mutation event, e.g. for other services.
type Mirror interface {
	PublishEvent(ctx context.Context, ev domain.MutationEvent) error
}

const defaultMirrorTimeout = 2 * time.Second

type Config struct {
	MaxMessageLength int
	// MirrorTimeout bounds each mirror write.
	MirrorTimeout time.Duration
}

type Broadcaster struct {
	store  Store
	codec  ContentCodec
	relay  relay.Relay
	mirror Mirror
	config Config
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewBroadcaster wires a broadcaster. mirror may be nil.
func NewBroadcaster(store Store, codec ContentCodec, r relay.Relay, mirror Mirror, config Config, log logrus.FieldLogger) *Broadcaster {
	if config.MirrorTimeout <= 0 {
		config.MirrorTimeout = defaultMirrorTimeout
	}
	return &Broadcaster{
		store:  store,
		codec:  codec,
		relay:  r,
		mirror: mirror,
		config: config,
		log:    log.WithField("component", "chat"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Address returns the room a message belongs to.
func Address(m *domain.Message) string {
	if m.ChatType == domain.ChatGroup {
		return room.Group(m.GroupID)
	}
	return room.Private(m.Sender.ID, m.RecipientID)
}

// announce publishes a mutation after it was persisted. Failures are logged
// and never undo the write.
func (b *Broadcaster) announce(ctx context.Context, address, event, messageID, actor string, payload interface{}) {
	log := b.log.WithFields(logrus.Fields{"address": address, "event": event, "message_id": messageID})

	if err := relay.Publish(ctx, b.relay, address, event, payload); err != nil {
		log.WithError(err).Warn("Failed to publish event")
	}

	if b.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, b.config.MirrorTimeout)
	defer cancel()
	ev := domain.MutationEvent{
		Name:      event,
		Address:   address,
		MessageID: messageID,
		Actor:     actor,
		Payload:   payload,
		Timestamp: b.now(),
	}
	if err := b.mirror.PublishEvent(ctx, ev); err != nil {
		log.WithError(err).Warn("Failed to mirror event")
	}
}

// validateContent trims content and enforces the length limit.
func (b *Broadcaster) validateContent(content, emptyMsg string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", domain.NewValidationError(emptyMsg)
	}
	if max := b.config.MaxMessageLength; max > 0 && utf8.RuneCountInString(content) > max {
		return "", domain.NewValidationError(tooLongMessage(max))
	}
	return content, nil
}

// liveMessage loads a message that exists and is not deleted.
func (b *Broadcaster) liveMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	if messageID == "" {
		return nil, domain.NewNotFoundError("Message not found")
	}
	m, err := b.store.FindMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("Message not found")
		}
		return nil, err
	}
	if m.IsDeleted {
		return nil, domain.NewNotFoundError("Message not found")
	}
	return m, nil
}

// canView allows group members and both sides of a private conversation.
// Outsiders of a private conversation see the message as missing.
func (b *Broadcaster) canView(ctx context.Context, m *domain.Message, actorID string) error {
	if m.ChatType == domain.ChatGroup {
		return room.CheckMember(ctx, b.store, actorID, m.GroupID)
	}
	if !m.IsParticipant(actorID) {
		return domain.NewNotFoundError("Message not found")
	}
	return nil
}

// visibleMessage loads a live message actorID may see.
func (b *Broadcaster) visibleMessage(ctx context.Context, messageID, actorID string) (*domain.Message, error) {
	m, err := b.liveMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := b.canView(ctx, m, actorID); err != nil {
		return nil, err
	}
	return m, nil
}

// readable returns a copy of m with content decoded.
func (b *Broadcaster) readable(m *domain.Message) (*domain.Message, error) {
	content, err := b.codec.Decode(m.Content, m.IsCompressed)
	if err != nil {
		return nil, domain.NewInfrastructureError("failed to decode message content", err)
	}
	out := *m
	out.Content = content
	out.IsCompressed = false
	return &out, nil
}
