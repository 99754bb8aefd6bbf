package chat

import (
	"context"
	"errors"
	"strconv"

	"chat-relay/internal/domain"
	"chat-relay/internal/room"

	"github.com/google/uuid"
)

func tooLongMessage(max int) string {
	return "Message cannot exceed " + strconv.Itoa(max) + " characters"
}

// SendPrivateMessage stores a message from sender to recipientID and
// announces it to their private room.
func (b *Broadcaster) SendPrivateMessage(ctx context.Context, sender domain.Identity, recipientID, content string) (*domain.Message, error) {
	if recipientID == "" {
		return nil, domain.NewValidationError("Recipient ID and content are required")
	}
	content, err := b.validateContent(content, "Recipient ID and content are required")
	if err != nil {
		return nil, err
	}
	if _, err := b.store.FindUser(ctx, recipientID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("Recipient not found")
		}
		return nil, err
	}

	m := &domain.Message{ChatType: domain.ChatPrivate, RecipientID: recipientID}
	return b.sendMessage(ctx, sender, m, content, domain.EventNewPrivateMessage)
}

// SendGroupMessage stores a message from a member of groupID and announces
// it to the group room.
func (b *Broadcaster) SendGroupMessage(ctx context.Context, sender domain.Identity, groupID, content string) (*domain.Message, error) {
	if groupID == "" {
		return nil, domain.NewValidationError("Group ID and content are required")
	}
	content, err := b.validateContent(content, "Group ID and content are required")
	if err != nil {
		return nil, err
	}
	if err := room.CheckMember(ctx, b.store, sender.UserID, groupID); err != nil {
		return nil, err
	}

	m := &domain.Message{ChatType: domain.ChatGroup, GroupID: groupID}
	return b.sendMessage(ctx, sender, m, content, domain.EventNewGroupMessage)
}

func (b *Broadcaster) sendMessage(ctx context.Context, sender domain.Identity, m *domain.Message, content, event string) (*domain.Message, error) {
	stored, compressed, err := b.codec.Encode(content)
	if err != nil {
		return nil, domain.NewInfrastructureError("failed to encode message content", err)
	}

	m.ID = uuid.New().String()
	m.Sender = domain.PublicUser{ID: sender.UserID, Username: sender.Username}
	m.Content = stored
	m.IsCompressed = compressed
	m.Reactions = []domain.Reaction{}
	m.ReadBy = []domain.ReadReceipt{}
	if err := b.store.CreateMessage(ctx, m); err != nil {
		return nil, err
	}

	// Sender public fields come from the store, not the connection.
	saved, err := b.store.FindMessage(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	out, err := b.readable(saved)
	if err != nil {
		return nil, err
	}

	b.announce(ctx, Address(out), event, out.ID, sender.UserID, domain.NewMessagePayload{Message: out})
	return out, nil
}
