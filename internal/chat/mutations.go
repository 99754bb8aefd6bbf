package chat

import (
	"context"
	"errors"

	"chat-relay/internal/domain"
)

// EditMessage replaces the content of the actor's own message.
func (b *Broadcaster) EditMessage(ctx context.Context, messageID, actorID, content string) (*domain.Message, error) {
	m, err := b.liveMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.Sender.ID != actorID {
		return nil, domain.NewAuthorizationError("You can only edit your own messages")
	}
	content, err = b.validateContent(content, "Message content is required")
	if err != nil {
		return nil, err
	}
	stored, compressed, err := b.codec.Encode(content)
	if err != nil {
		return nil, domain.NewInfrastructureError("failed to encode message content", err)
	}

	editedAt := b.now()
	if err := b.store.UpdateMessageContent(ctx, m.ID, stored, compressed, editedAt); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("Message not found")
		}
		return nil, err
	}

	m.Content = content
	m.IsCompressed = false
	m.EditedAt = &editedAt
	b.announce(ctx, Address(m), domain.EventMessageEdited, m.ID, actorID, domain.MessageEditedPayload{
		MessageID: m.ID,
		Content:   content,
		EditedAt:  editedAt,
	})
	return m, nil
}

// DeleteMessage soft-deletes the actor's own message.
func (b *Broadcaster) DeleteMessage(ctx context.Context, messageID, actorID string) error {
	m, err := b.liveMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if m.Sender.ID != actorID {
		return domain.NewAuthorizationError("You can only delete your own messages")
	}

	if err := b.store.SoftDeleteMessage(ctx, m.ID, b.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFoundError("Message not found")
		}
		return err
	}

	b.announce(ctx, Address(m), domain.EventMessageDeleted, m.ID, actorID, domain.MessageDeletedPayload{
		MessageID: m.ID,
		DeletedBy: actorID,
	})
	return nil
}

// PinMessage pins a message. Group messages need a group admin, private
// messages one of the two participants.
func (b *Broadcaster) PinMessage(ctx context.Context, messageID, actorID string) (*domain.Message, error) {
	m, err := b.liveMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := b.canPin(ctx, m, actorID); err != nil {
		return nil, err
	}

	pinnedAt := b.now()
	if err := b.store.PinMessage(ctx, m.ID, actorID, pinnedAt); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("Message not found")
		}
		return nil, err
	}

	b.announce(ctx, Address(m), domain.EventMessagePinned, m.ID, actorID, domain.MessagePinnedPayload{
		MessageID: m.ID,
		PinnedBy:  actorID,
		PinnedAt:  pinnedAt,
	})

	m.IsPinned = true
	m.PinnedBy = actorID
	m.PinnedAt = &pinnedAt
	return b.readable(m)
}

func (b *Broadcaster) canPin(ctx context.Context, m *domain.Message, actorID string) error {
	if m.ChatType == domain.ChatGroup {
		g, err := b.store.FindGroup(ctx, m.GroupID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewAuthorizationError("Only group admins can pin messages")
			}
			return err
		}
		if !g.IsMember(actorID) || !g.IsAdmin(actorID) {
			return domain.NewAuthorizationError("Only group admins can pin messages")
		}
		return nil
	}
	if !m.IsParticipant(actorID) {
		return domain.NewAuthorizationError("Only chat participants can pin messages")
	}
	return nil
}

// AddReaction records a reaction of actor. Each (user, reaction) pair is
// stored at most once.
func (b *Broadcaster) AddReaction(ctx context.Context, messageID string, actor domain.Identity, reaction string) error {
	if messageID == "" || !domain.IsValidReaction(reaction) {
		return domain.NewValidationError("Invalid message ID or reaction")
	}
	m, err := b.visibleMessage(ctx, messageID, actor.UserID)
	if err != nil {
		return err
	}
	if m.HasReaction(actor.UserID, reaction) {
		return domain.NewValidationError("Reaction already exists")
	}

	r := domain.Reaction{UserID: actor.UserID, Reaction: reaction, CreatedAt: b.now()}
	if err := b.store.AddReaction(ctx, m.ID, r); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.NewValidationError("Reaction already exists")
		}
		return err
	}

	b.announce(ctx, Address(m), domain.EventMessageReactionAdded, m.ID, actor.UserID, domain.ReactionAddedPayload{
		MessageID: m.ID,
		Reaction:  reaction,
		UserID:    actor.UserID,
		Username:  actor.Username,
	})
	return nil
}

// MarkRead records a read receipt. Reads of messages the actor cannot see
// and repeated reads are silently ignored.
func (b *Broadcaster) MarkRead(ctx context.Context, messageID, actorID string) error {
	m, err := b.visibleMessage(ctx, messageID, actorID)
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindNotFound, domain.KindAuthorization:
			return nil
		}
		return err
	}
	if m.IsReadBy(actorID) {
		return nil
	}

	added, err := b.store.AddReadReceipt(ctx, m.ID, actorID, b.now())
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	b.announce(ctx, Address(m), domain.EventMessageRead, m.ID, actorID, domain.MessageReadPayload{
		MessageID: m.ID,
		ReadBy:    actorID,
	})
	return nil
}
