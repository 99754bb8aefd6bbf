package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-relay/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateMessage inserts m. CreatedAt and UpdatedAt are filled in on m.
func (s *Store) CreateMessage(ctx context.Context, m *domain.Message) error {
	rec := Message{
		ID:           m.ID,
		SenderID:     m.Sender.ID,
		ChatType:     string(m.ChatType),
		RecipientID:  optional(m.RecipientID),
		GroupID:      optional(m.GroupID),
		Content:      m.Content,
		IsCompressed: m.IsCompressed,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	m.CreatedAt = rec.CreatedAt
	m.UpdatedAt = rec.UpdatedAt
	return nil
}

// FindMessage retrieves a message with its sender, reactions and read
// receipts. Soft-deleted messages are returned with IsDeleted set.
func (s *Store) FindMessage(ctx context.Context, id string) (*domain.Message, error) {
	var rec Message
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	msgs, err := s.hydrate(ctx, []Message{rec})
	if err != nil {
		return nil, err
	}
	return msgs[0], nil
}

// UpdateMessageContent replaces the stored content and records the edit time.
func (s *Store) UpdateMessageContent(ctx context.Context, id, content string, compressed bool, editedAt time.Time) error {
	return s.updateLive(ctx, id, map[string]interface{}{
		"content":       content,
		"is_compressed": compressed,
		"edited_at":     editedAt,
	})
}

// SoftDeleteMessage flags a message deleted. Content is kept.
func (s *Store) SoftDeleteMessage(ctx context.Context, id string, at time.Time) error {
	return s.updateLive(ctx, id, map[string]interface{}{
		"is_deleted": true,
		"deleted_at": at,
	})
}

// PinMessage marks a message pinned by userID.
func (s *Store) PinMessage(ctx context.Context, id, userID string, at time.Time) error {
	return s.updateLive(ctx, id, map[string]interface{}{
		"is_pinned": true,
		"pinned_by": userID,
		"pinned_at": at,
	})
}

func (s *Store) updateLive(ctx context.Context, id string, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(fields)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// AddReaction stores r on the message. A repeated (user, reaction) pair
// returns domain.ErrDuplicate and leaves the table unchanged.
func (s *Store) AddReaction(ctx context.Context, messageID string, r domain.Reaction) error {
	rec := Reaction{MessageID: messageID, UserID: r.UserID, Reaction: r.Reaction, CreatedAt: r.CreatedAt}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if err := result.Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("reaction %s: %w", r.Reaction, domain.ErrDuplicate)
		}
		return fmt.Errorf("failed to add reaction: %w", err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("reaction %s: %w", r.Reaction, domain.ErrDuplicate)
	}
	return nil
}

// AddReadReceipt records that userID read the message. It reports false when
// the receipt already existed.
func (s *Store) AddReadReceipt(ctx context.Context, messageID, userID string, at time.Time) (bool, error) {
	rec := ReadReceipt{MessageID: messageID, UserID: userID, ReadAt: at}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if err := result.Error; err != nil {
		return false, fmt.Errorf("failed to add read receipt: %w", err)
	}
	return result.RowsAffected > 0, nil
}

// ListPrivateMessages returns live messages exchanged between a and b,
// newest first.
func (s *Store) ListPrivateMessages(ctx context.Context, a, b string, offset, limit int) ([]*domain.Message, error) {
	var recs []Message
	err := s.db.WithContext(ctx).
		Where("chat_type = ? AND is_deleted = ?", string(domain.ChatPrivate), false).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list private messages: %w", err)
	}
	return s.hydrate(ctx, recs)
}

// ListGroupMessages returns live messages of a group, newest first.
func (s *Store) ListGroupMessages(ctx context.Context, groupID string, offset, limit int) ([]*domain.Message, error) {
	var recs []Message
	err := s.db.WithContext(ctx).
		Where("chat_type = ? AND group_id = ? AND is_deleted = ?", string(domain.ChatGroup), groupID, false).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list group messages: %w", err)
	}
	return s.hydrate(ctx, recs)
}

// LatestPrivateMessages returns the newest live message of every private
// conversation userID takes part in, newest conversation first.
func (s *Store) LatestPrivateMessages(ctx context.Context, userID string) ([]*domain.Message, error) {
	var recs []Message
	err := s.db.WithContext(ctx).
		Where("chat_type = ? AND is_deleted = ?", string(domain.ChatPrivate), false).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list private conversations: %w", err)
	}

	seen := make(map[string]bool)
	latest := recs[:0]
	for _, r := range recs {
		partner := r.SenderID
		if partner == userID && r.RecipientID != nil {
			partner = *r.RecipientID
		}
		if seen[partner] {
			continue
		}
		seen[partner] = true
		latest = append(latest, r)
	}
	return s.hydrate(ctx, latest)
}

// hydrate attaches sender public fields, reactions and read receipts with
// one query per relation.
func (s *Store) hydrate(ctx context.Context, recs []Message) ([]*domain.Message, error) {
	out := make([]*domain.Message, 0, len(recs))
	if len(recs) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(recs))
	senderIDs := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
		senderIDs = append(senderIDs, r.SenderID)
	}

	senders, err := s.FindPublicUsers(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	var reactions []Reaction
	if err := s.db.WithContext(ctx).Where("message_id IN ?", ids).Order("id").Find(&reactions).Error; err != nil {
		return nil, fmt.Errorf("failed to load reactions: %w", err)
	}
	var reads []ReadReceipt
	if err := s.db.WithContext(ctx).Where("message_id IN ?", ids).Order("read_at").Find(&reads).Error; err != nil {
		return nil, fmt.Errorf("failed to load read receipts: %w", err)
	}

	byID := make(map[string]*domain.Message, len(recs))
	for i := range recs {
		sender, ok := senders[recs[i].SenderID]
		if !ok {
			sender = domain.PublicUser{ID: recs[i].SenderID}
		}
		msg := recs[i].toDomain(sender)
		byID[msg.ID] = msg
		out = append(out, msg)
	}
	for _, r := range reactions {
		if msg, ok := byID[r.MessageID]; ok {
			msg.Reactions = append(msg.Reactions, domain.Reaction{UserID: r.UserID, Reaction: r.Reaction, CreatedAt: r.CreatedAt})
		}
	}
	for _, r := range reads {
		if msg, ok := byID[r.MessageID]; ok {
			msg.ReadBy = append(msg.ReadBy, domain.ReadReceipt{UserID: r.UserID, ReadAt: r.ReadAt})
		}
	}
	return out, nil
}
