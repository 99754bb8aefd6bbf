package chat

import (
	"context"

	"chat-relay/internal/domain"
	"chat-relay/internal/room"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Page is a window of history, newest first.
type Page struct {
	Messages []*domain.Message `json:"messages"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// GetMessage returns a live message with readable content to a member of
// its conversation.
func (b *Broadcaster) GetMessage(ctx context.Context, messageID, actorID string) (*domain.Message, error) {
	m, err := b.visibleMessage(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}
	return b.readable(m)
}

// PrivateHistory lists the conversation between selfID and otherID.
func (b *Broadcaster) PrivateHistory(ctx context.Context, selfID, otherID string, page, limit int) (*Page, error) {
	if otherID == "" {
		return nil, domain.NewValidationError("Recipient ID is required")
	}
	page, limit = normalizePage(page, limit)
	msgs, err := b.store.ListPrivateMessages(ctx, selfID, otherID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return b.page(msgs, page, limit)
}

// GroupHistory lists a group's messages for one of its members.
func (b *Broadcaster) GroupHistory(ctx context.Context, selfID, groupID string, page, limit int) (*Page, error) {
	if groupID == "" {
		return nil, domain.NewValidationError("Group ID is required")
	}
	if err := room.CheckMember(ctx, b.store, selfID, groupID); err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit)
	msgs, err := b.store.ListGroupMessages(ctx, groupID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return b.page(msgs, page, limit)
}

func (b *Broadcaster) page(msgs []*domain.Message, page, limit int) (*Page, error) {
	out := &Page{Messages: make([]*domain.Message, 0, len(msgs)), Page: page, Limit: limit}
	for _, m := range msgs {
		r, err := b.readable(m)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, r)
	}
	return out, nil
}
