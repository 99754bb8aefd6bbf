package chat

import (
	"context"
	"strings"

	"chat-relay/internal/domain"
	"chat-relay/internal/room"
)

const (
	defaultSearchPageSize = 20
	searchBatchSize       = 200
)

// PrivateChat is one private conversation with its newest message.
type PrivateChat struct {
	User        domain.PublicUser `json:"user"`
	LastMessage *domain.Message   `json:"lastMessage"`
}

// ChatList is every conversation a user takes part in.
type ChatList struct {
	PrivateChats []PrivateChat   `json:"privateChats"`
	GroupChats   []*domain.Group `json:"groupChats"`
}

// UserChats lists the private conversations of userID, most recent first,
// and the groups userID belongs to.
func (b *Broadcaster) UserChats(ctx context.Context, userID string) (*ChatList, error) {
	latest, err := b.store.LatestPrivateMessages(ctx, userID)
	if err != nil {
		return nil, err
	}

	partners := make([]string, 0, len(latest))
	for _, m := range latest {
		partners = append(partners, partnerOf(m, userID))
	}
	users, err := b.store.FindPublicUsers(ctx, partners)
	if err != nil {
		return nil, err
	}

	list := &ChatList{PrivateChats: make([]PrivateChat, 0, len(latest))}
	for i, m := range latest {
		r, err := b.readable(m)
		if err != nil {
			return nil, err
		}
		user, ok := users[partners[i]]
		if !ok {
			user = domain.PublicUser{ID: partners[i]}
		}
		list.PrivateChats = append(list.PrivateChats, PrivateChat{User: user, LastMessage: r})
	}

	list.GroupChats, err = b.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func partnerOf(m *domain.Message, userID string) string {
	if m.Sender.ID == userID {
		return m.RecipientID
	}
	return m.Sender.ID
}

// SearchMessages returns live messages of one conversation whose readable
// content contains query, ignoring case. chatID is the other participant
// for private chats and the group id for group chats. An empty query
// matches every message.
func (b *Broadcaster) SearchMessages(ctx context.Context, actorID, query string, chatType domain.ChatType, chatID string, page, limit int) (*Page, error) {
	if chatType != domain.ChatPrivate && chatType != domain.ChatGroup {
		return nil, domain.NewValidationError("Invalid chat type")
	}
	if chatID == "" {
		return nil, domain.NewValidationError("Chat ID is required")
	}
	if chatType == domain.ChatGroup {
		if err := room.CheckMember(ctx, b.store, actorID, chatID); err != nil {
			return nil, err
		}
	}
	if limit < 1 {
		limit = defaultSearchPageSize
	}
	page, limit = normalizePage(page, limit)

	list := func(offset int) ([]*domain.Message, error) {
		if chatType == domain.ChatGroup {
			return b.store.ListGroupMessages(ctx, chatID, offset, searchBatchSize)
		}
		return b.store.ListPrivateMessages(ctx, actorID, chatID, offset, searchBatchSize)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	skip := (page - 1) * limit
	out := &Page{Messages: make([]*domain.Message, 0, limit), Page: page, Limit: limit}
	for offset := 0; len(out.Messages) < limit; offset += searchBatchSize {
		batch, err := list(offset)
		if err != nil {
			return nil, err
		}
		for _, m := range batch {
			r, err := b.readable(m)
			if err != nil {
				return nil, err
			}
			if needle != "" && !strings.Contains(strings.ToLower(r.Content), needle) {
				continue
			}
			if skip > 0 {
				skip--
				continue
			}
			out.Messages = append(out.Messages, r)
			if len(out.Messages) == limit {
				break
			}
		}
		if len(batch) < searchBatchSize {
			break
		}
	}
	return out, nil
}
