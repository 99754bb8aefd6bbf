// Package room derives conversation addresses and subscribes connections to
// them.
package room

import (
	"context"
	"errors"
	"sort"
	"strings"

	"chat-relay/internal/domain"
	"chat-relay/internal/relay"
)

// Private returns the address shared by both participants of a private
// conversation. Private(a, b) == Private(b, a).
func Private(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "-")
}

func Group(groupID string) string {
	return "group:" + groupID
}

// User returns the personal address every connection of userID joins.
func User(userID string) string {
	return "user:" + userID
}

type GroupFinder interface {
	FindGroup(ctx context.Context, id string) (*domain.Group, error)
}

// Router authorizes and performs room joins.
type Router struct {
	relay  relay.Relay
	groups GroupFinder
}

func NewRouter(r relay.Relay, groups GroupFinder) *Router {
	return &Router{relay: r, groups: groups}
}

// JoinPrivate subscribes sub to the private conversation between selfID and
// otherID. Any authenticated user may open a private room with any id.
func (r *Router) JoinPrivate(ctx context.Context, sub relay.Subscriber, selfID, otherID string) (domain.JoinedPrivateChatPayload, error) {
	if otherID == "" {
		return domain.JoinedPrivateChatPayload{}, domain.NewValidationError("Recipient ID is required")
	}
	address := Private(selfID, otherID)
	if err := r.relay.Join(ctx, address, sub); err != nil {
		return domain.JoinedPrivateChatPayload{}, err
	}
	return domain.JoinedPrivateChatPayload{Room: address, RecipientID: otherID}, nil
}

// JoinGroup subscribes sub to the group's address if userID is a member.
func (r *Router) JoinGroup(ctx context.Context, sub relay.Subscriber, userID, groupID string) (domain.JoinedGroupChatPayload, error) {
	if groupID == "" {
		return domain.JoinedGroupChatPayload{}, domain.NewValidationError("Group ID is required")
	}
	if err := CheckMember(ctx, r.groups, userID, groupID); err != nil {
		return domain.JoinedGroupChatPayload{}, err
	}
	if err := r.relay.Join(ctx, Group(groupID), sub); err != nil {
		return domain.JoinedGroupChatPayload{}, err
	}
	return domain.JoinedGroupChatPayload{GroupID: groupID}, nil
}

// Leave unsubscribes sub from address.
func (r *Router) Leave(ctx context.Context, sub relay.Subscriber, address string) (domain.LeftChatPayload, error) {
	if address == "" {
		return domain.LeftChatPayload{}, domain.NewValidationError("Room is required")
	}
	if err := r.relay.Leave(ctx, address, sub); err != nil {
		return domain.LeftChatPayload{}, err
	}
	return domain.LeftChatPayload{Room: address}, nil
}

// CheckMember returns an authorization error unless the group exists and
// userID belongs to it.
func CheckMember(ctx context.Context, groups GroupFinder, userID, groupID string) error {
	g, err := groups.FindGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewAuthorizationError("Access denied to group")
		}
		return err
	}
	if !g.IsMember(userID) {
		return domain.NewAuthorizationError("Access denied to group")
	}
	return nil
}
