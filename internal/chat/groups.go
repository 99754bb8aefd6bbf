package chat

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"chat-relay/internal/domain"
	"chat-relay/internal/room"

	"github.com/google/uuid"
)

const maxGroupNameLength = 50

// CreateGroup creates a group owned by creator. The creator becomes its
// first admin and every id in members must name an existing user.
func (b *Broadcaster) CreateGroup(ctx context.Context, creator domain.Identity, name string, members []string) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" || members == nil {
		return nil, domain.NewValidationError("Group name and members array are required")
	}
	if utf8.RuneCountInString(name) > maxGroupNameLength {
		return nil, domain.NewValidationError("Group name cannot exceed 50 characters")
	}

	ids := []string{creator.UserID}
	seen := map[string]bool{creator.UserID: true}
	for _, id := range members {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	found, err := b.store.FindPublicUsers(ctx, ids[1:])
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids)-1 {
		return nil, domain.NewValidationError("One or more members not found")
	}

	g := &domain.Group{ID: uuid.New().String(), Name: name, Members: ids, Admins: []string{creator.UserID}}
	if err := b.store.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	for _, id := range ids[1:] {
		b.announce(ctx, room.User(id), domain.EventMemberAdded, "", creator.UserID, domain.MemberPayload{
			GroupID: g.ID,
			UserID:  id,
			ActorID: creator.UserID,
		})
	}
	return b.store.FindGroup(ctx, g.ID)
}

// ListGroups returns the groups userID belongs to.
func (b *Broadcaster) ListGroups(ctx context.Context, userID string) ([]*domain.Group, error) {
	return b.store.ListGroupsForUser(ctx, userID)
}

// GetGroup returns a group to one of its members.
func (b *Broadcaster) GetGroup(ctx context.Context, actorID, groupID string) (*domain.Group, error) {
	g, err := b.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsMember(actorID) {
		return nil, domain.NewAuthorizationError("Access denied to group")
	}
	return g, nil
}

// RenameGroup changes the group name. Admins only.
func (b *Broadcaster) RenameGroup(ctx context.Context, actorID, groupID, name string) (*domain.Group, error) {
	g, err := b.adminGroup(ctx, actorID, groupID, "Only group admins can update group")
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return g, nil
	}
	if utf8.RuneCountInString(name) > maxGroupNameLength {
		return nil, domain.NewValidationError("Group name cannot exceed 50 characters")
	}
	if err := b.store.RenameGroup(ctx, g.ID, name); err != nil {
		return nil, groupGone(err)
	}

	g.Name = name
	b.announce(ctx, room.Group(g.ID), domain.EventGroupUpdated, "", actorID, domain.GroupUpdatedPayload{
		GroupID:   g.ID,
		Name:      name,
		UpdatedBy: actorID,
	})
	return g, nil
}

// DeleteGroup removes the group. Connections still in its room are
// unsubscribed when they receive the announcement.
func (b *Broadcaster) DeleteGroup(ctx context.Context, actorID, groupID string) error {
	g, err := b.adminGroup(ctx, actorID, groupID, "Only group admins can delete group")
	if err != nil {
		return err
	}
	if err := b.store.DeleteGroup(ctx, g.ID); err != nil {
		return groupGone(err)
	}

	b.announce(ctx, room.Group(g.ID), domain.EventGroupDeleted, "", actorID, domain.GroupDeletedPayload{
		GroupID:   g.ID,
		DeletedBy: actorID,
	})
	return nil
}

// AddMember adds memberID to the group. Admins only.
func (b *Broadcaster) AddMember(ctx context.Context, actorID, groupID, memberID string) (*domain.Group, error) {
	g, err := b.adminGroup(ctx, actorID, groupID, "Only group admins can add members")
	if err != nil {
		return nil, err
	}
	if g.IsMember(memberID) {
		return nil, domain.NewValidationError("User is already a member of this group")
	}
	if memberID == "" {
		return nil, domain.NewNotFoundError("User not found")
	}
	if _, err := b.store.FindUser(ctx, memberID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("User not found")
		}
		return nil, err
	}
	if err := b.store.AddGroupMember(ctx, g.ID, memberID); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.NewValidationError("User is already a member of this group")
		}
		return nil, err
	}

	payload := domain.MemberPayload{GroupID: g.ID, UserID: memberID, ActorID: actorID}
	b.announce(ctx, room.Group(g.ID), domain.EventMemberAdded, "", actorID, payload)
	b.announce(ctx, room.User(memberID), domain.EventMemberAdded, "", actorID, payload)
	return b.store.FindGroup(ctx, g.ID)
}

// RemoveMember drops memberID from the group, admin rights included.
// Connections of memberID in the group room are unsubscribed when they
// receive the announcement.
func (b *Broadcaster) RemoveMember(ctx context.Context, actorID, groupID, memberID string) (*domain.Group, error) {
	g, err := b.adminGroup(ctx, actorID, groupID, "Only group admins can remove members")
	if err != nil {
		return nil, err
	}
	if memberID == actorID {
		return nil, domain.NewValidationError("You cannot remove yourself from the group")
	}
	if !g.IsMember(memberID) {
		return g, nil
	}
	if err := b.store.RemoveGroupMember(ctx, g.ID, memberID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	b.announce(ctx, room.Group(g.ID), domain.EventMemberRemoved, "", actorID, domain.MemberPayload{
		GroupID: g.ID,
		UserID:  memberID,
		ActorID: actorID,
	})
	return b.store.FindGroup(ctx, g.ID)
}

// AddAdmin grants admin rights to an existing member. Admins only.
func (b *Broadcaster) AddAdmin(ctx context.Context, actorID, groupID, adminID string) (*domain.Group, error) {
	g, err := b.adminGroup(ctx, actorID, groupID, "Only group admins can add admins")
	if err != nil {
		return nil, err
	}
	if !g.IsMember(adminID) {
		return nil, domain.NewValidationError("User must be a member of the group to become admin")
	}
	if g.IsAdmin(adminID) {
		return nil, domain.NewValidationError("User is already an admin of this group")
	}
	if err := b.store.SetGroupAdmin(ctx, g.ID, adminID, true); err != nil {
		return nil, err
	}
	return b.store.FindGroup(ctx, g.ID)
}

// RemoveAdmin revokes admin rights of adminID, who stays a member.
func (b *Broadcaster) RemoveAdmin(ctx context.Context, actorID, groupID, adminID string) (*domain.Group, error) {
	g, err := b.adminGroup(ctx, actorID, groupID, "Only group admins can remove admins")
	if err != nil {
		return nil, err
	}
	if adminID == actorID {
		return nil, domain.NewValidationError("You cannot remove yourself as admin")
	}
	if !g.IsAdmin(adminID) {
		return g, nil
	}
	if err := b.store.SetGroupAdmin(ctx, g.ID, adminID, false); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return b.store.FindGroup(ctx, g.ID)
}

func (b *Broadcaster) findGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	if groupID == "" {
		return nil, domain.NewNotFoundError("Group not found")
	}
	g, err := b.store.FindGroup(ctx, groupID)
	if err != nil {
		return nil, groupGone(err)
	}
	return g, nil
}

// adminGroup loads a group actorID administers, or fails with denied.
func (b *Broadcaster) adminGroup(ctx context.Context, actorID, groupID, denied string) (*domain.Group, error) {
	g, err := b.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsAdmin(actorID) {
		return nil, domain.NewAuthorizationError(denied)
	}
	return g, nil
}

func groupGone(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewNotFoundError("Group not found")
	}
	return err
}
