package store

import (
	"context"
	"errors"
	"fmt"

	"chat-relay/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateGroup inserts a group with its membership. Admins are added as
// members when missing from Members.
func (s *Store) CreateGroup(ctx context.Context, g *domain.Group) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&Group{ID: g.ID, Name: g.Name}).Error; err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}

		admins := make(map[string]bool, len(g.Admins))
		for _, id := range g.Admins {
			admins[id] = true
		}
		seen := make(map[string]bool)
		var rows []GroupMember
		for _, id := range append(append([]string{}, g.Members...), g.Admins...) {
			if seen[id] {
				continue
			}
			seen[id] = true
			rows = append(rows, GroupMember{GroupID: g.ID, UserID: id, IsAdmin: admins[id]})
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to add group members: %w", err)
		}
		return nil
	})
}

// FindGroup retrieves a group and its membership.
func (s *Store) FindGroup(ctx context.Context, id string) (*domain.Group, error) {
	var rec Group
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("group %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	groups, err := s.withMembers(ctx, []Group{rec})
	if err != nil {
		return nil, err
	}
	return groups[0], nil
}

// ListGroupsForUser returns every group userID belongs to, oldest first.
func (s *Store) ListGroupsForUser(ctx context.Context, userID string) ([]*domain.Group, error) {
	memberOf := s.db.Model(&GroupMember{}).Select("group_id").Where("user_id = ?", userID)

	var recs []Group
	if err := s.db.WithContext(ctx).Where("id IN (?)", memberOf).Order("created_at").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return s.withMembers(ctx, recs)
}

// RenameGroup changes the display name of a group.
func (s *Store) RenameGroup(ctx context.Context, id, name string) error {
	result := s.db.WithContext(ctx).Model(&Group{}).Where("id = ?", id).Update("name", name)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("group %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteGroup removes a group and its membership. Its messages are kept.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&GroupMember{}).Error; err != nil {
			return fmt.Errorf("failed to delete group members: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&Group{})
		if err := result.Error; err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("group %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

// AddGroupMember adds userID to a group as a regular member. An existing
// membership returns domain.ErrDuplicate.
func (s *Store) AddGroupMember(ctx context.Context, groupID, userID string) error {
	rec := GroupMember{GroupID: groupID, UserID: userID}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("member %s: %w", userID, domain.ErrDuplicate)
	}
	return nil
}

// RemoveGroupMember drops userID from a group, admin rights included.
func (s *Store) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	result := s.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&GroupMember{})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("member %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

// SetGroupAdmin grants or revokes admin rights of an existing member.
func (s *Store) SetGroupAdmin(ctx context.Context, groupID, userID string, admin bool) error {
	result := s.db.WithContext(ctx).Model(&GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("is_admin", admin)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update group admin: %w", err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("member %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

// withMembers attaches membership to recs with a single query.
func (s *Store) withMembers(ctx context.Context, recs []Group) ([]*domain.Group, error) {
	out := make([]*domain.Group, 0, len(recs))
	if len(recs) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(recs))
	byID := make(map[string]*domain.Group, len(recs))
	for _, rec := range recs {
		g := &domain.Group{ID: rec.ID, Name: rec.Name, Members: []string{}, Admins: []string{}}
		ids = append(ids, rec.ID)
		byID[rec.ID] = g
		out = append(out, g)
	}

	var members []GroupMember
	if err := s.db.WithContext(ctx).Where("group_id IN ?", ids).Order("created_at").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to load group members: %w", err)
	}
	for _, m := range members {
		g := byID[m.GroupID]
		g.Members = append(g.Members, m.UserID)
		if m.IsAdmin {
			g.Admins = append(g.Admins, m.UserID)
		}
	}
	return out, nil
}
