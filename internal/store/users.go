package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-relay/internal/domain"

	"gorm.io/gorm"
)

// CreateUser inserts a user. Status defaults to active.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if u.Status == "" {
		u.Status = domain.UserStatusActive
	}
	rec := User{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Status:   u.Status,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUser retrieves a user by id.
func (s *Store) FindUser(ctx context.Context, id string) (*domain.User, error) {
	var rec User
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return rec.toDomain(), nil
}

// UpdatePresence sets the online flag and last-seen time of a user.
func (s *Store) UpdatePresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_online": online,
		"last_seen": lastSeen,
	})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// FindPublicUsers returns the public fields of the users in ids that exist,
// keyed by id.
func (s *Store) FindPublicUsers(ctx context.Context, ids []string) (map[string]domain.PublicUser, error) {
	out := make(map[string]domain.PublicUser, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var recs []User
	if err := s.db.WithContext(ctx).Select("id", "username", "avatar").Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for _, r := range recs {
		out[r.ID] = domain.PublicUser{ID: r.ID, Username: r.Username, Avatar: r.Avatar}
	}
	return out, nil
}
