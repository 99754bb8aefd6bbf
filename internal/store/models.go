package store

import (
	"time"

	"chat-relay/internal/domain"
)

// User is the persisted account row. Only presence columns are written by
// this service.
type User struct {
	ID        string    `gorm:"primarykey;size:36"`
	Username  string    `gorm:"size:20;uniqueIndex;not null"`
	Email     string    `gorm:"size:255;uniqueIndex;not null"`
	Avatar    string    `gorm:"size:512"`
	Status    string    `gorm:"size:16;not null;default:active;index"`
	IsOnline  bool      `gorm:"not null;default:false"`
	LastSeen  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

type Group struct {
	ID        string    `gorm:"primarykey;size:36"`
	Name      string    `gorm:"size:50;not null"`
	CreatedAt time.Time
}

func (Group) TableName() string {
	return "groups"
}

// GroupMember links a user to a group. IsAdmin marks group admins, who are
// always members.
type GroupMember struct {
	GroupID   string `gorm:"primarykey;size:36"`
	UserID    string `gorm:"primarykey;size:36;index"`
	IsAdmin   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (GroupMember) TableName() string {
	return "group_members"
}

type Message struct {
	ID           string  `gorm:"primarykey;size:36"`
	SenderID     string  `gorm:"size:36;not null;index:idx_messages_sender_recipient"`
	ChatType     string  `gorm:"size:16;not null"`
	RecipientID  *string `gorm:"size:36;index:idx_messages_sender_recipient"`
	GroupID      *string `gorm:"size:36;index"`
	Content      string  `gorm:"type:text"`
	IsCompressed bool    `gorm:"not null;default:false"`
	EditedAt     *time.Time
	IsDeleted    bool `gorm:"not null;default:false;index"`
	DeletedAt    *time.Time
	IsPinned     bool `gorm:"not null;default:false"`
	PinnedBy     *string `gorm:"size:36"`
	PinnedAt     *time.Time
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

func (Message) TableName() string {
	return "messages"
}

type Reaction struct {
	ID        uint   `gorm:"primarykey"`
	MessageID string `gorm:"size:36;not null;uniqueIndex:idx_reactions_unique"`
	UserID    string `gorm:"size:36;not null;uniqueIndex:idx_reactions_unique"`
	Reaction  string `gorm:"size:16;not null;uniqueIndex:idx_reactions_unique"`
	CreatedAt time.Time
}

func (Reaction) TableName() string {
	return "message_reactions"
}

type ReadReceipt struct {
	MessageID string `gorm:"primarykey;size:36"`
	UserID    string `gorm:"primarykey;size:36"`
	ReadAt    time.Time
}

func (ReadReceipt) TableName() string {
	return "message_reads"
}

func (u *User) toDomain() *domain.User {
	return &domain.User{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Status:   u.Status,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}

func (m *Message) toDomain(sender domain.PublicUser) *domain.Message {
	msg := &domain.Message{
		ID:           m.ID,
		Sender:       sender,
		ChatType:     domain.ChatType(m.ChatType),
		Content:      m.Content,
		IsCompressed: m.IsCompressed,
		Reactions:    []domain.Reaction{},
		ReadBy:       []domain.ReadReceipt{},
		IsPinned:     m.IsPinned,
		PinnedAt:     m.PinnedAt,
		EditedAt:     m.EditedAt,
		IsDeleted:    m.IsDeleted,
		DeletedAt:    m.DeletedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.RecipientID != nil {
		msg.RecipientID = *m.RecipientID
	}
	if m.GroupID != nil {
		msg.GroupID = *m.GroupID
	}
	if m.PinnedBy != nil {
		msg.PinnedBy = *m.PinnedBy
	}
	return msg
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
