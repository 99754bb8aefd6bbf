package domain

import (
	"time"
)

type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusBanned   = "banned"
)

// ReactionTypes is the closed set of reactions a message accepts.
var ReactionTypes = []string{"like", "love", "laugh", "sad", "angry"}

// IsValidReaction reports whether r is one of ReactionTypes.
func IsValidReaction(r string) bool {
	for _, t := range ReactionTypes {
		if t == r {
			return true
		}
	}
	return false
}

// Identity is attached to a connection once at handshake and never changes.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Avatar   string    `json:"avatar,omitempty"`
	Status   string    `json:"status"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// PublicUser is the subset of User fields delivered alongside messages.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Admins  []string `json:"admins"`
}

func (g *Group) IsMember(userID string) bool {
	return contains(g.Members, userID)
}

func (g *Group) IsAdmin(userID string) bool {
	return contains(g.Admins, userID)
}

type Reaction struct {
	UserID    string    `json:"userId"`
	Reaction  string    `json:"reaction"`
	CreatedAt time.Time `json:"createdAt"`
}

type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// Message is the persisted chat message. Content holds the stored form,
// which is base64 zlib data when IsCompressed is set.
type Message struct {
	ID           string        `json:"id"`
	Sender       PublicUser    `json:"sender"`
	ChatType     ChatType      `json:"chatType"`
	RecipientID  string        `json:"recipientId,omitempty"`
	GroupID      string        `json:"groupId,omitempty"`
	Content      string        `json:"content"`
	IsCompressed bool          `json:"isCompressed"`
	Reactions    []Reaction    `json:"reactions"`
	ReadBy       []ReadReceipt `json:"readBy"`
	IsPinned     bool          `json:"isPinned"`
	PinnedBy     string        `json:"pinnedBy,omitempty"`
	PinnedAt     *time.Time    `json:"pinnedAt,omitempty"`
	EditedAt     *time.Time    `json:"editedAt,omitempty"`
	IsDeleted    bool          `json:"isDeleted"`
	DeletedAt    *time.Time    `json:"deletedAt,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// HasReaction reports whether userID already left reaction r.
func (m *Message) HasReaction(userID, r string) bool {
	for _, existing := range m.Reactions {
		if existing.UserID == userID && existing.Reaction == r {
			return true
		}
	}
	return false
}

// IsReadBy reports whether userID appears in the read set.
func (m *Message) IsReadBy(userID string) bool {
	for _, receipt := range m.ReadBy {
		if receipt.UserID == userID {
			return true
		}
	}
	return false
}

// IsParticipant reports whether userID is one side of a private message.
func (m *Message) IsParticipant(userID string) bool {
	return m.Sender.ID == userID || m.RecipientID == userID
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
