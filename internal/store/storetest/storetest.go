// Package storetest builds throwaway in-memory stores for tests.
package storetest

import (
	"context"
	"testing"

	"chat-relay/internal/domain"
	"chat-relay/internal/store"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated store backed by a private in-memory SQLite database.
func New(t *testing.T) *store.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// Each new connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	s := store.New(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// SeedUser inserts an active user named username and returns it.
func SeedUser(t *testing.T, s *store.Store, username string) *domain.User {
	t.Helper()
	return SeedUserWithStatus(t, s, username, domain.UserStatusActive)
}

func SeedUserWithStatus(t *testing.T, s *store.Store, username, status string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:       uuid.New().String(),
		Username: username,
		Email:    username + "@example.com",
		Status:   status,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to seed user %s: %v", username, err)
	}
	return u
}

// SeedGroup inserts a group with the given members and admins.
func SeedGroup(t *testing.T, s *store.Store, name string, members, admins []string) *domain.Group {
	t.Helper()
	g := &domain.Group{
		ID:      uuid.New().String(),
		Name:    name,
		Members: members,
		Admins:  admins,
	}
	if err := s.CreateGroup(context.Background(), g); err != nil {
		t.Fatalf("failed to seed group %s: %v", name, err)
	}
	return g
}
