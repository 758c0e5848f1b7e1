// Package storagetest opens throwaway in-memory databases for repository tests.
package storagetest

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"duochat/internal/models"
)

// NewDB returns a migrated in-memory SQLite database that is closed when t ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Each connection to :memory: is its own database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Message{}))
	return db
}

// SeedUser inserts a user with the given username and returns it.
func SeedUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		AvatarURL:    "https://cdn.example.com/" + username + ".png",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
