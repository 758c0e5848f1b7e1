package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"duochat/internal/models"
	"duochat/internal/storage/storagetest"
)

func TestUserRepository_GetByEmail_Is_Case_Insensitive(t *testing.T) {
	req := require.New(t)
	db := storagetest.NewDB(t)
	repo := NewGormUserRepository(db)
	ctx := context.Background()

	req.NoError(repo.Create(ctx, &models.User{Username: "dana", Email: " Dana@Example.com ", PasswordHash: "x"}))

	got, err := repo.GetByEmail(ctx, "DANA@example.COM")
	req.NoError(err)
	req.Equal("dana", got.Username)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	req.ErrorIs(err, ErrNotFound)
}

func TestUserRepository_ListExcept(t *testing.T) {
	req := require.New(t)
	db := storagetest.NewDB(t)
	repo := NewGormUserRepository(db)

	carol := storagetest.SeedUser(t, db, "carol")
	storagetest.SeedUser(t, db, "alice")
	storagetest.SeedUser(t, db, "bob")

	users, err := repo.ListExcept(context.Background(), carol.ID)

	req.NoError(err)
	req.Len(users, 2)
	req.Equal("alice", users[0].Username)
	req.Equal("bob", users[1].Username)
}

func TestUserRepository_Presence_Updates(t *testing.T) {
	req := require.New(t)
	db := storagetest.NewDB(t)
	repo := NewGormUserRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	stale := storagetest.SeedUser(t, db, "stale")
	fresh := storagetest.SeedUser(t, db, "fresh")
	for _, u := range []*models.User{stale, fresh} {
		req.NoError(repo.SetActive(ctx, u.ID, true))
	}
	req.NoError(repo.SetLastActive(ctx, stale.ID, now.Add(-48*time.Hour)))
	req.NoError(repo.SetLastActive(ctx, fresh.ID, now.Add(-time.Hour)))

	swept, err := repo.DeactivateInactiveSince(ctx, now.Add(-24*time.Hour))
	req.NoError(err)
	req.Equal(int64(1), swept)

	got, err := repo.GetByID(ctx, stale.ID)
	req.NoError(err)
	req.False(got.IsActive)
	got, err = repo.GetByID(ctx, fresh.ID)
	req.NoError(err)
	req.True(got.IsActive)

	req.ErrorIs(repo.SetActive(ctx, "ghost", true), ErrNotFound)
}
