package services

import (
	"context"
	"fmt"
	"time"

	"duochat/internal/models"
	"duochat/internal/storage"
)

// Profile is the /me view of a user.
type Profile struct {
	*models.User
	LastActiveText string `json:"lastActiveText"`
}

// UserService 定义了用户相关服务的接口。
type UserService interface {
	Profile(ctx context.Context, userID string) (*Profile, error)
	// Roster lists every user except userID.
	Roster(ctx context.Context, userID string) ([]models.User, error)
}

// userService 是 UserService 的实现。
type userService struct {
	users storage.UserRepository
	now   func() time.Time
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(users storage.UserRepository) UserService {
	return &userService{users: users, now: time.Now}
}

func (s *userService) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &Profile{User: user, LastActiveText: user.LastActiveText(s.now())}, nil
}

func (s *userService) Roster(ctx context.Context, userID string) ([]models.User, error) {
	users, err := s.users.ListExcept(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
