package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"duochat/internal/auth"
	"duochat/internal/config"
	"duochat/internal/kafka"
	"duochat/internal/models"
	"duochat/internal/presence"
	"duochat/internal/storage"
)

var (
	ErrUserAlreadyExists  = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email,max=100"`
	Password  string `json:"password" validate:"required,min=6,max=72"` // bcrypt ignores bytes past 72
	AvatarURL string `json:"avatar" validate:"omitempty,url,max=255"`
}

// AuthService 定义了用户认证服务的接口。
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	// Login checks the password, marks the user active and issues a token.
	Login(ctx context.Context, email, password string) (token string, user *models.User, err error)
	// Logout revokes the token behind claims, marks the user inactive and
	// asks the chat server to close the user's connections.
	Logout(ctx context.Context, claims *auth.Claims) error
}

// authService 是 AuthService 的实现。
type authService struct {
	users     storage.UserRepository
	presence  *presence.Tracker
	blacklist auth.TokenBlacklist
	sessions  kafka.EventPublisher
	cfg       config.AuthConfig
	log       *slog.Logger
}

// NewAuthService creates an AuthService. blacklist may be nil, in which case
// logout cannot revoke tokens early.
func NewAuthService(users storage.UserRepository, tracker *presence.Tracker, blacklist auth.TokenBlacklist, sessions kafka.EventPublisher, cfg config.AuthConfig, log *slog.Logger) AuthService {
	if sessions == nil {
		sessions = kafka.NopPublisher{}
	}
	return &authService{
		users:     users,
		presence:  tracker,
		blacklist: blacklist,
		sessions:  sessions,
		cfg:       cfg,
		log:       log.With("component", "auth-service"),
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := models.ValidateStruct(in); err != nil {
		return nil, err
	}

	_, err := s.users.GetByEmail(ctx, in.Email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		AvatarURL:    in.AvatarURL,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", "user_id", user.ID)
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("find user: %w", err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	if err := s.presence.Activate(ctx, user.ID); err != nil {
		return "", nil, err
	}
	if err := s.presence.Touch(ctx, user.ID); err != nil {
		return "", nil, err
	}

	token, err := auth.GenerateToken(user.ID, user.Username, s.cfg)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	// Return the presence fields as stored.
	if fresh, err := s.users.GetByID(ctx, user.ID); err == nil {
		user = fresh
	}
	s.log.Info("user logged in", "user_id", user.ID)
	return token, user, nil
}

func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.blacklist != nil && claims.ID != "" && claims.ExpiresAt != nil {
		if err := s.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
	}
	if err := s.presence.Deactivate(ctx, claims.UserID); err != nil {
		return err
	}

	ev := kafka.Event{Type: kafka.SessionRevoked, UserID: claims.UserID}
	if err := s.sessions.Publish(ctx, ev); err != nil {
		// Open sockets then live until their token expires.
		s.log.Warn("publish session revocation failed", "user_id", claims.UserID, "error", err)
	}
	s.log.Info("user logged out", "user_id", claims.UserID)
	return nil
}
