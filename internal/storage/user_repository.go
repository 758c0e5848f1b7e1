package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"duochat/internal/models"
)

// UserDirectory resolves display fields for a set of users.
type UserDirectory interface {
	GetMultipleBasicInfoByIDs(ctx context.Context, userIDs []string) ([]*models.UserBasicInfo, error)
}

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	UserDirectory
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// ListExcept returns every user other than userID, ordered by username.
	ListExcept(ctx context.Context, userID string) ([]models.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetLastActive(ctx context.Context, id string, at time.Time) error
	// DeactivateInactiveSince clears isActive for active users last seen before cutoff.
	DeactivateInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: email %s", ErrDuplicate, user.Email)
		}
		return fmt.Errorf("%w: create user: %w", ErrPersistence, err)
	}
	return nil
}

func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err, "get user "+id)
	}
	return &user, nil
}

// GetByEmail matches case-insensitively; emails are stored lowercased.
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, translate(err, "get user by email")
	}
	return &user, nil
}

func (r *gormUserRepository) ListExcept(ctx context.Context, userID string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("id <> ?", userID).
		Order("username ASC").
		Find(&users).Error
	if err != nil {
		return nil, translate(err, "list users")
	}
	return users, nil
}

func (r *gormUserRepository) GetMultipleBasicInfoByIDs(ctx context.Context, userIDs []string) ([]*models.UserBasicInfo, error) {
	var basicInfos []*models.UserBasicInfo
	if len(userIDs) == 0 {
		return basicInfos, nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id", "username", "avatar_url").
		Where("id IN ?", userIDs).
		Find(&basicInfos).Error
	if err != nil {
		return nil, translate(err, "get users basic info")
	}
	return basicInfos, nil
}

func (r *gormUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return translate(res.Error, "set user active")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return nil
}

func (r *gormUserRepository) SetLastActive(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_active", at.UTC())
	if res.Error != nil {
		return translate(res.Error, "set user last active")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return nil
}

func (r *gormUserRepository) DeactivateInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("is_active = ? AND last_active < ?", true, cutoff.UTC()).
		Update("is_active", false)
	if res.Error != nil {
		return 0, translate(res.Error, "deactivate inactive users")
	}
	return res.RowsAffected, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// translate maps gorm errors onto the storage sentinels.
func translate(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
