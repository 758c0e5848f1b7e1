package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"duochat/internal/models"
)

// DefaultConversationLimit is used when a caller asks for a non-positive limit.
const DefaultConversationLimit = 50

// MessageStore 定义了消息数据操作的接口。
//
// Every read returns messages with Sender and Receiver filled in.
type MessageStore interface {
	// Create normalizes, validates and persists msg. It returns a
	// *models.ValidationError for bad input and ErrPersistence otherwise.
	Create(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	FindByIDs(ctx context.Context, ids []string) ([]*models.Message, error)
	// FindConversation returns the newest messages exchanged between a and b
	// in either direction, ordered by timestamp descending.
	FindConversation(ctx context.Context, a, b string, limit int) ([]*models.Message, error)
	// MarkAsRead flips unread messages among ids to read and stamps readAt.
	// Already-read messages keep their original readAt. It returns the number
	// of messages changed.
	MarkAsRead(ctx context.Context, ids []string) (int64, error)
	GetUnreadCount(ctx context.Context, userID string) (int64, error)
	// FindWithAttachments lists non-text messages sent or received by userID.
	// An empty filter means every attachment type.
	FindWithAttachments(ctx context.Context, userID string, filter models.MessageType) ([]*models.Message, error)
}

// gormMessageRepository 使用 GORM 实现 MessageStore。
type gormMessageRepository struct {
	db    *gorm.DB
	users UserDirectory
	now   func() time.Time
}

// NewGormMessageRepository 创建一个新的基于 GORM 的 MessageStore。
func NewGormMessageRepository(db *gorm.DB, users UserDirectory) MessageStore {
	return &gormMessageRepository{db: db, users: users, now: time.Now}
}

func (r *gormMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := msg.Prepare(r.now().UTC()); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("%w: create message: %w", ErrPersistence, err)
	}
	return nil
}

func (r *gormMessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, translate(err, "get message "+id)
	}
	if err := Enrich(ctx, r.users, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *gormMessageRepository) FindByIDs(ctx context.Context, ids []string) ([]*models.Message, error) {
	messages := []*models.Message{}
	if len(ids) == 0 {
		return messages, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("timestamp ASC").
		Find(&messages).Error
	if err != nil {
		return nil, translate(err, "get messages by ids")
	}
	return messages, Enrich(ctx, r.users, messages...)
}

func (r *gormMessageRepository) FindConversation(ctx context.Context, a, b string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = DefaultConversationLimit
	}
	messages := []*models.Message{}
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, translate(err, "get conversation")
	}
	return messages, Enrich(ctx, r.users, messages...)
}

func (r *gormMessageRepository) MarkAsRead(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id IN ? AND is_read = ?", ids, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": r.now().UTC(),
		})
	if res.Error != nil {
		return 0, translate(res.Error, "mark messages read")
	}
	return res.RowsAffected, nil
}

func (r *gormMessageRepository) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "count unread messages")
	}
	return count, nil
}

func (r *gormMessageRepository) FindWithAttachments(ctx context.Context, userID string, filter models.MessageType) ([]*models.Message, error) {
	if err := ValidateAttachmentFilter(filter); err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID)
	if filter != "" {
		query = query.Where("message_type = ?", filter)
	} else {
		query = query.Where("message_type <> ?", models.TextMessage)
	}

	messages := []*models.Message{}
	if err := query.Order("timestamp DESC").Find(&messages).Error; err != nil {
		return nil, translate(err, "get attachments")
	}
	return messages, Enrich(ctx, r.users, messages...)
}

// ValidateAttachmentFilter accepts an empty filter or a non-text message type.
func ValidateAttachmentFilter(filter models.MessageType) error {
	if filter == "" || (filter.Valid() && filter != models.TextMessage) {
		return nil
	}
	return &models.ValidationError{Fields: []models.FieldError{
		{Field: "type", Reason: "must be one of image, file, video"},
	}}
}
