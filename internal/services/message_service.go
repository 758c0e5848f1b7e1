package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"duochat/internal/models"
	"duochat/internal/storage"
)

// AttachmentEntry is one row of the attachment listing.
type AttachmentEntry struct {
	MessageID    string    `json:"messageId"`
	SenderID     string    `json:"senderId"`
	ReceiverID   string    `json:"receiverId"`
	Timestamp    time.Time `json:"timestamp"`
	TimeAgo      string    `json:"timeAgo"`
	CanBeDeleted bool      `json:"canBeDeleted"`
	*models.AttachmentInfo
}

// MessageService 定义了消息服务的接口。
type MessageService interface {
	// History returns the newest messages between userID and otherID,
	// oldest first.
	History(ctx context.Context, userID, otherID string, limit int) ([]*models.Message, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	Attachments(ctx context.Context, userID string, filter models.MessageType) ([]AttachmentEntry, error)
}

// messageService 是 MessageService 的实现。
type messageService struct {
	messages storage.MessageStore
	now      func() time.Time
}

// NewMessageService 创建一个新的 MessageService 实例。
func NewMessageService(messages storage.MessageStore) MessageService {
	return &messageService{messages: messages, now: time.Now}
}

func (s *messageService) History(ctx context.Context, userID, otherID string, limit int) ([]*models.Message, error) {
	msgs, err := s.messages.FindConversation(ctx, userID, otherID, limit)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (s *messageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.messages.GetUnreadCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *messageService) Attachments(ctx context.Context, userID string, filter models.MessageType) ([]AttachmentEntry, error) {
	msgs, err := s.messages.FindWithAttachments(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	withInfo := lo.Filter(msgs, func(m *models.Message, _ int) bool { return m.AttachmentInfo() != nil })
	return lo.Map(withInfo, func(m *models.Message, _ int) AttachmentEntry {
		return AttachmentEntry{
			MessageID:      m.ID,
			SenderID:       m.SenderID,
			ReceiverID:     m.ReceiverID,
			Timestamp:      m.Timestamp,
			TimeAgo:        m.TimeAgo(now),
			CanBeDeleted:   m.CanBeDeleted(now),
			AttachmentInfo: m.AttachmentInfo(),
		}
	}), nil
}
