package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MessageType 定义了消息的类型。
type MessageType string

const (
	TextMessage  MessageType = "text"
	ImageMessage MessageType = "image"
	FileMessage  MessageType = "file"
	VideoMessage MessageType = "video"
)

// Valid reports whether t is one of the supported message types.
func (t MessageType) Valid() bool {
	switch t {
	case TextMessage, ImageMessage, FileMessage, VideoMessage:
		return true
	}
	return false
}

const (
	// MaxContentLength is counted in characters after normalization.
	MaxContentLength = 1000

	// DeletionWindow is how long after sending a message may still be deleted.
	DeletionWindow = 5 * time.Minute
)

// Dimensions of an image or video attachment.
type Dimensions struct {
	Width  int `json:"width" bson:"width"`
	Height int `json:"height" bson:"height"`
}

// Attachment describes a file already uploaded to the object store.
// Only metadata lives here; the bytes are never handled by the chat server.
type Attachment struct {
	URL          string      `json:"url" bson:"url" validate:"required"`
	Filename     string      `json:"filename" bson:"filename" validate:"required"`
	OriginalName string      `json:"originalName,omitempty" bson:"originalName,omitempty"`
	Size         int64       `json:"size" bson:"size" validate:"required,gt=0"`
	MimeType     string      `json:"mimeType,omitempty" bson:"mimeType,omitempty"`
	Duration     float64     `json:"duration" bson:"duration" validate:"gte=0"` // seconds, videos only
	Thumbnail    string      `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	Dimensions   *Dimensions `json:"dimensions,omitempty" bson:"dimensions,omitempty"`
}

// Message 代表存储的一对一聊天消息。
//
// ReadAt is non-nil exactly when IsRead is true. Sender and Receiver are
// display projections filled in by the store on read; they are never persisted.
type Message struct {
	ID          string      `gorm:"primaryKey;type:varchar(36)" json:"id" bson:"_id"`
	SenderID    string      `gorm:"type:varchar(36);not null;index:idx_messages_sender_ts,priority:1;index:idx_messages_pair,priority:1" json:"senderId" bson:"sender" validate:"required"`
	ReceiverID  string      `gorm:"type:varchar(36);not null;index:idx_messages_receiver_ts,priority:1;index:idx_messages_pair,priority:2" json:"receiverId" bson:"receiver" validate:"required"`
	Content     string      `gorm:"type:text" json:"content,omitempty" bson:"content,omitempty" validate:"required_if=MessageType text,max=1000"`
	MessageType MessageType `gorm:"type:varchar(10);not null;default:'text'" json:"messageType" bson:"messageType" validate:"oneof=text image file video"`
	Attachment  *Attachment `gorm:"type:jsonb;serializer:json" json:"attachment,omitempty" bson:"attachment,omitempty" validate:"required_unless=MessageType text"`
	Timestamp   time.Time   `gorm:"not null;index:idx_messages_sender_ts,priority:2,sort:desc;index:idx_messages_receiver_ts,priority:2,sort:desc" json:"timestamp" bson:"timestamp"`
	IsRead      bool        `gorm:"not null;default:false;index" json:"isRead" bson:"isRead"`
	ReadAt      *time.Time  `json:"readAt" bson:"readAt"`
	CreatedAt   time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt" bson:"updatedAt"`

	Sender   *UserBasicInfo `gorm:"-" json:"sender,omitempty" bson:"-"`
	Receiver *UserBasicInfo `gorm:"-" json:"receiver,omitempty" bson:"-"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return "messages"
}

// Normalize trims the content and collapses internal whitespace, defaults the
// type to text and drops any attachment sent along with a text message.
func (m *Message) Normalize() {
	m.Content = strings.Join(strings.Fields(m.Content), " ")
	if m.MessageType == "" {
		m.MessageType = TextMessage
	}
	if m.MessageType == TextMessage {
		m.Attachment = nil
	}
}

// Prepare normalizes and validates a new message and fills in the fields that
// are assigned at creation. The caller's timestamp is kept when set.
func (m *Message) Prepare(now time.Time) error {
	m.Normalize()
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	m.Timestamp = m.Timestamp.UTC()
	m.IsRead = false
	m.ReadAt = nil
	return nil
}

// HasAttachment reports whether the message carries a file.
func (m *Message) HasAttachment() bool {
	return m.MessageType != TextMessage
}

// CanBeDeleted reports whether the message is still inside the deletion window.
func (m *Message) CanBeDeleted(now time.Time) bool {
	return m.Timestamp.After(now.Add(-DeletionWindow))
}

// TimeAgo renders the message age relative to now.
func (m *Message) TimeAgo(now time.Time) string {
	return TimeAgo(m.Timestamp, now)
}

// FileExtension returns the lowercase extension of the attachment filename
// without the dot, falling back to the declared mime type.
func (m *Message) FileExtension() string {
	if m.Attachment == nil {
		return ""
	}
	if ext := filepath.Ext(m.Attachment.Filename); ext != "" {
		return strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	if m.Attachment.MimeType != "" {
		if mt := mimetype.Lookup(m.Attachment.MimeType); mt != nil {
			return strings.TrimPrefix(mt.Extension(), ".")
		}
	}
	return ""
}

// AttachmentInfo is the summary shown in attachment listings.
type AttachmentInfo struct {
	Type      MessageType `json:"type"`
	URL       string      `json:"url"`
	Filename  string      `json:"filename"`
	Size      int64       `json:"size"`
	MimeType  string      `json:"mimeType,omitempty"`
	Extension string      `json:"extension,omitempty"`
}

// AttachmentInfo returns nil for text messages. The display filename prefers
// the user's original name over the stored one.
func (m *Message) AttachmentInfo() *AttachmentInfo {
	if !m.HasAttachment() || m.Attachment == nil {
		return nil
	}
	name := m.Attachment.OriginalName
	if name == "" {
		name = m.Attachment.Filename
	}
	return &AttachmentInfo{
		Type:      m.MessageType,
		URL:       m.Attachment.URL,
		Filename:  name,
		Size:      m.Attachment.Size,
		MimeType:  m.Attachment.MimeType,
		Extension: m.FileExtension(),
	}
}
