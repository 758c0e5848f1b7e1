package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func imageAttachment() *Attachment {
	return &Attachment{URL: "https://cdn.example.com/a.png", Filename: "a.PNG", Size: 2048, MimeType: "image/png"}
}

func TestMessage_Prepare_Normalizes_Text_Content(t *testing.T) {
	req := require.New(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	msg := &Message{SenderID: "u1", ReceiverID: "u2", Content: "  hello \n\t  world   again "}

	req.NoError(msg.Prepare(now))

	req.Equal("hello world again", msg.Content)
	req.Equal(TextMessage, msg.MessageType)
	req.NotEmpty(msg.ID)
	req.Equal(now, msg.Timestamp)
	req.False(msg.IsRead)
	req.Nil(msg.ReadAt)
}

func TestMessage_Prepare_Keeps_Caller_Timestamp(t *testing.T) {
	req := require.New(t)
	sent := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	msg := &Message{SenderID: "u1", ReceiverID: "u2", Content: "hi", Timestamp: sent}

	req.NoError(msg.Prepare(sent.Add(time.Hour)))
	req.Equal(sent, msg.Timestamp)
}

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name      string
		msg       Message
		wantField string
	}{
		{
			name:      "whitespace only text",
			msg:       Message{SenderID: "u1", ReceiverID: "u2", Content: "   \n "},
			wantField: "content",
		},
		{
			name:      "content too long",
			msg:       Message{SenderID: "u1", ReceiverID: "u2", Content: strings.Repeat("a", MaxContentLength+1)},
			wantField: "content",
		},
		{
			name:      "missing sender",
			msg:       Message{ReceiverID: "u2", Content: "hi"},
			wantField: "senderId",
		},
		{
			name:      "missing receiver",
			msg:       Message{SenderID: "u1", Content: "hi"},
			wantField: "receiverId",
		},
		{
			name:      "message to self",
			msg:       Message{SenderID: "u1", ReceiverID: "u1", Content: "hi"},
			wantField: "receiverId",
		},
		{
			name:      "unknown type",
			msg:       Message{SenderID: "u1", ReceiverID: "u2", MessageType: "sticker", Content: "hi"},
			wantField: "messageType",
		},
		{
			name:      "image without attachment",
			msg:       Message{SenderID: "u1", ReceiverID: "u2", MessageType: ImageMessage},
			wantField: "attachment",
		},
		{
			name:      "file without url",
			msg:       Message{SenderID: "u1", ReceiverID: "u2", MessageType: FileMessage, Attachment: &Attachment{Filename: "a.pdf", Size: 10}},
			wantField: "attachment.url",
		},
		{
			name:      "video without filename",
			msg:       Message{SenderID: "u1", ReceiverID: "u2", MessageType: VideoMessage, Attachment: &Attachment{URL: "https://x/v.mp4", Size: 10}},
			wantField: "attachment.filename",
		},
		{
			name:      "attachment without size",
			msg:       Message{SenderID: "u1", ReceiverID: "u2", MessageType: FileMessage, Attachment: &Attachment{URL: "https://x/a.pdf", Filename: "a.pdf"}},
			wantField: "attachment.size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			msg := tt.msg

			err := msg.Prepare(time.Now())

			req.Error(err)
			req.True(errors.Is(err, ErrValidation))
			var verr *ValidationError
			req.True(errors.As(err, &verr))
			fields := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			req.Contains(fields, tt.wantField)
		})
	}
}

func TestMessage_Prepare_Accepts_Attachment_Without_Content(t *testing.T) {
	req := require.New(t)

	msg := &Message{SenderID: "u1", ReceiverID: "u2", MessageType: ImageMessage, Attachment: imageAttachment()}

	req.NoError(msg.Prepare(time.Now()))
	req.True(msg.HasAttachment())
}

func TestMessage_Normalize_Drops_Attachment_On_Text(t *testing.T) {
	req := require.New(t)

	msg := &Message{SenderID: "u1", ReceiverID: "u2", Content: "hi", Attachment: &Attachment{}}

	req.NoError(msg.Prepare(time.Now()))
	req.Nil(msg.Attachment)
}

func TestMessage_CanBeDeleted(t *testing.T) {
	req := require.New(t)
	now := time.Now()

	recent := &Message{Timestamp: now.Add(-4 * time.Minute)}
	old := &Message{Timestamp: now.Add(-6 * time.Minute)}

	req.True(recent.CanBeDeleted(now))
	req.False(old.CanBeDeleted(now))
}

func TestMessage_AttachmentInfo(t *testing.T) {
	req := require.New(t)

	text := &Message{MessageType: TextMessage, Content: "hi"}
	req.Nil(text.AttachmentInfo())

	att := imageAttachment()
	att.OriginalName = "holiday.png"
	img := &Message{MessageType: ImageMessage, Attachment: att}

	info := img.AttachmentInfo()
	req.NotNil(info)
	req.Equal("holiday.png", info.Filename)
	req.Equal("png", info.Extension)
	req.Equal(int64(2048), info.Size)
	req.Equal(ImageMessage, info.Type)
}

func TestMessage_FileExtension_Falls_Back_To_Mime_Type(t *testing.T) {
	req := require.New(t)

	msg := &Message{MessageType: FileMessage, Attachment: &Attachment{Filename: "report", MimeType: "application/pdf"}}

	req.Equal("pdf", msg.FileExtension())
}

func TestTimeAgo(t *testing.T) {
	req := require.New(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	req.Equal("Just now", TimeAgo(now.Add(-30*time.Second), now))
	req.Equal("5 minutes ago", TimeAgo(now.Add(-5*time.Minute), now))
	req.Equal("3 hours ago", TimeAgo(now.Add(-3*time.Hour), now))
	req.Equal("2 days ago", TimeAgo(now.Add(-49*time.Hour), now))

	u := &User{}
	req.Equal("Never", u.LastActiveText(now))
}
