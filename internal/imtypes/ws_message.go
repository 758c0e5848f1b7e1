// Package imtypes holds the JSON frames exchanged over the chat websocket.
//
// Every frame is an Envelope: {"event": "<name>", "data": <payload>}.
package imtypes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"duochat/internal/models"
)

// Event names a frame on the wire.
type Event string

// Client to server.
const (
	EventJoinRoom    Event = "joinRoom"
	EventLeaveRoom   Event = "leaveRoom"
	EventSendMessage Event = "sendMessage"
	EventMarkAsRead  Event = "markAsRead"
	EventTyping      Event = "typing"
)

// Server to client.
const (
	EventReceiveMessage Event = "receiveMessage"
	EventMessageError   Event = "messageError"
	EventMessagesRead   Event = "messagesRead"
	EventUserTyping     Event = "userTyping"
)

// Envelope wraps every frame.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds an outbound frame.
func Encode(event Event, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// RoomPayload carries the room of joinRoom and leaveRoom. Clients may send
// either a bare string or {"roomId": "..."}.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

func (p *RoomPayload) UnmarshalJSON(b []byte) error {
	if b = bytes.TrimSpace(b); len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &p.RoomID)
	}
	type plain RoomPayload
	return json.Unmarshal(b, (*plain)(p))
}

// MessageInput is the client-submitted message inside sendMessage.
type MessageInput struct {
	Content     string             `json:"content"`
	Sender      string             `json:"sender"`
	Receiver    string             `json:"receiver"`
	Timestamp   *time.Time         `json:"timestamp,omitempty"`
	MessageType models.MessageType `json:"messageType,omitempty"`
	Attachment  *models.Attachment `json:"attachment,omitempty"`
}

type SendMessagePayload struct {
	RoomID  string       `json:"roomId"`
	Message MessageInput `json:"message"`
}

type MarkAsReadPayload struct {
	MessageIDs []string `json:"messageIds"`
}

// TypingPayload is relayed to the room. IsTyping is a pointer so a missing
// flag can be told apart from false.
type TypingPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId,omitempty"`
	IsTyping *bool  `json:"isTyping"`
}

// MessageErrorPayload is sent to the originating connection only.
type MessageErrorPayload struct {
	Error   string              `json:"error"`
	Details string              `json:"details,omitempty"`
	Fields  []models.FieldError `json:"fields,omitempty"`
}

// MessagesReadPayload tells a sender which of their messages were read.
type MessagesReadPayload struct {
	MessageIDs []string `json:"messageIds"`
	ReaderID   string   `json:"readerId"`
}

type UserTypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}
