package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"duochat/internal/imtypes"
	"duochat/internal/kafka"
	"duochat/internal/models"
	"duochat/internal/storage"
)

const publishTimeout = 5 * time.Second

// Engine turns inbound frames into store mutations and routed frames.
// It holds no per-connection state of its own: membership lives in the hub
// and identity is bound to the Client.
type Engine struct {
	hub      *Hub
	messages storage.MessageStore
	events   kafka.EventPublisher
	log      *slog.Logger
}

// NewEngine creates an Engine. events may be nil.
func NewEngine(hub *Hub, messages storage.MessageStore, events kafka.EventPublisher, log *slog.Logger) *Engine {
	if events == nil {
		events = kafka.NopPublisher{}
	}
	return &Engine{hub: hub, messages: messages, events: events, log: log.With("component", "engine")}
}

// eventError is reported back to the originating connection as messageError.
type eventError struct {
	summary string
	err     error
}

func (e *eventError) Error() string { return e.summary + ": " + e.err.Error() }
func (e *eventError) Unwrap() error { return e.err }

func fail(summary string, err error) error {
	return &eventError{summary: summary, err: err}
}

func invalid(field, reason string) error {
	return &models.ValidationError{Fields: []models.FieldError{{Field: field, Reason: reason}}}
}

// HandleFrame dispatches one frame. Failures never close the connection;
// they are answered with a messageError to c only.
func (e *Engine) HandleFrame(ctx context.Context, c *Client, frame []byte) {
	var env imtypes.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		e.reject(c, "", fail("malformed frame", err))
		return
	}

	var err error
	switch env.Event {
	case imtypes.EventJoinRoom:
		err = e.joinRoom(c, env.Data)
	case imtypes.EventLeaveRoom:
		err = e.leaveRoom(c, env.Data)
	case imtypes.EventSendMessage:
		err = e.sendMessage(ctx, c, env.Data)
	case imtypes.EventMarkAsRead:
		err = e.markAsRead(ctx, c, env.Data)
	case imtypes.EventTyping:
		err = e.typing(c, env.Data)
	default:
		err = fail("unknown event", errors.New(string(env.Event)))
	}
	if err != nil {
		e.reject(c, env.Event, err)
	}
}

func (e *Engine) joinRoom(c *Client, data json.RawMessage) error {
	var p imtypes.RoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fail("malformed joinRoom payload", err)
	}
	if !IsParticipant(p.RoomID, c.UserID()) {
		return fail("cannot join room", invalid("roomId", "is not a conversation of the authenticated user"))
	}
	e.hub.Join(c, p.RoomID)
	return nil
}

func (e *Engine) leaveRoom(c *Client, data json.RawMessage) error {
	var p imtypes.RoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fail("malformed leaveRoom payload", err)
	}
	e.hub.Leave(c, p.RoomID)
	return nil
}

// sendMessage persists, re-reads the enriched record and broadcasts it to
// the room, the sender's own connections included.
func (e *Engine) sendMessage(ctx context.Context, c *Client, data json.RawMessage) error {
	var p imtypes.SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fail("malformed sendMessage payload", err)
	}

	in := p.Message
	switch in.Sender {
	case "":
		in.Sender = c.UserID()
	case c.UserID():
	default:
		return fail("message rejected", invalid("sender", "must be the authenticated user"))
	}
	if in.Receiver != "" && p.RoomID != RoomID(in.Sender, in.Receiver) {
		return fail("message rejected", invalid("roomId", "does not match sender and receiver"))
	}

	msg := &models.Message{
		SenderID:    in.Sender,
		ReceiverID:  in.Receiver,
		Content:     in.Content,
		MessageType: in.MessageType,
		Attachment:  in.Attachment,
	}
	if in.Timestamp != nil {
		msg.Timestamp = *in.Timestamp
	}
	if err := e.messages.Create(ctx, msg); err != nil {
		return fail("message rejected", err)
	}

	stored, err := e.messages.FindByID(ctx, msg.ID)
	if err != nil {
		return fail("message saved but could not be delivered", err)
	}
	frame, err := imtypes.Encode(imtypes.EventReceiveMessage, stored)
	if err != nil {
		return fail("message saved but could not be delivered", err)
	}
	e.hub.BroadcastToRoom(p.RoomID, frame, nil)

	e.publish(kafka.Event{Type: kafka.MessageCreated, UserID: stored.SenderID, Message: stored})
	return nil
}

// markAsRead only transitions unread messages addressed to c's user, then
// tells each original sender which of their messages were read.
func (e *Engine) markAsRead(ctx context.Context, c *Client, data json.RawMessage) error {
	var p imtypes.MarkAsReadPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fail("malformed markAsRead payload", err)
	}
	ids := lo.Uniq(lo.Compact(p.MessageIDs))
	if len(ids) == 0 {
		return nil
	}

	found, err := e.messages.FindByIDs(ctx, ids)
	if err != nil {
		return fail("could not mark messages as read", err)
	}
	unread := lo.Filter(found, func(m *models.Message, _ int) bool {
		return m.ReceiverID == c.UserID() && !m.IsRead
	})
	if len(unread) == 0 {
		return nil
	}

	changed, err := e.messages.MarkAsRead(ctx, messageIDs(unread))
	if err != nil {
		return fail("could not mark messages as read", err)
	}
	if changed == 0 {
		// Another connection of the same user got there first.
		return nil
	}

	for senderID, msgs := range lo.GroupBy(unread, func(m *models.Message) string { return m.SenderID }) {
		frame, err := imtypes.Encode(imtypes.EventMessagesRead, imtypes.MessagesReadPayload{
			MessageIDs: messageIDs(msgs),
			ReaderID:   c.UserID(),
		})
		if err != nil {
			e.log.Error("encode messagesRead", "error", err)
			continue
		}
		e.hub.SendToUser(senderID, frame)
	}

	e.publish(kafka.Event{Type: kafka.MessagesRead, UserID: c.UserID(), MessageIDs: messageIDs(unread)})
	return nil
}

// typing is relayed to the rest of the room as the authenticated user.
func (e *Engine) typing(c *Client, data json.RawMessage) error {
	var p imtypes.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fail("malformed typing payload", err)
	}
	if p.IsTyping == nil {
		return fail("malformed typing payload", invalid("isTyping", "is required"))
	}
	if !IsParticipant(p.RoomID, c.UserID()) {
		return fail("cannot signal typing", invalid("roomId", "is not a conversation of the authenticated user"))
	}

	frame, err := imtypes.Encode(imtypes.EventUserTyping, imtypes.UserTypingPayload{
		UserID:   c.UserID(),
		IsTyping: *p.IsTyping,
	})
	if err != nil {
		return fail("typing relay failed", err)
	}
	e.hub.BroadcastToRoom(p.RoomID, frame, c)
	return nil
}

func (e *Engine) reject(c *Client, event imtypes.Event, err error) {
	payload := imtypes.MessageErrorPayload{Error: "request failed", Details: err.Error()}

	var ee *eventError
	if errors.As(err, &ee) {
		payload.Error = ee.summary
		payload.Details = ee.err.Error()
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		payload.Fields = verr.Fields
	}
	if errors.Is(err, storage.ErrPersistence) {
		// Database internals stay in the log.
		payload.Details = "storage unavailable, try again"
		e.log.Error("persistence failure", "event", event, "user_id", c.UserID(), "error", err)
	} else {
		e.log.Debug("event rejected", "event", event, "user_id", c.UserID(), "error", err)
	}

	frame, encErr := imtypes.Encode(imtypes.EventMessageError, payload)
	if encErr != nil {
		e.log.Error("encode messageError", "error", encErr)
		return
	}
	e.hub.SendToClient(c, frame)
}

// publish is best effort and never delays the connection.
func (e *Engine) publish(ev kafka.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := e.events.Publish(ctx, ev); err != nil {
			e.log.Warn("publish chat event failed", "type", ev.Type, "error", err)
		}
	}()
}

func messageIDs(msgs []*models.Message) []string {
	return lo.Map(msgs, func(m *models.Message, _ int) string { return m.ID })
}
