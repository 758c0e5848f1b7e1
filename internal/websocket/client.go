package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"duochat/internal/config"
	"duochat/internal/models"
)

// FrameHandler processes one inbound text frame from c. Frames from a single
// connection are handled one at a time, in arrival order.
type FrameHandler interface {
	HandleFrame(ctx context.Context, c *Client, frame []byte)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound frames. Only the hub closes it.
	send chan []byte

	// user is bound once at admission and never changes.
	user *models.User
	log  *slog.Logger
}

// NewClient wraps an upgraded connection for user.
func NewClient(hub *Hub, conn *websocket.Conn, user *models.User, cfg config.WebSocketConfig, log *slog.Logger) *Client {
	size := cfg.SendBufferSize
	if size <= 0 {
		size = 256
	}
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, size),
		user: user,
		log:  log.With("user_id", user.ID),
	}
}

func (c *Client) UserID() string     { return c.user.ID }
func (c *Client) User() *models.User { return c.user }

// Serve registers c with the hub and runs its pumps. It returns once the
// read side has finished and the client is unregistered.
func (c *Client) Serve(ctx context.Context, handler FrameHandler, cfg config.WebSocketConfig) {
	c.hub.Register(c)
	go c.writePump(cfg)
	c.readPump(ctx, handler, cfg)
}

// readPump pumps frames from the websocket connection to the handler.
func (c *Client) readPump(ctx context.Context, handler FrameHandler, cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongWaitSeconds) * time.Second
	c.conn.SetReadLimit(int64(cfg.MaxMessageSizeBytes))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.log.Debug("ignoring non-text frame", "type", messageType)
			continue
		}
		handler.HandleFrame(ctx, c, frame)
	}
}

// writePump pumps frames from the hub to the websocket connection, one
// websocket message per frame.
func (c *Client) writePump(cfg config.WebSocketConfig) {
	writeWait := time.Duration(cfg.WriteWaitSeconds) * time.Second
	ticker := time.NewTicker(time.Duration(cfg.PingPeriodSeconds) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
