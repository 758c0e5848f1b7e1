package chatserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"duochat/internal/auth"
	"duochat/internal/config"
	ws "duochat/internal/websocket"
)

// WebSocketHandler 负责处理 WebSocket 连接请求。
type WebSocketHandler struct {
	ctx      context.Context
	hub      *ws.Hub
	gate     *ws.Gate
	engine   *ws.Engine
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewWebSocketHandler creates a handler. Connections are served with ctx
// rather than the request context so in-flight events finish after the
// client goes away.
func NewWebSocketHandler(ctx context.Context, hub *ws.Hub, gate *ws.Gate, engine *ws.Engine, cfg config.WebSocketConfig, log *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		ctx:    ctx,
		hub:    hub,
		gate:   gate,
		engine: engine,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers are authenticated by token, not cookies.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.With("component", "ws-handler"),
	}
}

// ServeWS authenticates the handshake and only then upgrades the connection.
// Rejected attempts never become websockets.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user, err := h.gate.Admit(r)
	if err != nil {
		status := auth.HTTPStatus(err)
		if status == http.StatusUnauthorized {
			h.log.Info("websocket connection refused", "remote", r.RemoteAddr, "error", err)
		} else {
			h.log.Error("websocket authentication unavailable", "error", err)
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.log.Warn("websocket upgrade failed", "user_id", user.ID, "error", err)
		return
	}

	h.log.Info("client connected", "user_id", user.ID, "username", user.Username)
	ws.NewClient(h.hub, conn, user, h.cfg, h.log).Serve(h.ctx, h.engine, h.cfg)
	h.log.Info("client disconnected", "user_id", user.ID)
}
