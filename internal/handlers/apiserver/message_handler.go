package apiserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"duochat/internal/middleware"
	"duochat/internal/models"
	"duochat/internal/services"
)

// MessageHandler serves conversation history and message queries.
type MessageHandler struct {
	messageService services.MessageService
	log            *slog.Logger
}

func NewMessageHandler(messageService services.MessageService, log *slog.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, log: log}
}

// HistoryHandler returns the conversation with {userID}, oldest first.
// An optional ?limit= caps how many of the newest messages are returned.
func (h *MessageHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	otherID := mux.Vars(r)["userID"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	msgs, err := h.messageService.History(r.Context(), user.ID, otherID, limit)
	if err != nil {
		writeServiceError(w, h.log, "failed to load messages", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, msgs)
}

func (h *MessageHandler) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	n, err := h.messageService.UnreadCount(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.log, "failed to count unread messages", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int64{"count": n})
}

// AttachmentsHandler lists the caller's attachments, optionally ?type= filtered.
func (h *MessageHandler) AttachmentsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	filter := models.MessageType(r.URL.Query().Get("type"))
	entries, err := h.messageService.Attachments(r.Context(), user.ID, filter)
	if err != nil {
		writeServiceError(w, h.log, "failed to list attachments", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, entries)
}
