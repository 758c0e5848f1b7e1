package apiserver

import (
	"log/slog"
	"net/http"

	"duochat/internal/middleware"
	"duochat/internal/services"
)

// UserHandler 封装了用户相关的 HTTP 处理器方法。
type UserHandler struct {
	userService services.UserService
	log         *slog.Logger
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService services.UserService, log *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

// GetMyProfileHandler 处理获取当前登录用户信息的请求。
func (h *UserHandler) GetMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	profile, err := h.userService.Profile(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.log, "failed to load profile", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, profile)
}

// ListUsersHandler returns everyone the caller can chat with.
func (h *UserHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	users, err := h.userService.Roster(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.log, "failed to list users", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}
