package apiserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"duochat/internal/middleware"
	"duochat/internal/models"
	"duochat/internal/services"
	"duochat/internal/storage"
)

// AuthHandler 封装了认证相关的 HTTP 处理器方法。
type AuthHandler struct {
	authService services.AuthService
	log         *slog.Logger
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService services.AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// LoginRequest 是用户登录请求的结构体。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse 是成功登录后返回的结构体。
type LoginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

// ErrorResponse 是 API 错误响应的通用结构体。
type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields []models.FieldError `json:"fields,omitempty"`
}

// Register 处理用户注册请求。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrUserAlreadyExists) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		h.writeServiceError(w, "registration failed", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    user,
	})
}

// Login 处理用户登录请求。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSONError(w, "email and password are required", http.StatusBadRequest)
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeJSONError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h.writeServiceError(w, "login failed", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, LoginResponse{Message: "Login successful", Token: token, User: user})
}

// Logout revokes the token the request was made with.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if err := h.authService.Logout(r.Context(), claims); err != nil {
		h.writeServiceError(w, "logout failed", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// writeServiceError maps service errors onto statuses. Unexpected errors are
// logged and hidden behind message.
func (h *AuthHandler) writeServiceError(w http.ResponseWriter, message string, err error) {
	writeServiceError(w, h.log, message, err)
}

func writeServiceError(w http.ResponseWriter, log *slog.Logger, message string, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSONResponse(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, storage.ErrNotFound):
		writeJSONError(w, "not found", http.StatusNotFound)
	default:
		log.Error(message, "error", err)
		writeJSONError(w, message, http.StatusInternalServerError)
	}
}

// writeJSONResponse 是一个辅助函数，用于发送 JSON 响应。
func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeJSONError 是一个辅助函数，用于发送 JSON 格式的错误响应。
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}
