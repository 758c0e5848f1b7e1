package apiserver

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"duochat/internal/config"
	"duochat/internal/middleware"
)

// Handlers groups everything the API router serves.
type Handlers struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Messages *MessageHandler
}

// NewRouter wires the API routes. Everything under /api/v1 except register
// and login requires a bearer token.
func NewRouter(h Handlers, verifier middleware.Verifier, log *slog.Logger) *mux.Router {
	r := mux.NewRouter()

	authRouter := r.PathPrefix("/api/v1/auth").Subrouter()
	authRouter.HandleFunc("/register", h.Auth.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", h.Auth.Login).Methods(http.MethodPost)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.AuthMiddleware(verifier, log))

	apiRouter.HandleFunc("/auth/logout", h.Auth.Logout).Methods(http.MethodPost)

	apiRouter.HandleFunc("/users/me", h.Users.GetMyProfileHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users", h.Users.ListUsersHandler).Methods(http.MethodGet)

	// Fixed paths first so {userID} does not swallow them.
	apiRouter.HandleFunc("/messages/unread/count", h.Messages.UnreadCountHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/messages/attachments", h.Messages.AttachmentsHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/messages/{userID}", h.Messages.HistoryHandler).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	return r
}

// WithCORS wraps h with the configured CORS policy.
func WithCORS(h http.Handler, cfg config.CORSConfig) http.Handler {
	opts := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods(cfg.AllowedMethods),
		handlers.AllowedHeaders(cfg.AllowedHeaders),
		handlers.ExposedHeaders(cfg.ExposedHeaders),
		handlers.MaxAge(cfg.MaxAge),
	}
	if cfg.AllowCredentials {
		opts = append(opts, handlers.AllowCredentials())
	}
	return handlers.CORS(opts...)(h)
}
