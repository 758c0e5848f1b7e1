package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"duochat/internal/auth"
	"duochat/internal/models"
)

// contextKey 是用于在 context.Context 中存储值的自定义类型，以避免键冲突。
type contextKey string

const (
	userKey   contextKey = "user"
	claimsKey contextKey = "claims"
)

// Verifier resolves a bearer token to a user.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.User, *auth.Claims, error)
}

// AuthMiddleware 验证 Bearer 令牌并将用户信息添加到上下文中。
func AuthMiddleware(verifier Verifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, claims, err := verifier.Verify(r.Context(), auth.BearerToken(r))
			if err != nil {
				status := auth.HTTPStatus(err)
				message := "authentication required"
				if status != http.StatusUnauthorized {
					log.Error("authentication unavailable", "error", err)
					message = "authentication unavailable"
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext returns the authenticated user.
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok
}

// GetClaimsFromContext returns the claims of the token the request used.
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
