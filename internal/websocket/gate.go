package websocket

import (
	"context"
	"net/http"

	"duochat/internal/auth"
	"duochat/internal/models"
)

// Verifier resolves a bearer token to a user.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.User, *auth.Claims, error)
}

// Gate authenticates a connection attempt before it is upgraded.
type Gate struct {
	verifier Verifier
}

func NewGate(verifier Verifier) *Gate {
	return &Gate{verifier: verifier}
}

// Admit returns the user the handshake authenticates as. The token is taken
// from the "token" query parameter, since browsers cannot set headers on a
// websocket handshake, or else from a bearer Authorization header.
func (g *Gate) Admit(r *http.Request) (*models.User, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.BearerToken(r)
	}
	user, _, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, err
	}
	return user, nil
}
