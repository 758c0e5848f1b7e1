package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"duochat/internal/models"
	"duochat/internal/storage"
)

// Rejections of a bearer credential. Anything else returned by Verify is an
// infrastructure failure (database or blacklist unavailable).
var (
	ErrAuthRequired      = errors.New("authentication required")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUnknownIdentity   = errors.New("unknown identity")
)

// UserLookup resolves a user id to a user; storage.UserRepository satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Verifier turns a bearer token into a user. Both the HTTP middleware and
// the websocket gate go through it.
type Verifier struct {
	secret    string
	blacklist TokenBlacklist
	users     UserLookup
}

// NewVerifier creates a Verifier. blacklist may be nil.
func NewVerifier(secret string, blacklist TokenBlacklist, users UserLookup) *Verifier {
	return &Verifier{secret: secret, blacklist: blacklist, users: users}
}

// Verify validates token and loads the user it names.
func (v *Verifier) Verify(ctx context.Context, token string) (*models.User, *Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, ErrAuthRequired
	}

	claims, err := ValidateToken(ctx, token, v.secret, v.blacklist)
	if err != nil {
		if errors.Is(err, errBlacklistUnavailable) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	user, err := v.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: user %s", ErrUnknownIdentity, claims.UserID)
		}
		return nil, nil, fmt.Errorf("load user %s: %w", claims.UserID, err)
	}
	return user, claims, nil
}
