package auth

import (
	"context"
	"time"
)

//go:generate mockgen -destination=../mocks/mock_auth.go -package=mocks duochat/internal/auth TokenBlacklist,UserLookup

// TokenBlacklist stores the jti of tokens revoked before their expiry.
type TokenBlacklist interface {
	// Add keeps jti blacklisted until the token would have expired anyway.
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}
