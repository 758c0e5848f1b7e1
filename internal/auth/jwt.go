package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duochat/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "duochat"

var (
	// errTokenRevoked marks a token whose jti was blacklisted at logout.
	errTokenRevoked = errors.New("token has been revoked")
	// errBlacklistUnavailable means revocation could not be checked at all.
	errBlacklistUnavailable = errors.New("token blacklist unavailable")
)

// Claims 是 JWT 中的自定义声明，嵌入了 jwt.RegisteredClaims。
// The jti (RegisteredClaims.ID) is what logout blacklists.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken issues a signed HS256 token for the user.
func GenerateToken(userID, username string, authCfg config.AuthConfig) (string, error) {
	jwtID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate jwt id: %w", err)
	}

	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(authCfg.JWTExpiry)),
			ID:        jwtID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(authCfg.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and verifies tokenString. Expired, malformed and
// badly signed tokens all fail here, as do tokens on the blacklist.
// blacklist may be nil when revocation is not configured.
func ValidateToken(ctx context.Context, tokenString string, jwtKey string, blacklist TokenBlacklist) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtKey), nil
	}, jwt.WithExpirationRequired(), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("parse jwt: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("jwt is not valid")
	}
	if claims.UserID == "" {
		return nil, errors.New("jwt has no user id")
	}

	if blacklist != nil {
		if claims.ID == "" {
			return nil, errors.New("jwt has no jti, cannot check revocation")
		}
		revoked, err := blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBlacklistUnavailable, err)
		}
		if revoked {
			return nil, errTokenRevoked
		}
	}

	return claims, nil
}
