package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"duochat/internal/auth"
	"duochat/internal/config"
	"duochat/internal/mocks"
	"duochat/internal/models"
	"duochat/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const secret = "test-secret"

func authCfg(expiry time.Duration) config.AuthConfig {
	return config.AuthConfig{JWTSecretKey: secret, JWTExpiry: expiry}
}

func TestVerifier_Verify_Resolves_User(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserLookup(ctrl)
	blacklist := mocks.NewMockTokenBlacklist(ctrl)
	ctx := context.Background()

	token, err := auth.GenerateToken("u1", "alice", authCfg(time.Hour))
	req.NoError(err)

	alice := &models.User{BaseModel: models.BaseModel{ID: "u1"}, Username: "alice"}
	blacklist.EXPECT().IsBlacklisted(gomock.Any(), gomock.Any()).Return(false, nil)
	users.EXPECT().GetByID(gomock.Any(), "u1").Return(alice, nil)

	verifier := auth.NewVerifier(secret, blacklist, users)
	user, claims, err := verifier.Verify(ctx, token)

	req.NoError(err)
	req.Equal(alice, user)
	req.Equal("alice", claims.Username)
	req.NotEmpty(claims.ID)
}

func TestVerifier_Verify_Missing_Token(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	verifier := auth.NewVerifier(secret, nil, mocks.NewMockUserLookup(ctrl))
	_, _, err := verifier.Verify(context.Background(), "  ")

	req.ErrorIs(err, auth.ErrAuthRequired)
}

func TestVerifier_Verify_Rejects_Bad_Tokens(t *testing.T) {
	expired, err := auth.GenerateToken("u1", "alice", authCfg(-time.Minute))
	require.NoError(t, err)

	foreign, err := auth.GenerateToken("u1", "alice", config.AuthConfig{JWTSecretKey: "other", JWTExpiry: time.Hour})
	require.NoError(t, err)

	noneAlg := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"userId": "u1"})
	unsigned, err := noneAlg.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":         expired,
		"wrong signature": foreign,
		"malformed":       "not.a.jwt",
		"none algorithm":  unsigned,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)

			verifier := auth.NewVerifier(secret, nil, mocks.NewMockUserLookup(ctrl))
			_, _, err := verifier.Verify(context.Background(), token)

			req.ErrorIs(err, auth.ErrInvalidCredential)
		})
	}
}

func TestVerifier_Verify_Revoked_Token(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	blacklist := mocks.NewMockTokenBlacklist(ctrl)

	token, err := auth.GenerateToken("u1", "alice", authCfg(time.Hour))
	req.NoError(err)
	blacklist.EXPECT().IsBlacklisted(gomock.Any(), gomock.Any()).Return(true, nil)

	verifier := auth.NewVerifier(secret, blacklist, mocks.NewMockUserLookup(ctrl))
	_, _, err = verifier.Verify(context.Background(), token)

	req.ErrorIs(err, auth.ErrInvalidCredential)
}

func TestVerifier_Verify_Blacklist_Down_Is_Not_A_Credential_Error(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	blacklist := mocks.NewMockTokenBlacklist(ctrl)

	token, err := auth.GenerateToken("u1", "alice", authCfg(time.Hour))
	req.NoError(err)
	blacklist.EXPECT().IsBlacklisted(gomock.Any(), gomock.Any()).Return(false, errors.New("connection refused"))

	verifier := auth.NewVerifier(secret, blacklist, mocks.NewMockUserLookup(ctrl))
	_, _, err = verifier.Verify(context.Background(), token)

	req.Error(err)
	req.NotErrorIs(err, auth.ErrInvalidCredential)
}

func TestVerifier_Verify_Unknown_User(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserLookup(ctrl)

	token, err := auth.GenerateToken("ghost", "ghost", authCfg(time.Hour))
	req.NoError(err)
	users.EXPECT().GetByID(gomock.Any(), "ghost").Return(nil, storage.ErrNotFound)

	verifier := auth.NewVerifier(secret, nil, users)
	_, _, err = verifier.Verify(context.Background(), token)

	req.ErrorIs(err, auth.ErrUnknownIdentity)
}

func TestPassword_Hash_And_Check(t *testing.T) {
	req := require.New(t)

	hash, err := auth.HashPassword("s3cret-pass")

	req.NoError(err)
	req.True(auth.CheckPasswordHash("s3cret-pass", hash))
	req.False(auth.CheckPasswordHash("wrong", hash))
}
