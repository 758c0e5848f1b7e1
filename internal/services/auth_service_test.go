package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"duochat/internal/auth"
	"duochat/internal/config"
	"duochat/internal/kafka"
	"duochat/internal/logging"
	"duochat/internal/mocks"
	"duochat/internal/models"
	"duochat/internal/presence"
	"duochat/internal/services"
	"duochat/internal/storage"
	"duochat/internal/storage/storagetest"
)

var authCfg = config.AuthConfig{JWTSecretKey: "service-test-secret", JWTExpiry: time.Hour}

type authFixture struct {
	svc       services.AuthService
	users     storage.UserRepository
	blacklist *mocks.MockTokenBlacklist
	producer  *mocks.MockMessageProducer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	db := storagetest.NewDB(t)
	users := storage.NewGormUserRepository(db)
	f := &authFixture{
		users:     users,
		blacklist: mocks.NewMockTokenBlacklist(ctrl),
		producer:  mocks.NewMockMessageProducer(ctrl),
	}
	f.svc = services.NewAuthService(users, presence.NewTracker(users), f.blacklist,
		kafka.NewEventPublisher(f.producer, "sessions"), authCfg, logging.Discard())
	return f
}

func (f *authFixture) register(t *testing.T) *models.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), services.RegisterInput{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return user
}

func TestAuthService_Register_Normalizes_And_Hashes(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)

	user := f.register(t)

	req.NotEmpty(user.ID)
	req.Equal("alice@example.com", user.Email)
	req.NotEqual("secret123", user.PasswordHash)
	req.True(auth.CheckPasswordHash("secret123", user.PasswordHash))
}

func TestAuthService_Register_Rejects_Duplicate_Email(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	_, err := f.svc.Register(context.Background(), services.RegisterInput{
		Username: "alice2", Email: "ALICE@example.com", Password: "another1",
	})

	require.ErrorIs(t, err, services.ErrUserAlreadyExists)
}

func TestAuthService_Register_Validates_Input(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), services.RegisterInput{
		Username: "a", Email: "not-an-email", Password: "123",
	})

	var verr *models.ValidationError
	req.ErrorAs(err, &verr)
	fields := make([]string, 0, len(verr.Fields))
	for _, fe := range verr.Fields {
		fields = append(fields, fe.Field)
	}
	req.ElementsMatch([]string{"username", "email", "password"}, fields)
}

func TestAuthService_Login_Activates_User_And_Issues_Token(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)
	registered := f.register(t)

	token, user, err := f.svc.Login(context.Background(), "alice@example.com", "secret123")

	req.NoError(err)
	req.True(user.IsActive)
	req.NotNil(user.LastActive)
	claims, err := auth.ValidateToken(context.Background(), token, authCfg.JWTSecretKey, nil)
	req.NoError(err)
	req.Equal(registered.ID, claims.UserID)
}

func TestAuthService_Login_Wrong_Password_Or_Unknown_Email(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	for name, creds := range map[string][2]string{
		"wrong password": {"alice@example.com", "nope"},
		"unknown email":  {"bob@example.com", "secret123"},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := f.svc.Login(context.Background(), creds[0], creds[1])
			require.ErrorIs(t, err, services.ErrInvalidCredentials)
		})
	}
}

func TestAuthService_Logout_Revokes_Deactivates_And_Announces(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t)
	token, user, err := f.svc.Login(ctx, "alice@example.com", "secret123")
	req.NoError(err)
	claims, err := auth.ValidateToken(ctx, token, authCfg.JWTSecretKey, nil)
	req.NoError(err)

	f.blacklist.EXPECT().Add(gomock.Any(), claims.ID, claims.ExpiresAt.Time).Return(nil)
	var published kafka.Event
	f.producer.EXPECT().SendMessage(gomock.Any(), "sessions", []byte(user.ID), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _, payload []byte) error {
			return json.Unmarshal(payload, &published)
		})

	req.NoError(f.svc.Logout(ctx, claims))

	stored, err := f.users.GetByID(ctx, user.ID)
	req.NoError(err)
	req.False(stored.IsActive)
	req.Equal(kafka.SessionRevoked, published.Type)
	req.Equal(user.ID, published.UserID)
}

func TestAuthService_Logout_Fails_When_Revocation_Fails(t *testing.T) {
	f := newAuthFixture(t)
	claims := &auth.Claims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{ID: "jti", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	f.blacklist.EXPECT().Add(gomock.Any(), "jti", gomock.Any()).Return(errors.New("redis down"))

	err := f.svc.Logout(context.Background(), claims)

	require.ErrorContains(t, err, "revoke token")
}
