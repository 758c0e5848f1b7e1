package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")

	req.NoError(err)
	req.Equal("8080", cfg.Server.Port)
	req.Equal("/ws/chat", cfg.Server.WebSocketPath)
	req.Equal("postgres", cfg.Database.MessageStore)
	req.Equal(24*time.Hour, cfg.Presence.MaxInactive)
	req.Equal(256, cfg.WebSocket.SendBufferSize)
	req.False(cfg.Kafka.Enabled)
}

func TestLoadConfig_Environment_Overrides_Defaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("DATABASE_MESSAGE_STORE", "mongo")

	cfg, err := LoadConfig("")

	req.NoError(err)
	req.Equal("9999", cfg.Server.Port)
	req.Equal("mongo", cfg.Database.MessageStore)
}

func TestLoadConfig_File(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "chat.yaml")
	content := "AUTH:\n  JWT_SECRET_KEY: from-file\nPRESENCE:\n  MAX_INACTIVE: 2h\n"
	req.NoError(os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)

	req.NoError(err)
	req.Equal("from-file", cfg.Auth.JWTSecretKey)
	req.Equal(2*time.Hour, cfg.Presence.MaxInactive)
}
