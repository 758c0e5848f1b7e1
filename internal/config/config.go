package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// APIServerConfig 保存 API 服务器特有的配置。
type APIServerConfig struct {
	Host string     `mapstructure:"HOST"`
	Port string     `mapstructure:"PORT"`
	CORS CORSConfig `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// RedisConfig holds configuration for Redis.
// Without Redis, logout cannot revoke tokens before they expire.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"ENABLED"`
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName    string          `mapstructure:"APP_NAME"`
	AppVersion string          `mapstructure:"APP_VERSION"`
	LogLevel   string          `mapstructure:"LOG_LEVEL"`
	LogFormat  string          `mapstructure:"LOG_FORMAT"`
	Server     ServerConfig    `mapstructure:"SERVER"`     // ChatServer
	APIServer  APIServerConfig `mapstructure:"API_SERVER"` // APIServer
	Kafka      KafkaConfig     `mapstructure:"KAFKA"`
	Database   DatabaseConfig  `mapstructure:"DATABASE"`
	Auth       AuthConfig      `mapstructure:"AUTH"`
	WebSocket  WebSocketConfig `mapstructure:"WEBSOCKET"`
	Redis      RedisConfig     `mapstructure:"REDIS"`
	Presence   PresenceConfig  `mapstructure:"PRESENCE"`
}

// ServerConfig holds configuration for the chat HTTP server.
type ServerConfig struct {
	Host           string        `mapstructure:"HOST"`
	Port           string        `mapstructure:"PORT"`
	WebSocketPath  string        `mapstructure:"WEBSOCKET_PATH"`
	ReadTimeout    time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"WRITE_TIMEOUT"`
	MaxHeaderBytes int           `mapstructure:"MAX_HEADER_BYTES"`
}

// KafkaConfig holds configuration for Kafka.
type KafkaConfig struct {
	Enabled            bool     `mapstructure:"ENABLED"`
	Brokers            []string `mapstructure:"BROKERS"`
	ClientID           string   `mapstructure:"CLIENT_ID"`
	ChatEventsTopic    string   `mapstructure:"CHAT_EVENTS_TOPIC"`    // message.created / messages.read for downstream consumers
	SessionEventsTopic string   `mapstructure:"SESSION_EVENTS_TOPIC"` // apiserver -> chatserver session revocations
	ConsumerGroup      string   `mapstructure:"CONSUMER_GROUP"`
	Protocol           string   `mapstructure:"PROTOCOL"`
}

// DatabaseConfig holds configuration for the database.
// Users always live in Postgres; MESSAGE_STORE picks where messages go.
type DatabaseConfig struct {
	Type          string `mapstructure:"TYPE"`
	Host          string `mapstructure:"HOST"`
	Port          int    `mapstructure:"PORT"`
	User          string `mapstructure:"USER"`
	Password      string `mapstructure:"PASSWORD"`
	DBName        string `mapstructure:"DB_NAME"`
	SSLMode       string `mapstructure:"SSL_MODE"`
	MessageStore  string `mapstructure:"MESSAGE_STORE"` // "postgres" or "mongo"
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
}

// AuthConfig holds configuration for authentication (e.g., JWT).
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
}

// WebSocketConfig holds configuration for WebSocket connections.
type WebSocketConfig struct {
	WriteWaitSeconds    int `mapstructure:"WRITE_WAIT_SECONDS"`
	PongWaitSeconds     int `mapstructure:"PONG_WAIT_SECONDS"`
	PingPeriodSeconds   int `mapstructure:"PING_PERIOD_SECONDS"`
	MaxMessageSizeBytes int `mapstructure:"MAX_MESSAGE_SIZE_BYTES"`
	SendBufferSize      int `mapstructure:"SEND_BUFFER_SIZE"`
}

// PresenceConfig controls the inactive-user sweep run by the API server.
type PresenceConfig struct {
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
	MaxInactive   time.Duration `mapstructure:"MAX_INACTIVE"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory is loaded into the environment first.
func LoadConfig(path string) (config Config, err error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("APP_NAME", "duochat")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	// Server Defaults (ChatServer)
	v.SetDefault("SERVER.HOST", "0.0.0.0")
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.WEBSOCKET_PATH", "/ws/chat")
	v.SetDefault("SERVER.READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.MAX_HEADER_BYTES", 1<<20) // 1 MB

	// APIServer Defaults
	v.SetDefault("API_SERVER.HOST", "0.0.0.0")
	v.SetDefault("API_SERVER.PORT", "8081")
	v.SetDefault("API_SERVER.CORS.ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"})
	v.SetDefault("API_SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length"})
	v.SetDefault("API_SERVER.CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("API_SERVER.CORS.MAX_AGE", 300) // 5 minutes

	// Kafka Defaults
	v.SetDefault("KAFKA.ENABLED", false)
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "duochat")
	v.SetDefault("KAFKA.CHAT_EVENTS_TOPIC", "duochat-chat-events")
	v.SetDefault("KAFKA.SESSION_EVENTS_TOPIC", "duochat-session-events")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "duochat-chat-server")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")

	// Database Defaults (PostgreSQL)
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "duochat")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.MESSAGE_STORE", "postgres")
	v.SetDefault("DATABASE.MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("DATABASE.MONGO_DATABASE", "duochat")

	// Auth Defaults
	v.SetDefault("AUTH.JWT_SECRET_KEY", "a_very_secret_key_that_should_be_changed")
	v.SetDefault("AUTH.JWT_EXPIRY", 24*time.Hour)

	// Redis Defaults
	v.SetDefault("REDIS.ENABLED", false)
	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	// WebSocket Defaults
	v.SetDefault("WEBSOCKET.WRITE_WAIT_SECONDS", 10)
	v.SetDefault("WEBSOCKET.PONG_WAIT_SECONDS", 60)
	v.SetDefault("WEBSOCKET.PING_PERIOD_SECONDS", 54) // (60 * 9) / 10
	v.SetDefault("WEBSOCKET.MAX_MESSAGE_SIZE_BYTES", 16*1024)
	v.SetDefault("WEBSOCKET.SEND_BUFFER_SIZE", 256)

	// Presence Defaults
	v.SetDefault("PRESENCE.SWEEP_INTERVAL", time.Hour)
	v.SetDefault("PRESENCE.MAX_INACTIVE", 24*time.Hour)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// SERVER_PORT overrides SERVER.PORT, SERVER_WEBSOCKET_PATH overrides SERVER.WEBSOCKET_PATH.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		// Defaults are enough to run locally.
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
