// Package bootstrap opens the backing services shared by the API and chat
// servers. Optional backends are skipped when disabled in the config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"duochat/internal/auth"
	"duochat/internal/config"
	"duochat/internal/kafka"
	appRedis "duochat/internal/redis"
	"duochat/internal/storage"
	"duochat/internal/storage/mongostore"
)

// Closer releases a backend. It is never nil.
type Closer func()

func nopCloser() {}

// Database opens Postgres and migrates the schema.
func Database(cfg config.Config, log *slog.Logger) (*gorm.DB, error) {
	db, err := storage.InitDB(cfg.Database, log, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		return nil, err
	}
	log.Info("database ready", "host", cfg.Database.Host, "db", cfg.Database.DBName)
	return db, nil
}

// MessageStore returns the store selected by DATABASE.MESSAGE_STORE.
func MessageStore(ctx context.Context, cfg config.DatabaseConfig, db *gorm.DB, users storage.UserDirectory, log *slog.Logger) (storage.MessageStore, Closer, error) {
	switch strings.ToLower(cfg.MessageStore) {
	case "", "postgres":
		return storage.NewGormMessageRepository(db, users), nopCloser, nil
	case "mongo", "mongodb":
		mdb, err := mongostore.NewDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nopCloser, err
		}
		if err := mongostore.EnsureIndexes(ctx, mdb); err != nil {
			_ = mdb.Client().Disconnect(context.Background())
			return nil, nopCloser, err
		}
		log.Info("messages stored in mongo", "database", cfg.MongoDatabase)
		return mongostore.NewMessageRepository(mdb, users), func() {
			_ = mdb.Client().Disconnect(context.Background())
		}, nil
	default:
		return nil, nopCloser, fmt.Errorf("unknown message store %q", cfg.MessageStore)
	}
}

// Blacklist connects the Redis token blacklist. A nil blacklist is returned
// when Redis is disabled.
func Blacklist(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (auth.TokenBlacklist, Closer, error) {
	if !cfg.Enabled {
		log.Warn("redis disabled, logged out tokens stay valid until they expire")
		return nil, nopCloser, nil
	}
	client, err := appRedis.NewClient(ctx, cfg)
	if err != nil {
		return nil, nopCloser, err
	}
	log.Info("redis connected", "addr", cfg.Addr)
	return appRedis.NewRedisTokenBlacklist(client), func() { _ = client.Close() }, nil
}

// Publisher returns an EventPublisher for topic, or a NopPublisher when Kafka
// is disabled.
func Publisher(cfg config.KafkaConfig, topic string, log *slog.Logger) (kafka.EventPublisher, Closer, error) {
	if !cfg.Enabled {
		return kafka.NopPublisher{}, nopCloser, nil
	}
	producer, err := kafka.NewConfluentKafkaProducer(cfg, log)
	if err != nil {
		return nil, nopCloser, err
	}
	return kafka.NewEventPublisher(producer, topic), producer.Close, nil
}
