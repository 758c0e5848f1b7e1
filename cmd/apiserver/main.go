package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"duochat/internal/auth"
	"duochat/internal/bootstrap"
	"duochat/internal/config"
	"duochat/internal/handlers/apiserver"
	"duochat/internal/logging"
	"duochat/internal/presence"
	"duochat/internal/services"
	"duochat/internal/storage"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the config file")
	pflag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", "apiserver")

	if err := run(cfg, log); err != nil {
		log.Error("api server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化数据库连接
	db, err := bootstrap.Database(cfg, log)
	if err != nil {
		return err
	}
	users := storage.NewGormUserRepository(db)

	messages, closeMessages, err := bootstrap.MessageStore(ctx, cfg.Database, db, users, log)
	if err != nil {
		return err
	}
	defer closeMessages()

	// 3. 可选的 Redis 黑名单和 Kafka 会话事件
	blacklist, closeRedis, err := bootstrap.Blacklist(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeRedis()

	sessions, closeKafka, err := bootstrap.Publisher(cfg.Kafka, cfg.Kafka.SessionEventsTopic, log)
	if err != nil {
		return err
	}
	defer closeKafka()

	// 4. 服务与处理器
	tracker := presence.NewTracker(users)
	go tracker.RunSweeper(ctx, cfg.Presence.SweepInterval, cfg.Presence.MaxInactive, log)

	router := apiserver.NewRouter(apiserver.Handlers{
		Auth:     apiserver.NewAuthHandler(services.NewAuthService(users, tracker, blacklist, sessions, cfg.Auth, log), log),
		Users:    apiserver.NewUserHandler(services.NewUserService(users), log),
		Messages: apiserver.NewMessageHandler(services.NewMessageService(messages), log),
	}, auth.NewVerifier(cfg.Auth.JWTSecretKey, blacklist, users), log)

	addr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      apiserver.WithCORS(router, cfg.APIServer.CORS),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down api server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
