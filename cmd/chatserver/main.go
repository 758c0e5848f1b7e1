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

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"

	"duochat/internal/auth"
	"duochat/internal/bootstrap"
	"duochat/internal/config"
	"duochat/internal/handlers/chatserver"
	"duochat/internal/kafka"
	"duochat/internal/logging"
	"duochat/internal/storage"
	"duochat/internal/websocket"
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
	log := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", "chatserver")

	if err := run(cfg, log); err != nil {
		log.Error("chat server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 存储
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

	blacklist, closeRedis, err := bootstrap.Blacklist(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeRedis()

	events, closeKafka, err := bootstrap.Publisher(cfg.Kafka, cfg.Kafka.ChatEventsTopic, log)
	if err != nil {
		return err
	}
	defer closeKafka()

	// 3. Hub 和消息引擎
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	engine := websocket.NewEngine(hub, messages, events, log)
	gate := websocket.NewGate(auth.NewVerifier(cfg.Auth.JWTSecretKey, blacklist, users))

	// 4. Logouts on the API server close this server's sockets.
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConfluentKafkaConsumer(cfg.Kafka, log)
		defer consumer.Close()
		go func() {
			err := consumer.Consume(ctx, []string{cfg.Kafka.SessionEventsTopic}, kafka.NewSessionRevokedHandler(hub.DisconnectUser, log))
			if err != nil && ctx.Err() == nil {
				log.Error("session consumer stopped", "error", err)
			}
		}()
	}

	wsHandler := chatserver.NewWebSocketHandler(ctx, hub, gate, engine, cfg.WebSocket, log)
	router := mux.NewRouter()
	router.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("chat server listening", "addr", addr, "path", cfg.Server.WebSocketPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down chat server")

	// Hijacked websocket connections are not tracked by Shutdown; they end
	// when the hub stops with ctx.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
