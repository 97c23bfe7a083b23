package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/fanout"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// messageStore is what the relay needs from either backend.
type messageStore interface {
	contract.IMessageStore
	contract.Pinger
	auth.UserDirectory
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and owns their lifecycle, so deferred cleanups
// always execute before the exit code is returned.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.Load()
	if err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Message store
	store, closeStore, err := openStore(ctx, config, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer closeStore()

	// 3. Bus
	var bus contract.IBus
	switch config.BusDriver {
	case internal.BusMemory:
		logger.Warn("In-memory bus: messages only reach sessions of this process")
		bus = fanout.NewMemoryBus(logger, config.SubscriptionBufferSize)
	default:
		redisBus, err := fanout.NewRedisBus(ctx, config.RedisURL, logger, config.SubscriptionBufferSize)
		if err != nil {
			return exitRuntime, err
		}
		bus = redisBus
	}
	defer func() {
		logger.Info("Closing bus...")
		_ = bus.Close()
	}()

	// 4. Domain services
	resolver := auth.NewTokenResolver([]byte(config.SecretKey), userDirectory(config, store, logger), logger)

	moderator, err := buildModerator(config, charReplacement, logger)
	if err != nil {
		return exitConfig, err
	}

	registry := runtime.NewRegistry(logger)
	monitoring := observability.NewMonitoringManager(logger).WithPresence(registry)
	chatService := services.NewChatService(
		logger, store, bus, moderator,
		config.PersistTimeout, config.PublishTimeout, config.MaxContentLength,
	)

	// 5. Supervision
	healthServer := server.NewHealthServer(logger)
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewHealthWorker(logger, healthServer.Status(), map[string]contract.Pinger{
			"bus":   bus,
			"store": store,
		}, config.HealthInterval),
		workers.NewStatsWorker(logger, monitoring, config.MetricInterval),
	)
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	errChan := make(chan error, 2)

	// 6. gRPC health
	healthListener, err := net.Listen("tcp", config.HealthAddress())
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", config.HealthAddress(), err)
	}
	go func() {
		if err := healthServer.Serve(healthListener); err != nil {
			errChan <- err
		}
	}()

	// 7. Websocket endpoint
	sessionsCtx, closeSessions := context.WithCancel(context.Background())
	defer closeSessions()
	handler := ws.NewHandler(sessionsCtx, logger, resolver, registry, bus, chatService, monitoring, ws.Options{
		ConnectionBufferSize: config.ConnectionBufferSize,
		MaxFrameBytes:        config.MaxFrameBytes,
		WriteTimeout:         config.WriteTimeout,
	})
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Starting chat relay", "address", config.Address(), "bus", config.BusDriver,
			"store", config.StoreDriver, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 9. Graceful shutdown
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	closeSessions()
	waitSessions(shutdownCtx, registry)
	healthServer.Stop(shutdownCtx)
	sup.Stop()
	<-supDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

// userDirectory picks the directory used to check token owners.
// Only Postgres holds the users of the platform: the embedded store knows profiles
// seeded by hand, so it never vetoes a valid token.
func userDirectory(config internal.Config, store messageStore, logger *slog.Logger) auth.UserDirectory {
	if !config.VerifyUsers {
		return nil
	}
	if config.StoreDriver == internal.StoreBadger {
		logger.Warn("VERIFY_USERS is ignored with the badger store")
		return nil
	}
	return store
}

// waitSessions lets hijacked websocket connections finish their close handshake.
func waitSessions(ctx context.Context, registry *runtime.Registry) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for registry.Connections() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func openStore(ctx context.Context, config internal.Config, logger *slog.Logger) (messageStore, func(), error) {
	if config.StoreDriver == internal.StoreBadger {
		db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
		if err != nil {
			return nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		if logger.Enabled(ctx, slog.LevelDebug) {
			debugPort := 8081
			endpoint := "/inspect"
			url := fmt.Sprintf("http://localhost:%d%s", debugPort, endpoint)
			logger.Info("Debug Badger inspector available", "url", url)
			database.StartDebugServer(db, debugPort, endpoint, MessageMapper)
		}
		limit := 0
		if config.LimitMessages != nil {
			limit = *config.LimitMessages
		}
		store, err := repositories.NewBadgerStore(db, logger, limit)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() {
			logger.Info("Closing BadgerDB...")
			_ = store.Close()
			_ = db.Close()
		}, nil
	}

	db, err := repositories.OpenPostgres(ctx, config.DSN())
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewPostgresStore(db, logger), func() {
		logger.Info("Closing Postgres pool...")
		_ = db.Close()
	}, nil
}

func buildModerator(config internal.Config, charReplacement rune, logger *slog.Logger) (*moderation.Moderator, error) {
	if config.CensoredWordsDir == "" {
		return nil, nil
	}
	data, err := runtime.NewCensoredLoader(os.DirFS(config.CensoredWordsDir)).LoadAll(".")
	if err != nil {
		return nil, fmt.Errorf("censored words: %w", err)
	}
	logger.Info("Moderation enabled", "words", len(data.Words), "languages", data.Languages)
	return moderation.NewModerator(data.Words, charReplacement, logger)
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// MessageMapper renders stored messages in the debug inspector.
func MessageMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, "msg:"):
		var message domain.Message
		if err := json.Unmarshal(val, &message); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "MESSAGE"
		row.Detail = fmt.Sprintf("%d -> %d: %s", message.SenderID, message.ReceiverID, message.Content)
	case strings.HasPrefix(key, "user:"):
		var profile domain.Profile
		if err := json.Unmarshal(val, &profile); err == nil {
			row.Type = "USER"
			row.Detail = profile.Username
		}
	}
	return row
}
