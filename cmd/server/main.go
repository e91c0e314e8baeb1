package main

import (
	"bizlink/auth"
	"bizlink/cache"
	"bizlink/contract"
	"bizlink/internal"
	"bizlink/moderation"
	"bizlink/repositories"
	"bizlink/runtime"
	"bizlink/runtime/workers"
	"bizlink/services"
	"bizlink/transport/health"
	"bizlink/transport/httpapi"
	"bizlink/transport/ws"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, serves until a signal arrives and shuts down
// in reverse order. Keeping os.Exit out of it lets the deferred closes run.
func run() (int, error) {
	// 1. Configuration & Logger
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return exitConfig, fmt.Errorf("failed to load .env: %w", err)
	}
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, internal.RecordMapper)
	}

	// 4. Directory, optionally behind the redis cache
	directoryRepository := repositories.NewDirectoryRepository(db)
	var directory contract.IUserDirectory = directoryRepository
	if config.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, config.RedisURL)
		if err != nil {
			return exitRuntime, fmt.Errorf("redis connection failed: %w", err)
		}
		defer func() { _ = redisCache.Close() }()
		directory = cache.NewCachedDirectory(directoryRepository, redisCache, config.DirectoryCacheTTL, logger)
		logger.Info("Directory cache enabled", "ttl", config.DirectoryCacheTTL)
	}

	// 5. Moderation
	var censor runtime.Censor
	if config.CensoredWordsDir != "" {
		dictionary, err := moderation.LoadDictionary(os.DirFS(config.CensoredWordsDir), ".")
		if err != nil {
			return exitConfig, fmt.Errorf("censored words: %w", err)
		}
		moderator, err := moderation.NewModerator(dictionary.Words, charReplacement, logger)
		if err != nil {
			return exitConfig, fmt.Errorf("moderator: %w", err)
		}
		censor = moderator
		logger.Info("Moderation enabled", "words", len(dictionary.Words), "languages", dictionary.Languages)
	}

	// 6. Messaging core
	now := func() time.Time { return time.Now().UTC() }
	registry := runtime.NewRegistry()
	conversations := repositories.NewConversationRepository(db, logger, now)
	messages := repositories.NewMessageRepository(db, directory, logger, config.LimitMessages, now)
	router := runtime.NewRouter(logger, registry, directory, conversations, messages, censor, now, config.SinkTimeout)
	signaler := runtime.NewSignaler(logger, registry, config.SinkTimeout)

	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewHeartbeatWorker(logger, registry, config.HeartbeatInterval))
	dispatcher := runtime.NewDispatcher(logger, sup, router, config.NumberOfWorkers, config.BufferSize)
	sup.Add(workers.NewChannelCapacityWorker(logger, dispatcher.Queues(), config.MetricInterval, config.LowCapacityThreshold))

	// 7. Transports
	gate := auth.NewGate(config.JWTSecret, directory, now)
	service := services.NewMessagingService(logger, directory, registry, conversations, messages, router)
	gateway := ws.NewGateway(logger, gate, registry, directory, dispatcher, signaler, ws.Options{
		AllowedOrigins:       config.Origins(),
		ConnectionBufferSize: config.ConnectionBufferSize,
		SinkTimeout:          config.SinkTimeout,
		TypingTimeout:        config.TypingTimeout,
	}, now)
	httpServer := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           httpapi.NewRouter(logger, gate, service, gateway, config.Origins()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	healthServer := health.NewServer(logger)
	grpcAddress := fmt.Sprintf(":%d", config.GRPCPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}

	errChan := make(chan error, 2)
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Start(ctx)
	}()
	go func() {
		if err := healthServer.Serve(listener); err != nil {
			errChan <- err
		}
	}()
	go func() {
		logger.Info("Starting HTTP server", "address", config.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	healthServer.SetServing(true)

	// 8. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 9. Graceful Shutdown
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	healthServer.SetServing(false)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	gateway.Shutdown()
	dispatcher.Stop()
	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		logger.Warn("Dispatcher did not drain before the deadline")
	}
	healthServer.Stop(shutdownCtx)
	logger.Info("Program stopped cleanly")
	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
