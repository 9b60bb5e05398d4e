package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	server "github.com/famnews/famnews/internal"
	"github.com/famnews/famnews/internal/config"
	"github.com/famnews/famnews/internal/eventbus"
	"github.com/famnews/famnews/internal/pushnotification"
	pushsubrepo "github.com/famnews/famnews/internal/pushsubscription/repositoryimpl"
	"github.com/famnews/famnews/pkg/clog"
	"github.com/famnews/famnews/pkg/storage"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "sentinel" {
		runSentinel()
		return
	}
	serve()
}

func serve() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup event bus and repositories
	bus := eventbus.New()
	pushSubRepo := pushsubrepo.NewYAMLRepository(store)

	// Setup push notification
	vapidEnv := config.VAPIDEnvFromEnv(env)
	if !vapidEnv.Configured() {
		slog.Warn("VAPID keys are not configured; broadcasts will be rejected")
	}
	pusher := pushnotification.NewWebPushSender(vapidEnv)
	dispatcher := pushnotification.NewDispatcher(vapidEnv, pushSubRepo, pusher, bus)
	pushServer := pushnotification.NewServer(vapidEnv, pushSubRepo, dispatcher, bus)

	srv := server.NewServer(config.BaseEnvFromEnv(env), pushServer)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go dispatcher.Start(ctx)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Give active connections time to finish after request contexts are cancelled.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
