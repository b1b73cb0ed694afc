package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aidarbekov/walletd/config"
	"github.com/aidarbekov/walletd/internal/broadcast"
	"github.com/aidarbekov/walletd/internal/bus"
	"github.com/aidarbekov/walletd/internal/domain"
	"github.com/aidarbekov/walletd/internal/email"
	"github.com/aidarbekov/walletd/internal/health"
	"github.com/aidarbekov/walletd/internal/infrastructure/storage"
	"github.com/aidarbekov/walletd/internal/janitor"
	ctxlog "github.com/aidarbekov/walletd/internal/log"
	"github.com/aidarbekov/walletd/internal/metrics"
	httptransport "github.com/aidarbekov/walletd/internal/transport/http"
	"github.com/aidarbekov/walletd/internal/transport/http/handler"
	"github.com/aidarbekov/walletd/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.SQLitePath, cfg.DataDir, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	metrics.Register()
	metrics.StorageMode.WithLabelValues(string(store.Mode())).Set(1)

	eventBus := bus.New(logger)

	// Cross-context sync: redis pub/sub when reachable, shared-file
	// watch otherwise. The choice is made once at startup.
	transport, transportMode, transportPinger := newSyncTransport(cfg, logger)
	metrics.SyncTransportMode.WithLabelValues(transportMode).Set(1)

	broadcaster := broadcast.New(transport, store.SyncLog, cfg.SyncSourceID, logger)
	broadcaster.Attach(eventBus)
	defer broadcaster.Close()

	if err := broadcaster.Listen(ctx, func(event domain.SyncEvent) {
		logger.Info("sync event received", "type", event.Type, "source", event.Source)
	}); err != nil {
		logger.Error("sync listen", "error", err)
	}

	emailSender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	authUsecase := usecase.NewAuthUsecase(
		store.Links, store.Session, eventBus, emailSender,
		[]byte(cfg.JWTSecret), cfg.MagicLinkBase, logger,
	)
	walletUsecase := usecase.NewWalletUsecase(
		store.Tokens, store.Session, store.SyncLog, eventBus, logger,
	)

	// Announce a persisted session from a previous run, if any.
	if user := authUsecase.RestoreSession(ctx); user != nil {
		logger.Info("session restored", "email", user.Email)
	}

	sweeper, err := janitor.New(store.Links, cfg.LinkSweepCron, logger)
	if err != nil {
		log.Fatalf("janitor: %v", err)
	}
	go sweeper.Start(ctx)

	authHandler := handler.NewAuthHandler(authUsecase, cfg.Env == "local", logger)
	tokenHandler := handler.NewTokenHandler(walletUsecase, logger)
	syncHandler := handler.NewSyncHandler(walletUsecase, logger)

	checker := health.NewChecker(map[string]health.Pinger{
		"storage":        store,
		"sync_transport": transportPinger,
	}, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, authHandler, tokenHandler, syncHandler, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port, "storage", store.Mode(), "sync", transportMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

// newSyncTransport probes redis and falls back to the shared-file
// transport when it is unreachable.
func newSyncTransport(cfg *config.Config, logger *slog.Logger) (broadcast.Transport, string, health.Pinger) {
	redisTransport, err := broadcast.NewRedisTransport(cfg.RedisAddr, logger)
	if err == nil {
		return redisTransport, "redis", redisTransport
	}
	logger.Warn("redis unreachable, using file sync transport", "addr", cfg.RedisAddr, "error", err)

	fileTransport, err := broadcast.NewFileTransport(cfg.DataDir, logger)
	if err != nil {
		log.Fatalf("file sync transport: %v", err)
	}
	return fileTransport, "file", nil
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
