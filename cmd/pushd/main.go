package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/config"
	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/consumer"
	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/repository"
	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/routes"
	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/services"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/logger"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/metrics"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel)
	logr.Info("starting push service", slog.String("app", cfg.AppName))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logr.Error("failed to connect database", slog.Any("error", err))
		os.Exit(1)
	}

	subscriptions, err := repository.NewSubscriptionStore(db, cfg.SubscriptionsTbl)
	if err != nil {
		logr.Error("failed to prepare subscription store", slog.Any("error", err))
		os.Exit(1)
	}
	statusStore, err := repository.NewStatusStore(db, cfg.StatusTable)
	if err != nil {
		logr.Error("failed to prepare status store", slog.Any("error", err))
		os.Exit(1)
	}

	// Both stay nil interfaces when redis is not configured.
	var (
		suppressor services.Suppressor
		releaser   routes.EndpointReleaser
	)
	if cfg.RedisURL != "" {
		rdb, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			logr.Error("invalid REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		redisRepo := repository.NewRedisRepository(rdb, cfg.SuppressTTL)
		defer redisRepo.Close()
		suppressor, releaser = redisRepo, redisRepo
	}

	metricsCollector := metrics.New()
	statusUpdater := services.NewStatusUpdater(statusStore, logr)
	provider := services.NewWebPushProvider(services.VAPIDConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
	}, cfg.PushTTL, cfg.PushUrgency, cfg.ProviderTimeout, logr)

	retryCfg := retry.Config{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
		JitterFactor:   0.2,
	}

	processor := services.NewPushProcessor(
		subscriptions,
		provider,
		statusUpdater,
		suppressor,
		metricsCollector,
		logr,
		retryCfg,
	)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logr.Error("failed to connect rabbitmq", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	base := consumer.NewBaseConsumer(
		conn,
		cfg.PushQueue,
		cfg.DeadLetterQueue,
		cfg.PrefetchCount,
		cfg.WorkerCount,
		logr,
	)
	pushConsumer := consumer.NewPushConsumer(base, processor, logr, cfg.RetryMaxAttempts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pushHandler := routes.NewPushHandler(subscriptions, releaser, cfg.VAPIDPublicKey, metricsCollector, logr)
	router := routes.NewRouter(routes.RouterConfig{
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, pushHandler, metricsCollector, time.Now())
	httpSrv := startHTTPServer(cfg.HTTPPort, router, logr)

	if err := pushConsumer.Start(ctx); err != nil {
		logr.Error("push consumer exited", slog.Any("error", err))
	}

	shutdownHTTP(httpSrv, logr)
	logr.Info("push service stopped")
}

func newRedisClient(raw string) (*redis.Client, error) {
	if strings.HasPrefix(raw, "redis://") || strings.HasPrefix(raw, "rediss://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: raw}), nil
}

func startHTTPServer(port string, handler http.Handler, logr *slog.Logger) *http.Server {
	if port == "" {
		port = "3000"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logr.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("http server error", slog.Any("error", err))
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}
