// Package main запускает HTTP-сервер магазина изображений.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/imageshop/internal/config"
	"github.com/mmeshcher/imageshop/internal/events"
	"github.com/mmeshcher/imageshop/internal/gateway"
	"github.com/mmeshcher/imageshop/internal/handler"
	"github.com/mmeshcher/imageshop/internal/metrics"
	"github.com/mmeshcher/imageshop/internal/middleware"
	"github.com/mmeshcher/imageshop/internal/repository"
	"github.com/mmeshcher/imageshop/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	if cfg.GatewayWebhookSecret == "" {
		sugar.Warn("GATEWAY_WEBHOOK_SECRET is empty, all payment confirmations will be rejected")
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:       cfg.GatewayAddress,
		KeyID:         cfg.GatewayKeyID,
		KeySecret:     cfg.GatewayKeySecret,
		WebhookSecret: cfg.GatewayWebhookSecret,
		Timeout:       cfg.GatewayTimeout,
		RetryMax:      cfg.GatewayRetryMax,
	}, logger)

	m := metrics.New()

	svc := service.NewService(repo, gw, logger, m, service.Options{
		Currency:      cfg.Currency,
		PendingTTL:    cfg.PendingOrderTTL,
		SweepInterval: cfg.SweepInterval,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret, cfg.AuthTTL)
	h := handler.NewHandler(svc, logger, authMiddleware, m, repo)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая сверка зависших заказов
	g.Go(func() error {
		svc.StartPendingSweep(ctx)
		return nil
	})

	// Публикация событий заказов
	if brokers := events.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		publisher := events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		relay := events.NewRelay(repo, publisher, cfg.OutboxPollInterval, logger)

		g.Go(func() error {
			defer publisher.Close()
			sugar.Infow("starting order event relay", "brokers", brokers, "topic", cfg.KafkaTopic)
			return relay.Run(ctx)
		})
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting imageshop server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
