package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/slotbot/config"
	"github.com/Domenick1991/slotbot/internal/bootstrap"
	"github.com/Domenick1991/slotbot/internal/kafka"
	"github.com/Domenick1991/slotbot/internal/notify"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}
	defer app.Close()

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logger.With("component", "consumer"))
		defer consumer.Close()

		sender := notify.NewLogSender(logger.With("component", "delivery"))
		go func() {
			if err := consumer.Consume(ctx, notify.DeliveryHandler(sender, logger)); err != nil {
				logger.Error("consumer stopped", "error", err)
				stop()
			}
		}()
	}

	if cfg.Scheduler.Embedded {
		logger.Info("scheduler runs inside the api process, worker only delivers notifications")
		<-ctx.Done()
		return
	}

	if err := app.Scheduler().Run(ctx); err != nil {
		log.Fatalf("scheduler error: %v", err)
	}
}
