package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"therabook/internal/notifier"
	"therabook/pkg/events"
	"therabook/pkg/kafka"
	kafka_config "therabook/pkg/kafka/config"
	"therabook/pkg/logger"
)

const (
	ServiceName   = "notifier"
	consumerGroup = "notifier"
)

func main() {
	log := logger.New(logger.Config{
		Level:     getEnv("LOG_LEVEL", "info"),
		Format:    logger.JSON,
		AddSource: true,
		Service:   ServiceName,
	})

	n := notifier.New(notifier.NewLogDispatcher(log), log)

	consumer, err := kafka.NewConsumer(
		kafka_config.Load(),
		events.TopicBookingEvents,
		consumerGroup,
		events.TopicBookingDLQ,
		n.Handle,
	)
	if err != nil {
		log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Info("Shutdown signal received", "signal", sig)
		cancel()
	}()

	log.Info("Notifier started", "topic", events.TopicBookingEvents, "group", consumerGroup)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		log.Error("Failed to close consumer", "error", err)
	}
	log.Info("Notifier stopped")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
