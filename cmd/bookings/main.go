package main

import (
	"context"

	"therabook/internal/bookings/handler"
	"therabook/internal/bookings/repository"
	"therabook/internal/bookings/service"
	"therabook/internal/bookings/validator"
	"therabook/internal/gateway"
	"therabook/internal/reconciler"
	"therabook/pkg/app"
	"therabook/pkg/config"
	"therabook/pkg/contracts"
	"therabook/pkg/events"
	"therabook/pkg/kafka"
	kafka_config "therabook/pkg/kafka/config"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Bookings service")

	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	slotRepo := repository.NewMongoSlotRepository(cfg)
	eventRepo := repository.NewMongoPaymentEventRepository(cfg)

	gw := gateway.NewCachedGateway(
		gateway.NewClient(gateway.Config{
			BaseURL:      cfg.GatewayBaseURL,
			APIKey:       cfg.GatewayAPIKey,
			Timeout:      cfg.GatewayTimeout,
			MaxRetries:   cfg.GatewayMaxRetries,
			RetryBackoff: cfg.GatewayRetryBackoff,
		}, cfg.Log),
		cfg.GatewayCacheTTL,
	)

	producer, err := kafka.NewProducer(kafka_config.Load(), events.TopicBookingEvents, events.TopicBookingDLQ)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	emitter := events.NewEmitter(producer, ServiceName, cfg.Log)

	bookingService := service.NewBookingService(
		bookingRepo,
		slotRepo,
		eventRepo,
		gw,
		emitter,
		bookingValidator,
		cfg,
	)
	availabilityService := service.NewAvailabilityService(slotRepo, cfg)
	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)

	worker := reconciler.NewWorker(bookingRepo, slotRepo, bookingService, cfg)
	worker.Start(context.Background())

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		contracts.Compose(
			handler.NewBookingHandler(bookingService, cfg.Log),
			handler.NewAvailabilityHandler(availabilityService, cfg.Log),
		),
		handler.NewWebhookHandler(bookingService, cfg.Log),
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
	)
	serverApp.OnShutdown(worker.Stop)
	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}
