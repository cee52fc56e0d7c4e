package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"sitewatch/internal/api"
	"sitewatch/internal/config"
	"sitewatch/internal/db"
	"sitewatch/internal/engine"
	"sitewatch/internal/kafka"
	"sitewatch/internal/logging"
	"sitewatch/internal/models"
	"sitewatch/internal/providers"
	"sitewatch/internal/sensors"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Channel senders
	hub := providers.NewHub(logger)
	senders := map[models.Channel]engine.Sender{
		models.ChannelEmail:    providers.NewEmailSender(cfg),
		models.ChannelSMS:      providers.NewSMSSender(cfg),
		models.ChannelWebhook:  providers.NewWebhookSender(cfg.Engine.WebhookTimeout),
		models.ChannelSlack:    providers.NewSlackSender(),
		models.ChannelDesktop:  providers.NewDesktopSender(hub),
		models.ChannelTelegram: providers.NewTelegramSender(cfg, logger),
	}

	// Rule engine
	dispatcher := engine.NewDispatcher(dbConn, dbConn, senders, cfg.Engine.ActionTimeout, logger)
	eng := engine.New(dbConn, dispatcher, logger, cfg.Engine.MaxDispatch)

	// Sensor alert computation feeds the engine
	sensorSvc := sensors.New(dbConn, eng, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kafka telemetry consumer
	var wg sync.WaitGroup
	consumer := kafka.NewConsumer(cfg, eng, logger)
	consumer.Start(ctx, &wg)

	// API server
	handler := api.NewHandler(dbConn, eng, sensorSvc, hub, logger)
	router := api.NewRouter(logger, cfg, handler)
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	cancel()
	if err := consumer.Close(); err != nil {
		logger.Errorf("Kafka consumer close failed: %v", err)
	}
	wg.Wait()
	logger.Infof("Service stopped")
}
