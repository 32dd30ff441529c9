package main

import (
	"context"
	stdlog "log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/unclebandit/smscampaigns/internal/config"
	"github.com/unclebandit/smscampaigns/internal/db"
	"github.com/unclebandit/smscampaigns/internal/logger"
	"github.com/unclebandit/smscampaigns/internal/queue"
	"github.com/unclebandit/smscampaigns/internal/repository"
	"github.com/unclebandit/smscampaigns/internal/service"
)

// Consumes campaign_sends and delivers each campaign through the dispatcher.
func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		stdlog.Fatalf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	q, err := queue.NewAMQPQueue(cfg.AMQPURL, log)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer q.Close()

	dispatcher := &service.Dispatcher{
		CampaignRepo: &repository.CampaignRepository{DB: conn},
		OutboundRepo: &repository.OutboundMessageRepository{DB: conn},
		Sender:       &service.LogSender{Logger: log},
		Logger:       log,
	}

	log.Info("Worker running, waiting for messages...", zap.String("queue", queue.CampaignSends))
	if err := q.Consume(ctx, dispatcher.Handle); err != nil {
		log.Fatal("Consumer stopped", zap.Error(err))
	}
	log.Info("Worker stopped")
}
