// cmd/server/main.go
package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/smscampaigns/internal/config"
	"github.com/unclebandit/smscampaigns/internal/controller"
	"github.com/unclebandit/smscampaigns/internal/db"
	"github.com/unclebandit/smscampaigns/internal/handler"
	"github.com/unclebandit/smscampaigns/internal/importer"
	"github.com/unclebandit/smscampaigns/internal/logger"
	"github.com/unclebandit/smscampaigns/internal/queue"
	"github.com/unclebandit/smscampaigns/internal/repository"
	"github.com/unclebandit/smscampaigns/internal/service"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		stdlog.Fatalf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}
	outboundRepo := &repository.OutboundMessageRepository{DB: conn}

	// waits for in-flight in-memory dispatches on shutdown
	var drain func()
	var publisher queue.Publisher
	switch cfg.QueueDriver {
	case config.QueueAMQP:
		q, err := queue.NewAMQPQueue(cfg.AMQPURL, log)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer q.Close()
		publisher = q
		log.Info("Publishing dispatch jobs to RabbitMQ", zap.String("queue", queue.CampaignSends))
	default:
		q := queue.NewInMemoryQueue(log)
		dispatcher := &service.Dispatcher{
			CampaignRepo: campaignRepo,
			OutboundRepo: outboundRepo,
			Sender:       &service.LogSender{Logger: log},
			Logger:       log,
		}
		q.Subscribe(dispatcher.Handle)
		publisher = q
		drain = q.Wait
		log.Info("Dispatching campaigns in process")
	}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		ContactRepo:  contactRepo,
		OutboundRepo: outboundRepo,
		Queue:        publisher,
		Logger:       log,
	}
	contactService := &service.ContactService{
		ContactRepo: contactRepo,
		Importer:    importer.New(log),
		Logger:      log,
	}

	router := handler.NewRouter(handler.Controllers{
		Campaigns: &controller.CampaignController{CampaignService: campaignService, Logger: log},
		Contacts:  &controller.ContactController{ContactService: contactService, Logger: log, MaxUploadBytes: cfg.MaxUploadBytes},
		Templates: &controller.TemplateController{},
	}, cfg.JWTSecret, log)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Unexpected error while starting server", zap.Error(err))
		}
	}()

	waitForShutdown(server, cancel, log)
	wg.Wait()
	if drain != nil {
		drain()
	}
	log.Info("Server gracefully stopped")
}

func waitForShutdown(server *http.Server, cancelApp context.CancelFunc, log *logger.Logger) {
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	<-shutdownChan
	log.Info("Shutting down gracefully...")

	// wait HTTP server 15 seconds to shut down
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Unexpected error while shutting down server", zap.Error(err))
	}
	cancelApp()
}
