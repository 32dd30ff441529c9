// cmd/migrate/main.go
package main

import (
	"context"
	stdlog "log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/smscampaigns/internal/config"
	"github.com/unclebandit/smscampaigns/internal/db"
	"github.com/unclebandit/smscampaigns/internal/logger"
)

// Applies the schema, then any seed files given as arguments, in order.
func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		stdlog.Fatalf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	log.Info("Schema applied")

	for _, file := range os.Args[1:] {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatal("Failed to read seed file", zap.String("file", file), zap.Error(err))
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			log.Fatal("Failed to execute seed file", zap.String("file", file), zap.Error(err))
		}
		log.Info("Seeded", zap.String("file", file))
	}
}
