package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dartanool/user-balance-api/internal/config"
	"github.com/dartanool/user-balance-api/internal/db"
	"github.com/dartanool/user-balance-api/internal/events"
	eventskafka "github.com/dartanool/user-balance-api/internal/events/kafka"
	"github.com/dartanool/user-balance-api/internal/ledger"
	"github.com/dartanool/user-balance-api/internal/logger"
	"github.com/dartanool/user-balance-api/internal/router"
	"github.com/dartanool/user-balance-api/internal/services"
	storagemysql "github.com/dartanool/user-balance-api/internal/storage/mysql"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger()
	log.Info().Msg("Starting user balance API")

	database := db.InitDB(cfg.DBUrl)
	defer database.Close()

	db.RunMigrations(database)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := eventskafka.NewPublisher(cfg.KafkaBrokers, events.TopicTransactionCompleted)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.KafkaBrokers).Msg("Kafka event publishing enabled")
	}

	store := storagemysql.NewStore(database, log)
	directory := storagemysql.NewDirectory(database)
	engine := ledger.NewEngine(store, directory, publisher, log)

	accounts := services.NewAccountService(database, log)
	auth := services.NewAuthService(cfg.JWTSecret, log)

	r := router.SetupRouter(engine, accounts, auth, log)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Msgf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
