package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tripdesk/tripdesk/config"
	"github.com/tripdesk/tripdesk/internal/api"
	"github.com/tripdesk/tripdesk/internal/api/handlers"
	"github.com/tripdesk/tripdesk/internal/core/audit"
	"github.com/tripdesk/tripdesk/internal/core/catalog"
	"github.com/tripdesk/tripdesk/internal/core/gateway"
	"github.com/tripdesk/tripdesk/internal/core/normalize"
	"github.com/tripdesk/tripdesk/internal/core/validation"
	"github.com/tripdesk/tripdesk/internal/storage/postgres"
)

func main() {
	// Load configuration
	godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	normalize.SetLocation(cfg.Anchor.Location())

	// Connect to database
	db, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.Migrate(context.Background(), db, logger); err != nil {
		logger.Fatal("Failed to prepare database schema", zap.Error(err))
	}

	// Wire the gateway
	delegates := postgres.NewDelegates(db)
	recorder := audit.NewRecorder(delegates[catalog.TaskActivity], logger)
	validator := validation.NewValidator()
	service := gateway.NewService(delegates, recorder, validator, logger)

	gatewayHandler := handlers.NewGatewayHandler(service)
	router := api.NewRouter(cfg.JWT.Secret, gatewayHandler)
	engine := router.Setup(cfg.Server.Mode)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: engine,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)

		// Let in-flight activity appends finish.
		recorder.Wait()
		db.Close()
	}()

	logger.Info("Starting server", zap.String("port", cfg.Server.Port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
