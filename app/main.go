package main

import (
	"context"
	"embed"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"rentpay/internal/config"
	stripeclient "rentpay/internal/processor/stripe"
	"rentpay/internal/repository/postgres"
	handlers "rentpay/internal/transport/http"
	"rentpay/internal/usecase/service"
	"rentpay/internal/webhook"
	db "rentpay/utils/connector"
	log "rentpay/utils/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Errorf("Failed to load config: %v", err))
	}

	logger := log.NewLogger(cfg)
	defer logger.Sync()

	ctx := context.Background()

	dbConn, err := db.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize PostgreSQL", zap.Error(err))
	}
	defer func() {
		if dbConn != nil {
			dbConn.Close()
			logger.Info("Database connection closed")
		}
	}()

	if err := db.MigratePostgres(ctx, dbConn, logger, migrations); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	rdb := db.InitRedis(cfg, logger)
	defer rdb.Close()

	proc := stripeclient.NewClient(cfg, logger)
	notifier := service.NewLogNotifier(logger)

	payments := postgres.NewPaymentRepository(dbConn, rdb, logger)
	bookings := postgres.NewBookingRepository(dbConn, logger)
	users := postgres.NewUserRepository(dbConn, logger)
	plans := postgres.NewPlanRepository(dbConn, logger)
	listings := postgres.NewListingRepository(dbConn, logger)
	disputes := postgres.NewDisputeRepository(dbConn, logger)

	checkout := service.NewCheckoutService(payments, bookings, users, plans, listings, proc, notifier, cfg, logger)
	dispute := service.NewDisputeService(payments, bookings, users, disputes, proc, notifier, cfg, logger)
	settlement := service.NewSettlementService(payments, bookings, users, plans, notifier, logger)
	accountSync := service.NewAccountSyncService(users, proc, logger)

	ingress := webhook.NewIngress(proc, settlement, accountSync, rdb, logger)

	app := fiber.New()
	handler := handlers.NewHandler(checkout, dispute, ingress, logger)
	handler.Register(app)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
