package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roryk/backend/docs"
	"github.com/roryk/backend/internal/audit"
	"github.com/roryk/backend/internal/config"
	"github.com/roryk/backend/internal/database"
	"github.com/roryk/backend/internal/handlers"
	"github.com/roryk/backend/internal/logger"
	"github.com/roryk/backend/internal/metrics"
	"github.com/roryk/backend/internal/repository/postgres"
	"github.com/roryk/backend/internal/services"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// @title Vehicle Credits API
// @version 1.0
// @description Account approval, prepaid credit ledger, card top-ups and paid vehicle checks
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.SetConfigType("env")
	viper.AutomaticEnv() // allow environment variables to override .env
	config.BindEnv()
	configErr := viper.ReadInConfig()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	log := logger.NewForEnvironment(cfg.Server.Env, cfg.Server.LogLevel)
	defer log.Sync()
	if configErr != nil {
		log.Info("config file not found, using environment", zap.Error(configErr))
	}

	if cfg.JWT.SecretKey == "" {
		log.Fatal("JWT_SECRET_KEY must be set")
	}

	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port

	// Storage
	db, err := database.InitDB(database.GetConfig(), log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	store := postgres.New(db)

	redisClient := database.InitRedis(context.Background(), log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Services
	collector := metrics.NewCollector()
	auditLogger := audit.NewLogger(log)
	hasher := services.NewPasswordHasher(cfg.Argon2)
	tokens := services.NewTokenManager(cfg.JWT.SecretKey, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	ledgerService := services.NewLedgerService(store, auditLogger, collector, log)
	accountService := services.NewAccountService(store.Accounts(), hasher, cfg.Password.MinLength, auditLogger, log)
	authService := services.NewAuthService(store.Accounts(), hasher, tokens, redisClient, log)
	emailService := services.NewEmailService(cfg.SMTP, log)
	passwordService := services.NewPasswordService(store, hasher, emailService, cfg.Password, log)

	var provider services.PaymentProvider
	if cfg.Stripe.SecretKey != "" {
		stripeProvider, err := services.NewStripeProvider(cfg.Stripe, log)
		if err != nil {
			log.Fatal("failed to configure payments", zap.Error(err))
		}
		provider = stripeProvider
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, card top-ups disabled")
	}
	paymentService := services.NewPaymentService(provider, ledgerService, store, redisClient, cfg.Ledger, collector, log)

	var vehicleData services.VehicleDataProvider
	if cfg.Vehicle.BaseURL != "" {
		vehicleData = services.NewVehicleClient(cfg.Vehicle, log)
	} else {
		log.Warn("VEHICLE_API_URL not set, vehicle checks disabled")
	}
	vehicleService := services.NewVehicleService(vehicleData, ledgerService, store.Accounts(), cfg.Ledger, collector, log)

	created, err := accountService.EnsureSuperadmin(context.Background(), services.RegisterInput{
		Username: cfg.Bootstrap.Username,
		Password: cfg.Bootstrap.Password,
		Email:    cfg.Bootstrap.Email,
	})
	switch {
	case err != nil:
		log.Warn("superadmin bootstrap skipped", zap.Error(err))
	case created:
		log.Info("superadmin account created", zap.String("username", cfg.Bootstrap.Username))
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Auth:           authService,
		Accounts:       accountService,
		Ledger:         ledgerService,
		Passwords:      passwordService,
		Payments:       paymentService,
		Vehicle:        vehicleService,
		RateLimit:      cfg.RateLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustProxy:     cfg.Server.TrustProxy,
		Metrics:        collector,
		DB:             db,
		Redis:          redisClient,
		Logger:         log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("server stopped")
}
