package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/roryk/backend/internal/config"
	"github.com/roryk/backend/internal/logger"
	"github.com/roryk/backend/internal/metrics"
	mW "github.com/roryk/backend/internal/middleware"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/services"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// RouterConfig carries everything the HTTP API is built from.
type RouterConfig struct {
	Auth      *services.AuthService
	Accounts  *services.AccountService
	Ledger    *services.LedgerService
	Passwords *services.PasswordService
	Payments  *services.PaymentService
	Vehicle   *services.VehicleService

	RateLimit      config.RateLimitConfig
	AllowedOrigins []string
	TrustProxy     bool
	Metrics        *metrics.Collector
	DB             *sql.DB
	Redis          *redis.Client
	Logger         *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Auth, cfg.Accounts, cfg.Logger)
	userHandler := NewUserHandler(cfg.Accounts, cfg.Ledger, cfg.Logger)
	transactionHandler := NewTransactionHandler(cfg.Ledger, cfg.Vehicle, cfg.Logger)
	passwordHandler := NewPasswordHandler(cfg.Passwords, cfg.Logger)
	paymentHandler := NewPaymentHandler(cfg.Payments, cfg.Logger)
	checkHandler := NewCheckHandler(cfg.Vehicle, cfg.Logger)
	healthHandler := NewHealthHandler(cfg.DB, cfg.Redis)

	limiter := mW.NewRateLimiter(cfg.Redis, cfg.Logger)
	window := cfg.RateLimit.Window
	requireAuth := mW.Auth(cfg.Auth)
	requireAdmin := mW.RequireRole(models.RoleAdmin, models.RoleSuperadmin)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(logger.RequestLogger(cfg.Logger))
	r.Use(chimw.Recoverer)
	r.Use(mW.SecurityHeaders)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", healthHandler.Health)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		// Public endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.With(limiter.Limit("forgot_password", cfg.RateLimit.ForgotPassword, window)).
			Post("/password/forgot", passwordHandler.Forgot)
		r.With(limiter.Limit("reset_password", cfg.RateLimit.ResetPassword, window)).
			Post("/password/reset", passwordHandler.Reset)
		r.Get("/password/validate-token/{token}", passwordHandler.ValidateToken)
		r.Post("/payments/webhook", paymentHandler.Webhook)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/me", authHandler.Me)
			r.With(limiter.Limit("change_password", cfg.RateLimit.ChangePassword, window)).
				Post("/password/change", passwordHandler.Change)

			r.Get("/transactions/user/{userId}", transactionHandler.ListByUser)
			r.Get("/transactions/user/{userId}/services", transactionHandler.ListServicesByUser)
			r.Get("/transactions/{transactionId}", transactionHandler.Get)
			r.Get("/transactions/{transactionId}/check", transactionHandler.GetCheck)

			r.Post("/checks/{serviceType}", checkHandler.Run)
			r.Post("/payments/intents", paymentHandler.CreateIntent)
			r.Post("/payments/confirm", paymentHandler.Confirm)

			// Administrative endpoints
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Get("/users", userHandler.List)
				r.Post("/users", userHandler.Create)
				r.Get("/users/pending", userHandler.ListPending)
				r.Get("/users/lookup", userHandler.Lookup)
				r.Get("/users/{userId}", userHandler.Get)
				r.Put("/users/{userId}/balance", userHandler.SetBalance)
				r.Post("/users/{userId}/adjust", userHandler.Adjust)
				r.Put("/users/{userId}/approve", userHandler.Approve)
				r.Put("/users/{userId}/reject", userHandler.Reject)
				r.Get("/transactions", transactionHandler.ListAll)
				r.Delete("/password/cleanup", passwordHandler.Cleanup)

				r.With(mW.RequireRole(models.RoleSuperadmin)).
					Delete("/users/{userId}", userHandler.Delete)
			})
		})
	})

	return r
}
