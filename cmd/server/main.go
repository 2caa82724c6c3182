package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/keystonepm/backoffice/docs"
	"github.com/keystonepm/backoffice/internal/database"
	"github.com/keystonepm/backoffice/internal/handlers"
	mW "github.com/keystonepm/backoffice/internal/middleware"
	"github.com/keystonepm/backoffice/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Keystone Back Office API
// @version 1.0
// @description Property management back office: ledger, recurring charges, reconciliation
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("webhook.secret", "WEBHOOK_SECRET")
	viper.BindEnv("cron.secret", "CRON_SECRET")
	viper.BindEnv("cron.internal_ticker", "CRON_INTERNAL_TICKER")
	viper.BindEnv("portal.pay_url", "PORTAL_PAY_URL")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Keystone Back Office API"
	docs.SwaggerInfo.Description = "Property management back office: ledger, recurring charges, reconciliation"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	accountService := services.NewAccountService(db)
	ledgerService := services.NewLedgerService(db)
	schedulerService := services.NewSchedulerService(db, ledgerService, redisClient)
	reconciliationService := services.NewReconciliationService(db, ledgerService)
	webhookService := services.NewWebhookService(ledgerService, redisClient)
	reportService := services.NewReportService(accountService, ledgerService)
	remittanceService := services.NewRemittanceService(ledgerService)
	qrService := services.NewPaymentQRService(db, ledgerService)
	authService := services.NewAuthService(db, redisClient)

	accountHandler := handlers.NewAccountHandler(accountService)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService)
	schedulerHandler := handlers.NewSchedulerHandler(schedulerService)
	reconciliationHandler := handlers.NewReconciliationHandler(reconciliationService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	reportHandler := handlers.NewReportHandler(reportService, ledgerService, qrService, remittanceService)
	userHandler := handlers.NewUserHandler(authService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Payment-Signature", "X-Cron-Secret"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Payment processor callback, authenticated by its own HMAC signature
		r.Post("/webhooks/payments", webhookHandler.HandlePaymentEvent)

		// External scheduler trigger, guarded by the shared cron secret
		r.Group(func(r chi.Router) {
			r.Use(mW.CronSecret)
			r.Post("/cron/daily-charges", schedulerHandler.RunDailyCharges)
		})

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/accounts", accountHandler.ListAccounts)
			r.Get("/accounts/{code}", accountHandler.GetAccount)
			r.Get("/accounts/{code}/balance", ledgerHandler.GetBalance)

			r.Get("/ledger/entries", ledgerHandler.ListEntries)
			r.Post("/ledger/entries", ledgerHandler.PostEntry)
			r.Get("/ledger/entries/{id}", ledgerHandler.GetEntry)
			r.Post("/ledger/double-entries", ledgerHandler.PostDoubleEntry)

			r.Get("/cron/runs", schedulerHandler.RecentRuns)

			r.Post("/reconciliations", reconciliationHandler.CreateReconciliation)
			r.Get("/reconciliations/{id}", reconciliationHandler.GetReconciliation)
			r.Post("/reconciliations/{id}/statement", reconciliationHandler.ImportStatement)
			r.Post("/reconciliations/{id}/lines/{lineId}/match", reconciliationHandler.MatchLine)
			r.Post("/reconciliations/{id}/lines/{lineId}/exclude", reconciliationHandler.ExcludeLine)
			r.Post("/reconciliations/{id}/finalize", reconciliationHandler.Finalize)

			r.Get("/reports/balance-sheet", reportHandler.BalanceSheet)
			r.Get("/reports/income-statement", reportHandler.IncomeStatement)
			r.Get("/leases/{leaseId}/balance", reportHandler.LeaseBalance)
			r.Get("/leases/{leaseId}/payment-qr", reportHandler.PaymentQR)

			r.Post("/remittances", reportHandler.PayVendor)

			// Admin-only endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireAdmin)

				r.Post("/ledger/entries/{id}/void", ledgerHandler.VoidEntry)
				r.Post("/accounts", accountHandler.CreateAccount)
				r.Delete("/accounts/{code}", accountHandler.DeactivateAccount)
				r.Post("/users", userHandler.CreateUser)
			})
		})
	})

	// Optional in-process ticker for deployments without an external scheduler.
	tickerCtx, stopTicker := context.WithCancel(context.Background())
	defer stopTicker()
	if viper.GetBool("cron.internal_ticker") {
		go runDailyTicker(tickerCtx, schedulerService)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

// runDailyTicker triggers the charge batch once a day. The batch itself is
// idempotent per month, so overlap with an external trigger is harmless.
func runDailyTicker(ctx context.Context, scheduler *services.SchedulerService) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := scheduler.RunDailyCharges(ctx, time.Now()); err != nil {
				log.Printf("[CRON] internal ticker run failed: %v", err)
			}
		}
	}
}
