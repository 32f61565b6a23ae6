package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/bookledger/backend/docs"
	"github.com/bookledger/backend/internal/audit"
	"github.com/bookledger/backend/internal/config"
	"github.com/bookledger/backend/internal/database"
	"github.com/bookledger/backend/internal/handlers"
	mW "github.com/bookledger/backend/internal/middleware"
	"github.com/bookledger/backend/internal/repository"
	"github.com/bookledger/backend/internal/services"
)

// @title Library Ledger API
// @version 1.0
// @description Book lending with a per-user balance ledger
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using environment")
	}

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

	if err := viper.ReadInConfig(); err != nil {
		slog.Info("config file not found, using defaults", "error", err)
	}

	if err := mW.RequireSigningKey(); err != nil {
		slog.Error("refusing to start without JWT_SECRET_KEY", "error", err)
		os.Exit(1)
	}

	cfg := config.LoadLibraryConfig()

	docs.SwaggerInfo.Host = viper.GetString("swagger.host")
	if docs.SwaggerInfo.Host == "" {
		docs.SwaggerInfo.Host = "localhost:8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.InitDatabase(ctx)
	defer db.Close()

	redisClient := database.InitRedis(ctx)
	if redisClient != nil {
		defer redisClient.Close()
	}

	store := repository.NewStore(db, cfg.LedgerTxRetries)

	mailer, err := services.NewMailer(cfg)
	if err != nil {
		slog.Error("failed to configure mailer", "error", err)
		os.Exit(1)
	}
	notifier, err := services.NewNotifier(mailer)
	if err != nil {
		slog.Error("failed to load mail templates", "error", err)
		os.Exit(1)
	}

	var workers sync.WaitGroup
	var publisher services.Publisher
	if redisClient != nil {
		outbox := services.NewRedisOutbox(redisClient, cfg, notifier)
		workers.Add(1)
		go func() {
			defer workers.Done()
			outbox.Run(ctx, cfg.NotificationWorkers)
		}()
		publisher = outbox
	} else {
		publisher = services.NewInlinePublisher(notifier)
	}

	libraryService := services.NewLibraryService(store, publisher, audit.NewAuditLogger(slog.Default()), cfg.PublishTimeout)
	authService := services.NewAuthService(store, redisClient)
	qrService := services.NewQRService(store, redisClient, cfg.BaseURL)

	libraryHandler := handlers.NewLibraryHandler(libraryService)
	qrHandler := handlers.NewQRHandler(qrService)

	mW.InitAuthMiddleware(redisClient)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Book covers
	r.Handle("/media/*", http.StripPrefix("/media/", mW.MediaFileServer(cfg.MediaDir)))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		libraryHandler.PublicRoutes(r)
		r.Get("/books/{id}/qr", qrHandler.BookQR)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)
			libraryHandler.Routes(r)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	workers.Wait()

	slog.Info("server stopped")
}
