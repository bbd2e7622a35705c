package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/AnshRaj112/coursely-backend/internal/config"
	"github.com/AnshRaj112/coursely-backend/internal/database"
	"github.com/AnshRaj112/coursely-backend/internal/handlers"
	"github.com/AnshRaj112/coursely-backend/internal/middleware"
	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/repository"
	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/internal/routes"
	"github.com/AnshRaj112/coursely-backend/internal/services"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "coursely-backend",
		Pretty:      !cfg.IsProduction(),
	})
	if envErr != nil {
		log.Info().Msg("No .env file found")
	}
	if cfg.IsProduction() && strings.Contains(cfg.JWTSecret, "change-in-production") {
		log.Fatal().Msg("JWT_SECRET must be set in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	startedAt := time.Now()

	// Connect to MongoDB
	log.Info().Str("uri", maskURI(cfg.MongoURI)).Msg("Connecting to MongoDB...")
	if err := database.Connect(cfg.MongoURI); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer database.Disconnect()
	log.Info().Str("database", database.DB.Name()).Msg("✅ Connected to MongoDB")

	indexCtx, cancelIndexes := context.WithTimeout(ctx, 30*time.Second)
	if err := repository.EnsureIndexes(indexCtx, database.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure MongoDB indexes")
	}
	cancelIndexes()
	log.Info().Msg("✅ MongoDB indexes ensured")

	// Connect to Redis
	log.Info().Msg("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.DisconnectRedis()
	log.Info().Msg("✅ Connected to Redis")

	// PostgreSQL only holds payment orders; without it payments are disabled.
	var orders services.PaymentOrderStore
	log.Info().Msg("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		if cfg.PaymentsEnabled() {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		log.Warn().Err(err).Msg("PostgreSQL unavailable, payments disabled")
	} else {
		defer database.DisconnectPostgres()
		orders = repository.NewPaymentOrderRepository(database.PostgresDB)
		log.Info().Msg("✅ Connected to PostgreSQL")
	}

	var media services.MediaHost
	if cfg.MediaEnabled() {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Cloudinary, media uploads will not be available")
		} else {
			media = cld
			log.Info().Msg("✅ Cloudinary service initialized")
		}
	} else {
		log.Warn().Msg("Cloudinary credentials not found, media uploads will not be available")
	}

	var gateway services.PaymentGateway
	if cfg.PaymentsEnabled() {
		gateway = services.NewRazorpayGateway(cfg.PaymentAPIURL, cfg.PaymentKeyID, cfg.PaymentKeySecret, cfg.RequestTimeout)
		log.Info().Msg("✅ Payment gateway configured")
	} else {
		log.Warn().Msg("Payment credentials not found, payments will not be available")
	}

	rdb := database.RedisClient
	cache := services.NewCacheService(rdb)

	users := repository.NewUserRepository(database.DB)
	progressRepo := repository.NewProgressRepository(database.DB)
	deviceRepo := repository.NewDeviceRepository(database.DB)
	courseRepo := repository.NewCourseRepository(database.DB)

	hub := services.NewProgressHub(rdb, log)
	go hub.Run(ctx)

	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, services.NewRedisTokenDenylist(rdb), log)
	geo := services.NewGeoService(cfg.GeoIPURL, cache, cfg.GeoLookupTTL, log)
	devices := services.NewDeviceService(deviceRepo, services.NewUserAgentParser(), geo, services.NewRedisAdmissionLock(rdb), cfg.MaxDevices, log)
	catalog := services.NewCatalogService(courseRepo, cache, cfg.CatalogTTL, log)
	progress := services.NewProgressService(progressRepo, catalog, hub, log)
	auth := services.NewAuthService(users, devices, tokens, log)
	payments := services.NewPaymentService(gateway, orders, users, services.PaymentConfig{
		KeyID:     cfg.PaymentKeyID,
		KeySecret: cfg.PaymentKeySecret,
		Currency:  cfg.PaymentCurrency,
		Prices: map[models.Plan]int64{
			models.PlanMonthly: cfg.MonthlyPlanAmount,
			models.PlanYearly:  cfg.YearlyPlanAmount,
		},
	}, log)
	admin := services.NewAdminService(users, devices, log)
	playback := services.NewPlaybackService(catalog, media)

	resp := response.New(log, cfg.IsDevelopment())
	gw := middleware.NewGateway(auth, devices, resp, log)

	healthChecks := map[string]handlers.Pinger{
		"mongo": func(ctx context.Context) error { return database.Client.Ping(ctx, nil) },
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	if database.PostgresDB != nil {
		healthChecks["postgres"] = database.PostgresDB.PingContext
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.ClientIP(cfg.TrustProxy))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(resp, log))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → LoginRateLimit, then the shared Redis limiter everywhere.
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(ctx, cfg.AllowedHost) {
			r.Use(mw)
		}
		log.Info().Msg("✅ Production security enabled (security headers, host check, login rate limiting)")
	}
	r.Use(middleware.NewRateLimiter(rdb, log).Handler)

	routes.SetupRoutes(r, routes.Handlers{
		Gateway:        gw,
		Auth:           handlers.NewAuthHandler(auth, resp),
		Courses:        handlers.NewCourseHandler(catalog, playback, resp),
		Progress:       handlers.NewProgressHandler(progress, resp),
		Devices:        handlers.NewDeviceHandler(devices, resp),
		Payments:       handlers.NewPaymentHandler(payments, resp),
		Admin:          handlers.NewAdminHandler(admin, media, services.NewSystemService(startedAt), cfg.MediaFolder, resp),
		ProgressSocket: handlers.NewProgressSocketHandler(gw, hub, cfg.AllowedOrigins, resp, log),
		Health:         handlers.NewHealthHandler(healthChecks),
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("🚀 Coursely backend running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// maskURI hides the password in a connection string before it is logged.
func maskURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	scheme := strings.Index(uri, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return uri
	}
	creds := uri[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon != -1 {
		return uri[:scheme+3] + creds[:colon] + ":***" + uri[at:]
	}
	return uri
}
