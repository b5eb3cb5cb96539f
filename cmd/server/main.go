package main

import (
	"campusbot/internal/config"
	"campusbot/internal/database"
	"campusbot/internal/handlers"
	"campusbot/internal/health"
	"campusbot/internal/jobs"
	"campusbot/internal/knowledge"
	"campusbot/internal/logging"
	"campusbot/internal/middleware"
	"campusbot/internal/providers"
	"campusbot/internal/services"
	"campusbot/pkg/auth"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

// providerHTTPTimeout bounds a single upstream call. Local models can take
// a while to cold start.
const providerHTTPTimeout = 3 * time.Minute

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	logging.Init()
	log.Println("🚀 Starting CampusBot Server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, Environment: %s)", cfg.Port, cfg.Environment)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Chat history lives in MongoDB when configured, otherwise next to users
	var mongoDB *database.MongoDB
	var history services.HistoryStore = services.NewSQLHistoryStore(db)
	if cfg.MongoURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		mongoDB, err = database.NewMongoDB(cfg.MongoURI)
		if err != nil {
			log.Printf("⚠️ Failed to connect to MongoDB: %v (using SQL chat history)", err)
		} else {
			defer mongoDB.Close(context.Background())
			if err := mongoDB.Initialize(ctx); err != nil {
				log.Printf("⚠️ Failed to create MongoDB indexes: %v", err)
			}
			history = services.NewMongoHistoryStore(mongoDB)
			log.Println("✅ MongoDB chat history enabled")
		}
	} else {
		log.Println("⚠️ MONGODB_URI not set - chat history stored in the SQL database")
	}

	rateLimitConfig := middleware.LoadRateLimitConfig()
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Redis unavailable: %v (rate limits kept in memory)", err)
			redisService = nil
		} else {
			defer redisService.Close()
			rateLimitConfig.Storage = middleware.NewRedisStorage(redisService.Client(), "campusbot:ratelimit:")
			log.Println("✅ Rate limit counters shared through Redis")
		}
	}
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Public=%d/min, Auth=%d/min, Chat=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.PublicReadMax,
		rateLimitConfig.AuthenticatedMax,
		rateLimitConfig.ChatMax,
	)

	// Authentication
	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		if cfg.IsProduction() {
			log.Fatal("❌ JWT_SECRET is required in production. Generate with: openssl rand -hex 32")
		}
		jwtSecret = "campusbot-dev-secret-do-not-use-in-production"
		log.Println("⚠️  JWT_SECRET not set, using an insecure development secret")
	}
	jwtAuth, err := auth.NewLocalJWTAuth(jwtSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	if err != nil {
		log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
	}
	log.Println("✅ JWT authentication initialized")

	userService := services.NewUserService(db, cfg.AllowedEmailDomains, cfg.AdminEmailDomains)
	if n, err := userService.PromoteAdmins(ctx); err != nil {
		log.Printf("⚠️ Failed to promote admin-domain users: %v", err)
	} else if n > 0 {
		log.Printf("👑 Promoted %d existing user(s) to admin", n)
	}
	settingsService := services.NewSettingsService(db)

	// Providers
	defaults := config.NewDefaultsStore(cfg.Providers)
	go func() {
		if err := config.WatchProviderDefaults(ctx, cfg.ProvidersFile, defaults); err != nil {
			log.Printf("⚠️  Provider defaults hot-reload disabled: %v", err)
		}
	}()

	registry := providers.NewDefaultRegistry(&http.Client{Timeout: providerHTTPTimeout})
	healthService := health.NewService(0, 0)
	metrics := services.NewMetrics(prometheus.DefaultRegisterer)
	selector := services.NewProviderSelector(registry, healthService, metrics)
	tester := services.NewConnectionTester(registry, defaults, cfg.ConnectionTestTimeout)

	// Knowledge base
	base := knowledge.NewBase(cfg.KnowledgeDir)
	if err := base.Reload(); err != nil {
		log.Printf("⚠️  Knowledge base not loaded from %s: %v", cfg.KnowledgeDir, err)
	}
	metrics.SetKnowledgeDocuments(len(base.Documents()))
	log.Printf("📚 Knowledge base: %d document(s) from %s", len(base.Documents()), cfg.KnowledgeDir)
	go func() {
		if err := base.Watch(ctx); err != nil {
			log.Printf("⚠️  Knowledge base hot-reload disabled: %v", err)
		}
	}()

	chatService := services.NewChatService(history, selector, base, settingsService, metrics, cfg.ChatHistoryTurns)

	// Background jobs
	jobScheduler, err := jobs.NewJobScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	healthChecker := jobs.NewProviderHealthChecker(tester, defaults, healthService, time.Second)
	if err := jobScheduler.Register("provider-health", healthChecker, cfg.HealthCheckInterval, 10*time.Second); err != nil {
		log.Printf("⚠️ Failed to register provider health job: %v", err)
	}
	if err := jobScheduler.Register("knowledge-reindex", jobs.NewKnowledgeReindex(base, metrics), time.Hour, time.Hour); err != nil {
		log.Printf("⚠️ Failed to register knowledge reindex job: %v", err)
	}
	jobScheduler.Start()

	app := fiber.New(fiber.Config{
		AppName:      "CampusBot v1.0",
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  5 * time.Minute,
		BodyLimit:    20 * 1024 * 1024, // knowledge uploads
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))

	prom := fiberprometheus.New("campusbot")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard origins
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: strings.Join([]string{
			"Origin", "Content-Type", "Accept", "Authorization",
			services.HeaderAIProvider,
			services.HeaderOllamaURL, services.HeaderOllamaModel,
			services.HeaderOpenAIKey, services.HeaderOpenAIModel,
			services.HeaderGeminiKey, services.HeaderGeminiModel,
		}, ","),
		AllowCredentials: cfg.AllowedOrigins != "*",
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", cfg.AllowedOrigins)

	resolver := handlers.NewSettingsResolver(settingsService, userService, defaults)
	handlers.RegisterRoutes(app, &handlers.Routes{
		JWTAuth:   jwtAuth,
		RateLimit: rateLimitConfig,
		Auth:      handlers.NewLocalAuthHandler(jwtAuth, userService),
		Chat:      handlers.NewChatHandler(chatService, resolver),
		Settings:  handlers.NewSettingsHandler(settingsService, userService, tester, resolver, defaults),
		Knowledge: handlers.NewKnowledgeHandler(base, metrics),
		Health:    handlers.NewHealthHandler(healthService, db, mongoDB, redisService, base),
	})

	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("💬 Chat endpoint: http://localhost:%s/api/chat/message", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🕐 Background jobs: provider health (every %s), knowledge reindex (hourly)", cfg.HealthCheckInterval)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := jobScheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping background jobs: %v", err)
		}
		cancel()

		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
