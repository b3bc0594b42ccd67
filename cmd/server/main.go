package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/foldprep/api/internal/client"
	"github.com/foldprep/api/internal/config"
	"github.com/foldprep/api/internal/handler"
	"github.com/foldprep/api/internal/middleware"
	"github.com/foldprep/api/internal/service"
	"github.com/foldprep/api/internal/template"
	ws "github.com/foldprep/api/internal/websocket"
	"github.com/foldprep/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	searchClient := client.NewMMseqs2Client(&cfg.Search)
	gpcrdbClient := client.NewGPCRdbClient(&cfg.GPCRdb)
	klifsClient := client.NewKLIFSClient(&cfg.KLIFS)
	templateClient := client.NewTemplateClient(&cfg.Search)

	// Initialize artifact storage (optional - continues if not configured)
	var artifactStore client.ArtifactStore
	if cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		s3Client, err := client.NewS3ArtifactClient(&cfg.Storage)
		if err != nil {
			log.Printf("Warning: artifact storage not initialized: %v", err)
		} else {
			artifactStore = s3Client
		}
	} else {
		log.Println("Info: artifact storage not configured, results stay on local disk")
	}

	// Template selection and retrieval
	selector := template.NewSelector(gpcrdbClient, klifsClient)
	fetcher := template.NewFetcher(templateClient)

	// Initialize services
	alignService := service.NewAlignService(redisClient, asynqClient)

	// Initialize handlers
	alignHandler := handler.NewAlignHandler(alignService, validate)
	authHandler := handler.NewAuthHandler(cfg.JWT.Secret)

	// Initialize middleware
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		apiAuthMiddleware = middleware.NewAuthMiddleware(cfg.JWT.Secret).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    4 * 1024 * 1024, // 4MB, sequences are small
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"search":  searchClient.IsConfigured(),
				"gpcrdb":  gpcrdbClient.IsConfigured(),
				"klifs":   klifsClient.IsConfigured(),
				"storage": artifactStore != nil,
				"auth":    cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Alignment routes
	align := api.Group("/align")
	align.Post("/start", rateLimiter.AlignLimit(cfg.RateLimit.AlignPerHour), alignHandler.Start)
	align.Get("/status/:jobId", alignHandler.Status)
	align.Get("/result/:jobId", alignHandler.Result)
	align.Post("/reshuffle/:jobId", rateLimiter.ReshuffleLimit(cfg.RateLimit.ReshufflePerHour), alignHandler.Reshuffle)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(jobID, c)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, alignService, searchClient, selector, fetcher, artifactStore, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	alignService *service.AlignService,
	searchClient *client.MMseqs2Client,
	selector *template.Selector,
	fetcher *template.Fetcher,
	artifactStore client.ArtifactStore,
	hub *ws.Hub,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Searches run for minutes each; keep concurrency low so
			// one instance does not hammer the shared public servers.
			Concurrency: 2,
			Queues: map[string]int{
				"align": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	alignWorker := worker.NewAlignWorker(
		alignService,
		searchClient,
		selector,
		fetcher,
		artifactStore,
		hub,
		&cfg.Search,
		cfg.Server.DataDir,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeAlign, alignWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeReshuffle, alignWorker.ProcessReshuffleTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
