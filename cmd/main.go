package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"prediction-settlement/internal/auth"
	"prediction-settlement/internal/cache"
	"prediction-settlement/internal/config"
	"prediction-settlement/internal/database"
	"prediction-settlement/internal/handlers"
	"prediction-settlement/internal/identity"
	"prediction-settlement/internal/jobs"
	"prediction-settlement/internal/outcome"
	"prediction-settlement/internal/repository"
	"prediction-settlement/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis is optional; without it pool aggregation reads hit the
	// database every time.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unreachable, continuing without pool cache: %v", err)
			redisClient = nil
		}
	}
	poolCache := cache.NewPoolCache(redisClient)

	// Initialize repository
	repo := repository.NewRepository(database.GetDB())

	// Collaborator clients
	outcomeClient := outcome.NewClient(cfg.Outcome.BaseURL, cfg.Outcome.APIKey, cfg.Outcome.Timeout)
	identityClient := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.Timeout)

	// Initialize services
	loc := cfg.Location()
	gameLocks := services.NewGameLocks()

	gameService := services.NewGameService(
		database.GetDB(),
		repo,
		identityClient,
		gameLocks,
		cfg.App.PoolDomain,
		loc,
		cfg.Settlement.MaxApplyRetries,
	)
	settlementService := services.NewSettlementService(
		database.GetDB(),
		repo,
		outcomeClient,
		gameLocks,
		cfg.Settlement.HybridBlendFactor,
		cfg.Settlement.ConsolationFraction,
	)
	poolService := services.NewPoolService(repo, poolCache, cfg.App.PoolDomain, loc)
	waveService := services.NewWaveService(
		database.GetDB(),
		repo,
		poolCache,
		cfg.App.PoolDomain,
		loc,
		cfg.Wave.AllocationRate,
		cfg.Wave.MaxSourceFraction,
		cfg.Wave.VentureBudgetRate,
	)

	// Initialize handlers
	gameHandler := handlers.NewGameHandler(gameService, settlementService)
	poolHandler := handlers.NewPoolHandler(poolService)
	accountHandler := handlers.NewAccountHandler(gameService, repo)
	waveHandler := handlers.NewWaveHandler(waveService, repo)

	// Background jobs
	gameCloser := jobs.NewGameCloser(gameService, settlementService, cfg.Settlement.CloserInterval)
	go gameCloser.Start()

	waveScheduler := jobs.NewWaveScheduler(waveService, cfg.Wave.Interval)
	go waveScheduler.Start()

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	router.GET("/api/games", gameHandler.ListGames)
	router.GET("/api/games/:id", gameHandler.GetGame)
	router.GET("/api/pools", poolHandler.GetAggregatedPool)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.POST("/wagers", gameHandler.PlaceWager)
		api.GET("/wagers", gameHandler.GetMyWagers)
		api.GET("/account", accountHandler.GetMyAccount)
		api.GET("/account/transactions", accountHandler.GetMyTransactions)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(auth.AdminMiddleware())
	{
		admin.POST("/games", gameHandler.CreateGame)
		admin.POST("/games/:id/activate", gameHandler.ActivateGame)
		admin.POST("/games/:id/close", gameHandler.CloseGame)
		admin.POST("/games/:id/cancel", gameHandler.CancelGame)
		admin.POST("/games/:id/settle", gameHandler.SettleGame)

		admin.POST("/waves/run", waveHandler.RunWave)
		admin.GET("/waves/:id", waveHandler.GetWave)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	gameCloser.Stop()
	waveScheduler.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
