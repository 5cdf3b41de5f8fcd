package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prompt-mastare/internal/config"
	"prompt-mastare/internal/db"
	"prompt-mastare/internal/metrics"
	"prompt-mastare/internal/middleware"
	"prompt-mastare/internal/optimize"
	"prompt-mastare/internal/presence"
	"prompt-mastare/internal/prompt"
	"prompt-mastare/internal/realtime"
	"prompt-mastare/internal/user"
	"prompt-mastare/internal/worker"
	"prompt-mastare/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Connect to database
	db.ConnectDb()
	defer db.CloseDb()

	// Migrate database schema
	db.Migrate()

	// Seed database with initial data (for development)
	if config.AppConfig.Environment == "development" {
		db.SeedData()
	}

	// Initialize Redis
	redisClient := redis.NewClient(config.AppConfig.RedisAddress)
	cache := redis.NewCache(redisClient)

	// Background worker pool
	pool := worker.NewWorkerPool(4)

	// Initialize repositories
	userRepo := user.NewRepository(db.AppDb)
	promptRepo := prompt.NewRepository(db.AppDb)

	// Initialize services
	userService := user.NewService(userRepo)
	optimizer := optimize.NewClient(config.AppConfig.OptimizerAddress, config.AppConfig.OptimizerSecret)
	resolveName := func(id uint64) string {
		u, err := userService.GetUserByID(id)
		if err != nil {
			return ""
		}
		return u.Name
	}
	promptService := prompt.NewService(promptRepo, cache, pool, optimizer, resolveName)

	// Presence store + sweeper
	presenceStore := presence.NewRedisStore(redisClient)
	sweeper := presence.NewSweeper(presenceStore, config.AppConfig.PresenceSweepInterval, config.AppConfig.PresenceMaxAge)
	sweeper.Start()

	// Realtime hub: registry and router are owned here and shared by the
	// dispatcher and the connection lifecycle
	registry := realtime.NewRegistry()
	router := realtime.NewRouter(registry)
	dispatcher := realtime.NewDispatcher(registry, router, promptService, presenceStore, pool)
	wsHandler := realtime.NewHandler(dispatcher)

	// Initialize handlers
	userHandler := user.NewHandler(userService)
	promptHandler := prompt.NewHandler(promptService)
	presenceHandler := presence.NewHandler(presenceStore, config.AppConfig.PresenceMaxAge)

	// Initialize Gin router
	engine := gin.Default()
	engine.Use(middleware.ErrorHandler())
	engine.Use(metrics.Middleware())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if config.AppConfig.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	engine.Use(cors.New(corsConfig))

	// User routes
	engine.POST("/register", userHandler.Register)
	engine.POST("/login", userHandler.Login)
	engine.GET("/profile", middleware.AuthMiddleWare(), userHandler.GetProfile)
	engine.DELETE("/profile", middleware.AuthMiddleWare(), userHandler.Deactivate)

	// Prompt routes
	engine.POST("/prompts", middleware.AuthMiddleWare(), promptHandler.Create)
	engine.GET("/prompts", middleware.AuthMiddleWare(), promptHandler.ListTeamPrompts)
	engine.GET("/prompts/:id", middleware.AuthMiddleWare(), promptHandler.Show)
	engine.PUT("/prompts/:id/content", middleware.AuthMiddleWare(), promptHandler.UpdateContent)
	engine.PUT("/prompts/:id/status", middleware.AuthMiddleWare(), promptHandler.SetStatus)
	engine.POST("/prompts/:id/lock", middleware.AuthMiddleWare(), promptHandler.Lock)
	engine.DELETE("/prompts/:id/lock", middleware.AuthMiddleWare(), promptHandler.Unlock)
	engine.POST("/prompts/:id/comments", middleware.AuthMiddleWare(), promptHandler.AddComment)
	engine.GET("/prompts/:id/comments", middleware.AuthMiddleWare(), promptHandler.ListComments)
	engine.POST("/prompts/:id/optimize", middleware.AuthMiddleWare(), promptHandler.Optimize)

	// Presence polling routes
	engine.GET("/prompts/:id/presence", middleware.AuthMiddleWare(), presenceHandler.ListForPrompt)
	engine.GET("/teams/presence", middleware.AuthMiddleWare(), presenceHandler.ListForTeam)

	// Realtime upgrade
	engine.GET("/ws", middleware.AuthMiddleWare(), wsHandler.Serve)

	// Operational endpoints
	engine.GET("/metrics", metrics.Handler())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Server configuration
	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverPort),
		Handler: engine.Handler(),
	}

	// Start server
	go func() {
		log.Printf("Server listening on port %s", serverPort)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	sweeper.Stop()
	pool.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Println("Server shutdown error:", err)
	}

	<-ctx.Done()
	log.Println("Server shutdown complete")
}
