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

	"collaborative-workspace/auth"
	"collaborative-workspace/internal/block"
	"collaborative-workspace/internal/config"
	"collaborative-workspace/internal/db"
	"collaborative-workspace/internal/hub"
	"collaborative-workspace/internal/logger"
	"collaborative-workspace/internal/middleware"
	"collaborative-workspace/internal/observability"
	"collaborative-workspace/internal/user"
	"collaborative-workspace/internal/worker"
	"collaborative-workspace/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig
	log := logger.New(cfg.Environment, cfg.LogLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	// Connect to database; the relay keeps working in memory without it
	var blockService block.Service
	var userHandler *user.Handler
	tokens := auth.NewJWT(cfg.JWTSecret, cfg.TokenTTL)
	if err := db.ConnectDb(); err != nil {
		log.Warn().Err(err).Msg("database unavailable, running without persistence")
	} else {
		defer db.CloseDb()
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
		if !cfg.IsProduction() {
			db.SeedData(log)
		}
		blockService = block.NewService(block.NewRepository(db.AppDb))
		userHandler = user.NewHandler(user.NewService(user.NewRepository(db.AppDb)), tokens)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// Write-behind persistence
	pool := worker.NewWorkerPool(cfg.PersistWorkers, log)

	opts := hub.Options{
		Pool:            pool,
		NodeID:          nodeID,
		Metrics:         metrics,
		Logger:          log,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
		RateLimit:       cfg.WSRateLimit,
		RateBurst:       cfg.WSRateBurst,
	}
	if cfg.IsProduction() {
		opts.AllowedOrigins = []string{cfg.FrontendAddress}
	}
	if blockService != nil {
		opts.Store = blockService
	}

	// Initialize Redis relay bus
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var sub *redis.Subscription
	if client := redis.NewClient(ctx, cfg.RedisAddress, log); client != nil {
		defer client.Close()
		bus := redis.NewBus(client, nodeID, log)
		opts.Relay = bus
		s, err := bus.Subscribe(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("relay bus subscribe failed")
		} else {
			sub = s
		}
	}

	relay := hub.New(opts)
	if sub != nil {
		go sub.Deliver(ctx, relay.DeliverRemote)
	}
	hubHandler := hub.NewHandler(relay)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery(), middleware.ErrorHandler(log))

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}
	if cfg.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	authMw := &middleware.Auth{Tokens: tokens}

	// User routes
	if userHandler != nil {
		router.POST("/register", userHandler.Register)
		router.POST("/login", userHandler.Login)
		router.GET("/profile", authMw.AuthMiddleWare(), userHandler.GetProfile)
		router.DELETE("/profile", authMw.AuthMiddleWare(), userHandler.DeactivateProfile)
	}

	// Realtime routes
	router.GET("/ws", authMw.AuthMiddleWare(), hubHandler.ServeWS)
	router.GET("/workspaces/:workspaceId/presence", authMw.AuthMiddleWare(), hubHandler.ShowPresence)

	// Block routes
	if blockService != nil {
		blockHandler := block.NewHandler(blockService)
		router.GET("/workspaces/:workspaceId/documents/:documentId/blocks", authMw.AuthMiddleWare(), blockHandler.ShowDocumentBlocks)
		router.GET("/workspaces/:workspaceId/documents/:documentId/blocks/:blockId", authMw.AuthMiddleWare(), blockHandler.ShowBlock)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"node":        nodeID,
			"connections": relay.ClientCount(),
			"persistence": blockService != nil,
			"relay_bus":   sub != nil,
		})
	})

	// Server configuration
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Info().Str("port", cfg.ServerPort).Str("node", nodeID).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	relay.Close()
	cancel()
	if sub != nil {
		sub.Close()
	}
	// drain queued block saves before the database closes
	pool.Shutdown()
	log.Info().Msg("server shutdown complete")
}
