package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/api"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/api/handlers"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/config"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/logger"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/providers"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.InitLogger("", cfg.IsDevelopment())
	logger.WithComponent("server").WithFields(logrus.Fields{
		"environment": cfg.Env,
		"port":        cfg.Port,
	}).Info("Starting NFL Insight Analysis server")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Optional Redis connection shared by the response cache and health
	// checks. The server serves static data and insights without it.
	var cacheService *services.CacheService
	var responseCache providers.ResponseCache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Invalid Redis URL, continuing without cache")
		} else {
			redisClient := redis.NewClient(opt)
			if err := redisClient.Ping(context.Background()).Err(); err != nil {
				log.WithError(err).Warn("Redis unreachable, continuing without cache")
				redisClient.Close()
			} else {
				cacheService = services.NewCacheService(redisClient, log)
				responseCache = cacheService
				defer redisClient.Close()
			}
		}
	}

	insightsClient := services.NewInsightsClient(cfg, log)

	// In-process pipeline runs, enabled by PIPELINE_SCHEDULE.
	var scheduler *services.SchedulerService
	var breakers *services.CircuitBreakerService
	if cfg.PipelineSchedule != "" {
		statsAdapter := providers.NewNFLverseAdapter(cfg, responseCache, log)
		espnAdapter := providers.NewESPNAdapter(cfg, responseCache, log)
		oddsAdapter := providers.NewOddsAdapter(cfg, responseCache, log)
		breakers = services.NewCircuitBreakerService(cfg.CircuitBreakerThreshold, cfg.ExternalAPITimeout, log)
		aggregator := services.NewAggregator(services.DefaultMergeOptions(), log)
		pipeline := services.NewPipelineService(cfg, log, statsAdapter, espnAdapter, oddsAdapter, breakers, aggregator)

		scheduler = services.NewSchedulerService(cfg.PipelineSchedule, pipeline, log)
		if err := scheduler.Start(); err != nil {
			logger.WithComponent("server").Fatalf("Failed to start pipeline scheduler: %v", err)
		}
		defer scheduler.Stop()
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), api.RequestID())

	insightsHandler := handlers.NewInsightsHandler(insightsClient, log)
	dashboardHandler := handlers.NewDashboardHandler(cfg.ArtifactPath, log)
	healthHandler := handlers.NewHealthHandler(cfg.ArtifactPath, insightsClient, cacheService, scheduler, breakers, log)

	router.POST("/generate-insights", insightsHandler.GenerateInsights)
	router.GET("/api/v1/dashboard", dashboardHandler.GetDashboard)

	// Health check endpoints (support both GET and HEAD)
	router.GET("/health", healthHandler.GetHealth)
	router.HEAD("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)
	router.HEAD("/ready", healthHandler.GetReady)

	// Frontend and cache artifact, served verbatim from the public dir.
	router.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.PublicDir))))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.WithComponent("server").WithField("port", cfg.Port).Info("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithComponent("server").Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.WithComponent("server").Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithComponent("server").Fatalf("Server forced to shutdown: %v", err)
	}

	logger.WithComponent("server").Info("Server exited")
}
