package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

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
	logger.WithComponent("pipeline").WithFields(logrus.Fields{
		"team":     cfg.TeamAbbr,
		"artifact": cfg.ArtifactPath,
	}).Info("Starting aggregation pipeline")

	// Optional Redis-backed response cache; the pipeline runs without it.
	var cache providers.ResponseCache
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Invalid Redis URL, running without response cache")
		} else {
			redisClient = redis.NewClient(opt)
			if err := redisClient.Ping(context.Background()).Err(); err != nil {
				log.WithError(err).Warn("Redis unreachable, running without response cache")
				redisClient.Close()
				redisClient = nil
			} else {
				cache = services.NewCacheService(redisClient, log)
				defer redisClient.Close()
			}
		}
	}

	statsAdapter := providers.NewNFLverseAdapter(cfg, cache, log)
	espnAdapter := providers.NewESPNAdapter(cfg, cache, log)
	oddsAdapter := providers.NewOddsAdapter(cfg, cache, log)

	breakers := services.NewCircuitBreakerService(cfg.CircuitBreakerThreshold, cfg.ExternalAPITimeout, log)
	aggregator := services.NewAggregator(services.DefaultMergeOptions(), log)
	pipeline := services.NewPipelineService(cfg, log, statsAdapter, espnAdapter, oddsAdapter, breakers, aggregator)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	doc, err := pipeline.Run(ctx)
	if err != nil {
		logger.WithComponent("pipeline").WithError(err).Error("Pipeline run failed")
		os.Exit(1)
	}

	logger.WithComponent("pipeline").WithFields(logrus.Fields{
		"run_id":   doc.RunID,
		"entities": doc.EntityCount(),
		"sources":  doc.SourcesUsed,
	}).Info("Pipeline complete, artifact written")
}
