package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/edgearb/edge/internal/adapter"
	"github.com/edgearb/edge/internal/alert"
	"github.com/edgearb/edge/internal/arbitrage"
	"github.com/edgearb/edge/internal/cache"
	"github.com/edgearb/edge/internal/chaos"
	"github.com/edgearb/edge/internal/config"
	"github.com/edgearb/edge/internal/coordinator"
	"github.com/edgearb/edge/internal/distribution"
	"github.com/edgearb/edge/internal/embedding"
	"github.com/edgearb/edge/internal/httpapi"
	"github.com/edgearb/edge/internal/ingestion"
	applogger "github.com/edgearb/edge/internal/logger"
	"github.com/edgearb/edge/internal/observability"
	"github.com/edgearb/edge/internal/pipeline"
	"github.com/edgearb/edge/internal/queue"
	"github.com/edgearb/edge/internal/stream"
	"github.com/edgearb/edge/internal/technical"
	"github.com/edgearb/edge/internal/types"
)

func main() {
	cfg := config.Load()
	log := applogger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("edge arbitrage engine starting")

	cacheClient, err := cache.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("cache init failed — continuing without a shared cache")
	} else if err := cacheClient.Ping(context.Background()); err != nil {
		log.Warn().Err(err).Msg("cache ping failed")
	} else {
		log.Info().Msg("cache connected")
	}

	registry := registerAdapters(log)

	chaosHarness := chaos.NewHarness(cfg.ChaosEnabled)

	obsCoordinator := observability.New(nil, nil, nil, 50, 2.0)

	queueManager := queue.New()
	queueSink := &queueAdapter{manager: queueManager}

	ingestionCoordinator := coordinator.New(nil, nil, queueSink, cacheClient, coordinator.Config{
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		FallbackCacheTTL:   cfg.FallbackCacheTTL,
		BreakerThreshold:   cfg.BreakerFailureThreshold,
		BreakerOpenDur:     cfg.BreakerOpenDuration,
		BreakerHalfProbes:  cfg.BreakerHalfOpenProbes,
	})

	pairs := defaultPairs()

	var streamFeed *stream.Feed
	if cfg.StreamURL != "" {
		streamFeed = stream.New(streamSources(cfg.StreamURL, registry.List()), log)
		streamFeed.Start(context.Background())
	}

	engine := ingestion.New(pairs, registry, cacheClient, streamTier(streamFeed), ingestionCoordinator, cfg.IngestionInterval, cfg.SnapshotTTL, log)
	engine.Start()

	arbDetector := arbitrage.New(cfg.ArbitrageThreshold, nil, nil)
	embeddingEngine := embedding.New(cfg.EmbeddingDim, cfg.SimilarityThreshold, cacheClient, cfg.EmbeddingTTL, cfg.LocalFallbackSize, nil)
	signalEngine := technical.New(technical.Config{
		RSIPeriod: 14, MAShortPeriod: 10, MALongPeriod: 20,
		BollingerPeriod: 20, BollingerStdDev: 2.0, MomentumPeriod: 5,
		MinConfidence: cfg.MinSignalConfidence, DefaultStopLossPct: cfg.DefaultStopLossPct,
		RewardRiskRatio: cfg.RewardRiskRatio, SignalExpiry: cfg.SignalExpiry,
	})

	distributionEngine := distribution.New(cacheClient)
	dispatcher := pipeline.NewDispatcher(log, distributionEngine, queueManager, nil, types.StrategyBroadcast)

	opportunityPipeline := pipeline.New(log, arbDetector, signalEngine, embeddingEngine, dispatcher, pipeline.DefaultConfig())
	opportunityPipeline.Start(context.Background())
	engine.AttachOpportunityPipeline(opportunityPipeline)

	alertManager := alert.New(nil)

	admin := httpapi.NewRouter(httpapi.Deps{Logger: log, Observability: obsCoordinator, Chaos: chaosHarness})
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      admin,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.DefaultTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	scheduler := cron.New(cron.WithSeconds())
	if _, err := scheduler.AddFunc("*/30 * * * * *", func() { alertManager.Tick(time.Now()) }); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule alert escalation sweep")
	}
	scheduler.Start()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("admin surface listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	engine.Stop()
	opportunityPipeline.Stop()
	if streamFeed != nil {
		streamFeed.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("edge arbitrage engine stopped gracefully")
	}
}

func registerAdapters(log zerolog.Logger) *adapter.Registry {
	registry := adapter.NewRegistry()
	registry.Register(adapter.NewBinanceAdapter())
	registry.Register(adapter.NewBybitAdapter())
	registry.Register(adapter.NewOKXAdapter())
	registry.Register(adapter.NewCoinbaseAdapter())
	registry.Register(adapter.NewKrakenAdapter())
	log.Info().Int("adapters", len(registry.List())).Msg("exchange adapters registered")
	return registry
}

func defaultPairs() []ingestion.PairConfig {
	venues := []string{"binance", "bybit", "okx", "coinbase", "kraken"}
	pairs := []string{"BTC-USDT", "ETH-USDT"}
	var out []ingestion.PairConfig
	for _, v := range venues {
		for _, p := range pairs {
			out = append(out, ingestion.PairConfig{Venue: v, Pair: p})
		}
	}
	return out
}

// streamSources builds one websocket Source per registered venue under a
// shared base URL, e.g. wss://stream.internal/binance.
func streamSources(baseURL string, venues []string) []stream.Source {
	out := make([]stream.Source, 0, len(venues))
	for _, v := range venues {
		out = append(out, stream.Source{Venue: v, URL: baseURL + "/" + v})
	}
	return out
}

// streamTier adapts a possibly-nil *stream.Feed to ingestion.StreamTier,
// since a nil *stream.Feed stored in an interface is not itself nil.
func streamTier(f *stream.Feed) ingestion.StreamTier {
	if f == nil {
		return nil
	}
	return f
}

// queueAdapter bridges the coordinator's QueueSink interface to the
// synchronous in-process queue.Manager.
type queueAdapter struct {
	manager *queue.Manager
}

func (q *queueAdapter) Enqueue(ctx context.Context, queueType types.QueueType, payload []byte, groupID, dedupID string) error {
	_, err := q.manager.Enqueue(queueType, payload, types.PriorityNormal, groupID, dedupID)
	return err
}
