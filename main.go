package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pricepulse/config"
	"pricepulse/internal/alert"
	"pricepulse/internal/fetch"
	"pricepulse/internal/ledger"
	"pricepulse/internal/refresh"
	"pricepulse/logger"
	"pricepulse/services/cache"
	"pricepulse/services/notifier"
	"pricepulse/services/publisher"
	"pricepulse/services/store"
	"pricepulse/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("batch_interval", cfg.BatchInterval).
		Dur("bulk_cooldown", cfg.BulkCooldown).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize storage
	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
	}
	defer db.Close()

	// Cooldown markers live in memcache when configured, so sibling worker
	// processes skip blocked strategies too; otherwise they stay in-process.
	var cacheSvc cache.CacheService = cache.NewMemoryService()
	if cfg.MemcacheAddr != "" {
		cacheSvc = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	// Initialize event publisher
	var events publisher.Publisher = publisher.Nop{}
	if cfg.RedisAddr != "" {
		events = publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}
	defer events.Close()

	// Initialize notifier
	var notify notifier.Notifier
	if cfg.SMTPHost != "" {
		notify = notifier.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		log.Warn().Msg("SMTP not configured, notifications will be logged only")
		notify = notifier.NewLogNotifier()
	}

	// Build the fetch strategy chain in priority order
	strategies := buildStrategies(&cfg)
	if len(strategies) == 0 {
		log.Fatal().Msg("No fetch strategies configured")
	}
	log.Info().Int("strategy_count", len(strategies)).Msg("Created fetch strategies")

	orchestrator := fetch.NewOrchestrator(
		strategies,
		fetch.NewProviderState(cacheSvc),
		cfg.FetchTimeout,
		cfg.FetchRetries,
	)

	// Core components
	priceLedger := ledger.New(db)
	evaluator := alert.NewEvaluator(db.Alerts(), db, notify, events)
	coordinator := refresh.NewCoordinator(orchestrator, db, priceLedger, evaluator, events, refresh.Options{
		BulkCooldown:      cfg.BulkCooldown,
		ManualMinInterval: cfg.ManualMinInterval,
		BatchBaseDelay:    cfg.BatchBaseDelay,
		BatchDelayStep:    cfg.BatchDelayStep,
	})

	// Periodic jobs
	w := worker.NewWorker(
		&worker.Job{
			Name:     "batch_refresh",
			Interval: cfg.BatchInterval,
			Run:      coordinator.RunBatch,
		},
		&worker.Job{
			Name:     "alert_sweep",
			Interval: cfg.SweepInterval,
			Run:      evaluator.Sweep,
		},
		&worker.Job{
			Name:     "daily_sample",
			Interval: cfg.SampleInterval,
			Run: func(ctx context.Context) error {
				products, err := db.List(ctx)
				if err != nil {
					return err
				}
				for i := range products {
					if err := priceLedger.EnsureDailySample(ctx, &products[i], time.Now()); err != nil {
						logger.LogError("worker", err, "daily sample failed for product %s", products[i].ID)
					}
				}
				return nil
			},
		},
	)

	workerDone := make(chan struct{})
	go func() {
		log.Info().Msg("Starting price tracking worker")
		w.Start(ctx)
		close(workerDone)
	}()

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case <-workerDone:
		log.Info().Msg("Worker exited")
	}

	log.Info().Msg("Shutting down gracefully...")
}

// buildStrategies assembles the fallback chain from configuration. Paid
// strategies are optional; the direct strategy is always present as the
// last resort.
func buildStrategies(cfg *config.Config) []fetch.Strategy {
	var strategies []fetch.Strategy
	if cfg.ExtractAPIURL != "" {
		strategies = append(strategies, fetch.NewExtractAPIStrategy(cfg.ExtractAPIURL, cfg.ExtractAPIKey, cfg.ExtractCooldown))
	}
	if cfg.RenderAPIURL != "" {
		strategies = append(strategies, fetch.NewRenderAPIStrategy(cfg.RenderAPIURL, cfg.RenderCooldown))
	}
	strategies = append(strategies, fetch.NewDirectStrategy(cfg.DirectCooldown))
	return strategies
}
