package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/jawher/mow.cli"
	"github.com/joho/godotenv"

	"sjsage522/pricewatch/config"
	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/internal/catalog"
	"sjsage522/pricewatch/internal/detector"
	"sjsage522/pricewatch/internal/product"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/pkg/errors"
	"sjsage522/pricewatch/services/cache"
	"sjsage522/pricewatch/services/notifier"
	"sjsage522/pricewatch/services/publisher"
	"sjsage522/pricewatch/services/worker"
)

func main() {
	app := cli.App("pricewatch", "Watch Drogasil prices and alert on Telegram")

	envFile := app.StringOpt("env-file", ".env", "file with environment variables to load")
	dbFile := app.StringOpt("db", "", "price history file (overrides DB_FILE)")
	once := app.BoolOpt("once", false, "run a single sweep even if SWEEP_INTERVAL_SECONDS is set")

	app.Action = func() {
		// A missing .env file is fine, the environment may already be set
		_ = godotenv.Load(*envFile)

		logger.Init()
		log := logger.Default

		cfg := config.LoadConfig()
		if *dbFile != "" {
			cfg.DBFile = *dbFile
		}
		if *once {
			cfg.SweepInterval = 0
		}
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid configuration")
		}

		log.Info().
			Str("environment", cfg.Environment).
			Strs("queries", cfg.Queries).
			Dur("sweep_interval", cfg.SweepInterval).
			Msg("Starting application")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		}()

		services := initializeServices(ctx, cfg)
		defer services.Cleanup()

		w := newWorker(cfg, services)
		if err := w.Start(ctx); err != nil {
			services.Cleanup()
			log.Fatal().
				Err(err).
				Str("error_type", string(errors.TypeOf(err))).
				Str("state", string(w.State())).
				Msg("Sweep failed")
		}
	}

	app.Run(os.Args)
}

// Services holds the optional backing services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
		s.Publisher = nil
	}
}

// initializeServices connects the services that are configured; one that
// does not answer is disabled with a warning.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			logger.ForComponent("cache").Warn().Err(err).Msg("Memcache unavailable, search block guard disabled")
		} else {
			services.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	if cfg.RedisAddr != "" {
		rp := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		if err := rp.Ping(ctx); err != nil {
			logger.ForComponent("publisher").Warn().Err(err).Msg("Redis unavailable, alert stream disabled")
			rp.Close()
		} else {
			services.Publisher = rp
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return services
}

// newWorker wires the sweep components from cfg
func newWorker(cfg *config.Config, services *Services) *worker.Worker {
	fetcher := helpers.NewHTTPFetcher(helpers.DefaultPageTimeout)

	catalogCfg := catalog.DefaultConfig(cfg.RetailerURL)
	catalogCfg.MaxCandidates = cfg.MaxCandidates
	guard := cache.NewGuard(services.Cache, "pricewatch_search_blocked", cfg.SearchBlock)

	deps := worker.Deps{
		Queries:       cfg.Queries,
		HistoryFile:   cfg.DBFile,
		Targets:       detector.TargetTable(cfg.TargetPrices),
		DropThreshold: cfg.PctDropAlert,
		Interval:      cfg.SweepInterval,
		Resolver:      catalog.NewResolver(catalogCfg, fetcher, guard),
		Extractor:     product.NewExtractor(fetcher, cfg.Throttle),
		Notifier:      notifier.NewTelegramNotifier(cfg.TelegramAPIURL, cfg.BotToken, cfg.ChatID),
		Publisher:     services.Publisher,
	}
	return worker.NewWorker(deps)
}
