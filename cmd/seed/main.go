package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"wanderlust/internal/adapters/observability"
	redisad "wanderlust/internal/adapters/redis"
	"wanderlust/internal/adapters/seedsource"
	"wanderlust/internal/app"
	"wanderlust/internal/domain"
	"wanderlust/internal/shared"
	"wanderlust/internal/storage"
)

func main() {
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := "embedded"
	if cfg.SeedURL != "" {
		source = cfg.SeedURL
	}
	log.Info().
		Str("driver", cfg.StoreDriver).
		Str("source", source).
		Int("workers", cfg.SeedWorkers).
		Bool("clear", cfg.SeedClear).
		Msg("seeder starting")

	fixtures, err := loadFixtures(ctx, cfg.SeedURL)
	if err != nil {
		log.Fatal().Err(err).Msg("load fixtures failed")
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store unavailable")
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(cctx)
	}()

	// seed through the cache so a running api does not serve a stale index
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err == nil {
			cache = rc
			defer rc.Close()
		} else {
			log.Warn().Err(err).Msg("redis unreachable, cache entries may be stale until TTL")
			_ = rc.Close()
		}
	}

	listings := app.NewListingService(store, cache, cfg.CacheTTL)
	rep, err := app.NewSeedService(listings, cfg.SeedWorkers).Seed(ctx, fixtures, cfg.SeedClear)
	if err != nil {
		log.Fatal().Err(err).
			Int("cleared", rep.Cleared).
			Int("created", rep.Created).
			Msg("seeding failed")
	}
	log.Info().
		Int("cleared", rep.Cleared).
		Int("created", rep.Created).
		Int("rejected", rep.Rejected).
		Msg("seeding completed")
}

func loadFixtures(ctx context.Context, url string) ([]map[string]any, error) {
	if url == "" {
		return seedsource.Embedded()
	}
	fctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	return seedsource.New(5).Fetch(fctx, url)
}
