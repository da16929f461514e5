package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"coffeemap/internal/adapters/feed"
	"coffeemap/internal/adapters/observability"
	redisad "coffeemap/internal/adapters/redis"
	s3ad "coffeemap/internal/adapters/s3"
	"coffeemap/internal/app"
	"coffeemap/internal/domain"
	"coffeemap/internal/seed"
	"coffeemap/internal/shared"
	mysqlrepo "coffeemap/internal/storage/mysql"
	"coffeemap/internal/storage/postgis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "coffeemap-loader")

	log.Info().
		Str("store", cfg.StoreDriver).
		Str("feed", cfg.FeedURL).
		Str("seed_file", cfg.SeedFile).
		Int("workers", cfg.Workers).
		Msg("loader starting")

	repo, closeRepo := openRepo(ctx, cfg)
	defer closeRepo()

	body := readSource(ctx, cfg)
	shops, skipped, err := app.ParseShops(body)
	if err != nil {
		log.Fatal().Err(err).Msg("parse feature collection failed")
	}
	for _, e := range skipped {
		log.Warn().Err(e).Msg("feature skipped")
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}
	var snapshots domain.SnapshotWriter
	if cfg.S3Bucket != "" {
		exp, err := s3ad.New(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.S3Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize snapshot exporter")
		}
		snapshots = exp
	}
	loader := app.NewLoadService(repo, cache, snapshots)

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup
	var created, existing, failed atomic.Int64

	for _, s := range shops {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("load interrupted")
			break
		}

		wg.Add(1)
		go func(shop domain.CoffeeShop) {
			defer wg.Done()
			defer sem.Release(1)

			saved, isNew, err := loader.LoadShop(ctx, shop)
			switch {
			case err != nil:
				failed.Add(1)
				log.Warn().Str("name", shop.Name).Err(err).Msg("load failed")
			case isNew:
				created.Add(1)
				log.Info().Int64("id", saved.ID).Str("name", saved.Name).Msg("created")
			default:
				existing.Add(1)
				log.Info().Int64("id", saved.ID).Str("name", saved.Name).Msg("already exists")
			}
		}(s)
	}
	wg.Wait()

	log.Info().
		Int64("created", created.Load()).
		Int64("existing", existing.Load()).
		Int64("failed", failed.Load()).
		Int("skipped", len(skipped)).
		Msg("load completed")

	if snapshots != nil {
		pctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		n, err := loader.PublishSnapshot(pctx)
		if err != nil {
			log.Error().Err(err).Msg("snapshot publish failed")
			return
		}
		log.Info().Int("shops", n).Str("key", app.SnapshotObjectKey).Msg("snapshot published")
	}
}

func openRepo(ctx context.Context, cfg shared.Config) (domain.ShopRepository, func()) {
	switch cfg.StoreDriver {
	case shared.StoreMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("db ping ok")
		return mysqlrepo.New(db), func() { _ = db.Close() }
	case shared.StorePostGIS:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal().Err(err).Msg("pgxpool.New failed")
		}
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("db ping ok")
		return postgis.New(pool), pool.Close
	default:
		log.Fatal().Str("store", cfg.StoreDriver).Msg("loader needs STORE_DRIVER=mysql or postgis")
		return nil, nil
	}
}

// readSource picks FEED_URL, then SEED_FILE, then the embedded Dublin dataset.
func readSource(ctx context.Context, cfg shared.Config) []byte {
	switch {
	case cfg.FeedURL != "":
		fctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		body, err := feed.New(cfg.FeedToken, 5).GetFeatureCollection(fctx, cfg.FeedURL)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.FeedURL).Msg("fetch feed failed")
		}
		return body
	case cfg.SeedFile != "":
		body, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("read seed file failed")
		}
		return body
	default:
		return seed.Dublin()
	}
}
