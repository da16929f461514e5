package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	server "coffeemap/internal/adapters/http_server"
	kafkaad "coffeemap/internal/adapters/kafka"
	"coffeemap/internal/adapters/observability"
	redisad "coffeemap/internal/adapters/redis"
	"coffeemap/internal/app"
	"coffeemap/internal/domain"
	"coffeemap/internal/seed"
	"coffeemap/internal/shared"
	"coffeemap/internal/storage/memory"
	mysqlrepo "coffeemap/internal/storage/mysql"
	"coffeemap/internal/storage/postgis"
)

// store is what the API needs from any backend.
type store interface {
	domain.ShopRepository
	domain.SubmissionRepository
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "coffeemap-api")

	reg := observability.InitRegistry()
	metricsSrv := observability.Serve(cfg.MetricsAddr, reg)

	st, closeStore := openStore(ctx, cfg)
	defer closeStore()

	// deps
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, caching disabled")
		} else {
			cache = rc
			defer rc.Close()
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache enabled")
		}
	}

	var notifier domain.SubmissionNotifier
	if len(cfg.KafkaBrokers) > 0 {
		pub := kafkaad.New(cfg.KafkaBrokers, cfg.SubmissionTopic)
		defer pub.Close()
		notifier = pub
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.SubmissionTopic).Msg("submission events enabled")
	}

	q := app.NewQueryService(st, cache, cfg.CacheTTL,
		app.WithReadTimeout(cfg.QueryTimeout),
		app.WithLegacyPlanarDistance(cfg.LegacyPlanarDistance),
	)
	if cfg.LegacyPlanarDistance {
		log.Warn().Msg("LEGACY_PLANAR_DISTANCE is deprecated: pairwise distances use the planar approximation")
	}
	subs := app.NewSubmissionService(st, notifier)

	var limiter *rate.Limiter
	if cfg.SubmitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRPS), max(1, int(cfg.SubmitRPS)))
	}

	// http
	srv := server.New(server.Options{CORSOrigins: cfg.CORSOrigins})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Subs: subs, SubmitLimiter: limiter})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func openStore(ctx context.Context, cfg shared.Config) (store, func()) {
	switch cfg.StoreDriver {
	case shared.StoreMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		return mysqlrepo.New(db), func() { _ = db.Close() }

	case shared.StorePostGIS:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal().Err(err).Msg("pgxpool.New failed")
		}
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("database connection ok")
		return postgis.New(pool), pool.Close

	default:
		st := memory.New()
		loadMemory(ctx, st, cfg.SeedFile)
		return st, func() {}
	}
}

// loadMemory fills the in-process store from SEED_FILE or the embedded Dublin set.
func loadMemory(ctx context.Context, st *memory.Store, seedFile string) {
	body := seed.Dublin()
	if seedFile != "" {
		b, err := os.ReadFile(seedFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", seedFile).Msg("read seed file failed")
		}
		body = b
	}
	shops, skipped, err := app.ParseShops(body)
	if err != nil {
		log.Fatal().Err(err).Msg("parse seed failed")
	}
	for _, e := range skipped {
		log.Warn().Err(e).Msg("seed feature skipped")
	}
	loader := app.NewLoadService(st, nil, nil)
	for _, s := range shops {
		if _, _, err := loader.LoadShop(ctx, s); err != nil {
			log.Warn().Err(err).Str("name", s.Name).Msg("seed insert failed")
		}
	}
	log.Info().Int("shops", len(shops)).Msg("memory store seeded")
}
