package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartrent-ledger/internal/config"
	"github.com/iliyamo/smartrent-ledger/internal/database"
	"github.com/iliyamo/smartrent-ledger/internal/engine"
	"github.com/iliyamo/smartrent-ledger/internal/handler"
	"github.com/iliyamo/smartrent-ledger/internal/middleware"
	"github.com/iliyamo/smartrent-ledger/internal/observability"
	"github.com/iliyamo/smartrent-ledger/internal/queue"
	"github.com/iliyamo/smartrent-ledger/internal/repository"
	"github.com/iliyamo/smartrent-ledger/internal/router"
	"github.com/iliyamo/smartrent-ledger/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg := config.Load()
	logger := observability.InitLogger("smartrent", cfg.LogLevel, cfg.LogFormat)
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load engine policy")
	}

	db, err := database.Open(cfg.DBDriver, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if n, err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	} else if n > 0 {
		log.Info().Int("applied", n).Msg("migrations applied")
	}

	events := repository.NewEventRepo(db)
	pub := service.NewPublisher(cfg.RabbitURL, logger)
	defer pub.Close()

	eng, err := engine.Restore(ctx, policy, events,
		engine.WithJournal(events),
		engine.WithPublisher(pub),
		engine.WithLogger(logger),
		engine.WithMetrics(observability.NewMetrics()),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("restore engine from journal")
	}
	if err := eng.CheckInvariants(); err != nil {
		log.Fatal().Err(err).Msg("restored state is inconsistent")
	}

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Warn().Msg("redis unavailable: response cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(observability.RequestLogger(logger))
	e.Use(observability.RequestMetrics())
	e.Use(middleware.InvalidateOnWrite(cacheCfg, rdb))

	ledger := handler.NewLedgerHandler(eng)
	auth := handler.NewAuthHandler(cfg, repository.NewAccountRepo(db), repository.NewTokenRepo(db), repository.NewNonceRepo(db))

	router.RegisterRoutes(e, eng)
	router.RegisterAuth(e, auth, cfg.JWTSecret)
	router.RegisterPublic(e, ledger, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterLedger(e, ledger, cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger))

	consumer := &queue.LockAccessConsumer{URL: cfg.RabbitURL, Dir: "logs", Log: logger}
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("lock access consumer stopped")
		}
	}()

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Uint64("seq", eng.Seq()).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
