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
	"github.com/rs/zerolog/log"

	"staybook/internal/adapters/auth"
	server "staybook/internal/adapters/http_server"
	"staybook/internal/adapters/notify"
	"staybook/internal/adapters/observability"
	redisad "staybook/internal/adapters/redis"
	"staybook/internal/app"
	"staybook/internal/domain"
	"staybook/internal/shared"
	mysqlrepo "staybook/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.SetLevel(cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cache.Ping(context.Background()); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; reads will go to the database")
	}
	sink, closeSink := newNotifier(cfg)
	defer closeSink()
	notifier := app.NewDispatcher(sink, cfg.NotifyQueue, 2, cfg.NotifyTimeout)

	h := &server.Handlers{
		Q:            app.NewQueryService(repo, cache, cfg.CacheTTL),
		Listings:     app.NewListingService(repo, cache),
		Bookings:     app.NewBookingManager(repo, notifier),
		Reviews:      app.NewReviewGate(repo, cache, notifier),
		Availability: app.NewAvailabilityEngine(repo),
		Tokens:       auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		WriteRPS:     cfg.WriteRPS,
	}

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	notifier.Close()
	_ = cache.Close()
	_ = db.Close()
}

// newNotifier picks the lifecycle event sink named by NOTIFIER.
func newNotifier(cfg shared.Config) (domain.Notifier, func()) {
	switch cfg.Notifier {
	case "amqp":
		mq, err := notify.DialRabbitMQ(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("amqp notifier init failed")
		}
		return mq, func() { _ = mq.Close() }
	case "webhook":
		wh, err := notify.NewWebhook(cfg.WebhookURL, cfg.WebhookRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("webhook notifier init failed")
		}
		return wh, func() {}
	case "", "none":
		return notify.Nop{}, func() {}
	default:
		log.Fatal().Str("notifier", cfg.Notifier).Msg("unknown NOTIFIER; want none, amqp or webhook")
		return nil, nil
	}
}
