package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hydromate/internal/api"
	"hydromate/internal/config"
	"hydromate/internal/dispatch"
	"hydromate/internal/lifecycle"
	"hydromate/internal/message"
	"hydromate/internal/metrics"
	"hydromate/internal/schedule"
	"hydromate/internal/service"
	"hydromate/internal/store"

	mrand "math/rand"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("invalid timezone")
	}

	db, err := store.NewDB(cfg.Database.Path, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	var cache *service.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, caching disabled")
		} else {
			cache = service.NewCache(client, cfg.Redis.CacheTTL)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("redis cache enabled")
		}
	}

	metrics.Register()

	generator := message.NewGenerator(mrand.NewSource(time.Now().UnixNano()))
	engine := schedule.New(generator, log.Logger)
	lc := lifecycle.New(db, log.Logger)
	svc := service.New(db, db, db, engine, lc, schedule.SystemClock(loc), cache, log.Logger)

	var notifier dispatch.Notifier
	if cfg.Telegram.Token != "" {
		tn, err := dispatch.NewTelegramNotifier(cfg.Telegram.Token, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create telegram notifier")
		}
		notifier = tn
	} else {
		log.Warn().Msg("no telegram token configured, logging reminders instead of sending")
		notifier = dispatch.NewLogNotifier(log.Logger)
	}

	dispatcher := dispatch.New(dispatch.Config{
		CheckInterval: cfg.Dispatch.CheckInterval,
		RatePerSecond: cfg.Dispatch.RatePerSecond,
		Burst:         cfg.Dispatch.Burst,
		MaxRetries:    cfg.Dispatch.MaxRetries,
		RetryDelays:   dispatch.DefaultConfig().RetryDelays,
		RetentionDays: dispatch.DefaultConfig().RetentionDays,
	}, db, svc, notifier, log.Logger).WithRetention(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	metricsSrv := &http.Server{Addr: cfg.Monitoring.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		log.Info().Str("addr", cfg.Monitoring.MetricsAddr).Msg("metrics server listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	server := api.NewServer(cfg.Server.Addr, svc, log.Logger)
	server.Start(ctx)

	log.Info().Msg("shutdown complete")
}
