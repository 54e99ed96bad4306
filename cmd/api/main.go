// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/img2prompt/cache"
	"github.com/briangreenhill/img2prompt/internal/auth"
	"github.com/briangreenhill/img2prompt/internal/config"
	"github.com/briangreenhill/img2prompt/internal/coze"
	"github.com/briangreenhill/img2prompt/internal/db"
	"github.com/briangreenhill/img2prompt/internal/email"
	"github.com/briangreenhill/img2prompt/internal/generator"
	"github.com/briangreenhill/img2prompt/internal/http/routes"
	"github.com/briangreenhill/img2prompt/internal/metrics"
	"github.com/briangreenhill/img2prompt/web"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger = logger.Level(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(coze.Variants...)
	store := cache.NewMemoryStore(
		cache.WithTTL(cfg.Cache.TTL()),
		cache.WithLogger(logger.With().Str("component", "cache").Logger()),
		cache.WithObserver(m),
	)
	m.WatchStore(store)
	hasher := cache.NewHasher(
		cache.WithHashLogger(logger.With().Str("component", "hasher").Logger()),
		cache.WithHashObserver(m),
	)

	opts := routes.ServerOptions{
		Store:   store,
		Metrics: m.Handler(),
		Logger:  logger,
		Magic:   auth.MagicLink{Secret: []byte(cfg.JWTSecret), BaseURL: cfg.BaseURL},
	}

	genOpts := []generator.Option{
		generator.WithLogger(logger.With().Str("component", "generator").Logger()),
		generator.WithMetrics(m),
		generator.WithSweepEvery(cfg.Cache.SweepEvery),
		generator.WithCoalescing(cfg.Cache.Coalesce),
	}

	if cfg.HasDatabase() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("db error")
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
		}
		queries := db.New(pool)
		opts.Q = queries
		genOpts = append(genOpts, generator.WithHistory(db.History{Q: queries}))

		jobsClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close asynq client")
			}
		}()
		opts.Jobs = jobsClient
	} else {
		logger.Warn().Msg("DATABASE_URL not set: sign-in, history and background jobs disabled")
	}

	if cfg.HasCoze() {
		client, err := coze.New(cfg.Coze.PersonalToken,
			coze.WithBaseURL(cfg.Coze.APIBase),
			coze.WithWorkflowID(cfg.Coze.WorkflowID),
			coze.WithHTTPClient(&http.Client{Timeout: cfg.Coze.Timeout}),
			coze.WithLogger(logger.With().Str("component", "coze").Logger()),
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("coze client")
		}
		opts.Gen = generator.New(store, hasher, client, genOpts...)
	} else {
		logger.Warn().Msg("COZE_PERSONAL_TOKEN not set: prompt generation disabled")
	}

	if cfg.SMTPAddr != "" {
		opts.Email = email.NewSMTPSender(cfg.SMTPAddr, cfg.MailFrom)
	} else {
		opts.Email = email.StdoutSender{Log: logger.With().Str("component", "email").Logger()}
	}

	tmpl, err := web.Templates()
	if err != nil {
		logger.Fatal().Err(err).Msg("parse templates")
	}
	opts.Tmpl = tmpl

	sess := scs.New()
	sess.Lifetime = 12 * time.Hour
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode
	sess.Cookie.Secure = cfg.SecureCookies
	opts.Sess = sess

	s := routes.New(opts)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Dur("cache_ttl", store.TTL()).Msg("starting app")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
