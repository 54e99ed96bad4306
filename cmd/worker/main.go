package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/img2prompt/cache"
	"github.com/briangreenhill/img2prompt/internal/config"
	"github.com/briangreenhill/img2prompt/internal/coze"
	"github.com/briangreenhill/img2prompt/internal/db"
	"github.com/briangreenhill/img2prompt/internal/generator"
	"github.com/briangreenhill/img2prompt/internal/jobs"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger = logger.Level(cfg.Level())
	if !cfg.HasDatabase() || !cfg.HasCoze() {
		logger.Fatal().Msg("worker needs DATABASE_URL and COZE_PERSONAL_TOKEN")
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()
	q := db.New(pool)

	client, err := coze.New(cfg.Coze.PersonalToken,
		coze.WithBaseURL(cfg.Coze.APIBase),
		coze.WithWorkflowID(cfg.Coze.WorkflowID),
		coze.WithHTTPClient(&http.Client{Timeout: cfg.Coze.Timeout}),
		coze.WithLogger(logger.With().Str("component", "coze").Logger()),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("coze client")
	}

	// The worker keeps its own process-local cache; it is not shared with the API.
	store := cache.NewMemoryStore(cache.WithTTL(cfg.Cache.TTL()), cache.WithLogger(logger))
	gen := generator.New(store, cache.NewHasher(cache.WithHashLogger(logger)), client,
		generator.WithLogger(logger),
		generator.WithHistory(db.History{Q: q}),
		generator.WithSweepEvery(cfg.Cache.SweepEvery),
		generator.WithCoalescing(cfg.Cache.Coalesce),
	)

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency:    4,
		StrictPriority: false,
		Queues: map[string]int{
			jobs.QueuePrompts: 10,
			"default":         5,
		},
		Logger:   asynqLogger{logger.With().Str("component", "asynq").Logger()},
		LogLevel: asynq.InfoLevel,
	})
	mux := asynq.NewServeMux()
	mux.Handle(jobs.TaskGeneratePrompt, promptHandler{gen: gen, log: logger})

	logger.Info().Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}

// asynqLogger adapts zerolog to asynq.Logger.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
