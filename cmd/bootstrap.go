package main

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/okian/trustscore/internal/adapters/mq/kafkabus"
	"github.com/okian/trustscore/internal/adapters/repository"
	app "github.com/okian/trustscore/internal/app"
	"github.com/okian/trustscore/internal/config"
	"github.com/okian/trustscore/internal/domain/signals"
	"github.com/okian/trustscore/pkg/logger"
)

// stack bundles everything a command needs.
type stack struct {
	cfg       *config.Config
	db        *gorm.DB
	svc       *app.Service
	publisher *kafkabus.Publisher
	log       logger.Logger
}

// bootstrap loads configuration, sets up logging and opens the database.
func bootstrap(ctx context.Context) (*stack, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := logger.InitWith(os.Stderr, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	db, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	profiles := repository.NewProfileStore(db)
	deps := app.Deps{
		Profiles: profiles,
		Collector: signals.NewCollector(signals.Sources{
			Profiles:     profiles,
			Activity:     profiles,
			Content:      profiles,
			Projects:     profiles,
			Endorsements: profiles,
		}),
		Weights: repository.NewWeightStore(db, repository.WithCacheTTL(cfg.WeightsCacheTTL())),
		Ledger:  repository.NewLedger(db, repository.WithPageLimits(cfg.HistoryDefaultLimit, cfg.HistoryMaxLimit)),
	}

	rt := &stack{cfg: cfg, db: db, log: log}
	opts := []app.Option{
		app.WithLogger(log.Named("reputation")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxAttempts(cfg.RecalcMaxAttempts),
		app.WithBackoff(cfg.RecalcBackoff()),
		app.WithRetrySchedule(cfg.RetrySchedule),
		app.WithRetryMaxAttempts(cfg.RetryMaxAttempts),
		app.WithRetryBufferSize(cfg.RetryBufferSize),
	}
	if cfg.KafkaEnabled() {
		rt.publisher = kafkabus.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		opts = append(opts, app.WithPublisher(rt.publisher))
	}
	rt.svc = app.New(deps, opts...)
	return rt, nil
}

func (rt *stack) close() {
	if rt.publisher != nil {
		if err := rt.publisher.Close(); err != nil {
			rt.log.Error(context.Background(), "close kafka publisher", logger.Error(err))
		}
	}
	if err := repository.Close(rt.db); err != nil {
		rt.log.Error(context.Background(), "close database", logger.Error(err))
	}
	_ = logger.Sync()
}
