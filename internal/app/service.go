// Package service orchestrates reputation recalculation: it owns the
// read-compute-write cycle, the asynchronous trigger path and the out-of-band
// retry of failed triggers.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	eventqueue "github.com/okian/trustscore/internal/adapters/mq/queue"
	workerpool "github.com/okian/trustscore/internal/adapters/mq/worker"
	"github.com/okian/trustscore/internal/domain/dedupe"
	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/internal/domain/scoring"
	"github.com/okian/trustscore/pkg/logger"
)

// ProfileStore reads and settles stored scores.
type ProfileStore interface {
	ProfileScore(ctx context.Context, userID string) (int64, error)
	Settle(ctx context.Context, userID string, previous, next int64, reason model.Reason, metadata []byte) (model.ReputationEvent, error)
}

// Collector assembles a user's signal snapshot.
type Collector interface {
	Collect(ctx context.Context, userID string) (model.SignalSnapshot, error)
}

// WeightStore serves and updates the weight configuration.
type WeightStore interface {
	Get(ctx context.Context) (scoring.WeightConfig, error)
	Set(ctx context.Context, partial scoring.WeightConfig) (scoring.WeightConfig, error)
	Overrides(ctx context.Context) (scoring.WeightConfig, error)
}

// Ledger reads the history of score changes.
type Ledger interface {
	PageBounds(limit, offset int) (int, int, error)
	List(ctx context.Context, userID string, limit, offset int) ([]model.ReputationEvent, error)
	Count(ctx context.Context, userID string) (int64, error)
	Ascending(ctx context.Context, userID string) ([]model.ReputationEvent, error)
}

// Publisher hands a recompute request to a bus.
type Publisher interface {
	Publish(ctx context.Context, r model.RecomputeRequest) error
}

// Deps are the stores the service works on.
type Deps struct {
	Profiles  ProfileStore
	Collector Collector
	Weights   WeightStore
	Ledger    Ledger
}

// Service implements the reputation operations exposed over HTTP and the CLI.
type Service struct {
	mu sync.RWMutex

	profiles  ProfileStore
	collector Collector
	weights   WeightStore
	ledger    Ledger
	locks     *lockTable

	// Async path, built on Start.
	deduper    dedupe.Deduper
	queue      *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	cancelRun  context.CancelFunc
	external   Publisher
	retries    *retryBuffer
	sweeper    *cron.Cron

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	maxAttempts      int
	backoff          time.Duration
	retrySchedule    string
	retryMaxAttempts int
	retryBufferSize  int

	started bool
	now     func() time.Time
	logger  logger.Logger
}

// New constructs a Service over deps.
func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		profiles:         deps.Profiles,
		collector:        deps.Collector,
		weights:          deps.Weights,
		ledger:           deps.Ledger,
		workerCount:      runtime.NumCPU() * 2,
		queueSize:        10_000,
		dedupeSize:       100_000,
		maxAttempts:      5,
		backoff:          20 * time.Millisecond,
		retrySchedule:    "@every 30s",
		retryMaxAttempts: 5,
		retryBufferSize:  1_000,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = newLockTable(defaultLockStripes)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("reputation")
	}
	s.retries = newRetryBuffer(s.retryBufferSize)
	return s
}

// Start builds the queue, worker pool and retry sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(s.retrySchedule, func() { s.SweepRetries(context.Background()) }); err != nil {
		return fmt.Errorf("retry schedule %q: %w", s.retrySchedule, err)
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, workerpool.HandlerFunc(s.Handle))
	// Workers outlive ctx so queued requests drain on Stop.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelRun = cancel
	s.workerPool.Start(runCtx)
	s.sweeper = sweeper
	s.sweeper.Start()

	s.started = true
	s.logger.Info(ctx, "reputation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.String("retry_schedule", s.retrySchedule),
		logger.Bool("external_bus", s.external != nil),
	)
	return nil
}

// Stop halts the sweeper, drains the queue and waits for the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	sweeper, pool, cancelRun := s.sweeper, s.workerPool, s.cancelRun
	s.mu.Unlock()
	defer cancelRun()

	s.logger.Info(ctx, "stopping reputation service")

	stopped := sweeper.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.logger.Warn(ctx, "retry sweeper stop timed out")
	}

	err := pool.Shutdown(ctx)
	s.logger.Info(ctx, "reputation service stopped", logger.Int("retry_pending", s.retries.len()))
	return err
}

// Enqueue places a request on the local queue. Consumers of an external bus
// feed the worker pool through it.
func (s *Service) Enqueue(ctx context.Context, r model.RecomputeRequest) error {
	s.mu.RLock()
	q := s.queue
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	return q.Enqueue(ctx, r)
}

// publisher returns where triggers go: the external bus when configured,
// otherwise the local queue.
func (s *Service) publisher() (Publisher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.external != nil {
		return s.external, nil
	}
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.queue, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"dedupeSize":       s.dedupeSize,
		"retryPending":     s.retries.len(),
		"retrySchedule":    s.retrySchedule,
		"externalBus":      s.external != nil,
		"maxAttempts":      s.maxAttempts,
		"retryMaxAttempts": s.retryMaxAttempts,
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(context.Background())
		stats["dedupeEntries"] = s.deduper.Size()
	}
	return stats
}
