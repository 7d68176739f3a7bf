package service

import (
	"time"

	"github.com/okian/trustscore/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the in-memory recompute queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many request IDs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxAttempts bounds how often a conflicting recalculation is retried.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between conflicting attempts.
func WithBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.backoff = d
		}
	}
}

// WithRetrySchedule sets the cron spec of the retry sweeper.
func WithRetrySchedule(spec string) Option {
	return func(s *Service) {
		if spec != "" {
			s.retrySchedule = spec
		}
	}
}

// WithRetryMaxAttempts sets how often a failed request is replayed before it is dropped.
func WithRetryMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retryMaxAttempts = n
		}
	}
}

// WithRetryBufferSize bounds how many failed requests are parked.
func WithRetryBufferSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retryBufferSize = n
		}
	}
}

// WithPublisher routes triggers to an external bus instead of the local queue.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.external = p
		}
	}
}

// WithLockStripes sets the number of per-user lock stripes.
func WithLockStripes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.locks = newLockTable(n)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
