package service

import (
	"context"
	"sync"

	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/pkg/logger"
	"github.com/okian/trustscore/pkg/metrics"
)

// retryBuffer parks failed recompute requests until the sweeper replays them.
type retryBuffer struct {
	mu    sync.Mutex
	items []model.RecomputeRequest
	limit int
}

func newRetryBuffer(limit int) *retryBuffer {
	return &retryBuffer{limit: limit}
}

// park reports false when the buffer is full.
func (b *retryBuffer) park(r model.RecomputeRequest) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.limit {
		return false
	}
	b.items = append(b.items, r)
	metrics.UpdateRetryBufferSize(len(b.items))
	return true
}

func (b *retryBuffer) drain() []model.RecomputeRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	metrics.UpdateRetryBufferSize(0)
	return out
}

func (b *retryBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// RetryPending returns how many requests wait for the next sweep.
func (s *Service) RetryPending() int {
	return s.retries.len()
}

// SweepRetries re-publishes parked requests with their attempt counter
// raised. Requests past the attempt limit are dropped.
func (s *Service) SweepRetries(ctx context.Context) int {
	parked := s.retries.drain()
	if len(parked) == 0 {
		return 0
	}

	requeued := 0
	for _, r := range parked {
		r.Attempt++
		if r.Attempt > s.retryMaxAttempts {
			metrics.RecordDropped("max_attempts")
			s.logger.Error(ctx, "giving up on recompute request",
				logger.String("request_id", r.ID),
				logger.String("user_id", r.UserID),
				logger.Int("attempts", r.Attempt-1),
			)
			continue
		}
		pub, err := s.publisher()
		if err == nil {
			err = pub.Publish(ctx, r)
		}
		if err != nil {
			if !s.retries.park(r) {
				metrics.RecordDropped("buffer_full")
			}
			continue
		}
		metrics.RecordRetryRequeued()
		requeued++
	}
	s.logger.Debug(ctx, "retry sweep finished",
		logger.Int("parked", len(parked)),
		logger.Int("requeued", requeued),
	)
	return requeued
}
