package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/pkg/logger"
	"github.com/okian/trustscore/pkg/metrics"
)

// EndorsementAdded schedules a recalculation for the endorsed user.
func (s *Service) EndorsementAdded(ctx context.Context, userID string) {
	s.fireAndForget(ctx, userID, model.ReasonEndorsementAdded)
}

// EndorsementRemoved schedules a recalculation for the previously endorsed user.
func (s *Service) EndorsementRemoved(ctx context.Context, userID string) {
	s.fireAndForget(ctx, userID, model.ReasonEndorsementRemoved)
}

// ExternalSyncCompleted schedules a recalculation after an external-activity refresh.
func (s *Service) ExternalSyncCompleted(ctx context.Context, userID string) {
	s.fireAndForget(ctx, userID, model.ReasonExternalSync)
}

// RequestRecompute schedules a recalculation and returns the request ID. It
// fails only for invalid input or when neither the bus nor the retry buffer
// can take the request.
func (s *Service) RequestRecompute(ctx context.Context, userID string, reason model.Reason) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidUser
	}
	if reason == "" {
		reason = model.ReasonRecalculation
	}
	if !reason.Valid() {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidReason, reason)
	}
	r := model.RecomputeRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		Reason:      reason,
		RequestedAt: s.now().UTC(),
	}
	if err := s.submit(ctx, r); err != nil {
		return "", err
	}
	return r.ID, nil
}

// fireAndForget never fails the action that raised the trigger.
func (s *Service) fireAndForget(ctx context.Context, userID string, reason model.Reason) {
	if _, err := s.RequestRecompute(ctx, userID, reason); err != nil {
		s.logger.Error(ctx, "recompute trigger lost",
			logger.String("user_id", userID),
			logger.String("reason", string(reason)),
			logger.Error(err),
		)
	}
}

func (s *Service) submit(ctx context.Context, r model.RecomputeRequest) error {
	pub, err := s.publisher()
	if err == nil {
		err = pub.Publish(ctx, r)
	}
	if err == nil {
		return nil
	}
	if s.retries.park(r) {
		s.logger.Warn(ctx, "recompute request parked for retry",
			logger.String("request_id", r.ID),
			logger.String("user_id", r.UserID),
			logger.Error(err),
		)
		return nil
	}
	metrics.RecordDropped("buffer_full")
	return fmt.Errorf("%w: %w", ErrBackpressure, err)
}

// Handle settles one recompute request for the worker pool. Redeliveries are
// skipped; permanent failures are dropped; anything else is parked for the
// retry sweeper.
func (s *Service) Handle(ctx context.Context, r model.RecomputeRequest) error {
	s.mu.RLock()
	deduper := s.deduper
	s.mu.RUnlock()

	if deduper != nil && deduper.SeenAndRecord(ctx, r.ID) {
		metrics.RecordDuplicate()
		return nil
	}

	extra := map[string]any{"request_id": r.ID, "attempt": r.Attempt}
	_, err := s.Recalculate(ctx, r.UserID, r.Reason, extra)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrInvalidReason), errors.Is(err, ErrInvalidUser):
		metrics.RecordDropped("permanent")
		s.logger.Warn(ctx, "dropping recompute request",
			logger.String("request_id", r.ID),
			logger.String("user_id", r.UserID),
			logger.Error(err),
		)
		return nil
	}

	if deduper != nil {
		deduper.Unrecord(ctx, r.ID)
	}
	if !s.retries.park(r) {
		metrics.RecordDropped("buffer_full")
	}
	return err
}
