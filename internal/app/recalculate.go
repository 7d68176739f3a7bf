package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/internal/domain/scoring"
	"github.com/okian/trustscore/internal/domain/types"
	"github.com/okian/trustscore/pkg/logger"
	"github.com/okian/trustscore/pkg/metrics"
)

const maxBackoff = 2 * time.Second

// eventMetadata is what every ledger event records so it can be replayed.
type eventMetadata struct {
	Breakdown scoring.Breakdown    `json:"breakdown"`
	Snapshot  model.SignalSnapshot `json:"snapshot"`
	Weights   scoring.WeightConfig `json:"weights"`
	Extra     map[string]any       `json:"extra,omitempty"`
}

// Recalculate recomputes a user's score from fresh signals and, when it
// changed, settles it together with a ledger event. Conflicting writers are
// retried with jittered backoff until the attempt budget is spent.
func (s *Service) Recalculate(ctx context.Context, userID string, reason model.Reason, extra map[string]any) (types.Diff, error) {
	if userID == "" {
		return types.Diff{}, ErrInvalidUser
	}
	if reason == "" {
		reason = model.ReasonRecalculation
	}
	if !reason.Valid() {
		return types.Diff{}, fmt.Errorf("%w: %q", model.ErrInvalidReason, reason)
	}

	start := time.Now()
	release := s.locks.lock(userID)
	defer release()

	var diff types.Diff
	err := retryOnConflict(ctx, s.maxAttempts, s.backoff, func() error {
		d, err := s.recalculateOnce(ctx, userID, reason, extra)
		if errors.Is(err, model.ErrConcurrentUpdate) {
			metrics.RecordConflict()
			s.logger.Debug(ctx, "score moved underneath recalculation, retrying", logger.String("user_id", userID))
		}
		diff = d
		return err
	})

	latency := float64(time.Since(start).Milliseconds())
	switch {
	case err != nil:
		metrics.RecordRecalculation(metrics.OutcomeError, string(reason), latency)
		return types.Diff{}, err
	case diff.Changed:
		metrics.RecordRecalculation(metrics.OutcomeChanged, string(reason), latency)
		s.logger.Info(ctx, "reputation settled",
			logger.String("user_id", userID),
			logger.String("reason", string(reason)),
			logger.Int64("previous", diff.PreviousScore),
			logger.Int64("new", diff.NewScore),
			logger.Int64("event_id", diff.EventID),
		)
	default:
		metrics.RecordRecalculation(metrics.OutcomeUnchanged, string(reason), latency)
	}
	return diff, nil
}

func (s *Service) recalculateOnce(ctx context.Context, userID string, reason model.Reason, extra map[string]any) (types.Diff, error) {
	if err := ctx.Err(); err != nil {
		return types.Diff{}, err
	}
	previous, err := s.profiles.ProfileScore(ctx, userID)
	if err != nil {
		return types.Diff{}, err
	}
	snap, weights, b, err := s.compute(ctx, userID)
	if err != nil {
		return types.Diff{}, err
	}

	diff := types.Diff{
		UserID:        userID,
		PreviousScore: previous,
		NewScore:      b.Total,
		Delta:         b.Total - previous,
		Changed:       b.Total != previous,
		Breakdown:     types.Present(b),
	}
	if !diff.Changed {
		return diff, nil
	}

	// A deadline that passed while collecting must not produce a write.
	if err := ctx.Err(); err != nil {
		return types.Diff{}, err
	}
	meta, err := json.Marshal(eventMetadata{Breakdown: b, Snapshot: snap, Weights: weights, Extra: extra})
	if err != nil {
		return types.Diff{}, fmt.Errorf("encode metadata: %w", err)
	}
	ev, err := s.profiles.Settle(ctx, userID, previous, b.Total, reason, meta)
	if err != nil {
		return types.Diff{}, err
	}
	diff.EventID = ev.ID
	return diff, nil
}

func (s *Service) compute(ctx context.Context, userID string) (model.SignalSnapshot, scoring.WeightConfig, scoring.Breakdown, error) {
	snap, err := s.collector.Collect(ctx, userID)
	if err != nil {
		return model.SignalSnapshot{}, nil, scoring.Breakdown{}, err
	}
	weights, err := s.weights.Get(ctx)
	if err != nil {
		return model.SignalSnapshot{}, nil, scoring.Breakdown{}, fmt.Errorf("weights: %w", err)
	}
	return snap, weights, scoring.Calculate(snap, weights), nil
}

// Breakdown computes the current score without persisting anything.
func (s *Service) Breakdown(ctx context.Context, userID string) (types.Reputation, error) {
	if userID == "" {
		return types.Reputation{}, ErrInvalidUser
	}
	stored, err := s.profiles.ProfileScore(ctx, userID)
	if err != nil {
		return types.Reputation{}, err
	}
	snap, _, b, err := s.compute(ctx, userID)
	if err != nil {
		return types.Reputation{}, err
	}
	return types.Reputation{
		UserID:     userID,
		Score:      b.Total,
		Stored:     stored,
		Breakdown:  types.Present(b),
		ComputedAt: snap.CollectedAt,
	}, nil
}

// retryOnConflict runs fn until it succeeds, fails with anything other than
// a concurrent update, or attempts run out. Delays grow exponentially with
// full jitter.
func retryOnConflict(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	cur := base
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !errors.Is(err, model.ErrConcurrentUpdate) {
			return err
		}
		if i == attempts-1 {
			break
		}
		if cur > maxBackoff {
			cur = maxBackoff
		}
		var sleep time.Duration
		if cur > 0 {
			sleep = time.Duration(rand.Int63n(int64(cur) + 1))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		cur *= 2
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
