package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/internal/domain/scoring"
	"github.com/okian/trustscore/internal/domain/types"
)

// History returns a page of a user's ledger, newest first.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) (types.HistoryPage, error) {
	if userID == "" {
		return types.HistoryPage{}, ErrInvalidUser
	}
	limit, offset, err := s.ledger.PageBounds(limit, offset)
	if err != nil {
		return types.HistoryPage{}, err
	}
	if _, err := s.profiles.ProfileScore(ctx, userID); err != nil {
		return types.HistoryPage{}, err
	}
	events, err := s.ledger.List(ctx, userID, limit, offset)
	if err != nil {
		return types.HistoryPage{}, err
	}
	total, err := s.ledger.Count(ctx, userID)
	if err != nil {
		return types.HistoryPage{}, err
	}
	return types.HistoryPage{UserID: userID, Events: events, Total: total, Limit: limit, Offset: offset}, nil
}

// Verify checks that the ledger chains and ends at the stored score.
func (s *Service) Verify(ctx context.Context, userID string) error {
	stored, err := s.profiles.ProfileScore(ctx, userID)
	if err != nil {
		return err
	}
	events, err := s.ledger.Ascending(ctx, userID)
	if err != nil {
		return err
	}
	if err := model.VerifyChain(events); err != nil {
		return err
	}
	if n := len(events); n > 0 && events[n-1].NewScore != stored {
		return fmt.Errorf("%w: stored score %d but last event %d ended at %d",
			model.ErrBrokenChain, stored, events[n-1].ID, events[n-1].NewScore)
	}
	return nil
}

// Audit replays every event from its recorded snapshot and weights.
func (s *Service) Audit(ctx context.Context, userID string) (types.AuditReport, error) {
	if _, err := s.profiles.ProfileScore(ctx, userID); err != nil {
		return types.AuditReport{}, err
	}
	events, err := s.ledger.Ascending(ctx, userID)
	if err != nil {
		return types.AuditReport{}, err
	}

	report := types.AuditReport{UserID: userID, Events: len(events), Entries: make([]types.AuditEntry, 0, len(events))}
	if err := model.VerifyChain(events); err != nil {
		report.ChainError = err.Error()
	}
	for _, ev := range events {
		entry := types.AuditEntry{EventID: ev.ID, Recorded: ev.NewScore}
		var meta eventMetadata
		if err := json.Unmarshal(ev.Metadata, &meta); err != nil || meta.Weights == nil {
			entry.Problem = "metadata cannot be replayed"
			report.Entries = append(report.Entries, entry)
			continue
		}
		entry.Replayed = scoring.Calculate(meta.Snapshot, meta.Weights).Total
		entry.Matches = entry.Replayed == entry.Recorded
		if !entry.Matches {
			entry.Problem = fmt.Sprintf("replay gives %d", entry.Replayed)
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}

// Weights returns the resolved configuration and the admin overrides.
func (s *Service) Weights(ctx context.Context) (types.Weights, error) {
	active, err := s.weights.Get(ctx)
	if err != nil {
		return types.Weights{}, err
	}
	overrides, err := s.weights.Overrides(ctx)
	if err != nil {
		return types.Weights{}, err
	}
	return types.Weights{Active: active, Overrides: overrides}, nil
}

// SetWeights applies a partial update. Scores are not recomputed; they pick
// up the new weights on their next recalculation.
func (s *Service) SetWeights(ctx context.Context, partial scoring.WeightConfig) (types.Weights, error) {
	if len(partial) == 0 {
		return types.Weights{}, fmt.Errorf("%w: empty update", model.ErrInvalidWeightConfig)
	}
	if _, err := s.weights.Set(ctx, partial); err != nil {
		return types.Weights{}, err
	}
	s.logger.Info(ctx, "weights updated")
	return s.Weights(ctx)
}
