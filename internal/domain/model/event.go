// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Reason explains why a recalculation ran. It is stored on every ledger entry.
type Reason string

// Known recalculation reasons.
const (
	ReasonRecalculation      Reason = "recalculation"
	ReasonEndorsementAdded   Reason = "endorsement_added"
	ReasonEndorsementRemoved Reason = "endorsement_removed"
	ReasonExternalSync       Reason = "external_sync"
	ReasonManualAdmin        Reason = "manual_admin"
)

// Reasons lists every accepted reason.
func Reasons() []Reason {
	return []Reason{
		ReasonRecalculation,
		ReasonEndorsementAdded,
		ReasonEndorsementRemoved,
		ReasonExternalSync,
		ReasonManualAdmin,
	}
}

// Valid reports whether r is one of the known reasons.
func (r Reason) Valid() bool {
	for _, known := range Reasons() {
		if r == known {
			return true
		}
	}
	return false
}

// ParseReason normalizes s and returns the matching Reason.
// An empty string maps to ReasonRecalculation.
func ParseReason(s string) (Reason, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ReasonRecalculation, nil
	}
	r := Reason(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidReason, s)
	}
	return r, nil
}

// ReputationEvent is one immutable row of the history ledger.
// Delta always equals NewScore - PreviousScore.
type ReputationEvent struct {
	ID            int64           `json:"id"`
	UserID        string          `json:"user_id"`
	PreviousScore int64           `json:"previous_score"`
	NewScore      int64           `json:"new_score"`
	Delta         int64           `json:"delta"`
	Reason        Reason          `json:"reason"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RecomputeRequest asks for a user's score to be settled asynchronously.
// Delivery is at-least-once; ID makes consumption idempotent.
type RecomputeRequest struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Reason      Reason    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
	Attempt     int       `json:"attempt"`
}

// VerifyChain checks a user's events ordered oldest first: every delta must
// match its scores and each event must start where the previous one ended.
func VerifyChain(events []ReputationEvent) error {
	for i, ev := range events {
		if ev.Delta != ev.NewScore-ev.PreviousScore {
			return fmt.Errorf("%w: event %d delta %d != %d-%d",
				ErrBrokenChain, ev.ID, ev.Delta, ev.NewScore, ev.PreviousScore)
		}
		if i == 0 {
			continue
		}
		prev := events[i-1]
		if prev.NewScore != ev.PreviousScore {
			return fmt.Errorf("%w: event %d starts at %d but event %d ended at %d",
				ErrBrokenChain, ev.ID, ev.PreviousScore, prev.ID, prev.NewScore)
		}
		if ev.CreatedAt.Before(prev.CreatedAt) {
			return fmt.Errorf("%w: event %d is older than event %d", ErrBrokenChain, ev.ID, prev.ID)
		}
	}
	return nil
}
