// Package types contains the shapes shared between the service and its transports.
package types

import (
	"math"
	"time"

	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/internal/domain/scoring"
)

// Category is one labelled row of a presented breakdown.
type Category struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Points float64 `json:"points"`
}

// Breakdown is the user-facing view of a scoring.Breakdown.
type Breakdown struct {
	Categories []Category `json:"categories"`
	Total      int64      `json:"total"`
}

// Diff describes the outcome of one recalculation.
type Diff struct {
	UserID        string    `json:"user_id"`
	PreviousScore int64     `json:"previous_score"`
	NewScore      int64     `json:"new_score"`
	Delta         int64     `json:"delta"`
	Changed       bool      `json:"changed"`
	EventID       int64     `json:"event_id,omitempty"`
	Breakdown     Breakdown `json:"breakdown"`
}

// Reputation is the current score together with how it was reached.
type Reputation struct {
	UserID     string    `json:"user_id"`
	Score      int64     `json:"score"`
	Stored     int64     `json:"stored_score"`
	Breakdown  Breakdown `json:"breakdown"`
	ComputedAt time.Time `json:"computed_at"`
}

// HistoryPage is one page of a user's ledger, newest first.
type HistoryPage struct {
	UserID string                  `json:"user_id"`
	Events []model.ReputationEvent `json:"events"`
	Total  int64                   `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// Weights is the admin view of the active weight configuration.
type Weights struct {
	Active    scoring.WeightConfig `json:"active"`
	Overrides scoring.WeightConfig `json:"overrides"`
}

var labels = map[string]string{
	scoring.CategorySkills:           "Profile Skills",
	scoring.CategoryExternalActivity: "External Activity",
	scoring.CategoryLongevity:        "Account Longevity",
	scoring.CategoryPosts:            "Posts",
	scoring.CategoryEngagement:       "Content Engagement",
	scoring.CategoryProjects:         "Projects",
	scoring.CategoryEndorsements:     "Peer Endorsements",
}

// Label returns the display label for a category, or the key itself when unknown.
func Label(category string) string {
	if l, ok := labels[category]; ok {
		return l
	}
	return category
}

// Present turns a breakdown into labelled categories in fixed category order.
// Points are rounded to two decimals; the total is carried over unchanged.
func Present(b scoring.Breakdown) Breakdown {
	cats := scoring.Categories()
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		out = append(out, Category{Key: c, Label: Label(c), Points: round2(b.Contribution(c))})
	}
	return Breakdown{Categories: out, Total: b.Total}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// AuditEntry compares a recorded event with a replay of its inputs.
type AuditEntry struct {
	EventID  int64  `json:"event_id"`
	Recorded int64  `json:"recorded"`
	Replayed int64  `json:"replayed"`
	Matches  bool   `json:"matches"`
	Problem  string `json:"problem,omitempty"`
}

// AuditReport is the outcome of replaying a user's ledger.
type AuditReport struct {
	UserID     string       `json:"user_id"`
	Events     int          `json:"events"`
	ChainError string       `json:"chain_error,omitempty"`
	Entries    []AuditEntry `json:"entries"`
}

// Consistent reports whether the chain holds and every event replays to its recorded score.
func (r AuditReport) Consistent() bool {
	if r.ChainError != "" {
		return false
	}
	for _, e := range r.Entries {
		if !e.Matches {
			return false
		}
	}
	return true
}
