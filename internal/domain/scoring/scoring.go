// Package scoring turns a signal snapshot into a per-category score breakdown.
//
// Calculate is pure: identical snapshots and weights always give identical
// breakdowns, which is what makes ledger entries replayable.
package scoring

import (
	"math"

	"github.com/okian/trustscore/internal/domain/model"
)

// Score categories in presentation order.
const (
	CategorySkills           = "skills"
	CategoryExternalActivity = "external_activity"
	CategoryLongevity        = "longevity"
	CategoryPosts            = "posts"
	CategoryEngagement       = "engagement"
	CategoryProjects         = "projects"
	CategoryEndorsements     = "endorsements"
)

// Categories returns the score categories in presentation order.
func Categories() []string {
	return []string{
		CategorySkills,
		CategoryExternalActivity,
		CategoryLongevity,
		CategoryPosts,
		CategoryEngagement,
		CategoryProjects,
		CategoryEndorsements,
	}
}

// Breakdown is the contribution of each category plus the rounded total.
type Breakdown struct {
	Skills           float64 `json:"skills"`
	ExternalActivity float64 `json:"external_activity"`
	Longevity        float64 `json:"longevity"`
	Posts            float64 `json:"posts"`
	Engagement       float64 `json:"engagement"`
	Projects         float64 `json:"projects"`
	Endorsements     float64 `json:"endorsements"`
	Total            int64   `json:"total"`
}

// Contribution returns the points of one category, or 0 for an unknown key.
func (b Breakdown) Contribution(category string) float64 {
	switch category {
	case CategorySkills:
		return b.Skills
	case CategoryExternalActivity:
		return b.ExternalActivity
	case CategoryLongevity:
		return b.Longevity
	case CategoryPosts:
		return b.Posts
	case CategoryEngagement:
		return b.Engagement
	case CategoryProjects:
		return b.Projects
	case CategoryEndorsements:
		return b.Endorsements
	default:
		return 0
	}
}

// Sum adds every contribution without rounding.
func (b Breakdown) Sum() float64 {
	var sum float64
	for _, c := range Categories() {
		sum += b.Contribution(c)
	}
	return sum
}

// Calculate scores snapshot s with weights w. Keys missing from w use defaults.
func Calculate(s model.SignalSnapshot, w WeightConfig) Breakdown {
	ea := s.ExternalActivity
	b := Breakdown{
		Skills: float64(s.SkillsCount) * w.Value(KeySkills),
		ExternalActivity: float64(ea.PublicRepos)*w.Value(KeyPublicRepos) +
			float64(ea.Followers)*w.Value(KeyFollowers) +
			float64(ea.TotalStars)*w.Value(KeyTotalStars) +
			float64(ea.TotalCommits)*w.Value(KeyTotalCommits) +
			float64(ea.Commits30d)*w.Value(KeyRecentCommits),
		Longevity:    longevity(s.AccountAgeDays, w.Value(KeyLongevityDays), w.Value(KeyLongevityCap)),
		Posts:        float64(s.PostsCount) * w.Value(KeyPosts),
		Engagement:   float64(s.TotalLikes) * w.Value(KeyEngagement),
		Projects:     float64(s.ProjectsCount) * w.Value(KeyProjects),
		Endorsements: float64(s.EndorsementsCount) * w.Value(KeyEndorsements),
	}
	if ea.IsActive {
		b.ExternalActivity += w.Value(KeyActiveBonus)
	}
	b.Total = int64(math.Round(b.Sum()))
	return b
}

// longevity is min(days / daysPerPoint, ceiling). A non-positive divisor scores nothing.
func longevity(days int64, daysPerPoint, ceiling float64) float64 {
	if days <= 0 || daysPerPoint <= 0 {
		return 0
	}
	return math.Min(float64(days)/daysPerPoint, ceiling)
}
