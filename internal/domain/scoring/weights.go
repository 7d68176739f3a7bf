package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/trustscore/internal/domain/model"
)

// Weight keys. External activity and longevity carry sub-keys; every other
// category is a single per-unit multiplier.
const (
	KeySkills        = "skills"
	KeyPublicRepos   = "external_activity.public_repos"
	KeyFollowers     = "external_activity.followers"
	KeyTotalStars    = "external_activity.total_stars"
	KeyTotalCommits  = "external_activity.total_commits"
	KeyRecentCommits = "external_activity.commits_30d"
	KeyActiveBonus   = "external_activity.active_bonus"
	KeyLongevityDays = "longevity.days_per_point"
	KeyLongevityCap  = "longevity.cap"
	KeyPosts         = "posts"
	KeyEngagement    = "engagement"
	KeyProjects      = "projects"
	KeyEndorsements  = "endorsements"
)

// WeightConfig maps a weight key to its multiplier (or cap). Absent keys
// fall back to DefaultWeights.
type WeightConfig map[string]float64

// DefaultWeights returns the built-in weights. Posts, engagement, projects and
// endorsements are deployment policy and expected to be overridden.
func DefaultWeights() WeightConfig {
	return WeightConfig{
		KeySkills:        10,
		KeyPublicRepos:   5,
		KeyFollowers:     3,
		KeyTotalStars:    2,
		KeyTotalCommits:  0.1,
		KeyRecentCommits: 0,
		KeyActiveBonus:   0,
		KeyLongevityDays: 30,
		KeyLongevityCap:  50,
		KeyPosts:         2,
		KeyEngagement:    0.5,
		KeyProjects:      5,
		KeyEndorsements:  5,
	}
}

// KnownKeys returns every accepted weight key, sorted.
func KnownKeys() []string {
	defaults := DefaultWeights()
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the weight for key, or its default when w does not set it.
func (w WeightConfig) Value(key string) float64 {
	if v, ok := w[key]; ok {
		return v
	}
	return DefaultWeights()[key]
}

// Clone returns an independent copy of w.
func (w WeightConfig) Clone() WeightConfig {
	out := make(WeightConfig, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Merge returns base overlaid with partial. Neither input is modified.
func Merge(base, partial WeightConfig) WeightConfig {
	out := base.Clone()
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Resolve returns the full config: defaults overlaid with the known keys of overrides.
func Resolve(overrides WeightConfig) WeightConfig {
	out := DefaultWeights()
	for k, v := range overrides {
		if _, known := out[k]; known {
			out[k] = v
		}
	}
	return out
}

// Validate rejects unknown keys, non-finite or negative values, and a
// non-positive longevity divisor.
func Validate(partial WeightConfig) error {
	defaults := DefaultWeights()
	for k, v := range partial {
		if _, known := defaults[k]; !known {
			return fmt.Errorf("%w: unknown key %q", model.ErrInvalidWeightConfig, k)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite number", model.ErrInvalidWeightConfig, k)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative", model.ErrInvalidWeightConfig, k)
		}
		if k == KeyLongevityDays && v == 0 {
			return fmt.Errorf("%w: %s must be positive", model.ErrInvalidWeightConfig, k)
		}
	}
	return nil
}
