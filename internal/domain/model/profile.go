package model

import "time"

// Profile is the slice of a user profile the reputation core reads.
// ReputationScore is a cached total; only the orchestrator writes it.
type Profile struct {
	UserID          string    `json:"user_id"`
	Skills          []string  `json:"skills"`
	ReputationScore int64     `json:"reputation_score"`
	JoinedAt        time.Time `json:"joined_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ExternalActivity mirrors the cached external-platform activity of a user.
type ExternalActivity struct {
	PublicRepos  int64 `json:"public_repos"`
	Followers    int64 `json:"followers"`
	TotalStars   int64 `json:"total_stars"`
	TotalCommits int64 `json:"total_commits"`
	Commits30d   int64 `json:"commits_30d"`
	IsActive     bool  `json:"is_active"`
}

// SignalSnapshot is every signal value for one user at one point in time.
// It is computed fresh on each recalculation and never stored on its own.
type SignalSnapshot struct {
	UserID            string           `json:"user_id"`
	SkillsCount       int64            `json:"skills_count"`
	ExternalActivity  ExternalActivity `json:"external_activity"`
	PostsCount        int64            `json:"posts_count"`
	TotalLikes        int64            `json:"total_likes"`
	ProjectsCount     int64            `json:"projects_count"`
	EndorsementsCount int64            `json:"endorsements_count"`
	AccountAgeDays    int64            `json:"account_age_days"`
	CollectedAt       time.Time        `json:"collected_at"`
}
