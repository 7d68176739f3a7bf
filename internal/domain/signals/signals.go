// Package signals assembles the signal snapshot a score is calculated from.
//
// The collector only reads. A missing record means "no signal" and becomes a
// zero value; a failing store is never treated that way and aborts collection.
package signals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/pkg/metrics"
)

// Source names reported in errors and metrics.
const (
	SourceProfile      = "profile"
	SourceActivity     = "external_activity"
	SourceContent      = "content"
	SourceProjects     = "projects"
	SourceEndorsements = "endorsements"
)

const hoursPerDay = 24

// ProfileSource reads skills and tenure. It returns model.ErrNotFound for unknown users.
type ProfileSource interface {
	ProfileSignals(ctx context.Context, userID string) (skillsCount int64, joinedAt time.Time, err error)
}

// ActivitySource reads the external-activity cache. A nil record means no sync happened yet.
type ActivitySource interface {
	ExternalActivity(ctx context.Context, userID string) (*model.ExternalActivity, error)
}

// ContentSource reads post and like aggregates.
type ContentSource interface {
	ContentStats(ctx context.Context, userID string) (posts, likes int64, err error)
}

// ProjectSource counts a user's projects.
type ProjectSource interface {
	ProjectCount(ctx context.Context, userID string) (int64, error)
}

// EndorsementSource counts endorsements received by a user.
type EndorsementSource interface {
	EndorsementCount(ctx context.Context, userID string) (int64, error)
}

// Sources bundles the stores a Collector reads. Profiles is required; a nil
// optional source contributes nothing.
type Sources struct {
	Profiles     ProfileSource
	Activity     ActivitySource
	Content      ContentSource
	Projects     ProjectSource
	Endorsements EndorsementSource
}

// Collector builds SignalSnapshots from Sources.
type Collector struct {
	src Sources
	now func() time.Time
}

// Option applies a configuration option to the Collector.
type Option func(*Collector)

// WithClock overrides the time source used for account age.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCollector creates a Collector over src.
func NewCollector(src Sources, opts ...Option) *Collector {
	c := &Collector{src: src, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect returns the current snapshot for userID.
func (c *Collector) Collect(ctx context.Context, userID string) (model.SignalSnapshot, error) {
	if c.src.Profiles == nil {
		return model.SignalSnapshot{}, unavailable(SourceProfile, errors.New("no profile source configured"))
	}
	now := c.now()
	snap := model.SignalSnapshot{UserID: userID, CollectedAt: now}

	skills, joinedAt, err := c.src.Profiles.ProfileSignals(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.SignalSnapshot{}, fmt.Errorf("collect %s: %w", userID, model.ErrNotFound)
		}
		return model.SignalSnapshot{}, unavailable(SourceProfile, err)
	}
	snap.SkillsCount = skills
	snap.AccountAgeDays = ageDays(joinedAt, now)

	if c.src.Activity != nil {
		activity, err := c.src.Activity.ExternalActivity(ctx, userID)
		if err != nil {
			return model.SignalSnapshot{}, unavailable(SourceActivity, err)
		}
		if activity != nil {
			snap.ExternalActivity = *activity
		}
	}

	if c.src.Content != nil {
		posts, likes, err := c.src.Content.ContentStats(ctx, userID)
		if err != nil {
			return model.SignalSnapshot{}, unavailable(SourceContent, err)
		}
		snap.PostsCount, snap.TotalLikes = posts, likes
	}

	if c.src.Projects != nil {
		n, err := c.src.Projects.ProjectCount(ctx, userID)
		if err != nil {
			return model.SignalSnapshot{}, unavailable(SourceProjects, err)
		}
		snap.ProjectsCount = n
	}

	if c.src.Endorsements != nil {
		n, err := c.src.Endorsements.EndorsementCount(ctx, userID)
		if err != nil {
			return model.SignalSnapshot{}, unavailable(SourceEndorsements, err)
		}
		snap.EndorsementsCount = n
	}

	return snap, nil
}

func unavailable(source string, err error) error {
	metrics.RecordCollectorFailure(source)
	return fmt.Errorf("%w: %s: %w", model.ErrCollectorUnavailable, source, err)
}

// ageDays counts whole days since joinedAt, never negative.
func ageDays(joinedAt, now time.Time) int64 {
	if joinedAt.IsZero() || now.Before(joinedAt) {
		return 0
	}
	return int64(now.Sub(joinedAt).Hours() / hoursPerDay)
}
