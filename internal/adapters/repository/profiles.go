package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/trustscore/internal/domain/model"
)

// ProfileStore reads and settles profile scores. It also implements every
// signal source the collector reads from.
type ProfileStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewProfileStore creates a ProfileStore on db.
func NewProfileStore(db *gorm.DB, opts ...ProfileOption) *ProfileStore {
	s := &ProfileStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProfileScore returns the stored score. Unknown users yield model.ErrNotFound.
func (s *ProfileStore) ProfileScore(ctx context.Context, userID string) (int64, error) {
	var rec profileRecord
	err := s.db.WithContext(ctx).Select("reputation_score").Where("user_id = ?", userID).Take(&rec).Error
	if err != nil {
		return 0, notFound(err, userID)
	}
	return rec.ReputationScore, nil
}

// GetProfile returns the profile with its declared skills.
func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	var rec profileRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		return model.Profile{}, notFound(err, userID)
	}
	var skills []string
	if err := s.db.WithContext(ctx).Model(&skillRecord{}).Where("user_id = ?", userID).
		Order("name").Pluck("name", &skills).Error; err != nil {
		return model.Profile{}, err
	}
	return model.Profile{
		UserID:          rec.UserID,
		Skills:          skills,
		ReputationScore: rec.ReputationScore,
		JoinedAt:        rec.JoinedAt,
		UpdatedAt:       rec.UpdatedAt,
	}, nil
}

// Settle moves a score from previous to next and appends the ledger event in
// one transaction. It returns model.ErrConcurrentUpdate, writing nothing,
// when the stored score is no longer previous.
func (s *ProfileStore) Settle(ctx context.Context, userID string, previous, next int64, reason model.Reason, metadata []byte) (model.ReputationEvent, error) {
	rec := eventRecord{
		UserID:        userID,
		PreviousScore: previous,
		NewScore:      next,
		Delta:         next - previous,
		Reason:        string(reason),
		Metadata:      datatypes.JSON(metadata),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Stamped under the row lock so timestamps follow commit order.
		now := s.now().UTC()
		rec.CreatedAt = now
		res := tx.Model(&profileRecord{}).
			Where("user_id = ? AND reputation_score = ?", userID, previous).
			Updates(map[string]any{"reputation_score": next, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.ErrConcurrentUpdate
		}
		return appendEvent(tx, &rec)
	})
	if err != nil {
		return model.ReputationEvent{}, fmt.Errorf("settle %s: %w", userID, err)
	}
	return rec.toModel(), nil
}

// ProfileSignals returns the number of declared skills and the join date.
func (s *ProfileStore) ProfileSignals(ctx context.Context, userID string) (int64, time.Time, error) {
	var rec profileRecord
	if err := s.db.WithContext(ctx).Select("user_id", "joined_at").Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		return 0, time.Time{}, notFound(err, userID)
	}
	var skills int64
	if err := s.db.WithContext(ctx).Model(&skillRecord{}).Where("user_id = ?", userID).Count(&skills).Error; err != nil {
		return 0, time.Time{}, err
	}
	return skills, rec.JoinedAt, nil
}

// ExternalActivity returns the cached sync, or nil when the user never synced.
func (s *ProfileStore) ExternalActivity(ctx context.Context, userID string) (*model.ExternalActivity, error) {
	var rec activityRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.ExternalActivity{
		PublicRepos:  rec.PublicRepos,
		Followers:    rec.Followers,
		TotalStars:   rec.TotalStars,
		TotalCommits: rec.TotalCommits,
		Commits30d:   rec.Commits30d,
		IsActive:     rec.IsActive,
	}, nil
}

// ContentStats returns the number of posts and the likes they received.
func (s *ProfileStore) ContentStats(ctx context.Context, userID string) (int64, int64, error) {
	var row struct {
		Posts int64
		Likes int64
	}
	err := s.db.WithContext(ctx).Model(&postRecord{}).
		Select("COUNT(*) AS posts, COALESCE(SUM(likes), 0) AS likes").
		Where("user_id = ?", userID).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Posts, row.Likes, nil
}

// ProjectCount counts the user's projects.
func (s *ProfileStore) ProjectCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&projectRecord{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// EndorsementCount counts endorsements the user received.
func (s *ProfileStore) EndorsementCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&endorsementRecord{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// CreateProfile registers a user with a zero score. Creating an existing
// profile is a no-op.
func (s *ProfileStore) CreateProfile(ctx context.Context, userID string, joinedAt time.Time) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	rec := profileRecord{UserID: userID, JoinedAt: joinedAt.UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

// AddSkills declares skills on a profile, ignoring duplicates.
func (s *ProfileStore) AddSkills(ctx context.Context, userID string, names ...string) error {
	recs := make([]skillRecord, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			recs = append(recs, skillRecord{UserID: userID, Name: n})
		}
	}
	if len(recs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&recs).Error
}

// UpsertExternalActivity replaces the cached external sync for a user.
func (s *ProfileStore) UpsertExternalActivity(ctx context.Context, userID string, a model.ExternalActivity) error {
	rec := activityRecord{
		UserID:       userID,
		PublicRepos:  a.PublicRepos,
		Followers:    a.Followers,
		TotalStars:   a.TotalStars,
		TotalCommits: a.TotalCommits,
		Commits30d:   a.Commits30d,
		IsActive:     a.IsActive,
		SyncedAt:     s.now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// AddPost records a post with its like count.
func (s *ProfileStore) AddPost(ctx context.Context, userID string, likes int64) error {
	if likes < 0 {
		return fmt.Errorf("%w: negative likes", ErrInvalidInput)
	}
	return s.db.WithContext(ctx).Create(&postRecord{UserID: userID, Likes: likes}).Error
}

// AddProject records a project.
func (s *ProfileStore) AddProject(ctx context.Context, userID, name string) error {
	return s.db.WithContext(ctx).Create(&projectRecord{UserID: userID, Name: name}).Error
}

// AddEndorsement records endorserID endorsing userID. It reports false when
// the endorsement already existed.
func (s *ProfileStore) AddEndorsement(ctx context.Context, userID, endorserID string) (bool, error) {
	if userID == endorserID {
		return false, fmt.Errorf("%w: self endorsement", ErrInvalidInput)
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&endorsementRecord{UserID: userID, EndorserID: endorserID})
	return res.RowsAffected > 0, res.Error
}

// RemoveEndorsement deletes an endorsement. It reports false when none existed.
func (s *ProfileStore) RemoveEndorsement(ctx context.Context, userID, endorserID string) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND endorser_id = ?", userID, endorserID).
		Delete(&endorsementRecord{})
	return res.RowsAffected > 0, res.Error
}

func notFound(err error, userID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", userID, model.ErrNotFound)
	}
	return err
}
