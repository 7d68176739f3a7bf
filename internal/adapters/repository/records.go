package repository

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/okian/trustscore/internal/domain/model"
)

type profileRecord struct {
	UserID          string `gorm:"primaryKey;size:64"`
	ReputationScore int64  `gorm:"not null;default:0"`
	JoinedAt        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (profileRecord) TableName() string { return "profiles" }

type skillRecord struct {
	ID     uint   `gorm:"primaryKey"`
	UserID string `gorm:"size:64;not null;uniqueIndex:idx_profile_skill"`
	Name   string `gorm:"size:128;not null;uniqueIndex:idx_profile_skill"`
}

func (skillRecord) TableName() string { return "profile_skills" }

// activityRecord caches the last external-platform sync for a user.
type activityRecord struct {
	UserID       string `gorm:"primaryKey;size:64"`
	PublicRepos  int64
	Followers    int64
	TotalStars   int64
	TotalCommits int64
	Commits30d   int64 `gorm:"column:commits_30d"`
	IsActive     bool
	SyncedAt     time.Time
}

func (activityRecord) TableName() string { return "external_activity" }

type postRecord struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"size:64;not null;index"`
	Likes     int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
}

func (postRecord) TableName() string { return "posts" }

type projectRecord struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"size:64;not null;index"`
	Name      string `gorm:"size:255"`
	CreatedAt time.Time
}

func (projectRecord) TableName() string { return "projects" }

// endorsementRecord is keyed by the endorsed user; one endorsement per endorser.
type endorsementRecord struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     string `gorm:"size:64;not null;uniqueIndex:idx_endorsement_pair"`
	EndorserID string `gorm:"size:64;not null;uniqueIndex:idx_endorsement_pair"`
	CreatedAt  time.Time
}

func (endorsementRecord) TableName() string { return "endorsements" }

type eventRecord struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	UserID        string `gorm:"size:64;not null;index:idx_events_user_created,priority:1"`
	PreviousScore int64  `gorm:"not null"`
	NewScore      int64  `gorm:"not null"`
	Delta         int64  `gorm:"not null"`
	Reason        string `gorm:"size:32;not null"`
	Metadata      datatypes.JSON
	CreatedAt     time.Time `gorm:"not null;index:idx_events_user_created,priority:2"`
}

func (eventRecord) TableName() string { return "reputation_events" }

// BeforeUpdate keeps the ledger append-only.
func (*eventRecord) BeforeUpdate(*gorm.DB) error { return model.ErrLedgerImmutable }

// BeforeDelete keeps the ledger append-only.
func (*eventRecord) BeforeDelete(*gorm.DB) error { return model.ErrLedgerImmutable }

func (r eventRecord) toModel() model.ReputationEvent {
	return model.ReputationEvent{
		ID:            r.ID,
		UserID:        r.UserID,
		PreviousScore: r.PreviousScore,
		NewScore:      r.NewScore,
		Delta:         r.Delta,
		Reason:        model.Reason(r.Reason),
		Metadata:      []byte(r.Metadata),
		CreatedAt:     r.CreatedAt,
	}
}

type settingRecord struct {
	Key       string         `gorm:"primaryKey;size:128"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (settingRecord) TableName() string { return "settings" }
