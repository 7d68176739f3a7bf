package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/pkg/metrics"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Ledger reads the append-only history of score changes. Events are only
// ever written by ProfileStore.Settle; there is no update or delete path.
type Ledger struct {
	db           *gorm.DB
	defaultLimit int
	maxLimit     int
}

// NewLedger creates a Ledger on db.
func NewLedger(db *gorm.DB, opts ...LedgerOption) *Ledger {
	l := &Ledger{db: db, defaultLimit: defaultPageLimit, maxLimit: maxPageLimit}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func appendEvent(tx *gorm.DB, rec *eventRecord) error {
	if rec.Delta != rec.NewScore-rec.PreviousScore {
		return fmt.Errorf("%w: delta %d does not match %d-%d", model.ErrBrokenChain, rec.Delta, rec.NewScore, rec.PreviousScore)
	}
	if err := tx.Create(rec).Error; err != nil {
		return err
	}
	metrics.RecordLedgerAppend(rec.Delta)
	return nil
}

// PageBounds normalizes a requested page: zero limit means the default,
// limits above the maximum are capped, negatives are rejected.
func (l *Ledger) PageBounds(limit, offset int) (int, int, error) {
	if limit < 0 || offset < 0 {
		return 0, 0, fmt.Errorf("%w: limit=%d offset=%d", model.ErrInvalidPage, limit, offset)
	}
	if limit == 0 {
		limit = l.defaultLimit
	}
	if limit > l.maxLimit {
		limit = l.maxLimit
	}
	return limit, offset, nil
}

// List returns a page of a user's events, newest first.
func (l *Ledger) List(ctx context.Context, userID string, limit, offset int) ([]model.ReputationEvent, error) {
	limit, offset, err := l.PageBounds(limit, offset)
	if err != nil {
		return nil, err
	}
	var recs []eventRecord
	err = l.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toModels(recs), nil
}

// Count returns how many events a user has.
func (l *Ledger) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&eventRecord{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// Ascending returns every event of a user, oldest first.
func (l *Ledger) Ascending(ctx context.Context, userID string) ([]model.ReputationEvent, error) {
	var recs []eventRecord
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at ASC").Order("id ASC").Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toModels(recs), nil
}

// Verify walks a user's chain oldest first and reports the first broken link.
func (l *Ledger) Verify(ctx context.Context, userID string) error {
	events, err := l.Ascending(ctx, userID)
	if err != nil {
		return err
	}
	return model.VerifyChain(events)
}

func toModels(recs []eventRecord) []model.ReputationEvent {
	out := make([]model.ReputationEvent, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out
}
