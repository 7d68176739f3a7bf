package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/trustscore/internal/domain/scoring"
	"github.com/okian/trustscore/pkg/metrics"
)

// WeightsKey is the settings row holding admin weight overrides.
const WeightsKey = "reputation.weights"

// WeightStore persists weight overrides and serves the resolved configuration
// through a read-through cache. Concurrent writers are last-writer-wins.
type WeightStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	overrides scoring.WeightConfig
	resolved  scoring.WeightConfig
	loadedAt  time.Time
	loaded    bool
	// gen moves on every write or invalidation; a load started under an
	// older gen must not overwrite the cache.
	gen uint64
}

// NewWeightStore creates a WeightStore on db.
func NewWeightStore(db *gorm.DB, opts ...WeightOption) *WeightStore {
	w := &WeightStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Get returns the defaults merged with the persisted overrides.
func (w *WeightStore) Get(ctx context.Context) (scoring.WeightConfig, error) {
	if cfg, ok := w.cached(); ok {
		return cfg, nil
	}
	gen := w.generation()
	overrides, err := w.load(ctx, w.db)
	if err != nil {
		return nil, err
	}
	w.storeIf(gen, overrides)
	return scoring.Resolve(overrides), nil
}

// Overrides returns only what an admin has changed.
func (w *WeightStore) Overrides(ctx context.Context) (scoring.WeightConfig, error) {
	if _, ok := w.cached(); ok {
		w.mu.RLock()
		defer w.mu.RUnlock()
		return w.overrides.Clone(), nil
	}
	gen := w.generation()
	overrides, err := w.load(ctx, w.db)
	if err != nil {
		return nil, err
	}
	w.storeIf(gen, overrides)
	return overrides.Clone(), nil
}

// Set validates partial, merges it into the persisted overrides and returns
// the full resolved configuration. Invalid input changes nothing.
func (w *WeightStore) Set(ctx context.Context, partial scoring.WeightConfig) (scoring.WeightConfig, error) {
	if err := scoring.Validate(partial); err != nil {
		return nil, err
	}

	var merged scoring.WeightConfig
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := w.load(ctx, tx)
		if err != nil {
			return err
		}
		merged = scoring.Merge(current, partial)
		raw, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		rec := settingRecord{Key: WeightsKey, Value: datatypes.JSON(raw), UpdatedAt: w.now().UTC()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rec).Error
	})
	if err != nil {
		w.invalidate()
		return nil, fmt.Errorf("set weights: %w", err)
	}

	w.store(merged)
	metrics.RecordWeightUpdate()
	return scoring.Resolve(merged), nil
}

// Invalidate drops the cached configuration.
func (w *WeightStore) Invalidate() {
	w.invalidate()
}

func (w *WeightStore) load(ctx context.Context, db *gorm.DB) (scoring.WeightConfig, error) {
	var rec settingRecord
	err := db.WithContext(ctx).Where(&settingRecord{Key: WeightsKey}).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return scoring.WeightConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}
	overrides := scoring.WeightConfig{}
	if err := json.Unmarshal(rec.Value, &overrides); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	return overrides, nil
}

func (w *WeightStore) cached() (scoring.WeightConfig, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.loaded {
		return nil, false
	}
	if w.ttl > 0 && w.now().Sub(w.loadedAt) >= w.ttl {
		return nil, false
	}
	return w.resolved.Clone(), true
}

func (w *WeightStore) generation() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gen
}

// storeIf caches overrides read under gen unless a write or invalidation
// happened since.
func (w *WeightStore) storeIf(gen uint64, overrides scoring.WeightConfig) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return false
	}
	w.fill(overrides)
	return true
}

func (w *WeightStore) store(overrides scoring.WeightConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.fill(overrides)
}

func (w *WeightStore) fill(overrides scoring.WeightConfig) {
	w.overrides = overrides.Clone()
	w.resolved = scoring.Resolve(overrides)
	w.loadedAt = w.now()
	w.loaded = true
}

func (w *WeightStore) invalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.loaded = false
}
