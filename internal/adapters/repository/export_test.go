package repository

import (
	"context"

	"gorm.io/gorm"
)

// RewriteEvent attempts an in-place edit of a ledger row.
func RewriteEvent(ctx context.Context, db *gorm.DB, id, newScore int64) error {
	return db.WithContext(ctx).Model(&eventRecord{ID: id}).Update("new_score", newScore).Error
}

// DeleteEvent attempts to remove a ledger row.
func DeleteEvent(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Delete(&eventRecord{ID: id}).Error
}
