package models

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const BatchSequenceName = "batch"

// BatchSequence is a named monotonic counter. Batch codes draw from it instead of row ids,
// which can be reused or skipped under deletes and concurrent inserts.
type BatchSequence struct {
	Name      string `gorm:"primaryKey;size:50" json:"name"`
	LastValue int64  `gorm:"not null;default:0" json:"last_value"`
}

// NextBatchSequence increments the counter under a row lock held until tx ends.
func NextBatchSequence(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	db := tx.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&BatchSequence{Name: name}).Error; err != nil {
		return 0, err
	}

	var seq BatchSequence
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).First(&seq).Error; err != nil {
		return 0, err
	}
	next := seq.LastValue + 1
	if err := db.Model(&BatchSequence{}).Where("name = ?", name).
		Update("last_value", next).Error; err != nil {
		return 0, err
	}
	return next, nil
}
