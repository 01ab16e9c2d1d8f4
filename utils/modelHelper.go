package utils

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// FetchModel loads T by id through tx (may return ReferenceNotFoundError).
func FetchModel[T any](ctx context.Context, tx *gorm.DB, resource string, id int, associations ...string) (*T, error) {
	dbCtx := tx.WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ReferenceNotFoundError(resource, id)
		}
		return nil, err
	}
	return &result, nil
}

// FetchModelForUpdate is FetchModel with a row lock (SELECT ... FOR UPDATE) held until tx ends.
func FetchModelForUpdate[T any](ctx context.Context, tx *gorm.DB, resource string, id int) (*T, error) {
	var result T
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ReferenceNotFoundError(resource, id)
		}
		return nil, err
	}
	return &result, nil
}
