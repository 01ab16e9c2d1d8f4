package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LiveStock is a shop's secondary, batchless quantity pool for an item
// (stock counted on the floor but never booked through a batch).
type LiveStock struct {
	ID        int             `gorm:"primary_key" json:"id"`
	ShopId    int             `gorm:"not null;uniqueIndex:idx_live_stock_shop_item" json:"shop_id"`
	ItemName  string          `gorm:"size:100;not null;uniqueIndex:idx_live_stock_shop_item" json:"item_name"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLiveStock struct {
	ItemName string          `json:"item_name" validate:"required,max=100"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0,max_scale=4"`
	UnitCost decimal.Decimal `json:"unit_cost" validate:"gte=0,max_scale=4"`
}

// LockLiveStock returns the pool row under lock, or nil when the shop has none for the item.
func LockLiveStock(ctx context.Context, tx *gorm.DB, shopId int, itemName string) (*LiveStock, error) {
	var pool LiveStock
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shop_id = ? AND item_name = ?", shopId, itemName).
		First(&pool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func TakeLiveStock(ctx context.Context, tx *gorm.DB, pool *LiveStock, take decimal.Decimal) error {
	res := tx.WithContext(ctx).Model(&LiveStock{}).
		Where("id = ? AND quantity >= ?", pool.ID, take).
		Update("quantity", gorm.Expr("quantity - ?", take))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return utils.InsufficientStockError("live stock "+pool.ItemName, take, pool.Quantity)
	}
	pool.Quantity = pool.Quantity.Sub(take)
	return nil
}

func RestoreLiveStock(ctx context.Context, tx *gorm.DB, poolId int, qty decimal.Decimal) error {
	res := tx.WithContext(ctx).Model(&LiveStock{}).
		Where("id = ?", poolId).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return utils.ReferenceNotFoundError("live stock", poolId)
	}
	return nil
}

// AddLiveStock tops up the pool, moving its unit cost to the quantity-weighted average.
func AddLiveStock(ctx context.Context, tx *gorm.DB, shopId int, input *NewLiveStock) (*LiveStock, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := RequireShop(ctx, tx, shopId); err != nil {
		return nil, err
	}
	pool, err := LockLiveStock(ctx, tx, shopId, input.ItemName)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &LiveStock{
			ShopId:   shopId,
			ItemName: input.ItemName,
			Quantity: input.Quantity,
			UnitCost: input.UnitCost,
		}
		if err := tx.WithContext(ctx).Create(pool).Error; err != nil {
			return nil, err
		}
		return pool, nil
	}

	newQty := pool.Quantity.Add(input.Quantity)
	newCost := pool.UnitCost.Mul(pool.Quantity).Add(input.UnitCost.Mul(input.Quantity)).Div(newQty).Round(4)
	if err := tx.WithContext(ctx).Model(pool).Updates(map[string]interface{}{
		"quantity":  newQty,
		"unit_cost": newCost,
	}).Error; err != nil {
		return nil, err
	}
	pool.Quantity = newQty
	pool.UnitCost = newCost
	return pool, nil
}
