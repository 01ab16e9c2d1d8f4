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

// ShopStockEntry is the quantity of one batch (or of batchless manual stock) held by one shop.
// total_cost / quantity is the entry's unit cost and stays constant across partial deductions.
type ShopStockEntry struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ShopId          int             `gorm:"not null;index:idx_shop_stock_shop_item" json:"shop_id"`
	BatchId         *int            `gorm:"index" json:"batch_id"`
	BatchCode       string          `gorm:"size:255;index" json:"batch_code"`
	BatchSequenceNo int64           `gorm:"not null;default:0" json:"batch_sequence_no"`
	ItemName        string          `gorm:"size:100;not null;index:idx_shop_stock_shop_item" json:"item_name"`
	Metric          string          `gorm:"size:20" json:"metric"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	TotalCost       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// StockCredit describes quantity being added to a shop under a given batch identity.
type StockCredit struct {
	ShopId          int
	BatchId         *int
	BatchCode       string
	BatchSequenceNo int64
	ItemName        string
	Metric          string
	UnitPrice       decimal.Decimal
	Quantity        decimal.Decimal
	TotalCost       decimal.Decimal
}

type NewManualStock struct {
	ItemName  string          `json:"item_name" validate:"required,max=100"`
	Metric    string          `json:"metric" validate:"required,max=20"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0,max_scale=4"`
	UnitCost  decimal.Decimal `json:"unit_cost" validate:"gte=0,max_scale=4"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0,max_scale=4"`
	Reason    string          `json:"reason" validate:"max=255"`
}

// UnitCost returns total_cost / quantity; ok is false for an empty entry.
func (e ShopStockEntry) UnitCost() (decimal.Decimal, bool) {
	return utils.UnitCost(e.TotalCost, e.Quantity)
}

// CostOf prices take units at the entry's unit cost. Taking the whole entry returns its
// full total_cost so that rounding never strands cost on an empty entry.
func (e ShopStockEntry) CostOf(take decimal.Decimal) decimal.Decimal {
	if take.GreaterThanOrEqual(e.Quantity) {
		return e.TotalCost
	}
	if e.Quantity.IsZero() {
		return decimal.Zero
	}
	return e.TotalCost.Mul(take).Div(e.Quantity).Round(4)
}

// LockShopStockFIFO returns the shop's non-empty entries for itemName, oldest batch first,
// with rows locked until tx ends. Manual stock (sequence 0) sorts ahead of every batch.
func LockShopStockFIFO(ctx context.Context, tx *gorm.DB, shopId int, itemName string) ([]ShopStockEntry, error) {
	var entries []ShopStockEntry
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shop_id = ? AND item_name = ? AND quantity > 0", shopId, itemName).
		Order("batch_sequence_no ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func SumQuantity(entries []ShopStockEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Quantity)
	}
	return total
}

// TakeFromEntry deducts take units from entry with a conditional update and returns the cost taken.
// entry is updated in place on success.
func TakeFromEntry(ctx context.Context, tx *gorm.DB, entry *ShopStockEntry, take decimal.Decimal) (decimal.Decimal, error) {
	cost := entry.CostOf(take)
	res := tx.WithContext(ctx).Model(&ShopStockEntry{}).
		Where("id = ? AND quantity >= ?", entry.ID, take).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity - ?", take),
			"total_cost": gorm.Expr("total_cost - ?", cost),
		})
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected != 1 {
		var current ShopStockEntry
		if err := tx.WithContext(ctx).Select("quantity").First(&current, entry.ID).Error; err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, utils.InsufficientStockError(describeEntry(entry), take, current.Quantity)
	}
	entry.Quantity = entry.Quantity.Sub(take)
	entry.TotalCost = entry.TotalCost.Sub(cost)
	return cost, nil
}

// RestoreToEntry puts back exactly qty units and cost onto an entry.
func RestoreToEntry(ctx context.Context, tx *gorm.DB, entryId int, qty decimal.Decimal, cost decimal.Decimal) error {
	res := tx.WithContext(ctx).Model(&ShopStockEntry{}).
		Where("id = ?", entryId).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"total_cost": gorm.Expr("total_cost + ?", cost),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return utils.ReferenceNotFoundError("shop stock entry", entryId)
	}
	return nil
}

// CreditShopStock adds stock to the (shop, batch, item) entry, creating it when absent.
func CreditShopStock(ctx context.Context, tx *gorm.DB, credit StockCredit) (*ShopStockEntry, error) {
	db := tx.WithContext(ctx)
	query := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shop_id = ? AND item_name = ?", credit.ShopId, credit.ItemName)
	if credit.BatchId != nil {
		query = query.Where("batch_id = ?", *credit.BatchId)
	} else {
		query = query.Where("batch_id IS NULL AND batch_code = ?", credit.BatchCode)
	}

	var entry ShopStockEntry
	err := query.First(&entry).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entry = ShopStockEntry{
			ShopId:          credit.ShopId,
			BatchId:         credit.BatchId,
			BatchCode:       credit.BatchCode,
			BatchSequenceNo: credit.BatchSequenceNo,
			ItemName:        credit.ItemName,
			Metric:          credit.Metric,
			Quantity:        credit.Quantity,
			TotalCost:       credit.TotalCost,
			UnitPrice:       credit.UnitPrice,
		}
		if err := db.Create(&entry).Error; err != nil {
			return nil, err
		}
		return &entry, nil
	}

	if err := db.Model(&ShopStockEntry{}).Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", credit.Quantity),
			"total_cost": gorm.Expr("total_cost + ?", credit.TotalCost),
		}).Error; err != nil {
		return nil, err
	}
	entry.Quantity = entry.Quantity.Add(credit.Quantity)
	entry.TotalCost = entry.TotalCost.Add(credit.TotalCost)
	return &entry, nil
}

func LockShopStockEntry(ctx context.Context, tx *gorm.DB, id int) (*ShopStockEntry, error) {
	return utils.FetchModelForUpdate[ShopStockEntry](ctx, tx, "shop stock entry", id)
}

// LockBatchEntries locks the shop entries that still hold the batch's own item.
func LockBatchEntries(ctx context.Context, tx *gorm.DB, batchId int, itemName string) ([]ShopStockEntry, error) {
	var entries []ShopStockEntry
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("batch_id = ? AND item_name = ?", batchId, itemName).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// ListShopStock returns a shop's entries, optionally filtered by item, in FIFO order.
func ListShopStock(ctx context.Context, db *gorm.DB, shopId int, itemName *string) ([]ShopStockEntry, error) {
	var entries []ShopStockEntry
	query := db.WithContext(ctx).Where("shop_id = ?", shopId)
	if itemName != nil && *itemName != "" {
		query = query.Where("item_name = ?", *itemName)
	}
	err := query.Order("item_name ASC, batch_sequence_no ASC, id ASC").Find(&entries).Error
	return entries, err
}

func describeEntry(entry *ShopStockEntry) string {
	if entry.BatchCode != "" {
		return entry.ItemName + " (" + entry.BatchCode + ")"
	}
	return entry.ItemName
}
