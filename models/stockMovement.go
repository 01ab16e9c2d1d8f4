package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockMovement records who moved how much of what, from where to where, and why.
// Only the status and review fields change after creation.
type StockMovement struct {
	ID             int                 `gorm:"primary_key" json:"id"`
	MovementType   MovementType        `gorm:"size:20;not null;index" json:"movement_type"`
	Status         MovementStatus      `gorm:"size:20;not null;index" json:"status"`
	GroupId        string              `gorm:"size:36;index" json:"group_id"`
	BatchId        *int                `gorm:"index" json:"batch_id"`
	BatchCode      string              `gorm:"size:255" json:"batch_code"`
	ItemName       string              `gorm:"size:100;not null;index" json:"item_name"`
	ToItemName     string              `gorm:"size:100" json:"to_item_name,omitempty"`
	FromShopId     *int                `gorm:"index" json:"from_shop_id"`
	ToShopId       *int                `gorm:"index" json:"to_shop_id"`
	Quantity       decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	OutputQuantity decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"output_quantity"`
	UnitCost       decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	TotalCost      decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	SaleId         *int                `gorm:"index" json:"sale_id,omitempty"`
	Reason         string              `gorm:"size:255" json:"reason"`
	PerformedBy    string              `gorm:"size:100" json:"performed_by"`
	ReviewedBy     string              `gorm:"size:100" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time          `json:"reviewed_at,omitempty"`
	ReviewNote     string              `gorm:"size:255" json:"review_note,omitempty"`
	Lines          []StockMovementLine `gorm:"foreignKey:MovementId" json:"lines,omitempty"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt      `gorm:"index" json:"-"`
}

// StockMovementLine is the per-batch (or per-pool) breakdown of a movement,
// kept so a movement can be undone onto exactly the rows it drew from.
type StockMovementLine struct {
	ID               int             `gorm:"primary_key" json:"id"`
	MovementId       int             `gorm:"not null;index" json:"movement_id"`
	Source           LineSource      `gorm:"size:20;not null" json:"source"`
	ShopStockEntryId *int            `gorm:"index" json:"shop_stock_entry_id,omitempty"`
	LiveStockId      *int            `json:"live_stock_id,omitempty"`
	BatchId          *int            `gorm:"index" json:"batch_id,omitempty"`
	BatchCode        string          `gorm:"size:255" json:"batch_code"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	TotalCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
}

// CreateMovement inserts m with its lines.
func CreateMovement(ctx context.Context, tx *gorm.DB, m *StockMovement) error {
	if !m.MovementType.IsValid() {
		return utils.FieldError("movement_type", "is invalid")
	}
	if m.Status == "" {
		m.Status = MovementStatusCompleted
	}
	return tx.WithContext(ctx).Create(m).Error
}

func GetMovement(ctx context.Context, tx *gorm.DB, id int) (*StockMovement, error) {
	return utils.FetchModel[StockMovement](ctx, tx, "stock movement", id, "Lines")
}

// LockMovement loads a movement of the given type under a row lock, with its lines.
func LockMovement(ctx context.Context, tx *gorm.DB, id int, movementType MovementType) (*StockMovement, error) {
	var m StockMovement
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND movement_type = ?", id, movementType).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ReferenceNotFoundError(string(movementType)+" record", id)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("movement_id = ?", m.ID).Order("id ASC").Find(&m.Lines).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// LockMovementGroup loads every movement of a group under row locks, with lines.
func LockMovementGroup(ctx context.Context, tx *gorm.DB, groupId string, movementType MovementType) ([]StockMovement, error) {
	var movements []StockMovement
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("group_id = ? AND movement_type = ?", groupId, movementType).
		Order("id ASC").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	if len(movements) == 0 {
		return nil, utils.ReferenceNotFoundError(string(movementType)+" group", groupId)
	}
	return movements, nil
}

type StatusTransition struct {
	From       MovementStatus
	To         MovementStatus
	ReviewedBy string
	ReviewNote string
}

// TransitionMovementStatus moves the given movements from t.From to t.To in one conditional
// update. Any row not in t.From (for instance, already reviewed by a concurrent request)
// makes the whole transition fail with StateConflictError.
func TransitionMovementStatus(ctx context.Context, tx *gorm.DB, ids []int, t StatusTransition) error {
	now := time.Now()
	res := tx.WithContext(ctx).Model(&StockMovement{}).
		Where("id IN ? AND status = ?", ids, t.From).
		Updates(map[string]interface{}{
			"status":      t.To,
			"reviewed_by": t.ReviewedBy,
			"reviewed_at": now,
			"review_note": t.ReviewNote,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(ids)) {
		return utils.StateConflictError(fmt.Sprintf("movement is no longer %s; cannot mark it %s", t.From, t.To))
	}
	return nil
}

// ListMovements filters movements for reporting; zero values are ignored.
func ListMovements(ctx context.Context, db *gorm.DB, movementType MovementType, status MovementStatus, shopId int) ([]StockMovement, error) {
	var movements []StockMovement
	query := db.WithContext(ctx).Preload("Lines")
	if movementType != "" {
		query = query.Where("movement_type = ?", movementType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if shopId > 0 {
		query = query.Where("from_shop_id = ? OR to_shop_id = ?", shopId, shopId)
	}
	err := query.Order("id DESC").Find(&movements).Error
	return movements, err
}

// CountActiveConsumptionOfBatch counts live movement lines (other than distributions) that drew
// stock from the batch. Rejected, declined and voided movements no longer hold any stock.
func CountActiveConsumptionOfBatch(ctx context.Context, tx *gorm.DB, batchId int) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&StockMovementLine{}).
		Joins("JOIN stock_movements ON stock_movements.id = stock_movement_lines.movement_id").
		Where("stock_movement_lines.batch_id = ?", batchId).
		Where("stock_movements.deleted_at IS NULL").
		Where("stock_movements.movement_type <> ?", MovementTypeDistribution).
		Where("stock_movements.status NOT IN ?", []MovementStatus{MovementStatusRejected, MovementStatusDeclined, MovementStatusVoided}).
		Count(&count).Error
	return count, err
}

// CountPendingMovementsOfBatch counts pending spoilages and transfers that hold stock of the batch,
// either on the movement itself or on one of its lines.
func CountPendingMovementsOfBatch(ctx context.Context, tx *gorm.DB, batchId int) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&StockMovement{}).
		Where("status = ?", MovementStatusPending).
		Where("(batch_id = ? OR id IN (?))", batchId,
			tx.Model(&StockMovementLine{}).Select("movement_id").Where("batch_id = ?", batchId)).
		Count(&count).Error
	return count, err
}

// SumEntryLineQuantity adds up the line quantities of completed movements of movementType
// that touched the shop stock entry.
func SumEntryLineQuantity(ctx context.Context, tx *gorm.DB, entryId int, movementType MovementType) (decimal.Decimal, error) {
	var lines []StockMovementLine
	err := tx.WithContext(ctx).Model(&StockMovementLine{}).
		Select("stock_movement_lines.quantity").
		Joins("JOIN stock_movements ON stock_movements.id = stock_movement_lines.movement_id").
		Where("stock_movement_lines.shop_stock_entry_id = ?", entryId).
		Where("stock_movements.deleted_at IS NULL").
		Where("stock_movements.movement_type = ? AND stock_movements.status = ?", movementType, MovementStatusCompleted).
		Find(&lines).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Quantity)
	}
	return total, nil
}

// BatchLineQuantity is one movement line drawn from (or returned to) a shop entry that still
// carries its batch's item name.
type BatchLineQuantity struct {
	BatchId      int
	Quantity     decimal.Decimal
	MovementType MovementType
	Status       MovementStatus
}

// ListBatchShopLines returns the sale, conversion, spoilage and return lines of batch-backed shop
// entries. Entries produced by a conversion carry another item name and are left out.
func ListBatchShopLines(ctx context.Context, db *gorm.DB) ([]BatchLineQuantity, error) {
	var rows []BatchLineQuantity
	err := db.WithContext(ctx).Table("stock_movement_lines").
		Select("stock_movement_lines.batch_id, stock_movement_lines.quantity, stock_movements.movement_type, stock_movements.status").
		Joins("JOIN stock_movements ON stock_movements.id = stock_movement_lines.movement_id AND stock_movements.deleted_at IS NULL").
		Joins("JOIN shop_stock_entries ON shop_stock_entries.id = stock_movement_lines.shop_stock_entry_id").
		Joins("JOIN batches ON batches.id = stock_movement_lines.batch_id AND batches.item_name = shop_stock_entries.item_name").
		Where("stock_movements.movement_type IN ?", []MovementType{MovementTypeSale, MovementTypeConversion, MovementTypeSpoilage, MovementTypeReturn}).
		Scan(&rows).Error
	return rows, err
}
