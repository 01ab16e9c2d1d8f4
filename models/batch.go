package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Batch is one purchase of stock at the inventory level, before distribution.
type Batch struct {
	ID                int             `gorm:"primary_key" json:"id"`
	SequenceNo        int64           `gorm:"not null;uniqueIndex" json:"sequence_no"`
	BatchCode         string          `gorm:"size:255;not null;uniqueIndex" json:"batch_code"`
	ItemName          string          `gorm:"size:100;not null;index" json:"item_name"`
	Metric            string          `gorm:"size:20;not null" json:"metric"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	RemainingQuantity decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"remaining_quantity"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TotalCost         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	AmountPaid        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_paid"`
	Balance           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	SupplierName      string          `gorm:"size:100;not null" json:"supplier_name"`
	SupplierLocation  string          `gorm:"size:100;not null" json:"supplier_location"`
	IntakeDate        time.Time       `gorm:"not null;index" json:"intake_date"`
	Note              string          `gorm:"type:text" json:"note"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
}

type NewBatch struct {
	ItemName         string          `json:"item_name" validate:"required,max=100"`
	Quantity         decimal.Decimal `json:"quantity" validate:"gt=0,max_scale=4"`
	Metric           string          `json:"metric" validate:"required,max=20"`
	UnitCost         decimal.Decimal `json:"unit_cost" validate:"gt=0,max_scale=4"`
	UnitPrice        decimal.Decimal `json:"unit_price" validate:"gte=0,max_scale=4"`
	AmountPaid       decimal.Decimal `json:"amount_paid" validate:"gte=0,max_scale=4"`
	SupplierName     string          `json:"supplier_name" validate:"required,max=100"`
	SupplierLocation string          `json:"supplier_location" validate:"required,max=100"`
	IntakeDate       string          `json:"intake_date"`
	Note             string          `json:"note"`
}

// EditBatch carries the correctable fields of a batch; nil means unchanged.
type EditBatch struct {
	ItemName         *string          `json:"item_name" validate:"omitempty,min=1,max=100"`
	Quantity         *decimal.Decimal `json:"quantity" validate:"omitempty,gt=0,max_scale=4"`
	UnitCost         *decimal.Decimal `json:"unit_cost" validate:"omitempty,gt=0,max_scale=4"`
	UnitPrice        *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0,max_scale=4"`
	AmountPaid       *decimal.Decimal `json:"amount_paid" validate:"omitempty,gte=0,max_scale=4"`
	SupplierName     *string          `json:"supplier_name" validate:"omitempty,min=1,max=100"`
	SupplierLocation *string          `json:"supplier_location" validate:"omitempty,min=1,max=100"`
	Note             *string          `json:"note"`
}

// validate checks the intake input and returns the parsed intake date.
func (input *NewBatch) validate() (time.Time, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return time.Time{}, err
	}
	intakeDate, err := utils.ParseDate("intake_date", input.IntakeDate)
	if err != nil {
		return time.Time{}, err
	}
	total := input.UnitCost.Mul(input.Quantity)
	if input.AmountPaid.GreaterThan(total) {
		return time.Time{}, utils.ValidationError(
			fmt.Sprintf("amount_paid %s exceeds total cost %s", input.AmountPaid, total),
			map[string]string{"amount_paid": "lte=" + total.String()})
	}
	return intakeDate, nil
}

// BatchSuffix maps a sequence number to its letter+number suffix: one letter per
// hundred sequence numbers, A..Z then wrapping (1 -> A1, 100 -> A100, 101 -> B1).
func BatchSuffix(seq int64) string {
	if seq < 1 {
		seq = 1
	}
	letter := rune('A' + ((seq-1)/100)%26)
	number := (seq-1)%100 + 1
	return fmt.Sprintf("%c%d", letter, number)
}

// GenerateBatchCode builds SUPPLIER-LOCATION-ITEM-YYMMDD-<suffix>.
func GenerateBatchCode(supplierName, supplierLocation, itemName string, intakeDate time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		utils.CodePart(supplierName),
		utils.CodePart(supplierLocation),
		utils.CodePart(itemName),
		intakeDate.Format("060102"),
		BatchSuffix(seq),
	)
}

// BuildBatch validates input and assembles an unsaved batch for sequence seq.
func BuildBatch(input *NewBatch, seq int64) (*Batch, error) {
	intakeDate, err := input.validate()
	if err != nil {
		return nil, err
	}
	total := input.UnitCost.Mul(input.Quantity)
	return &Batch{
		SequenceNo:        seq,
		BatchCode:         GenerateBatchCode(input.SupplierName, input.SupplierLocation, input.ItemName, intakeDate, seq),
		ItemName:          input.ItemName,
		Metric:            input.Metric,
		Quantity:          input.Quantity,
		RemainingQuantity: input.Quantity,
		UnitCost:          input.UnitCost,
		UnitPrice:         input.UnitPrice,
		TotalCost:         total,
		AmountPaid:        input.AmountPaid,
		Balance:           total.Sub(input.AmountPaid),
		SupplierName:      input.SupplierName,
		SupplierLocation:  input.SupplierLocation,
		IntakeDate:        intakeDate,
		Note:              input.Note,
	}, nil
}

// ApplyEdit mutates b with the edit and recomputes totals.
// The batch code stays as issued so downstream records keep their traceability key.
func (b *Batch) ApplyEdit(input *EditBatch) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Quantity != nil {
		distributed := b.Quantity.Sub(b.RemainingQuantity)
		if input.Quantity.LessThan(distributed) {
			return utils.ValidationError(
				fmt.Sprintf("quantity %s is below the %s already distributed", input.Quantity, distributed),
				map[string]string{"quantity": "gte=" + distributed.String()})
		}
		b.RemainingQuantity = input.Quantity.Sub(distributed)
		b.Quantity = *input.Quantity
	}
	if input.ItemName != nil {
		b.ItemName = *input.ItemName
	}
	if input.UnitCost != nil {
		b.UnitCost = *input.UnitCost
	}
	if input.UnitPrice != nil {
		b.UnitPrice = *input.UnitPrice
	}
	if input.AmountPaid != nil {
		b.AmountPaid = *input.AmountPaid
	}
	if input.SupplierName != nil {
		b.SupplierName = *input.SupplierName
	}
	if input.SupplierLocation != nil {
		b.SupplierLocation = *input.SupplierLocation
	}
	if input.Note != nil {
		b.Note = *input.Note
	}
	b.TotalCost = b.UnitCost.Mul(b.Quantity)
	if b.AmountPaid.GreaterThan(b.TotalCost) {
		return utils.ValidationError(
			fmt.Sprintf("amount_paid %s exceeds total cost %s", b.AmountPaid, b.TotalCost),
			map[string]string{"amount_paid": "lte=" + b.TotalCost.String()})
	}
	b.Balance = b.TotalCost.Sub(b.AmountPaid)
	return nil
}

// DecrementBatchRemaining takes qty off the inventory-level remaining quantity in a
// single conditional update, so concurrent distributions can never overdraw the batch.
func DecrementBatchRemaining(ctx context.Context, tx *gorm.DB, batch *Batch, qty decimal.Decimal) error {
	res := tx.WithContext(ctx).Model(&Batch{}).
		Where("id = ? AND remaining_quantity >= ?", batch.ID, qty).
		Update("remaining_quantity", gorm.Expr("remaining_quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		var current Batch
		if err := tx.WithContext(ctx).Select("remaining_quantity").First(&current, batch.ID).Error; err != nil {
			return err
		}
		return utils.InsufficientStockError("batch "+batch.BatchCode, qty, current.RemainingQuantity)
	}
	batch.RemainingQuantity = batch.RemainingQuantity.Sub(qty)
	return nil
}

// CascadeBatchEdit pushes corrected item name, price and cost onto the denormalized copies
// held by shop stock entries and movements of this batch. Entries whose item name no longer
// matches oldItemName (e.g. conversion outputs tagged with the batch) are left alone.
func CascadeBatchEdit(ctx context.Context, tx *gorm.DB, batch *Batch, oldItemName string) error {
	if err := tx.WithContext(ctx).Model(&ShopStockEntry{}).
		Where("batch_id = ? AND item_name = ?", batch.ID, oldItemName).
		Updates(map[string]interface{}{
			"item_name":  batch.ItemName,
			"unit_price": batch.UnitPrice,
			"total_cost": gorm.Expr("quantity * ?", batch.UnitCost),
		}).Error; err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Model(&StockMovement{}).
		Where("batch_id = ? AND item_name = ? AND movement_type = ?", batch.ID, oldItemName, MovementTypeDistribution).
		Updates(map[string]interface{}{
			"item_name":  batch.ItemName,
			"unit_cost":  batch.UnitCost,
			"total_cost": gorm.Expr("quantity * ?", batch.UnitCost),
		}).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Model(&StockMovement{}).
		Where("batch_id = ? AND item_name = ? AND movement_type <> ?", batch.ID, oldItemName, MovementTypeDistribution).
		Update("item_name", batch.ItemName).Error
}

func GetBatch(ctx context.Context, db *gorm.DB, id int) (*Batch, error) {
	return utils.FetchModel[Batch](ctx, db, "batch", id)
}

func ListBatches(ctx context.Context, db *gorm.DB, itemName *string) ([]Batch, error) {
	var batches []Batch
	query := db.WithContext(ctx)
	if itemName != nil && *itemName != "" {
		query = query.Where("item_name = ?", *itemName)
	}
	err := query.Order("sequence_no ASC").Find(&batches).Error
	return batches, err
}

type BatchAvailabilityRow struct {
	BatchId           int             `json:"batch_id"`
	BatchCode         string          `json:"batch_code"`
	SequenceNo        int64           `json:"sequence_no"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	ShopQuantity      decimal.Decimal `json:"shop_quantity"`
}

type BatchAvailability struct {
	ItemName          string                 `json:"item_name"`
	RemainingQuantity decimal.Decimal        `json:"remaining_quantity"`
	ShopQuantity      decimal.Decimal        `json:"shop_quantity"`
	Batches           []BatchAvailabilityRow `json:"batches"`
}

// GetBatchAvailability reports, per batch of an item, what is still central and what sits in shops.
func GetBatchAvailability(ctx context.Context, db *gorm.DB, itemName string) (*BatchAvailability, error) {
	if itemName == "" {
		return nil, utils.FieldError("item_name", "is required")
	}
	batches, err := ListBatches(ctx, db, &itemName)
	if err != nil {
		return nil, err
	}
	result := &BatchAvailability{
		ItemName:          itemName,
		RemainingQuantity: decimal.Zero,
		ShopQuantity:      decimal.Zero,
		Batches:           make([]BatchAvailabilityRow, 0, len(batches)),
	}
	if len(batches) == 0 {
		return result, nil
	}

	ids := make([]int, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
	}
	var entries []ShopStockEntry
	if err := db.WithContext(ctx).Select("batch_id", "quantity").
		Where("batch_id IN ? AND item_name = ?", ids, itemName).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	inShops := make(map[int]decimal.Decimal)
	for _, e := range entries {
		if e.BatchId != nil {
			inShops[*e.BatchId] = inShops[*e.BatchId].Add(e.Quantity)
		}
	}
	for _, b := range batches {
		row := BatchAvailabilityRow{
			BatchId:           b.ID,
			BatchCode:         b.BatchCode,
			SequenceNo:        b.SequenceNo,
			RemainingQuantity: b.RemainingQuantity,
			ShopQuantity:      inShops[b.ID],
		}
		result.RemainingQuantity = result.RemainingQuantity.Add(row.RemainingQuantity)
		result.ShopQuantity = result.ShopQuantity.Add(row.ShopQuantity)
		result.Batches = append(result.Batches, row)
	}
	return result, nil
}
