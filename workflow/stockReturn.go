package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ReturnInput struct {
	ShopStockEntryId int             `json:"shop_stock_entry_id" validate:"required,gt=0"`
	Quantity         decimal.Decimal `json:"quantity" validate:"gt=0,max_scale=4"`
	SaleId           *int            `json:"sale_id" validate:"omitempty,gt=0"`
	Reason           string          `json:"reason" validate:"max=255"`
}

// ReturnStock puts returned units back on the entry they were sold from and reverses their cost
// out of COGS. A return can never exceed what completed sales took from the entry less what was
// already returned to it, and a return against a sale is further held to that sale's lines.
func ReturnStock(ctx context.Context, input *ReturnInput) (*models.StockMovement, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	var movement *models.StockMovement
	err := runLedgerTx(ctx, "ReturnStock", func(l *ledgerTx) error {
		entry, err := models.LockShopStockEntry(l.ctx, l.tx, input.ShopStockEntryId)
		if err != nil {
			return err
		}
		if err := checkEntryReturnable(l, entry, input.Quantity); err != nil {
			return err
		}
		unitCost, err := returnUnitCost(l, entry, input)
		if err != nil {
			return err
		}
		cost := unitCost.Mul(input.Quantity).Round(4)
		if err := models.RestoreToEntry(l.ctx, l.tx, entry.ID, input.Quantity, cost); err != nil {
			return err
		}

		shopId, entryId := entry.ShopId, entry.ID
		movement = &models.StockMovement{
			MovementType: models.MovementTypeReturn,
			Status:       models.MovementStatusCompleted,
			BatchId:      entry.BatchId,
			BatchCode:    entry.BatchCode,
			ItemName:     entry.ItemName,
			ToShopId:     &shopId,
			Quantity:     input.Quantity,
			UnitCost:     unitCost,
			TotalCost:    cost,
			SaleId:       input.SaleId,
			Reason:       input.Reason,
			PerformedBy:  l.actor,
			Lines: []models.StockMovementLine{{
				Source:           models.LineSourceShopStock,
				ShopStockEntryId: &entryId,
				BatchId:          entry.BatchId,
				BatchCode:        entry.BatchCode,
				Quantity:         input.Quantity,
				UnitCost:         unitCost,
				TotalCost:        cost,
			}},
		}
		if err := models.CreateMovement(l.ctx, l.tx, movement); err != nil {
			config.LogError(l.logger, "stockReturn.go", "ReturnStock", "CreateMovement", input, err)
			return err
		}
		l.recordMovement(movement)
		if _, err := l.postPairs(returnPair(movement)); err != nil {
			return err
		}
		l.emit(EventStockReturned, string(models.SourceTypeMovement), movement.ID, "", shopId, movement)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func checkEntryReturnable(l *ledgerTx, entry *models.ShopStockEntry, qty decimal.Decimal) error {
	sold, err := models.SumEntryLineQuantity(l.ctx, l.tx, entry.ID, models.MovementTypeSale)
	if err != nil {
		return err
	}
	returned, err := models.SumEntryLineQuantity(l.ctx, l.tx, entry.ID, models.MovementTypeReturn)
	if err != nil {
		return err
	}
	returnable := sold.Sub(returned)
	if qty.GreaterThan(returnable) {
		return utils.ValidationError(
			fmt.Sprintf("cannot return %s of %s; only %s was sold from this entry and not yet returned", qty, entry.ItemName, returnable),
			map[string]string{"quantity": "lte=" + returnable.String()})
	}
	return nil
}

// returnUnitCost picks the cost basis for returned units: the sale line's cost when the sale is
// known, else the entry's current unit cost, else the batch cost for an emptied entry.
func returnUnitCost(l *ledgerTx, entry *models.ShopStockEntry, input *ReturnInput) (decimal.Decimal, error) {
	db := l.tx.WithContext(l.ctx)
	if input.SaleId != nil {
		var lines []models.SaleLineItem
		if err := db.Where("sale_id = ? AND shop_stock_entry_id = ?", *input.SaleId, entry.ID).Find(&lines).Error; err != nil {
			return decimal.Zero, err
		}
		if len(lines) == 0 {
			return decimal.Zero, utils.ReferenceNotFoundError("sale line for entry", fmt.Sprintf("%d/%d", *input.SaleId, entry.ID))
		}
		sold, soldCost := decimal.Zero, decimal.Zero
		for _, line := range lines {
			sold = sold.Add(line.Quantity)
			soldCost = soldCost.Add(line.CostTotal)
		}
		var returns []models.StockMovement
		if err := db.Select("stock_movements.quantity").
			Where("stock_movements.movement_type = ? AND stock_movements.sale_id = ? AND stock_movements.status = ?", models.MovementTypeReturn, *input.SaleId, models.MovementStatusCompleted).
			Joins("JOIN stock_movement_lines ON stock_movement_lines.movement_id = stock_movements.id AND stock_movement_lines.shop_stock_entry_id = ?", entry.ID).
			Find(&returns).Error; err != nil {
			return decimal.Zero, err
		}
		returnable := sold
		for _, r := range returns {
			returnable = returnable.Sub(r.Quantity)
		}
		if input.Quantity.GreaterThan(returnable) {
			return decimal.Zero, utils.ValidationError(
				fmt.Sprintf("cannot return %s of %s; only %s left to return on sale #%d", input.Quantity, entry.ItemName, returnable, *input.SaleId),
				map[string]string{"quantity": "lte=" + returnable.String()})
		}
		unitCost, _ := utils.UnitCost(soldCost, sold)
		return unitCost.Round(4), nil
	}

	if unitCost, ok := entry.UnitCost(); ok {
		return unitCost, nil
	}
	if entry.BatchId != nil {
		var batch models.Batch
		if err := db.Unscoped().Select("unit_cost").First(&batch, *entry.BatchId).Error; err != nil {
			return decimal.Zero, err
		}
		return batch.UnitCost, nil
	}
	config.LogWarning(l.logger, "stockReturn.go", "returnUnitCost", "no cost basis for returned stock; returning at zero cost", logrus.Fields{
		"shop_stock_entry_id": entry.ID,
	})
	return decimal.Zero, nil
}
