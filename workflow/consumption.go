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

// BatchDeduction is what one FIFO step took from one entry (or from the live stock pool).
type BatchDeduction struct {
	Source           models.LineSource `json:"source"`
	BatchId          *int              `json:"batch_id"`
	BatchCode        string            `json:"batch_code"`
	BatchSequenceNo  int64             `json:"batch_sequence_no"`
	ShopStockEntryId *int              `json:"shop_stock_entry_id,omitempty"`
	LiveStockId      *int              `json:"live_stock_id,omitempty"`
	Metric           string            `json:"metric"`
	UnitPrice        decimal.Decimal   `json:"unit_price"`
	Amount           decimal.Decimal   `json:"amount"`
	UnitCost         decimal.Decimal   `json:"unit_cost"`
	TotalCost        decimal.Decimal   `json:"total_cost"`
}

// ConsumeInput always describes a sale. Reason is a note kept on the sale movement and does not
// change how the stock is booked.
type ConsumeInput struct {
	ShopId   int             `json:"shop_id" validate:"required,gt=0"`
	ItemName string          `json:"item_name" validate:"required,max=100"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0,max_scale=4"`
	Reason   string          `json:"reason" validate:"max=255"`
}

type ConsumeResult struct {
	Deductions []BatchDeduction      `json:"deductions"`
	TotalCost  decimal.Decimal       `json:"total_cost"`
	Movement   *models.StockMovement `json:"movement"`
}

// Consume sells quantity of an item at a shop without naming a batch: stock is drawn oldest
// batch first and its cost is moved to Cost of Goods Sold. The movement is always a sale;
// spoilage, conversion and transfer go through RequestSpoilage, ConvertItem and TransferBetweenShops.
func Consume(ctx context.Context, input *ConsumeInput) (*ConsumeResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	release := utils.ObtainShopItemLock(ctx, config.GetLogger(), input.ShopId, input.ItemName)
	defer release()

	var result *ConsumeResult
	err := runLedgerTx(ctx, "Consume", func(l *ledgerTx) error {
		deductions, total, err := deductFIFO(l, input.ShopId, input.ItemName, input.Quantity, false)
		if err != nil {
			return err
		}
		movement := aggregateMovement(models.MovementTypeSale, models.MovementStatusCompleted, input.ShopId, input.ItemName, input.Quantity, total, deductions)
		movement.Reason = input.Reason
		movement.PerformedBy = l.actor
		if err := models.CreateMovement(l.ctx, l.tx, movement); err != nil {
			config.LogError(l.logger, "consumption.go", "Consume", "CreateMovement", input, err)
			return err
		}
		l.recordMovement(movement)
		if _, err := l.postPairs(cogsPair(movement, models.SourceTypeMovement, movement.ID)); err != nil {
			return err
		}
		l.emit(EventStockConsumed, string(models.SourceTypeMovement), movement.ID, "", input.ShopId, deductions)
		result = &ConsumeResult{Deductions: deductions, TotalCost: total, Movement: movement}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// deductFIFO takes qty of itemName from a shop, oldest batch first, under row locks.
// With allowLiveStock any shortfall is drawn from the shop's live stock pool.
// Nothing is deducted unless the full quantity is available.
func deductFIFO(l *ledgerTx, shopId int, itemName string, qty decimal.Decimal, allowLiveStock bool) ([]BatchDeduction, decimal.Decimal, error) {
	if err := models.RequireShop(l.ctx, l.tx, shopId); err != nil {
		return nil, decimal.Zero, err
	}
	entries, err := models.LockShopStockFIFO(l.ctx, l.tx, shopId, itemName)
	if err != nil {
		config.LogError(l.logger, "consumption.go", "deductFIFO", "LockShopStockFIFO", itemName, err)
		return nil, decimal.Zero, err
	}
	available := models.SumQuantity(entries)

	var pool *models.LiveStock
	if allowLiveStock && available.LessThan(qty) {
		pool, err = models.LockLiveStock(l.ctx, l.tx, shopId, itemName)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if pool != nil {
			available = available.Add(pool.Quantity)
		}
	}
	if available.LessThan(qty) {
		return nil, decimal.Zero, utils.InsufficientStockError(fmt.Sprintf("%s at shop %d", itemName, shopId), qty, available).
			WithDetail("item_name", itemName)
	}

	remaining := qty
	total := decimal.Zero
	deductions := make([]BatchDeduction, 0, len(entries)+1)
	for i := range entries {
		if !remaining.IsPositive() {
			break
		}
		entry := &entries[i]
		if !entry.Quantity.IsPositive() {
			continue
		}
		if _, ok := entry.UnitCost(); !ok || entry.TotalCost.IsNegative() {
			config.LogWarning(l.logger, "consumption.go", "deductFIFO", "shop stock entry has no usable cost basis; consuming at zero cost", logrus.Fields{
				"shop_stock_entry_id": entry.ID,
				"quantity":            entry.Quantity.String(),
				"total_cost":          entry.TotalCost.String(),
			})
		}
		take := decimal.Min(remaining, entry.Quantity)
		cost, err := models.TakeFromEntry(l.ctx, l.tx, entry, take)
		if err != nil {
			return nil, decimal.Zero, err
		}
		entryId := entry.ID
		deductions = append(deductions, BatchDeduction{
			Source:           models.LineSourceShopStock,
			BatchId:          entry.BatchId,
			BatchCode:        entry.BatchCode,
			BatchSequenceNo:  entry.BatchSequenceNo,
			ShopStockEntryId: &entryId,
			Metric:           entry.Metric,
			UnitPrice:        entry.UnitPrice,
			Amount:           take,
			UnitCost:         cost.Div(take).Round(4),
			TotalCost:        cost,
		})
		total = total.Add(cost)
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() && pool != nil {
		if err := models.TakeLiveStock(l.ctx, l.tx, pool, remaining); err != nil {
			return nil, decimal.Zero, err
		}
		poolId := pool.ID
		cost := pool.UnitCost.Mul(remaining).Round(4)
		deductions = append(deductions, BatchDeduction{
			Source:      models.LineSourceLiveStock,
			LiveStockId: &poolId,
			Amount:      remaining,
			UnitCost:    pool.UnitCost,
			TotalCost:   cost,
		})
		total = total.Add(cost)
		remaining = decimal.Zero
	}
	if remaining.IsPositive() {
		return nil, decimal.Zero, utils.InsufficientStockError(fmt.Sprintf("%s at shop %d", itemName, shopId), qty, qty.Sub(remaining))
	}
	return deductions, total, nil
}

func movementLines(deductions []BatchDeduction) []models.StockMovementLine {
	lines := make([]models.StockMovementLine, 0, len(deductions))
	for _, d := range deductions {
		lines = append(lines, models.StockMovementLine{
			Source:           d.Source,
			ShopStockEntryId: d.ShopStockEntryId,
			LiveStockId:      d.LiveStockId,
			BatchId:          d.BatchId,
			BatchCode:        d.BatchCode,
			Quantity:         d.Amount,
			UnitCost:         d.UnitCost,
			TotalCost:        d.TotalCost,
		})
	}
	return lines
}

// aggregateMovement is one movement for a whole FIFO walk, with a line per batch touched.
func aggregateMovement(movementType models.MovementType, status models.MovementStatus, shopId int, itemName string, qty decimal.Decimal, total decimal.Decimal, deductions []BatchDeduction) *models.StockMovement {
	unitCost, _ := utils.UnitCost(total, qty)
	shop := shopId
	m := &models.StockMovement{
		MovementType: movementType,
		Status:       status,
		ItemName:     itemName,
		FromShopId:   &shop,
		Quantity:     qty,
		UnitCost:     unitCost.Round(4),
		TotalCost:    total,
		Lines:        movementLines(deductions),
	}
	if len(deductions) == 1 {
		m.BatchId = deductions[0].BatchId
		m.BatchCode = deductions[0].BatchCode
	}
	return m
}

// restoreLines puts back exactly what each line took, onto the row it was taken from.
func restoreLines(l *ledgerTx, lines []models.StockMovementLine) error {
	for _, line := range lines {
		switch line.Source {
		case models.LineSourceShopStock:
			if line.ShopStockEntryId == nil {
				return utils.ConfigurationError(fmt.Sprintf("movement line %d has no shop stock entry", line.ID))
			}
			if err := models.RestoreToEntry(l.ctx, l.tx, *line.ShopStockEntryId, line.Quantity, line.TotalCost); err != nil {
				config.LogError(l.logger, "consumption.go", "restoreLines", "RestoreToEntry", line.ID, err)
				return err
			}
		case models.LineSourceLiveStock:
			if line.LiveStockId == nil {
				return utils.ConfigurationError(fmt.Sprintf("movement line %d has no live stock pool", line.ID))
			}
			if err := models.RestoreLiveStock(l.ctx, l.tx, *line.LiveStockId, line.Quantity); err != nil {
				config.LogError(l.logger, "consumption.go", "restoreLines", "RestoreLiveStock", line.ID, err)
				return err
			}
		default:
			return utils.ConfigurationError(fmt.Sprintf("movement line %d has unknown source %q", line.ID, line.Source))
		}
	}
	return nil
}
