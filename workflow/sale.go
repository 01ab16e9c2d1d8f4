package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SaleResult struct {
	Sale      *models.Sale            `json:"sale"`
	Movements []*models.StockMovement `json:"movements"`
	Journal   *JournalPayload         `json:"journal"`
}

// RecordSale deducts each line from the shop stock entry the cashier picked, records the
// payments and posts the sale according to its payment status.
func RecordSale(ctx context.Context, input *models.NewSale) (*SaleResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	saleDate := time.Now().UTC()
	if input.SaleDate != "" {
		parsed, err := utils.ParseDate("sale_date", input.SaleDate)
		if err != nil {
			return nil, err
		}
		saleDate = parsed
	}

	var result *SaleResult
	err := runLedgerTx(ctx, "RecordSale", func(l *ledgerTx) error {
		if err := models.RequireShop(l.ctx, l.tx, input.ShopId); err != nil {
			return err
		}

		sale := &models.Sale{
			ShopId:       input.ShopId,
			CustomerName: input.CustomerName,
			CreditorId:   input.CreditorId,
			SaleDate:     saleDate,
			PerformedBy:  l.actor,
		}
		type takenLine struct {
			entry *models.ShopStockEntry
			cost  decimal.Decimal
		}
		taken := make([]takenLine, 0, len(input.Items))
		total, costTotal := decimal.Zero, decimal.Zero
		for i, item := range input.Items {
			entry, err := models.LockShopStockEntry(l.ctx, l.tx, item.ShopStockEntryId)
			if err != nil {
				return err
			}
			if entry.ShopId != input.ShopId {
				return utils.FieldError(fmt.Sprintf("items[%d].shop_stock_entry_id", i),
					fmt.Sprintf("belongs to shop %d, not shop %d", entry.ShopId, input.ShopId))
			}
			unitPrice := utils.DereferencePtr(item.UnitPrice, entry.UnitPrice)
			cost, err := models.TakeFromEntry(l.ctx, l.tx, entry, item.Quantity)
			if err != nil {
				return err
			}
			linePrice := unitPrice.Mul(item.Quantity)
			sale.LineItems = append(sale.LineItems, models.SaleLineItem{
				ShopStockEntryId: entry.ID,
				BatchId:          entry.BatchId,
				BatchCode:        entry.BatchCode,
				ItemName:         entry.ItemName,
				Quantity:         item.Quantity,
				UnitPrice:        unitPrice,
				TotalPrice:       linePrice,
				UnitCost:         cost.Div(item.Quantity).Round(4),
				CostTotal:        cost,
			})
			taken = append(taken, takenLine{entry: entry, cost: cost})
			total = total.Add(linePrice)
			costTotal = costTotal.Add(cost)
		}

		paid := decimal.Zero
		for _, p := range input.Payments {
			sale.Payments = append(sale.Payments, models.SalePayment{
				Method:    p.Method,
				Amount:    p.Amount,
				Reference: p.Reference,
			})
			paid = paid.Add(p.Amount)
		}
		sale.TotalPrice = total
		sale.CostTotal = costTotal
		sale.AmountPaid = paid
		sale.Balance = paid.Sub(total)
		sale.Status = models.ComputeSaleStatus(total, paid)

		if err := l.tx.WithContext(l.ctx).Create(sale).Error; err != nil {
			config.LogError(l.logger, "sale.go", "RecordSale", "Create sale", input, err)
			return err
		}

		groupId := uuid.NewString()
		movements := make([]*models.StockMovement, 0, len(taken))
		for i, t := range taken {
			line := sale.LineItems[i]
			shopId, entryId := input.ShopId, t.entry.ID
			movement := &models.StockMovement{
				MovementType: models.MovementTypeSale,
				Status:       models.MovementStatusCompleted,
				GroupId:      groupId,
				BatchId:      t.entry.BatchId,
				BatchCode:    t.entry.BatchCode,
				ItemName:     t.entry.ItemName,
				FromShopId:   &shopId,
				Quantity:     line.Quantity,
				UnitCost:     line.UnitCost,
				TotalCost:    t.cost,
				SaleId:       &sale.ID,
				PerformedBy:  l.actor,
				Lines: []models.StockMovementLine{{
					Source:           models.LineSourceShopStock,
					ShopStockEntryId: &entryId,
					BatchId:          t.entry.BatchId,
					BatchCode:        t.entry.BatchCode,
					Quantity:         line.Quantity,
					UnitCost:         line.UnitCost,
					TotalCost:        t.cost,
				}},
			}
			if err := models.CreateMovement(l.ctx, l.tx, movement); err != nil {
				return err
			}
			l.recordMovement(movement)
			movements = append(movements, movement)
		}

		payload, err := PostSaleJournal(l.ctx, l.tx, sale, sale.LineItems, input.ShopId, input.CreditorId)
		if err != nil {
			return err
		}
		for i := 0; i+1 < len(payload.Entries); i += 2 {
			l.journals = append(l.journals, payload.Entries[i].JournalType)
		}
		l.emit(EventSaleRecorded, string(models.SourceTypeSale), sale.ID, groupId, input.ShopId, sale)
		result = &SaleResult{Sale: sale, Movements: movements, Journal: payload}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
