package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/shopspring/decimal"
)

type ConvertInput struct {
	ShopId         int              `json:"shop_id" validate:"required,gt=0"`
	FromItem       string           `json:"from_item" validate:"required,max=100"`
	ToItem         string           `json:"to_item" validate:"required,max=100,nefield=FromItem"`
	Quantity       decimal.Decimal  `json:"quantity" validate:"gt=0,max_scale=4"`
	OutputQuantity *decimal.Decimal `json:"output_quantity" validate:"omitempty,gt=0,max_scale=4"`
	Metric         string           `json:"metric" validate:"max=20"`
	UnitPrice      *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0,max_scale=4"`
	Reason         string           `json:"reason" validate:"max=255"`
}

type ConversionResult struct {
	Deductions []BatchDeduction       `json:"deductions"`
	TotalCost  decimal.Decimal        `json:"total_cost"`
	Output     *models.ShopStockEntry `json:"output"`
	Movement   *models.StockMovement  `json:"movement"`
}

// ConvertItem turns stock of one item into another at the same shop (raw eggs -> boiled eggs).
// The consumed cost carries over unchanged, so conversion posts no journal.
func ConvertItem(ctx context.Context, input *ConvertInput) (*ConversionResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	release := utils.ObtainShopItemLock(ctx, config.GetLogger(), input.ShopId, input.FromItem)
	defer release()

	output := input.Quantity
	if input.OutputQuantity != nil {
		output = *input.OutputQuantity
	}

	var result *ConversionResult
	err := runLedgerTx(ctx, "ConvertItem", func(l *ledgerTx) error {
		deductions, total, err := deductFIFO(l, input.ShopId, input.FromItem, input.Quantity, false)
		if err != nil {
			return err
		}
		last := deductions[len(deductions)-1]
		metric := input.Metric
		if metric == "" {
			metric = last.Metric
		}
		unitPrice := utils.DereferencePtr(input.UnitPrice, last.UnitPrice)

		entry, err := models.CreditShopStock(l.ctx, l.tx, models.StockCredit{
			ShopId:          input.ShopId,
			BatchId:         last.BatchId,
			BatchCode:       last.BatchCode,
			BatchSequenceNo: last.BatchSequenceNo,
			ItemName:        input.ToItem,
			Metric:          metric,
			UnitPrice:       unitPrice,
			Quantity:        output,
			TotalCost:       total,
		})
		if err != nil {
			config.LogError(l.logger, "conversion.go", "ConvertItem", "CreditShopStock", input, err)
			return err
		}

		movement := aggregateMovement(models.MovementTypeConversion, models.MovementStatusCompleted, input.ShopId, input.FromItem, input.Quantity, total, deductions)
		movement.ToItemName = input.ToItem
		movement.ToShopId = movement.FromShopId
		movement.OutputQuantity = output
		movement.Reason = input.Reason
		movement.PerformedBy = l.actor
		if err := models.CreateMovement(l.ctx, l.tx, movement); err != nil {
			config.LogError(l.logger, "conversion.go", "ConvertItem", "CreateMovement", input, err)
			return err
		}
		l.recordMovement(movement)
		l.emit(EventStockConverted, string(models.SourceTypeMovement), movement.ID, "", input.ShopId, movement)
		result = &ConversionResult{Deductions: deductions, TotalCost: total, Output: entry, Movement: movement}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
