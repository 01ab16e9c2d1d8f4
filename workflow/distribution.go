package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DistributeInput struct {
	BatchId  int             `json:"batch_id" validate:"required,gt=0"`
	ShopId   int             `json:"shop_id" validate:"required,gt=0"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0,max_scale=4"`
}

type ShopQuantity struct {
	ShopId   int             `json:"shop_id" validate:"required,gt=0"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0,max_scale=4"`
}

type DistributeFanOutInput struct {
	BatchId     int            `json:"batch_id" validate:"required,gt=0"`
	Allocations []ShopQuantity `json:"allocations" validate:"required,min=1,dive"`
}

type DistributionResult struct {
	Entry    *models.ShopStockEntry `json:"entry"`
	Movement *models.StockMovement  `json:"movement"`
}

type FanOutResult struct {
	GroupId   string                   `json:"group_id"`
	Entries   []*models.ShopStockEntry `json:"entries"`
	Movements []*models.StockMovement  `json:"movements"`
}

// Distribute moves quantity from a batch's central remainder into one shop.
func Distribute(ctx context.Context, input *DistributeInput) (*DistributionResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	var result *DistributionResult
	err := runLedgerTx(ctx, "Distribute", func(l *ledgerTx) error {
		batch, err := utils.FetchModelForUpdate[models.Batch](l.ctx, l.tx, "batch", input.BatchId)
		if err != nil {
			return err
		}
		result, err = distribute(l, batch, input.ShopId, input.Quantity, uuid.NewString())
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DistributeFanOut splits one batch across several shops, all or nothing.
func DistributeFanOut(ctx context.Context, input *DistributeFanOutInput) (*FanOutResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	result := &FanOutResult{GroupId: uuid.NewString()}
	err := runLedgerTx(ctx, "DistributeFanOut", func(l *ledgerTx) error {
		batch, err := utils.FetchModelForUpdate[models.Batch](l.ctx, l.tx, "batch", input.BatchId)
		if err != nil {
			return err
		}
		shopIds := make([]int, len(input.Allocations))
		requested := decimal.Zero
		for i, a := range input.Allocations {
			shopIds[i] = a.ShopId
			requested = requested.Add(a.Quantity)
		}
		if err := utils.ValidateResourcesId[models.Shop](l.ctx, l.tx, "shop", shopIds); err != nil {
			return err
		}
		if requested.GreaterThan(batch.RemainingQuantity) {
			return utils.InsufficientStockError("batch "+batch.BatchCode, requested, batch.RemainingQuantity)
		}
		for _, a := range input.Allocations {
			r, err := distribute(l, batch, a.ShopId, a.Quantity, result.GroupId)
			if err != nil {
				return err
			}
			result.Entries = append(result.Entries, r.Entry)
			result.Movements = append(result.Movements, r.Movement)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// distribute applies one batch -> shop move. batch must be locked by the caller.
func distribute(l *ledgerTx, batch *models.Batch, shopId int, qty decimal.Decimal, groupId string) (*DistributionResult, error) {
	if err := models.RequireShop(l.ctx, l.tx, shopId); err != nil {
		return nil, err
	}
	if err := models.DecrementBatchRemaining(l.ctx, l.tx, batch, qty); err != nil {
		return nil, err
	}

	cost := batch.UnitCost.Mul(qty)
	entry, err := models.CreditShopStock(l.ctx, l.tx, models.StockCredit{
		ShopId:          shopId,
		BatchId:         &batch.ID,
		BatchCode:       batch.BatchCode,
		BatchSequenceNo: batch.SequenceNo,
		ItemName:        batch.ItemName,
		Metric:          batch.Metric,
		UnitPrice:       batch.UnitPrice,
		Quantity:        qty,
		TotalCost:       cost,
	})
	if err != nil {
		config.LogError(l.logger, "distribution.go", "distribute", "CreditShopStock", batch.BatchCode, err)
		return nil, err
	}

	entryId := entry.ID
	movement := &models.StockMovement{
		MovementType: models.MovementTypeDistribution,
		Status:       models.MovementStatusCompleted,
		GroupId:      groupId,
		BatchId:      &batch.ID,
		BatchCode:    batch.BatchCode,
		ItemName:     batch.ItemName,
		ToShopId:     &shopId,
		Quantity:     qty,
		UnitCost:     batch.UnitCost,
		TotalCost:    cost,
		PerformedBy:  l.actor,
		Lines: []models.StockMovementLine{{
			Source:           models.LineSourceShopStock,
			ShopStockEntryId: &entryId,
			BatchId:          &batch.ID,
			BatchCode:        batch.BatchCode,
			Quantity:         qty,
			UnitCost:         batch.UnitCost,
			TotalCost:        cost,
		}},
	}
	if err := models.CreateMovement(l.ctx, l.tx, movement); err != nil {
		config.LogError(l.logger, "distribution.go", "distribute", "CreateMovement", batch.BatchCode, err)
		return nil, err
	}
	l.recordMovement(movement)

	if _, err := l.postPairs(distributionPair(movement)); err != nil {
		return nil, err
	}
	l.emit(EventStockDistributed, string(models.SourceTypeMovement), movement.ID, groupId, shopId, movement)
	return &DistributionResult{Entry: entry, Movement: movement}, nil
}
