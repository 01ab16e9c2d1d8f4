package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
)

type ManualStockResult struct {
	Entry    *models.ShopStockEntry `json:"entry"`
	Movement *models.StockMovement  `json:"movement"`
}

// RegisterManualStock books stock a shop bought outside the batch process. It carries no batch
// and sorts ahead of every batch in FIFO order.
func RegisterManualStock(ctx context.Context, shopId int, input *models.NewManualStock) (*ManualStockResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	var result *ManualStockResult
	err := runLedgerTx(ctx, "RegisterManualStock", func(l *ledgerTx) error {
		if err := models.RequireShop(l.ctx, l.tx, shopId); err != nil {
			return err
		}
		cost := input.UnitCost.Mul(input.Quantity)
		entry, err := models.CreditShopStock(l.ctx, l.tx, models.StockCredit{
			ShopId:    shopId,
			ItemName:  input.ItemName,
			Metric:    input.Metric,
			UnitPrice: input.UnitPrice,
			Quantity:  input.Quantity,
			TotalCost: cost,
		})
		if err != nil {
			config.LogError(l.logger, "shopStock.go", "RegisterManualStock", "CreditShopStock", input, err)
			return err
		}
		entryId := entry.ID
		movement := &models.StockMovement{
			MovementType: models.MovementTypeManual,
			Status:       models.MovementStatusCompleted,
			ItemName:     input.ItemName,
			ToShopId:     &shopId,
			Quantity:     input.Quantity,
			UnitCost:     input.UnitCost,
			TotalCost:    cost,
			Reason:       input.Reason,
			PerformedBy:  l.actor,
			Lines: []models.StockMovementLine{{
				Source:           models.LineSourceShopStock,
				ShopStockEntryId: &entryId,
				Quantity:         input.Quantity,
				UnitCost:         input.UnitCost,
				TotalCost:        cost,
			}},
		}
		if err := models.CreateMovement(l.ctx, l.tx, movement); err != nil {
			return err
		}
		l.recordMovement(movement)
		if _, err := l.postPairs(shopPurchasePair(movement)); err != nil {
			return err
		}
		l.emit(EventManualStockAdded, string(models.SourceTypeMovement), movement.ID, "", shopId, movement)
		result = &ManualStockResult{Entry: entry, Movement: movement}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddLiveStock tops up a shop's live stock pool and books its cost like any shop purchase.
func AddLiveStock(ctx context.Context, shopId int, input *models.NewLiveStock) (*models.LiveStock, error) {
	var pool *models.LiveStock
	err := runLedgerTx(ctx, "AddLiveStock", func(l *ledgerTx) error {
		var err error
		pool, err = models.AddLiveStock(l.ctx, l.tx, shopId, input)
		if err != nil {
			return err
		}
		poolId := pool.ID
		cost := input.UnitCost.Mul(input.Quantity)
		movement := &models.StockMovement{
			MovementType: models.MovementTypeManual,
			Status:       models.MovementStatusCompleted,
			ItemName:     input.ItemName,
			ToShopId:     &shopId,
			Quantity:     input.Quantity,
			UnitCost:     input.UnitCost,
			TotalCost:    cost,
			Reason:       "live stock",
			PerformedBy:  l.actor,
			Lines: []models.StockMovementLine{{
				Source:      models.LineSourceLiveStock,
				LiveStockId: &poolId,
				Quantity:    input.Quantity,
				UnitCost:    input.UnitCost,
				TotalCost:   cost,
			}},
		}
		if err := models.CreateMovement(l.ctx, l.tx, movement); err != nil {
			return err
		}
		l.recordMovement(movement)
		if _, err := l.postPairs(shopPurchasePair(movement)); err != nil {
			return err
		}
		l.emit(EventManualStockAdded, string(models.SourceTypeMovement), movement.ID, "", shopId, pool)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func ListShopStock(ctx context.Context, shopId int, itemName *string) ([]models.ShopStockEntry, error) {
	if err := models.RequireShop(ctx, config.GetDB(), shopId); err != nil {
		return nil, err
	}
	return models.ListShopStock(ctx, config.GetDB(), shopId, itemName)
}

// ListMovements filters the movement history; zero values match everything.
func ListMovements(ctx context.Context, movementType models.MovementType, status models.MovementStatus, shopId int) ([]models.StockMovement, error) {
	return models.ListMovements(ctx, config.GetDB(), movementType, status, shopId)
}

func GetMovement(ctx context.Context, id int) (*models.StockMovement, error) {
	return models.GetMovement(ctx, config.GetDB(), id)
}
