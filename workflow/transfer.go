package workflow

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransferInput struct {
	FromShopId int             `json:"from_shop_id" validate:"required,gt=0"`
	ToShopId   int             `json:"to_shop_id" validate:"required,gt=0,nefield=FromShopId"`
	ItemName   string          `json:"item_name" validate:"required,max=100"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gt=0,max_scale=4"`
	AutoAccept bool            `json:"auto_accept"`
	Reason     string          `json:"reason" validate:"max=255"`
}

type TransferResult struct {
	GroupId   string                   `json:"group_id"`
	Status    models.MovementStatus    `json:"status"`
	Movements []models.StockMovement   `json:"movements"`
	Entries   []*models.ShopStockEntry `json:"entries,omitempty"`
}

// TransferBetweenShops takes stock out of the source shop oldest batch first and records one
// pending movement per batch touched, all under one group id. With AutoAccept the destination
// is credited in the same transaction.
func TransferBetweenShops(ctx context.Context, input *TransferInput) (*TransferResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	release := utils.ObtainShopItemLock(ctx, config.GetLogger(), input.FromShopId, input.ItemName)
	defer release()

	result := &TransferResult{GroupId: uuid.NewString(), Status: models.MovementStatusPending}
	err := runLedgerTx(ctx, "TransferBetweenShops", func(l *ledgerTx) error {
		if err := models.RequireShop(l.ctx, l.tx, input.ToShopId); err != nil {
			return err
		}
		deductions, _, err := deductFIFO(l, input.FromShopId, input.ItemName, input.Quantity, false)
		if err != nil {
			return err
		}
		fromShop, toShop := input.FromShopId, input.ToShopId
		for _, d := range deductions {
			movement := models.StockMovement{
				MovementType: models.MovementTypeTransfer,
				Status:       models.MovementStatusPending,
				GroupId:      result.GroupId,
				BatchId:      d.BatchId,
				BatchCode:    d.BatchCode,
				ItemName:     input.ItemName,
				FromShopId:   &fromShop,
				ToShopId:     &toShop,
				Quantity:     d.Amount,
				UnitCost:     d.UnitCost,
				TotalCost:    d.TotalCost,
				Reason:       input.Reason,
				PerformedBy:  l.actor,
				Lines:        movementLines([]BatchDeduction{d}),
			}
			if err := models.CreateMovement(l.ctx, l.tx, &movement); err != nil {
				config.LogError(l.logger, "transfer.go", "TransferBetweenShops", "CreateMovement", input, err)
				return err
			}
			l.recordMovement(&movement)
			result.Movements = append(result.Movements, movement)
		}
		l.emit(EventTransferRequested, string(models.SourceTypeTransfer), result.Movements[0].ID, result.GroupId, input.FromShopId, input)

		if input.AutoAccept {
			accepted, err := acceptTransfer(l, result.GroupId)
			if err != nil {
				return err
			}
			result.Status = accepted.Status
			result.Movements = accepted.Movements
			result.Entries = accepted.Entries
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AcceptTransfer credits the destination shop under the same batch codes the stock left with.
func AcceptTransfer(ctx context.Context, groupId string) (*TransferResult, error) {
	var result *TransferResult
	err := runLedgerTx(ctx, "AcceptTransfer", func(l *ledgerTx) error {
		var err error
		result, err = acceptTransfer(l, groupId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeclineTransfer returns the stock to the source shop rows it was taken from.
func DeclineTransfer(ctx context.Context, groupId string) (*TransferResult, error) {
	var result *TransferResult
	err := runLedgerTx(ctx, "DeclineTransfer", func(l *ledgerTx) error {
		movements, err := models.LockMovementGroup(l.ctx, l.tx, groupId, models.MovementTypeTransfer)
		if err != nil {
			return err
		}
		if err := models.TransitionMovementStatus(l.ctx, l.tx, movementIds(movements), models.StatusTransition{
			From:       models.MovementStatusPending,
			To:         models.MovementStatusDeclined,
			ReviewedBy: l.actor,
		}); err != nil {
			return err
		}
		for i := range movements {
			if err := restoreLines(l, movements[i].Lines); err != nil {
				return err
			}
			movements[i].Status = models.MovementStatusDeclined
			movements[i].ReviewedBy = l.actor
		}
		l.emit(EventTransferDeclined, string(models.SourceTypeTransfer), movements[0].ID, groupId, utils.DereferencePtr(movements[0].FromShopId), nil)
		result = &TransferResult{GroupId: groupId, Status: models.MovementStatusDeclined, Movements: movements}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func acceptTransfer(l *ledgerTx, groupId string) (*TransferResult, error) {
	movements, err := models.LockMovementGroup(l.ctx, l.tx, groupId, models.MovementTypeTransfer)
	if err != nil {
		return nil, err
	}
	if err := models.TransitionMovementStatus(l.ctx, l.tx, movementIds(movements), models.StatusTransition{
		From:       models.MovementStatusPending,
		To:         models.MovementStatusAccepted,
		ReviewedBy: l.actor,
	}); err != nil {
		return nil, err
	}

	result := &TransferResult{GroupId: groupId, Status: models.MovementStatusAccepted}
	for i := range movements {
		m := &movements[i]
		source, err := transferSourceEntry(l, m)
		if err != nil {
			return nil, err
		}
		entry, err := models.CreditShopStock(l.ctx, l.tx, models.StockCredit{
			ShopId:          utils.DereferencePtr(m.ToShopId),
			BatchId:         m.BatchId,
			BatchCode:       m.BatchCode,
			BatchSequenceNo: source.BatchSequenceNo,
			ItemName:        m.ItemName,
			Metric:          source.Metric,
			UnitPrice:       source.UnitPrice,
			Quantity:        m.Quantity,
			TotalCost:       m.TotalCost,
		})
		if err != nil {
			config.LogError(l.logger, "transfer.go", "acceptTransfer", "CreditShopStock", m.ID, err)
			return nil, err
		}
		if _, err := l.postPairs(transferPair(m)); err != nil {
			return nil, err
		}
		m.Status = models.MovementStatusAccepted
		m.ReviewedBy = l.actor
		result.Entries = append(result.Entries, entry)
	}
	result.Movements = movements
	l.emit(EventTransferAccepted, string(models.SourceTypeTransfer), movements[0].ID, groupId, utils.DereferencePtr(movements[0].ToShopId), nil)
	return result, nil
}

// transferSourceEntry is the source shop row a transfer movement drew from; the destination
// inherits its metric, unit price and FIFO position.
func transferSourceEntry(l *ledgerTx, m *models.StockMovement) (*models.ShopStockEntry, error) {
	if len(m.Lines) == 0 || m.Lines[0].ShopStockEntryId == nil {
		return nil, utils.ConfigurationError("transfer movement has no source entry line")
	}
	var source models.ShopStockEntry
	err := l.tx.WithContext(l.ctx).Unscoped().First(&source, *m.Lines[0].ShopStockEntryId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ReferenceNotFoundError("shop stock entry", *m.Lines[0].ShopStockEntryId)
	}
	if err != nil {
		return nil, err
	}
	return &source, nil
}

func movementIds(movements []models.StockMovement) []int {
	ids := make([]int, len(movements))
	for i, m := range movements {
		ids[i] = m.ID
	}
	return ids
}
