package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/shopspring/decimal"
)

type SpoilageInput struct {
	ShopId   int             `json:"shop_id" validate:"required,gt=0"`
	ItemName string          `json:"item_name" validate:"required,max=100"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0,max_scale=4"`
	Reason   string          `json:"reason" validate:"required,max=255"`
}

type SpoilageReview struct {
	Note string `json:"note" validate:"max=255"`
}

// RequestSpoilage deducts spoiled stock straight away and leaves the record pending review.
func RequestSpoilage(ctx context.Context, input *SpoilageInput) (*models.StockMovement, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	release := utils.ObtainShopItemLock(ctx, config.GetLogger(), input.ShopId, input.ItemName)
	defer release()

	var movement *models.StockMovement
	err := runLedgerTx(ctx, "RequestSpoilage", func(l *ledgerTx) error {
		deductions, total, err := deductFIFO(l, input.ShopId, input.ItemName, input.Quantity, config.SpoilageLiveStockFallback())
		if err != nil {
			return err
		}
		movement = aggregateMovement(models.MovementTypeSpoilage, models.MovementStatusPending, input.ShopId, input.ItemName, input.Quantity, total, deductions)
		movement.Reason = input.Reason
		movement.PerformedBy = l.actor
		if err := models.CreateMovement(l.ctx, l.tx, movement); err != nil {
			config.LogError(l.logger, "spoilage.go", "RequestSpoilage", "CreateMovement", input, err)
			return err
		}
		l.recordMovement(movement)
		l.emit(EventSpoilageRequested, string(models.SourceTypeMovement), movement.ID, "", input.ShopId, movement)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// ApproveSpoilage finalises a pending spoilage and writes its cost off to Spoilage Expense.
func ApproveSpoilage(ctx context.Context, id int, review *SpoilageReview) (*models.StockMovement, error) {
	return reviewSpoilage(ctx, "ApproveSpoilage", id, review, models.MovementStatusApproved)
}

// RejectSpoilage puts every deducted amount back onto exactly the rows it came from.
func RejectSpoilage(ctx context.Context, id int, review *SpoilageReview) (*models.StockMovement, error) {
	return reviewSpoilage(ctx, "RejectSpoilage", id, review, models.MovementStatusRejected)
}

func reviewSpoilage(ctx context.Context, operation string, id int, review *SpoilageReview, to models.MovementStatus) (*models.StockMovement, error) {
	if review == nil {
		review = &SpoilageReview{}
	}
	if err := utils.ValidateStruct(review); err != nil {
		return nil, err
	}
	var movement *models.StockMovement
	err := runLedgerTx(ctx, operation, func(l *ledgerTx) error {
		var err error
		movement, err = models.LockMovement(l.ctx, l.tx, id, models.MovementTypeSpoilage)
		if err != nil {
			return err
		}
		if err := models.TransitionMovementStatus(l.ctx, l.tx, []int{movement.ID}, models.StatusTransition{
			From:       models.MovementStatusPending,
			To:         to,
			ReviewedBy: l.actor,
			ReviewNote: review.Note,
		}); err != nil {
			return err
		}

		shopId := utils.DereferencePtr(movement.FromShopId)
		switch to {
		case models.MovementStatusApproved:
			if _, err := l.postPairs(spoilagePair(movement)); err != nil {
				return err
			}
			l.emit(EventSpoilageApproved, string(models.SourceTypeMovement), movement.ID, "", shopId, nil)
		case models.MovementStatusRejected:
			if err := restoreLines(l, movement.Lines); err != nil {
				return err
			}
			l.emit(EventSpoilageRejected, string(models.SourceTypeMovement), movement.ID, "", shopId, nil)
		}
		movement.Status = to
		movement.ReviewedBy = l.actor
		movement.ReviewNote = review.Note
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}
