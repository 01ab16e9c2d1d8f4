package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/shopspring/decimal"
)

// CreateBatch records a purchase, issues its batch code and books the purchase journal.
func CreateBatch(ctx context.Context, input *models.NewBatch) (*models.Batch, error) {
	var batch *models.Batch
	err := runLedgerTx(ctx, "CreateBatch", func(l *ledgerTx) error {
		seq, err := models.NextBatchSequence(l.ctx, l.tx, models.BatchSequenceName)
		if err != nil {
			config.LogError(l.logger, "batchIntake.go", "CreateBatch", "NextBatchSequence", nil, err)
			return err
		}
		batch, err = models.BuildBatch(input, seq)
		if err != nil {
			return err
		}
		if err := l.tx.WithContext(l.ctx).Create(batch).Error; err != nil {
			config.LogError(l.logger, "batchIntake.go", "CreateBatch", "Create batch", batch.BatchCode, err)
			return err
		}
		if _, err := l.postPairs(purchasePairs(batch)...); err != nil {
			return err
		}
		l.emit(EventBatchCreated, string(models.SourceTypeBatch), batch.ID, "", 0, batch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// UpdateBatch corrects a batch and repairs every denormalized copy of it in the same transaction.
// Cost or payment changes reverse the purchase postings and book them again at the new figures;
// stock already in shops is re-valued and the difference on stock already used goes to cost of
// goods sold. A cost change is refused while a pending spoilage or transfer holds stock of the batch.
func UpdateBatch(ctx context.Context, id int, input *models.EditBatch) (*models.Batch, error) {
	var batch *models.Batch
	err := runLedgerTx(ctx, "UpdateBatch", func(l *ledgerTx) error {
		var err error
		batch, err = utils.FetchModelForUpdate[models.Batch](l.ctx, l.tx, "batch", id)
		if err != nil {
			return err
		}
		old := *batch

		if err := batch.ApplyEdit(input); err != nil {
			return err
		}
		if !old.UnitCost.Equal(batch.UnitCost) {
			pending, err := models.CountPendingMovementsOfBatch(l.ctx, l.tx, batch.ID)
			if err != nil {
				config.LogError(l.logger, "batchIntake.go", "UpdateBatch", "CountPendingMovementsOfBatch", id, err)
				return err
			}
			if pending > 0 {
				return utils.StateConflictError(fmt.Sprintf("batch %s has %d pending movement(s); review them before changing its cost", batch.BatchCode, pending)).
					WithDetail("batch_code", batch.BatchCode)
			}
		}
		entries, err := models.LockBatchEntries(l.ctx, l.tx, batch.ID, old.ItemName)
		if err != nil {
			return err
		}

		if err := l.tx.WithContext(l.ctx).Model(batch).
			Select("item_name", "quantity", "remaining_quantity", "unit_cost", "unit_price", "total_cost",
				"amount_paid", "balance", "supplier_name", "supplier_location", "note").
			Updates(batch).Error; err != nil {
			config.LogError(l.logger, "batchIntake.go", "UpdateBatch", "Update batch", id, err)
			return err
		}
		if err := models.CascadeBatchEdit(l.ctx, l.tx, batch, old.ItemName); err != nil {
			config.LogError(l.logger, "batchIntake.go", "UpdateBatch", "CascadeBatchEdit", id, err)
			return err
		}

		if !old.TotalCost.Equal(batch.TotalCost) || !old.AmountPaid.Equal(batch.AmountPaid) {
			if _, err := models.ReverseJournalEntries(l.ctx, l.tx, models.SourceTypeBatch, batch.ID, "Batch corrected", models.JournalTypePurchase); err != nil {
				return err
			}
			if _, err := l.postPairs(purchasePairs(batch)...); err != nil {
				return err
			}
		}
		if !old.TotalCost.Equal(batch.TotalCost) || !old.UnitCost.Equal(batch.UnitCost) {
			if _, err := l.postPairs(revaluationPairs(&old, batch, entries)...); err != nil {
				return err
			}
		}
		l.emit(EventBatchUpdated, string(models.SourceTypeBatch), batch.ID, "", 0, batch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// revaluationPairs moves the change in batch value to where the stock sits. Shop entries and the
// central store are brought to their quantity at the new cost; the rest belongs to stock already used.
func revaluationPairs(old, batch *models.Batch, entries []models.ShopStockEntry) []models.JournalPair {
	desc := "Revaluation of " + batch.BatchCode
	var pairs []models.JournalPair
	held := decimal.Zero
	for _, e := range entries {
		delta := e.Quantity.Mul(batch.UnitCost).Round(4).Sub(e.TotalCost)
		held = held.Add(delta)
		shopId := e.ShopId
		pair := models.JournalPair{
			JournalType:   models.JournalTypeRevaluation,
			DebitAccount:  models.AccountNameInventory,
			CreditAccount: models.AccountNameInventory,
			Amount:        delta.Abs(),
			SourceType:    models.SourceTypeBatch,
			SourceId:      batch.ID,
			Description:   desc,
		}
		if delta.IsNegative() {
			pair.CreditShopId = &shopId
		} else {
			pair.DebitShopId = &shopId
		}
		pairs = append(pairs, pair)
	}

	central := batch.RemainingQuantity.Mul(batch.UnitCost).Sub(old.RemainingQuantity.Mul(old.UnitCost))
	used := batch.TotalCost.Sub(old.TotalCost).Sub(central).Sub(held).Round(4)
	pair := models.JournalPair{
		JournalType:   models.JournalTypeRevaluation,
		DebitAccount:  models.AccountNameCostOfGoodsSold,
		CreditAccount: models.AccountNameInventory,
		Amount:        used.Abs(),
		SourceType:    models.SourceTypeBatch,
		SourceId:      batch.ID,
		Description:   desc + " on used stock",
	}
	if used.IsNegative() {
		pair.DebitAccount, pair.CreditAccount = models.AccountNameInventory, models.AccountNameCostOfGoodsSold
	}
	return append(pairs, pair)
}

// DeleteBatch retires a batch without erasing history: the batch, its shop stock and its
// distributions are soft-deleted and every posting they produced is reversed.
// A batch whose stock has already been sold, spoiled, converted or transferred cannot be deleted.
func DeleteBatch(ctx context.Context, id int) (*models.Batch, error) {
	var batch *models.Batch
	err := runLedgerTx(ctx, "DeleteBatch", func(l *ledgerTx) error {
		var err error
		batch, err = utils.FetchModelForUpdate[models.Batch](l.ctx, l.tx, "batch", id)
		if err != nil {
			return err
		}
		consumed, err := models.CountActiveConsumptionOfBatch(l.ctx, l.tx, batch.ID)
		if err != nil {
			return err
		}
		if consumed > 0 {
			return utils.StateConflictError(fmt.Sprintf("batch %s has stock consumed by %d movement line(s) and cannot be deleted", batch.BatchCode, consumed)).
				WithDetail("batch_code", batch.BatchCode)
		}

		db := l.tx.WithContext(l.ctx)
		var distributions []models.StockMovement
		if err := db.Where("batch_id = ? AND movement_type = ?", batch.ID, models.MovementTypeDistribution).
			Find(&distributions).Error; err != nil {
			return err
		}
		reason := "Batch " + batch.BatchCode + " deleted"
		for _, m := range distributions {
			if _, err := models.ReverseJournalEntries(l.ctx, l.tx, models.SourceTypeMovement, m.ID, reason); err != nil {
				return err
			}
		}
		if _, err := models.ReverseJournalEntries(l.ctx, l.tx, models.SourceTypeBatch, batch.ID, reason); err != nil {
			return err
		}

		if err := db.Model(&models.StockMovement{}).
			Where("batch_id = ? AND movement_type = ?", batch.ID, models.MovementTypeDistribution).
			Updates(map[string]interface{}{"status": models.MovementStatusVoided, "review_note": reason}).Error; err != nil {
			return err
		}
		if err := db.Where("batch_id = ?", batch.ID).Delete(&models.StockMovement{}).Error; err != nil {
			return err
		}
		if err := db.Where("batch_id = ?", batch.ID).Delete(&models.ShopStockEntry{}).Error; err != nil {
			return err
		}
		if err := db.Delete(batch).Error; err != nil {
			config.LogError(l.logger, "batchIntake.go", "DeleteBatch", "Delete batch", id, err)
			return err
		}
		l.emit(EventBatchDeleted, string(models.SourceTypeBatch), batch.ID, "", 0, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func GetBatch(ctx context.Context, id int) (*models.Batch, error) {
	return models.GetBatch(ctx, config.GetDB(), id)
}

func ListBatches(ctx context.Context, itemName *string) ([]models.Batch, error) {
	return models.ListBatches(ctx, config.GetDB(), itemName)
}

func BatchAvailability(ctx context.Context, itemName string) (*models.BatchAvailability, error) {
	return models.GetBatchAvailability(ctx, config.GetDB(), itemName)
}

// distributedQuantity is what has left the central store for shops.
func distributedQuantity(batch *models.Batch) decimal.Decimal {
	return batch.Quantity.Sub(batch.RemainingQuantity)
}
