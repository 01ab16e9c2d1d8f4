package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	CheckBatchConservation = "batch_conservation"
	CheckJournalBalance    = "journal_balance"
	CheckNegativeStock     = "negative_stock"
	CheckBatchShopQuantity = "batch_shop_quantity"
)

// IntegrityFinding is one mismatch found by RunLedgerIntegrityChecks.
type IntegrityFinding struct {
	Check     string          `json:"check"`
	Reference string          `json:"reference"`
	Expected  decimal.Decimal `json:"expected"`
	Actual    decimal.Decimal `json:"actual"`
	Message   string          `json:"message"`
}

// RunLedgerIntegrityChecks is read-only. An empty sourceType checks every journal source.
func RunLedgerIntegrityChecks(ctx context.Context, db *gorm.DB, logger *logrus.Logger, sourceType models.SourceType) ([]IntegrityFinding, error) {
	var findings []IntegrityFinding

	batchFindings, err := checkBatchConservation(ctx, db)
	if err != nil {
		return nil, err
	}
	findings = append(findings, batchFindings...)

	journalFindings, err := checkJournalBalance(ctx, db, sourceType)
	if err != nil {
		return nil, err
	}
	findings = append(findings, journalFindings...)

	shopFindings, err := checkBatchShopQuantity(ctx, db)
	if err != nil {
		return nil, err
	}
	findings = append(findings, shopFindings...)

	stockFindings, err := checkNegativeStock(ctx, db)
	if err != nil {
		return nil, err
	}
	findings = append(findings, stockFindings...)

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":       "RunLedgerIntegrityChecks",
			"source_type": sourceType,
			"findings":    len(findings),
		}).Info("ledger integrity checks completed")
	}
	return findings, nil
}

// checkBatchConservation verifies quantity = remaining + distributed for every live batch.
func checkBatchConservation(ctx context.Context, db *gorm.DB) ([]IntegrityFinding, error) {
	var batches []models.Batch
	if err := db.WithContext(ctx).Order("id ASC").Find(&batches).Error; err != nil {
		return nil, err
	}
	var movements []models.StockMovement
	if err := db.WithContext(ctx).Select("batch_id", "quantity").
		Where("movement_type = ? AND status = ?", models.MovementTypeDistribution, models.MovementStatusCompleted).
		Find(&movements).Error; err != nil {
		return nil, err
	}
	moved := make(map[int]decimal.Decimal)
	for _, m := range movements {
		if m.BatchId != nil {
			moved[*m.BatchId] = moved[*m.BatchId].Add(m.Quantity)
		}
	}

	var findings []IntegrityFinding
	for i := range batches {
		b := &batches[i]
		if b.RemainingQuantity.IsNegative() || b.RemainingQuantity.GreaterThan(b.Quantity) {
			findings = append(findings, IntegrityFinding{
				Check:     CheckBatchConservation,
				Reference: b.BatchCode,
				Expected:  b.Quantity,
				Actual:    b.RemainingQuantity,
				Message:   "remaining quantity outside [0, quantity]",
			})
		}
		if distributed := distributedQuantity(b); !distributed.Equal(moved[b.ID]) {
			findings = append(findings, IntegrityFinding{
				Check:     CheckBatchConservation,
				Reference: b.BatchCode,
				Expected:  distributed,
				Actual:    moved[b.ID],
				Message:   "distribution movements do not account for quantity minus remaining",
			})
		}
	}
	return findings, nil
}

// checkBatchShopQuantity verifies that shops never account for more of a batch than was
// distributed: what they hold plus what left through sales, conversions and spoilages, less
// returns, must fit within quantity minus remaining.
func checkBatchShopQuantity(ctx context.Context, db *gorm.DB) ([]IntegrityFinding, error) {
	var batches []models.Batch
	if err := db.WithContext(ctx).Order("id ASC").Find(&batches).Error; err != nil {
		return nil, err
	}
	var entries []models.ShopStockEntry
	if err := db.WithContext(ctx).Select("batch_id", "item_name", "quantity").
		Where("batch_id IS NOT NULL").Find(&entries).Error; err != nil {
		return nil, err
	}
	lines, err := models.ListBatchShopLines(ctx, db)
	if err != nil {
		return nil, err
	}

	itemOf := make(map[int]string, len(batches))
	for _, b := range batches {
		itemOf[b.ID] = b.ItemName
	}
	accounted := make(map[int]decimal.Decimal)
	for _, e := range entries {
		if name, ok := itemOf[*e.BatchId]; ok && name == e.ItemName {
			accounted[*e.BatchId] = accounted[*e.BatchId].Add(e.Quantity)
		}
	}
	for _, line := range lines {
		switch {
		case line.MovementType == models.MovementTypeReturn:
			if line.Status == models.MovementStatusCompleted {
				accounted[line.BatchId] = accounted[line.BatchId].Sub(line.Quantity)
			}
		case line.Status != models.MovementStatusRejected &&
			line.Status != models.MovementStatusDeclined &&
			line.Status != models.MovementStatusVoided:
			accounted[line.BatchId] = accounted[line.BatchId].Add(line.Quantity)
		}
	}

	var findings []IntegrityFinding
	for i := range batches {
		b := &batches[i]
		if distributed := distributedQuantity(b); accounted[b.ID].GreaterThan(distributed) {
			findings = append(findings, IntegrityFinding{
				Check:     CheckBatchShopQuantity,
				Reference: b.BatchCode,
				Expected:  distributed,
				Actual:    accounted[b.ID],
				Message:   "shops account for more of the batch than was distributed",
			})
		}
	}
	return findings, nil
}

func checkJournalBalance(ctx context.Context, db *gorm.DB, sourceType models.SourceType) ([]IntegrityFinding, error) {
	entries, err := models.ListJournalEntries(ctx, db, sourceType, 0)
	if err != nil {
		return nil, err
	}
	type sourceKey struct {
		sourceType models.SourceType
		sourceId   int
	}
	bySource := make(map[sourceKey][]models.JournalEntry)
	var order []sourceKey
	for _, e := range entries {
		key := sourceKey{e.SourceType, e.SourceId}
		if _, ok := bySource[key]; !ok {
			order = append(order, key)
		}
		bySource[key] = append(bySource[key], e)
	}

	var findings []IntegrityFinding
	for _, key := range order {
		debits, credits := models.SumJournalSides(bySource[key])
		if !debits.Equal(credits) {
			findings = append(findings, IntegrityFinding{
				Check:     CheckJournalBalance,
				Reference: fmt.Sprintf("%s#%d", key.sourceType, key.sourceId),
				Expected:  debits,
				Actual:    credits,
				Message:   "debits and credits differ",
			})
		}
	}
	return findings, nil
}

func checkNegativeStock(ctx context.Context, db *gorm.DB) ([]IntegrityFinding, error) {
	var entries []models.ShopStockEntry
	if err := db.WithContext(ctx).Where("quantity < 0 OR total_cost < 0").Find(&entries).Error; err != nil {
		return nil, err
	}
	findings := make([]IntegrityFinding, 0, len(entries))
	for _, e := range entries {
		findings = append(findings, IntegrityFinding{
			Check:     CheckNegativeStock,
			Reference: fmt.Sprintf("shop_stock_entry#%d", e.ID),
			Expected:  decimal.Zero,
			Actual:    e.Quantity,
			Message:   fmt.Sprintf("negative quantity or cost (quantity %s, total_cost %s)", e.Quantity, e.TotalCost),
		})
	}
	return findings, nil
}
