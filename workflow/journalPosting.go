package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// JournalPayload is what a sale posted to the ledger.
type JournalPayload struct {
	SaleId  int                   `json:"sale_id"`
	Status  models.SaleStatus     `json:"status"`
	Entries []models.JournalEntry `json:"entries"`
	Debits  decimal.Decimal       `json:"debits"`
	Credits decimal.Decimal       `json:"credits"`
}

type JournalBalanceResult struct {
	SourceType models.SourceType     `json:"source_type"`
	SourceId   int                   `json:"source_id"`
	Debits     decimal.Decimal       `json:"debits"`
	Credits    decimal.Decimal       `json:"credits"`
	Balanced   bool                  `json:"balanced"`
	Entries    []models.JournalEntry `json:"entries"`
}

// purchasePairs books a batch intake: the paid part against Cash & Bank, the rest on credit.
func purchasePairs(batch *models.Batch) []models.JournalPair {
	desc := "Purchase " + batch.BatchCode
	return []models.JournalPair{
		{
			JournalType:   models.JournalTypePurchase,
			DebitAccount:  models.AccountNameInventory,
			CreditAccount: models.AccountNameCashAndBank,
			Amount:        batch.AmountPaid,
			SourceType:    models.SourceTypeBatch,
			SourceId:      batch.ID,
			Description:   desc,
		},
		{
			JournalType:   models.JournalTypePurchase,
			DebitAccount:  models.AccountNameInventory,
			CreditAccount: models.AccountNameAccountsPayable,
			Amount:        batch.Balance,
			SourceType:    models.SourceTypeBatch,
			SourceId:      batch.ID,
			Description:   desc,
		},
	}
}

// distributionPair moves inventory value from the central store (no shop) to the destination shop.
func distributionPair(m *models.StockMovement) models.JournalPair {
	return models.JournalPair{
		JournalType:   models.JournalTypeDistribution,
		DebitAccount:  models.AccountNameInventory,
		CreditAccount: models.AccountNameInventory,
		Amount:        m.TotalCost,
		SourceType:    models.SourceTypeMovement,
		SourceId:      m.ID,
		DebitShopId:   m.ToShopId,
		Description:   fmt.Sprintf("Distribution of %s %s", m.Quantity, m.BatchCode),
	}
}

func transferPair(m *models.StockMovement) models.JournalPair {
	return models.JournalPair{
		JournalType:   models.JournalTypeTransfer,
		DebitAccount:  models.AccountNameInventory,
		CreditAccount: models.AccountNameInventory,
		Amount:        m.TotalCost,
		SourceType:    models.SourceTypeTransfer,
		SourceId:      m.ID,
		DebitShopId:   m.ToShopId,
		CreditShopId:  m.FromShopId,
		Description:   fmt.Sprintf("Transfer of %s %s", m.Quantity, m.ItemName),
	}
}

func spoilagePair(m *models.StockMovement) models.JournalPair {
	return models.JournalPair{
		JournalType:   models.JournalTypeSpoilage,
		DebitAccount:  models.AccountNameSpoilageExpense,
		CreditAccount: models.AccountNameInventory,
		Amount:        m.TotalCost,
		SourceType:    models.SourceTypeMovement,
		SourceId:      m.ID,
		DebitShopId:   m.FromShopId,
		CreditShopId:  m.FromShopId,
		Description:   fmt.Sprintf("Spoilage of %s %s", m.Quantity, m.ItemName),
	}
}

func cogsPair(m *models.StockMovement, sourceType models.SourceType, sourceId int) models.JournalPair {
	return models.JournalPair{
		JournalType:   models.JournalTypeCogs,
		DebitAccount:  models.AccountNameCostOfGoodsSold,
		CreditAccount: models.AccountNameInventory,
		Amount:        m.TotalCost,
		SourceType:    sourceType,
		SourceId:      sourceId,
		DebitShopId:   m.FromShopId,
		CreditShopId:  m.FromShopId,
		Description:   fmt.Sprintf("Cost of %s %s sold", m.Quantity, m.ItemName),
	}
}

func returnPair(m *models.StockMovement) models.JournalPair {
	return models.JournalPair{
		JournalType:   models.JournalTypeReturn,
		DebitAccount:  models.AccountNameInventory,
		CreditAccount: models.AccountNameCostOfGoodsSold,
		Amount:        m.TotalCost,
		SourceType:    models.SourceTypeMovement,
		SourceId:      m.ID,
		DebitShopId:   m.ToShopId,
		CreditShopId:  m.ToShopId,
		Description:   fmt.Sprintf("Return of %s %s", m.Quantity, m.ItemName),
	}
}

// shopPurchasePair books stock bought directly by a shop outside the batch process.
func shopPurchasePair(m *models.StockMovement) models.JournalPair {
	return models.JournalPair{
		JournalType:   models.JournalTypePurchase,
		DebitAccount:  models.AccountNameInventory,
		CreditAccount: models.AccountNameCashAndBank,
		Amount:        m.TotalCost,
		SourceType:    models.SourceTypeMovement,
		SourceId:      m.ID,
		DebitShopId:   m.ToShopId,
		Description:   fmt.Sprintf("Shop purchase of %s %s", m.Quantity, m.ItemName),
	}
}

func paymentJournalType(method models.PaymentMethod) models.JournalType {
	if method == models.PaymentMethodCash {
		return models.JournalTypeSales
	}
	return models.JournalTypeBankTransfer
}

// SaleJournalPairs derives the revenue side of a sale from its payment status:
// collected money debits Cash & Bank per payment (capped at what is owed), and whatever is
// still outstanding debits Accounts Receivable. Each line also moves its cost to COGS.
func SaleJournalPairs(sale *models.Sale, lines []models.SaleLineItem, shopId int, creditorId *int) []models.JournalPair {
	shop := shopId
	desc := fmt.Sprintf("Sale #%d", sale.ID)
	if creditorId != nil {
		desc = fmt.Sprintf("%s (creditor #%d)", desc, *creditorId)
	}
	base := models.JournalPair{
		CreditAccount: models.AccountNameRevenue,
		SourceType:    models.SourceTypeSale,
		SourceId:      sale.ID,
		DebitShopId:   &shop,
		CreditShopId:  &shop,
		Description:   desc,
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.TotalPrice)
	}
	status := models.ComputeSaleStatus(total, sale.AmountPaid)

	var pairs []models.JournalPair
	collectible := total
	if status != models.SaleStatusPaid {
		collectible = sale.AmountPaid
	}
	remaining := collectible
	for _, payment := range sale.Payments {
		if !remaining.IsPositive() {
			break
		}
		amount := decimal.Min(payment.Amount, remaining)
		pair := base
		pair.JournalType = paymentJournalType(payment.Method)
		pair.DebitAccount = models.AccountNameCashAndBank
		pair.Amount = amount
		pairs = append(pairs, pair)
		remaining = remaining.Sub(amount)
	}
	if remaining.IsPositive() {
		pair := base
		pair.JournalType = models.JournalTypeSales
		pair.DebitAccount = models.AccountNameCashAndBank
		pair.Amount = remaining
		pairs = append(pairs, pair)
	}

	if outstanding := total.Sub(collectible); outstanding.IsPositive() {
		pair := base
		pair.JournalType = models.JournalTypeCreditSales
		pair.DebitAccount = models.AccountNameAccountsReceivable
		pair.Amount = outstanding
		pairs = append(pairs, pair)
	}

	for _, line := range lines {
		pairs = append(pairs, models.JournalPair{
			JournalType:   models.JournalTypeCogs,
			DebitAccount:  models.AccountNameCostOfGoodsSold,
			CreditAccount: models.AccountNameInventory,
			Amount:        line.CostTotal,
			SourceType:    models.SourceTypeSale,
			SourceId:      sale.ID,
			DebitShopId:   &shop,
			CreditShopId:  &shop,
			Description:   fmt.Sprintf("%s cost of %s %s", desc, line.Quantity, line.ItemName),
		})
	}
	return pairs
}

// PostSaleJournal posts every pair of a sale inside tx.
func PostSaleJournal(ctx context.Context, tx *gorm.DB, sale *models.Sale, lines []models.SaleLineItem, shopId int, creditorId *int) (*JournalPayload, error) {
	pairs := SaleJournalPairs(sale, lines, shopId, creditorId)
	entries, err := models.PostJournalPairs(ctx, tx, pairs)
	if err != nil {
		config.LogError(config.GetLogger(), "journalPosting.go", "PostSaleJournal", "PostJournalPairs", sale.ID, err)
		return nil, err
	}
	debits, credits := models.SumJournalSides(entries)
	return &JournalPayload{
		SaleId:  sale.ID,
		Status:  sale.Status,
		Entries: entries,
		Debits:  debits,
		Credits: credits,
	}, nil
}

// JournalBalance reports the debit and credit totals posted for one source record.
func JournalBalance(ctx context.Context, sourceType models.SourceType, sourceId int) (*JournalBalanceResult, error) {
	entries, err := models.ListJournalEntries(ctx, config.GetDB(), sourceType, sourceId)
	if err != nil {
		return nil, err
	}
	debits, credits := models.SumJournalSides(entries)
	return &JournalBalanceResult{
		SourceType: sourceType,
		SourceId:   sourceId,
		Debits:     debits,
		Credits:    credits,
		Balanced:   debits.Equal(credits),
		Entries:    entries,
	}, nil
}

// ReverseJournal appends reversing pairs for every active posting of a source.
func ReverseJournal(ctx context.Context, sourceType models.SourceType, sourceId int, reason string) ([]models.JournalEntry, error) {
	var reversals []models.JournalEntry
	err := runLedgerTx(ctx, "ReverseJournal", func(l *ledgerTx) error {
		var err error
		reversals, err = models.ReverseJournalEntries(l.ctx, l.tx, sourceType, sourceId, reason)
		if err != nil {
			return err
		}
		if len(reversals) > 0 {
			l.emit(EventJournalReversed, string(sourceType), sourceId, reversals[0].GroupId, 0, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversals, nil
}
