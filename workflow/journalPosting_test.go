package workflow_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func saleWithPayments(paid ...models.SalePayment) (*models.Sale, []models.SaleLineItem) {
	lines := []models.SaleLineItem{
		{ItemName: "Eggs", Quantity: dec(4), TotalPrice: dec(80), CostTotal: dec(40)},
		{ItemName: "Bread", Quantity: dec(1), TotalPrice: dec(20), CostTotal: dec(12)},
	}
	sale := &models.Sale{ID: 11, Payments: paid}
	for _, p := range paid {
		sale.AmountPaid = sale.AmountPaid.Add(p.Amount)
	}
	return sale, lines
}

func sumPairs(pairs []models.JournalPair) map[models.JournalType]decimal.Decimal {
	sums := map[models.JournalType]decimal.Decimal{}
	for _, p := range pairs {
		sums[p.JournalType] = sums[p.JournalType].Add(p.Amount)
	}
	return sums
}

func TestSaleJournalPairs(t *testing.T) {
	cases := []struct {
		name     string
		payments []models.SalePayment
		want     map[models.JournalType]int64
	}{
		{
			name:     "paid in cash",
			payments: []models.SalePayment{{Method: models.PaymentMethodCash, Amount: dec(100)}},
			want:     map[models.JournalType]int64{models.JournalTypeSales: 100, models.JournalTypeCogs: 52},
		},
		{
			name:     "overpaid is capped at the total",
			payments: []models.SalePayment{{Method: models.PaymentMethodCash, Amount: dec(120)}},
			want:     map[models.JournalType]int64{models.JournalTypeSales: 100, models.JournalTypeCogs: 52},
		},
		{
			name: "split cash and mobile money",
			payments: []models.SalePayment{
				{Method: models.PaymentMethodCash, Amount: dec(30)},
				{Method: models.PaymentMethodMobileMoney, Amount: dec(70)},
			},
			want: map[models.JournalType]int64{models.JournalTypeSales: 30, models.JournalTypeBankTransfer: 70, models.JournalTypeCogs: 52},
		},
		{
			name:     "partially paid",
			payments: []models.SalePayment{{Method: models.PaymentMethodBankTransfer, Amount: dec(25)}},
			want:     map[models.JournalType]int64{models.JournalTypeBankTransfer: 25, models.JournalTypeCreditSales: 75, models.JournalTypeCogs: 52},
		},
		{
			name: "unpaid",
			want: map[models.JournalType]int64{models.JournalTypeCreditSales: 100, models.JournalTypeCogs: 52},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sale, lines := saleWithPayments(c.payments...)
			pairs := workflow.SaleJournalPairs(sale, lines, 3, nil)

			sums := sumPairs(pairs)
			assert.Len(t, sums, len(c.want))
			for journalType, amount := range c.want {
				assert.True(t, dec(amount).Equal(sums[journalType]), "%s: want %d, got %s", journalType, amount, sums[journalType])
			}
			for _, p := range pairs {
				assert.Equal(t, models.SourceTypeSale, p.SourceType)
				assert.Equal(t, 11, p.SourceId)
				assert.NotEqual(t, p.DebitAccount, p.CreditAccount)
			}
		})
	}
}

func TestSaleJournalPairs_CreditorInDescription(t *testing.T) {
	sale, lines := saleWithPayments()
	creditor := 42
	pairs := workflow.SaleJournalPairs(sale, lines, 3, &creditor)
	for _, p := range pairs {
		assert.Contains(t, p.Description, "creditor #42")
		assert.Equal(t, 3, *p.DebitShopId)
	}
}
