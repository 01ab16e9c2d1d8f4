package models_test

import (
	"encoding/json"
	"testing"

	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShopStockEntryCostOf(t *testing.T) {
	entry := models.ShopStockEntry{Quantity: decimal.NewFromInt(3), TotalCost: decimal.NewFromInt(10)}

	// A partial take is priced at total/quantity, rounded to 4 places.
	assert.Equal(t, "3.3333", entry.CostOf(decimal.NewFromInt(1)).String())
	// Taking everything returns the full remaining cost so nothing is stranded.
	assert.True(t, entry.CostOf(decimal.NewFromInt(3)).Equal(decimal.NewFromInt(10)))

	empty := models.ShopStockEntry{}
	assert.True(t, empty.CostOf(decimal.NewFromInt(1)).IsZero())
	_, ok := empty.UnitCost()
	assert.False(t, ok)
}

func TestComputeSaleStatus(t *testing.T) {
	total := decimal.NewFromInt(60)
	assert.Equal(t, models.SaleStatusPaid, models.ComputeSaleStatus(total, decimal.NewFromInt(60)))
	assert.Equal(t, models.SaleStatusPaid, models.ComputeSaleStatus(total, decimal.NewFromInt(75)))
	assert.Equal(t, models.SaleStatusPartiallyPaid, models.ComputeSaleStatus(total, decimal.NewFromInt(1)))
	assert.Equal(t, models.SaleStatusUnpaid, models.ComputeSaleStatus(total, decimal.Zero))
	assert.Equal(t, models.SaleStatusPaid, models.ComputeSaleStatus(decimal.Zero, decimal.Zero))
}

func TestPaymentMethodUnmarshal(t *testing.T) {
	var payment models.NewSalePayment
	require.NoError(t, json.Unmarshal([]byte(`{"method":"mobile_money","amount":"20"}`), &payment))
	assert.Equal(t, models.PaymentMethodMobileMoney, payment.Method)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(20)))

	assert.Error(t, json.Unmarshal([]byte(`{"method":"cheque"}`), &payment))
	assert.Error(t, json.Unmarshal([]byte(`{"method":3}`), &payment))
}

func TestMovementTypeIsValid(t *testing.T) {
	assert.True(t, models.MovementTypeSpoilage.IsValid())
	assert.False(t, models.MovementType("theft").IsValid())
}
