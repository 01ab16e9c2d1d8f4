package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Sale struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ShopId       int             `gorm:"not null;index" json:"shop_id"`
	CustomerName string          `gorm:"size:100" json:"customer_name"`
	CreditorId   *int            `gorm:"index" json:"creditor_id"`
	SaleDate     time.Time       `gorm:"not null;index" json:"sale_date"`
	TotalPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	AmountPaid   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_paid"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	CostTotal    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_total"`
	Status       SaleStatus      `gorm:"size:20;not null;index" json:"status"`
	PerformedBy  string          `gorm:"size:100" json:"performed_by"`
	LineItems    []SaleLineItem  `gorm:"foreignKey:SaleId" json:"line_items"`
	Payments     []SalePayment   `gorm:"foreignKey:SaleId" json:"payments"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleLineItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	SaleId           int             `gorm:"not null;index" json:"sale_id"`
	ShopStockEntryId int             `gorm:"not null;index" json:"shop_stock_entry_id"`
	BatchId          *int            `gorm:"index" json:"batch_id"`
	BatchCode        string          `gorm:"size:255" json:"batch_code"`
	ItemName         string          `gorm:"size:100;not null" json:"item_name"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TotalPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CostTotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_total"`
}

type SalePayment struct {
	ID        int             `gorm:"primary_key" json:"id"`
	SaleId    int             `gorm:"not null;index" json:"sale_id"`
	Method    PaymentMethod   `gorm:"size:20;not null" json:"method"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Reference string          `gorm:"size:100" json:"reference"`
}

type NewSale struct {
	ShopId       int              `json:"shop_id" validate:"required,gt=0"`
	CustomerName string           `json:"customer_name" validate:"max=100"`
	CreditorId   *int             `json:"creditor_id" validate:"omitempty,gt=0"`
	SaleDate     string           `json:"sale_date"`
	Items        []NewSaleLine    `json:"items" validate:"required,min=1,dive"`
	Payments     []NewSalePayment `json:"payments" validate:"dive"`
}

type NewSaleLine struct {
	ShopStockEntryId int              `json:"shop_stock_entry_id" validate:"required,gt=0"`
	Quantity         decimal.Decimal  `json:"quantity" validate:"gt=0,max_scale=4"`
	UnitPrice        *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0,max_scale=4"`
}

type NewSalePayment struct {
	Method    PaymentMethod   `json:"method" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0,max_scale=4"`
	Reference string          `json:"reference" validate:"max=100"`
}

// ComputeSaleStatus applies the payment rule: anything paid up to or above the total is paid,
// nothing paid is unpaid, and everything in between is partially paid.
func ComputeSaleStatus(totalPrice decimal.Decimal, amountPaid decimal.Decimal) SaleStatus {
	switch {
	case amountPaid.Sub(totalPrice).GreaterThanOrEqual(decimal.Zero):
		return SaleStatusPaid
	case amountPaid.IsZero():
		return SaleStatusUnpaid
	default:
		return SaleStatusPartiallyPaid
	}
}
