package models

import (
	"encoding/json"
	"errors"
)

type MovementType string

const (
	MovementTypeDistribution MovementType = "distribution"
	MovementTypeSale         MovementType = "sale"
	MovementTypeConversion   MovementType = "conversion"
	MovementTypeSpoilage     MovementType = "spoilage"
	MovementTypeTransfer     MovementType = "transfer"
	MovementTypeReturn       MovementType = "return"
	MovementTypeManual       MovementType = "manual"
)

func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeDistribution, MovementTypeSale, MovementTypeConversion, MovementTypeSpoilage,
		MovementTypeTransfer, MovementTypeReturn, MovementTypeManual:
		return true
	}
	return false
}

type MovementStatus string

const (
	MovementStatusCompleted MovementStatus = "completed"
	MovementStatusPending   MovementStatus = "pending"
	MovementStatusApproved  MovementStatus = "approved"
	MovementStatusRejected  MovementStatus = "rejected"
	MovementStatusAccepted  MovementStatus = "accepted"
	MovementStatusDeclined  MovementStatus = "declined"
	MovementStatusVoided    MovementStatus = "voided"
)

// LineSource says which quantity pool a movement line was drawn from.
type LineSource string

const (
	LineSourceShopStock LineSource = "shop_stock"
	LineSourceLiveStock LineSource = "live_stock"
)

type SaleStatus string

const (
	SaleStatusPaid          SaleStatus = "paid"
	SaleStatusPartiallyPaid SaleStatus = "partially_paid"
	SaleStatusUnpaid        SaleStatus = "unpaid"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
)

func (m *PaymentMethod) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("payment method must be string")
	}
	switch PaymentMethod(str) {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodMobileMoney:
		*m = PaymentMethod(str)
	default:
		return errors.New("invalid payment method")
	}
	return nil
}

type JournalType string

const (
	JournalTypeSales        JournalType = "sales"
	JournalTypeCreditSales  JournalType = "credit_sales"
	JournalTypePurchase     JournalType = "purchase"
	JournalTypeDistribution JournalType = "distribution"
	JournalTypeSpoilage     JournalType = "spoilage"
	JournalTypeBankTransfer JournalType = "bank_transfer"
	JournalTypeTransfer     JournalType = "transfer"
	JournalTypeCogs         JournalType = "cogs"
	JournalTypeReturn       JournalType = "return"
	JournalTypeRevaluation  JournalType = "revaluation"
)

// SourceType names the business record a journal entry was posted for.
type SourceType string

const (
	SourceTypeBatch    SourceType = "batch"
	SourceTypeMovement SourceType = "movement"
	SourceTypeTransfer SourceType = "transfer"
	SourceTypeSale     SourceType = "sale"
)

type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

// Chart of Accounts names the posting engine looks up.
const (
	AccountNameCashAndBank        = "Cash & Bank"
	AccountNameRevenue            = "Revenue"
	AccountNameAccountsReceivable = "Accounts Receivable"
	AccountNameAccountsPayable    = "Accounts Payable"
	AccountNameInventory          = "Inventory"
	AccountNameSpoilageExpense    = "Spoilage Expense"
	AccountNameCostOfGoodsSold    = "Cost of Goods Sold"
)
