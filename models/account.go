package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"gorm.io/gorm"
)

// Account is a Chart of Accounts row. Postings look accounts up by name.
type Account struct {
	ID          int         `gorm:"primary_key" json:"id"`
	Name        string      `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Code        string      `gorm:"size:20;index" json:"code"`
	AccountType AccountType `gorm:"size:20;not null;index" json:"account_type"`
	Description string      `gorm:"type:text" json:"description"`
	IsActive    *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Name        string      `json:"name" validate:"required,max=100"`
	Code        string      `json:"code" validate:"max=20"`
	AccountType AccountType `json:"account_type" validate:"required,oneof=asset liability equity income expense"`
	Description string      `json:"description"`
}

// DefaultChartOfAccounts is every account the posting rules reference.
var DefaultChartOfAccounts = []NewAccount{
	{Name: AccountNameCashAndBank, Code: "1000", AccountType: AccountTypeAsset, Description: "Cash drawers and bank balances"},
	{Name: AccountNameAccountsReceivable, Code: "1100", AccountType: AccountTypeAsset, Description: "Outstanding customer balances"},
	{Name: AccountNameInventory, Code: "1200", AccountType: AccountTypeAsset, Description: "Stock at cost, central and per shop"},
	{Name: AccountNameAccountsPayable, Code: "2000", AccountType: AccountTypeLiability, Description: "Unpaid supplier balances"},
	{Name: AccountNameRevenue, Code: "4000", AccountType: AccountTypeIncome, Description: "Sales revenue"},
	{Name: AccountNameCostOfGoodsSold, Code: "5000", AccountType: AccountTypeExpense, Description: "Cost of stock sold"},
	{Name: AccountNameSpoilageExpense, Code: "5100", AccountType: AccountTypeExpense, Description: "Approved spoilage written off"},
}

func accountCacheKey(name string) string {
	return "Account:" + name
}

func CreateAccount(ctx context.Context, tx *gorm.DB, input *NewAccount) (*Account, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[Account](ctx, tx, "name = ?", input.Name)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.FieldError("name", "already exists")
	}
	account := Account{
		Name:        input.Name,
		Code:        input.Code,
		AccountType: input.AccountType,
		Description: input.Description,
		IsActive:    utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	if err := config.RemoveRedisKey(accountCacheKey(account.Name)); err != nil {
		config.LogError(config.GetLogger(), "account.go", "CreateAccount", "RemoveRedisKey", account.Name, err)
	}
	return &account, nil
}

// SeedChartOfAccounts creates whichever default accounts are missing and reports how many it created.
func SeedChartOfAccounts(ctx context.Context, tx *gorm.DB) (int, error) {
	created := 0
	for i := range DefaultChartOfAccounts {
		input := DefaultChartOfAccounts[i]
		count, err := utils.ResourceCountWhere[Account](ctx, tx, "name = ?", input.Name)
		if err != nil {
			return created, err
		}
		if count > 0 {
			continue
		}
		if _, err := CreateAccount(ctx, tx, &input); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func ListAccounts(ctx context.Context, db *gorm.DB) ([]Account, error) {
	var accounts []Account
	err := db.WithContext(ctx).Order("code ASC, id ASC").Find(&accounts).Error
	return accounts, err
}

// GetAccountIdByName resolves an active account by name, through the redis cache when present.
// A missing account is a ConfigurationError: postings must never be skipped or unbalanced.
func GetAccountIdByName(ctx context.Context, tx *gorm.DB, name string) (int, error) {
	var accountId int
	exists, err := config.GetRedisObject(accountCacheKey(name), &accountId)
	if err != nil {
		config.LogError(config.GetLogger(), "account.go", "GetAccountIdByName", "GetRedisObject", name, err)
	}
	if exists && accountId > 0 {
		return accountId, nil
	}

	var account Account
	err = tx.WithContext(ctx).Select("id").
		Where("name = ? AND is_active = ?", name, true).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, utils.ConfigurationError(fmt.Sprintf("chart of accounts has no active account named %q", name)).
			WithDetail("account", name)
	}
	if err != nil {
		return 0, err
	}
	if err := config.SetRedisObject(accountCacheKey(name), account.ID, time.Hour); err != nil {
		config.LogError(config.GetLogger(), "account.go", "GetAccountIdByName", "SetRedisObject", name, err)
	}
	return account.ID, nil
}
