package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"bitbucket.org/mmdatafocus/shopledger_backend/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ledgerFixture is a migrated in-memory ledger with the default chart of accounts and two shops.
type ledgerFixture struct {
	ctx   context.Context
	db    *gorm.DB
	shopA *models.Shop
	shopB *models.Shop
}

func setupLedger(t *testing.T) *ledgerFixture {
	t.Helper()
	return setupLedgerWithAccounts(t, true)
}

func setupLedgerWithAccounts(t *testing.T, seedAccounts bool) *ledgerFixture {
	t.Helper()
	// Unique in-memory database per test; one connection keeps every statement on it.
	dsn := "file:" + strings.ReplaceAll(uuid.NewString(), "-", "") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), config.InitConfig())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	config.SetDB(db)
	config.SetRedisDB(nil)

	ctx := utils.SetUserNameInContext(context.Background(), "test@local")
	if seedAccounts {
		if err := db.Transaction(func(tx *gorm.DB) error {
			_, err := models.SeedChartOfAccounts(ctx, tx)
			return err
		}); err != nil {
			t.Fatalf("SeedChartOfAccounts: %v", err)
		}
	}

	shopA, err := models.CreateShop(ctx, &models.NewShop{Name: "Market Stall", Location: "Gikomba"})
	if err != nil {
		t.Fatalf("CreateShop A: %v", err)
	}
	shopB, err := models.CreateShop(ctx, &models.NewShop{Name: "Corner Kiosk", Location: "Kawangware"})
	if err != nil {
		t.Fatalf("CreateShop B: %v", err)
	}
	return &ledgerFixture{ctx: ctx, db: db, shopA: shopA, shopB: shopB}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func requireDecimal(t *testing.T, want int64, got decimal.Decimal, what string) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "%s: want %d, got %s", what, want, got)
}

// createBatch books a fully paid batch of qty units at unitCost.
func (f *ledgerFixture) createBatch(t *testing.T, item string, qty, unitCost int64, intakeDate string) *models.Batch {
	t.Helper()
	batch, err := workflow.CreateBatch(f.ctx, &models.NewBatch{
		ItemName:         item,
		Quantity:         dec(qty),
		Metric:           "pcs",
		UnitCost:         dec(unitCost),
		UnitPrice:        dec(unitCost * 2),
		AmountPaid:       dec(qty * unitCost),
		SupplierName:     "Mama Njeri",
		SupplierLocation: "Kiambu",
		IntakeDate:       intakeDate,
	})
	if err != nil {
		t.Fatalf("CreateBatch %s: %v", item, err)
	}
	return batch
}

func (f *ledgerFixture) distribute(t *testing.T, batch *models.Batch, shop *models.Shop, qty int64) *workflow.DistributionResult {
	t.Helper()
	res, err := workflow.Distribute(f.ctx, &workflow.DistributeInput{BatchId: batch.ID, ShopId: shop.ID, Quantity: dec(qty)})
	if err != nil {
		t.Fatalf("Distribute %s -> shop %d: %v", batch.BatchCode, shop.ID, err)
	}
	return res
}

func (f *ledgerFixture) shopEntries(t *testing.T, shop *models.Shop, item string) []models.ShopStockEntry {
	t.Helper()
	entries, err := workflow.ListShopStock(f.ctx, shop.ID, &item)
	if err != nil {
		t.Fatalf("ListShopStock: %v", err)
	}
	return entries
}

func (f *ledgerFixture) shopQuantity(t *testing.T, shop *models.Shop, item string) decimal.Decimal {
	t.Helper()
	return models.SumQuantity(f.shopEntries(t, shop, item))
}

func (f *ledgerFixture) reloadBatch(t *testing.T, id int) *models.Batch {
	t.Helper()
	batch, err := workflow.GetBatch(f.ctx, id)
	if err != nil {
		t.Fatalf("GetBatch %d: %v", id, err)
	}
	return batch
}

// requireLedgerIntact runs the read-only integrity checks and fails on any finding.
func (f *ledgerFixture) requireLedgerIntact(t *testing.T) {
	t.Helper()
	findings, err := workflow.RunLedgerIntegrityChecks(f.ctx, f.db, nil, "")
	if err != nil {
		t.Fatalf("RunLedgerIntegrityChecks: %v", err)
	}
	require.Empty(t, findings)
}

func requireAppError(t *testing.T, err error, target *utils.AppError) *utils.AppError {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, target), "want %s, got %v", target.Code, err)
	return utils.AsAppError(err)
}

// accountNet is debits minus credits posted to an account, restricted to one shop or, with a nil
// shop, to the central store and business-wide rows.
func (f *ledgerFixture) accountNet(t *testing.T, account string, shop *models.Shop) decimal.Decimal {
	t.Helper()
	return f.sumAccount(t, account, func(e models.JournalEntry) bool {
		if shop == nil {
			return e.ShopId == nil
		}
		return e.ShopId != nil && *e.ShopId == shop.ID
	})
}

// accountTotal is accountNet across every shop and the central store.
func (f *ledgerFixture) accountTotal(t *testing.T, account string) decimal.Decimal {
	t.Helper()
	return f.sumAccount(t, account, func(models.JournalEntry) bool { return true })
}

func (f *ledgerFixture) sumAccount(t *testing.T, account string, keep func(models.JournalEntry) bool) decimal.Decimal {
	t.Helper()
	accountId, err := models.GetAccountIdByName(f.ctx, f.db, account)
	if err != nil {
		t.Fatalf("GetAccountIdByName %s: %v", account, err)
	}
	entries, err := models.ListJournalEntries(f.ctx, f.db, "", 0)
	if err != nil {
		t.Fatalf("ListJournalEntries: %v", err)
	}
	net := decimal.Zero
	for _, e := range entries {
		if !keep(e) {
			continue
		}
		if e.DebitAccountId != nil && *e.DebitAccountId == accountId {
			net = net.Add(e.Amount)
		}
		if e.CreditAccountId != nil && *e.CreditAccountId == accountId {
			net = net.Sub(e.Amount)
		}
	}
	return net
}
