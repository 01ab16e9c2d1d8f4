package models

import (
	"log"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
)

// AllModels lists every table the ledger owns, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&Shop{}, &Account{},
		&BatchSequence{}, &Batch{},
		&ShopStockEntry{}, &LiveStock{},
		&StockMovement{}, &StockMovementLine{},
		&Sale{}, &SaleLineItem{}, &SalePayment{},
		&JournalEntry{}, &IdempotencyKey{},
	}
}

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(AllModels()...)
	if err != nil {
		log.Fatal(err)
	}
}
