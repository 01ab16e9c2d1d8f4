package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"gorm.io/gorm"
)

var errDryRun = errors.New("dry run")

func main() {
	migrate := flag.Bool("migrate", false, "Run AutoMigrate for every ledger table before seeding")
	dryRun := flag.Bool("dry-run", false, "Report which accounts would be created, then roll back")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
		fmt.Println("migrations applied")
	}

	created := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = models.SeedChartOfAccounts(context.Background(), tx)
		if err != nil {
			return err
		}
		if *dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		fmt.Fprintf(os.Stderr, "seed chart of accounts failed: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Printf("[dry-run] %d of %d default accounts would be created\n", created, len(models.DefaultChartOfAccounts))
		return
	}
	fmt.Printf("chart of accounts seeded: %d created, %d already present\n", created, len(models.DefaultChartOfAccounts)-created)
}
