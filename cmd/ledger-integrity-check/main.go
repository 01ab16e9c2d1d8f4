package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/workflow"
)

func main() {
	sourceType := flag.String("source-type", "", "Optional: only check journals of this source type (batch, movement, transfer, sale)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	findings, err := workflow.RunLedgerIntegrityChecks(context.Background(), db, config.GetLogger(),
		models.SourceType(strings.TrimSpace(*sourceType)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "integrity check failed: %v\n", err)
		os.Exit(1)
	}

	if findings == nil {
		findings = []workflow.IntegrityFinding{}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(findings); err != nil {
		fmt.Fprintf(os.Stderr, "encode findings: %v\n", err)
		os.Exit(1)
	}
	if len(findings) > 0 {
		os.Exit(2)
	}
}
