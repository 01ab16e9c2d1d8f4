package workflow

import (
	"errors"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	msg := err.Error()
	// sqlite and postgres
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

// claimIdempotencyKey inserts the request key in the same transaction as the ledger change.
// A key already committed for the operation means the request was applied before; a failed
// attempt rolls its key back and may be retried.
func claimIdempotencyKey(l *ledgerTx, operation, requestKey string) error {
	key := models.IdempotencyKey{
		Operation:   operation,
		RequestKey:  requestKey,
		PerformedBy: l.actor,
	}
	err := l.tx.WithContext(l.ctx).Create(&key).Error
	if err == nil {
		return nil
	}
	if isDuplicateKeyErr(err) {
		return utils.StateConflictError(fmt.Sprintf("%s request %q was already applied", operation, requestKey)).
			WithDetail("idempotency_key", requestKey)
	}
	return err
}
