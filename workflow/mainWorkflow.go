package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("shopledger/workflow")

// ledgerTx collects what a ledger transaction did so it can be reported once it commits.
type ledgerTx struct {
	ctx       context.Context
	tx        *gorm.DB
	logger    *logrus.Logger
	actor     string
	events    []config.LedgerEventMessage
	movements []models.MovementType
	journals  []models.JournalType
}

func (l *ledgerTx) recordMovement(m *models.StockMovement) {
	l.movements = append(l.movements, m.MovementType)
}

func (l *ledgerTx) postPairs(pairs ...models.JournalPair) ([]models.JournalEntry, error) {
	entries, err := models.PostJournalPairs(l.ctx, l.tx, pairs)
	if err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(entries); i += 2 {
		l.journals = append(l.journals, entries[i].JournalType)
	}
	return entries, nil
}

// runLedgerTx runs fn inside one database transaction under a tracing span.
// Metrics and ledger events are emitted only after commit.
func runLedgerTx(ctx context.Context, operation string, fn func(l *ledgerTx) error) error {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "workflow."+operation)
	defer span.End()

	logger := config.GetLogger()
	l := &ledgerTx{
		ctx:    ctx,
		logger: logger,
		actor:  utils.GetActorFromContext(ctx),
	}
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l.tx = tx
		if key, ok := utils.GetIdempotencyKeyFromContext(ctx); ok && key != "" {
			if err := claimIdempotencyKey(l, operation, key); err != nil {
				return err
			}
		}
		return fn(l)
	})
	if err != nil {
		outcome := utils.AsAppError(err).Code
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("ledger.error_code", outcome))
		observeOperation(operation, outcome, started)
		var appErr *utils.AppError
		if !errors.As(err, &appErr) || appErr.HTTPStatus >= 500 {
			config.LogError(logger, "mainWorkflow.go", operation, "Transaction", nil, err)
		}
		return err
	}

	observeOperation(operation, "ok", started)
	for _, t := range l.movements {
		movementsTotal.WithLabelValues(string(t)).Inc()
	}
	for _, t := range l.journals {
		journalPairsTotal.WithLabelValues(string(t)).Inc()
	}
	publishLedgerEvents(ctx, logger, l.events)
	return nil
}
