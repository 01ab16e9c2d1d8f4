package workflow

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	EventBatchCreated      = "batch.created"
	EventBatchUpdated      = "batch.updated"
	EventBatchDeleted      = "batch.deleted"
	EventStockDistributed  = "stock.distributed"
	EventStockConsumed     = "stock.consumed"
	EventStockConverted    = "stock.converted"
	EventSpoilageRequested = "spoilage.requested"
	EventSpoilageApproved  = "spoilage.approved"
	EventSpoilageRejected  = "spoilage.rejected"
	EventTransferRequested = "transfer.requested"
	EventTransferAccepted  = "transfer.accepted"
	EventTransferDeclined  = "transfer.declined"
	EventStockReturned     = "stock.returned"
	EventManualStockAdded  = "stock.manual_added"
	EventSaleRecorded      = "sale.recorded"
	EventJournalReversed   = "journal.reversed"
)

func (l *ledgerTx) emit(eventType string, referenceType string, referenceId int, groupId string, shopId int, payload any) {
	msg := config.LedgerEventMessage{
		EventType:     eventType,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		GroupId:       groupId,
		ShopId:        shopId,
		OccurredAt:    time.Now().UTC(),
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(l.ctx); ok {
		msg.CorrelationId = correlationId
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			config.LogError(l.logger, "ledgerEvents.go", "emit", "Marshal payload", eventType, err)
		} else {
			msg.Payload = b
		}
	}
	l.events = append(l.events, msg)
}

// publishLedgerEvents hands committed events to pub/sub. Publication is best effort:
// the ledger rows are already durable and a failure here is only logged.
func publishLedgerEvents(ctx context.Context, logger *logrus.Logger, events []config.LedgerEventMessage) {
	topic := config.LedgerEventsTopic()
	if topic == "" || len(events) == 0 {
		return
	}
	for _, msg := range events {
		id, err := config.PublishLedgerEvent(ctx, topic, msg)
		if err != nil {
			ledgerEventsTotal.WithLabelValues(msg.EventType, "error").Inc()
			config.LogError(logger, "ledgerEvents.go", "publishLedgerEvents", "PublishLedgerEvent", msg, err)
			continue
		}
		ledgerEventsTotal.WithLabelValues(msg.EventType, "published").Inc()
		logger.WithFields(logrus.Fields{
			"field":      "publishLedgerEvents",
			"event_type": msg.EventType,
			"message_id": id,
		}).Debug("ledger event published")
	}
}
