package service

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"invoiceapi/internal/audit"
	"invoiceapi/internal/model"
	"invoiceapi/internal/realtime"
)

// ExpiryListener turns removals of expired transactions into TIMEOUT notices.
// It acts only on the pre-deletion image and never reads the store.
type ExpiryListener struct {
	notifier    realtime.Notifier
	audit       audit.Publisher
	auditSource string
	logger      *slog.Logger
}

func NewExpiryListener(notifier realtime.Notifier, pub audit.Publisher, auditSource string, logger *slog.Logger) *ExpiryListener {
	return &ExpiryListener{
		notifier:    notifier,
		audit:       pub,
		auditSource: auditSource,
		logger:      logger.With("component", "expiry_listener"),
	}
}

// HandleChanges processes a batch of change records concurrently.
func (l *ExpiryListener) HandleChanges(ctx context.Context, events []model.ChangeEvent) {
	var wg sync.WaitGroup
	for _, ev := range events {
		wg.Add(1)
		go func(ev model.ChangeEvent) {
			defer wg.Done()
			l.HandleChange(ctx, ev)
		}(ev)
	}
	wg.Wait()
}

// HandleChange reports whether a TIMEOUT was pushed for ev.
func (l *ExpiryListener) HandleChange(ctx context.Context, ev model.ChangeEvent) bool {
	if ev.Kind != model.ChangeRemove || ev.OldImage == nil {
		return false
	}
	old := ev.OldImage

	ctx, span := tracer.Start(ctx, "ExpiryListener.HandleChange")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", old.ID), attribute.String("transaction.status", old.Status.String()))

	if old.Status == model.StatusProcessed {
		l.logger.InfoContext(ctx, "transaction_expired_after_completion", "transaction_id", old.ID)
		return false
	}

	l.logger.WarnContext(ctx, "import_timed_out",
		"transaction_id", old.ID, "connection_id", old.ConnectionID, "status", old.Status)

	if old.Status == model.StatusGenerated || old.Status == model.StatusReceived {
		l.audit.Publish(ctx, l.auditSource, audit.DetailTypeInvoice, audit.Detail{
			ErrorDetail: audit.Timeout,
			Info: map[string]string{
				"transactionId": old.ID,
				"status":        old.Status.String(),
			},
		})
	}

	l.notifier.SendStatus(ctx, old.ID, old.ConnectionID, model.StatusTimeout)
	l.notifier.Terminate(ctx, old.ConnectionID)
	return true
}
