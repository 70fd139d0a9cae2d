package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"invoiceapi/internal/metrics"
	"invoiceapi/internal/model"
	"invoiceapi/internal/realtime"
	"invoiceapi/internal/repository"
)

// Canceller resolves client-initiated cancellation of a pending import.
type Canceller struct {
	txs      repository.TransactionRepository
	notifier realtime.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewCanceller(txs repository.TransactionRepository, notifier realtime.Notifier, m *metrics.Metrics, logger *slog.Logger) *Canceller {
	return &Canceller{
		txs:      txs,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With("component", "canceller"),
		now:      time.Now,
	}
}

// Cancel moves a GENERATED transaction to CANCELLED. Any other state is reported
// back unchanged. The requester's channel is terminated on every path.
// It returns the status pushed to the requester.
func (s *Canceller) Cancel(ctx context.Context, transactionID, connectionID string) model.Status {
	ctx, span := tracer.Start(ctx, "Canceller.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID), attribute.String("connection.id", connectionID))

	status := s.resolve(ctx, transactionID, connectionID)
	s.notifier.SendStatus(ctx, transactionID, connectionID, status)
	s.notifier.Terminate(ctx, connectionID)

	span.SetAttributes(attribute.String("transaction.status", status.String()))
	return status
}

func (s *Canceller) resolve(ctx context.Context, transactionID, connectionID string) model.Status {
	tx, err := s.lookup(ctx, transactionID)
	if err != nil {
		s.logger.WarnContext(ctx, "import_cancel_not_found",
			"transaction_id", transactionID, "connection_id", connectionID, "error", err)
		return model.StatusNotFound
	}

	if tx.Status == model.StatusGenerated {
		res, err := s.txs.UpdateStatus(ctx, tx.ID, model.StatusGenerated, model.StatusCancelled)
		if err != nil {
			s.logger.ErrorContext(ctx, "import_cancel_update_failed", "transaction_id", tx.ID, "error", err)
		}
		s.metrics.Transition(string(model.StatusGenerated), string(model.StatusCancelled), transitionResult(res, err))
		if err == nil && res == repository.Applied {
			s.logger.InfoContext(ctx, "import_cancelled", "transaction_id", tx.ID, "connection_id", connectionID)
			return model.StatusCancelled
		}
		// Another resolver won; report what it left behind.
		if tx, err = s.lookup(ctx, transactionID); err != nil {
			return model.StatusNotFound
		}
		if tx.Status == model.StatusGenerated {
			// Past its expiry the store refuses the cancel; the reaper has not run yet.
			if tx.Expired(s.now()) {
				s.logger.InfoContext(ctx, "import_cancel_expired", "transaction_id", tx.ID, "connection_id", connectionID)
				return model.StatusTimeout
			}
			// The write failed with no winner; store failures surface as NOT_FOUND.
			return model.StatusNotFound
		}
	}

	s.logger.WarnContext(ctx, "import_cancel_rejected",
		"transaction_id", tx.ID, "connection_id", connectionID, "status", tx.Status)
	return tx.Status
}

func (s *Canceller) lookup(ctx context.Context, transactionID string) (*model.Transaction, error) {
	if transactionID == "" {
		return nil, repository.ErrNotFound
	}
	tx, err := s.txs.Get(ctx, transactionID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.ErrorContext(ctx, "transaction_lookup_failed", "transaction_id", transactionID, "error", err)
	}
	return tx, err
}

// Handle adapts Cancel to the realtime router.
func (s *Canceller) Handle(ctx context.Context, req realtime.Request) {
	s.Cancel(ctx, req.TransactionID, req.ConnectionID)
}
