package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"invoiceapi/internal/audit"
	"invoiceapi/internal/metrics"
	"invoiceapi/internal/model"
	"invoiceapi/internal/realtime"
	"invoiceapi/internal/repository"
	"invoiceapi/internal/storage"
)

// maxInvoiceSize bounds how much of an uploaded object is read.
const maxInvoiceSize = 1 << 20

// invoiceEventTTL is how long an INVOICE_CREATED entry stays in the event log.
const invoiceEventTTL = time.Hour

// ProcessorDeps groups the collaborators of an ImportProcessor.
type ProcessorDeps struct {
	Transactions repository.TransactionRepository
	Invoices     repository.InvoiceRepository
	Events       repository.InvoiceEventRepository
	Store        storage.Storage
	Notifier     realtime.Notifier
	Audit        audit.Publisher
	Validate     Validator
	AuditSource  string
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// ImportProcessor reacts to storage-completion events: it claims the transaction,
// parses and validates the uploaded invoice, then commits or rejects it.
type ImportProcessor struct {
	ProcessorDeps
	logger *slog.Logger
	now    func() time.Time
}

func NewImportProcessor(deps ProcessorDeps) *ImportProcessor {
	if deps.AuditSource == "" {
		deps.AuditSource = "app.invoice"
	}
	return &ImportProcessor{
		ProcessorDeps: deps,
		logger:        deps.Logger.With("component", "import_processor"),
		now:           time.Now,
	}
}

// HandleObjectEvents processes every ObjectCreated record concurrently and waits for all of them.
// The returned error joins transient store failures; redelivering the same records is safe.
func (p *ImportProcessor) HandleObjectEvents(ctx context.Context, events []storage.ObjectEvent) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, ev := range events {
		if !ev.Created() {
			p.logger.DebugContext(ctx, "storage_event_ignored", "key", ev.Key, "event_name", ev.EventName)
			continue
		}
		wg.Add(1)
		go func(ev storage.ObjectEvent) {
			defer wg.Done()
			if err := p.Process(ctx, ev.Key); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(ev)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Process runs the completion state machine for the object at key (= transaction ID).
// A returned error means the transaction was left non-terminal and the delivery
// should be retried; a transaction found RECEIVED is resumed from the fetch step.
func (p *ImportProcessor) Process(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "ImportProcessor.Process")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", key))

	tx, err := p.Transactions.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			p.logger.ErrorContext(ctx, "transaction_lookup_failed", "transaction_id", key, "error", err)
		} else {
			p.logger.WarnContext(ctx, "import_transaction_not_found", "transaction_id", key)
		}
		// There is no known channel; both calls are expected to report false.
		p.Notifier.SendStatus(ctx, key, "", model.StatusNotFound)
		p.Notifier.Terminate(ctx, "")
		return nil
	}

	switch tx.Status {
	case model.StatusGenerated:
		res, err := p.Transactions.UpdateStatus(ctx, key, model.StatusGenerated, model.StatusReceived)
		p.Metrics.Transition(string(model.StatusGenerated), string(model.StatusReceived), transitionResult(res, err))
		if err != nil {
			span.SetStatus(codes.Error, "claim failed")
			return fmt.Errorf("claim transaction %s: %w", key, err)
		}
		if res != repository.Applied {
			p.logger.InfoContext(ctx, "import_claim_lost", "transaction_id", key)
			return nil
		}
		p.Notifier.SendStatus(ctx, key, tx.ConnectionID, model.StatusReceived)
	case model.StatusReceived:
		// An earlier delivery claimed it but its terminal write did not land.
		p.logger.InfoContext(ctx, "import_resumed", "transaction_id", key)
	default:
		if tx.Status == model.StatusProcessed {
			// Redelivery after a commit: retry the cleanup a crash may have skipped.
			if err := p.Store.Delete(ctx, key); err != nil {
				p.logger.WarnContext(ctx, "import_cleanup_failed", "transaction_id", key, "error", err)
			}
		}
		p.logger.WarnContext(ctx, "import_unexpected_status", "transaction_id", key, "status", tx.Status)
		p.Notifier.SendStatus(ctx, key, tx.ConnectionID, tx.Status)
		return nil
	}

	file, err := p.fetch(ctx, key)
	if err != nil {
		p.logger.ErrorContext(ctx, "invoice_malformed", "transaction_id", key, "error", err)
		err = p.reject(ctx, tx, audit.FailMalformedInvoice, map[string]string{
			"invoiceKey": key,
			"error":      err.Error(),
		})
	} else if verr := p.Validate(file); verr != nil {
		p.logger.WarnContext(ctx, "invoice_rejected",
			"transaction_id", key, "invoice_number", file.InvoiceNumber, "error", verr)
		err = p.reject(ctx, tx, audit.FailNoInvoiceNumber, map[string]string{
			"invoiceKey":   key,
			"customerName": file.CustomerName,
		})
	} else {
		err = p.commit(ctx, tx, file)
	}
	if err != nil {
		span.SetStatus(codes.Error, "terminal write failed")
	}
	return err
}

func (p *ImportProcessor) fetch(ctx context.Context, key string) (model.InvoiceFile, error) {
	var file model.InvoiceFile
	rc, _, err := p.Store.Get(ctx, key)
	if err != nil {
		return file, err
	}
	defer rc.Close()

	if err := json.NewDecoder(io.LimitReader(rc, maxInvoiceSize)).Decode(&file); err != nil {
		return file, fmt.Errorf("decode invoice: %w", err)
	}
	return file, nil
}

// reject moves a claimed transaction to NON_VALID, audits the reason and closes the channel.
// Nothing is reported unless the store accepted the transition.
func (p *ImportProcessor) reject(ctx context.Context, tx *model.Transaction, errorDetail string, info any) error {
	res, err := p.Transactions.UpdateStatus(ctx, tx.ID, model.StatusReceived, model.StatusNonValid)
	p.Metrics.Transition(string(model.StatusReceived), string(model.StatusNonValid), transitionResult(res, err))
	if err != nil {
		return fmt.Errorf("reject transaction %s: %w", tx.ID, err)
	}
	if res != repository.Applied {
		// Reaped or resolved by another delivery; that path has already reported it.
		p.logger.WarnContext(ctx, "import_reject_lost", "transaction_id", tx.ID)
		return nil
	}

	fx := newEffects(p.logger, "transaction_id", tx.ID)
	fx.Go("audit", func() error {
		p.Audit.Publish(ctx, p.AuditSource, audit.DetailTypeInvoice, audit.Detail{ErrorDetail: errorDetail, Info: info})
		return nil
	})
	fx.Go("notify", func() error {
		p.Notifier.SendStatus(ctx, tx.ID, tx.ConnectionID, model.StatusNonValid)
		return nil
	})
	fx.Wait()

	p.Notifier.Terminate(ctx, tx.ConnectionID)
	return nil
}

// commit persists the invoice and marks the transaction PROCESSED concurrently.
// Only once the store has accepted PROCESSED is the upload removed and the client
// notified; a failed status write keeps the object so a redelivery can resume.
// A failed invoice or event-log write after an accepted status is a logged leak.
func (p *ImportProcessor) commit(ctx context.Context, tx *model.Transaction, file model.InvoiceFile) error {
	now := p.now().UTC()
	inv := &model.Invoice{
		CustomerName:  file.CustomerName,
		InvoiceNumber: file.InvoiceNumber,
		TotalValue:    file.TotalValue,
		ProductID:     file.ProductID,
		Quantity:      file.Quantity,
		TransactionID: tx.ID,
		CreatedAt:     now,
	}

	var (
		res       repository.UpdateResult
		updateErr error
	)
	fx := newEffects(p.logger, "transaction_id", tx.ID)
	fx.Go("persist_invoice", func() error {
		created, err := p.Invoices.Create(ctx, inv)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		return p.Events.Create(ctx, &model.InvoiceEvent{
			PK:           "#invoice_" + inv.InvoiceNumber,
			SK:           fmt.Sprintf("%s#%d", model.InvoiceCreated, now.UnixMilli()),
			EventType:    model.InvoiceCreated,
			CustomerName: inv.CustomerName,
			CreatedAt:    now,
			ExpiresAt:    now.Add(invoiceEventTTL),
			Info: model.InvoiceEventInfo{
				TransactionID: tx.ID,
				ProductID:     inv.ProductID,
				Quantity:      inv.Quantity,
			},
		})
	})
	fx.Go("update_status", func() error {
		res, updateErr = p.Transactions.UpdateStatus(ctx, tx.ID, model.StatusReceived, model.StatusProcessed)
		p.Metrics.Transition(string(model.StatusReceived), string(model.StatusProcessed), transitionResult(res, updateErr))
		return updateErr
	})
	fx.Wait()

	if updateErr != nil {
		return fmt.Errorf("commit transaction %s: %w", tx.ID, updateErr)
	}
	if res != repository.Applied {
		p.logger.WarnContext(ctx, "import_commit_lost", "transaction_id", tx.ID)
		return nil
	}

	fx = newEffects(p.logger, "transaction_id", tx.ID)
	fx.Go("delete_object", func() error {
		return p.Store.Delete(ctx, tx.ID)
	})
	fx.Go("notify", func() error {
		p.Notifier.SendStatus(ctx, tx.ID, tx.ConnectionID, model.StatusProcessed)
		return nil
	})
	fx.Wait()

	p.Notifier.Terminate(ctx, tx.ConnectionID)
	p.logger.InfoContext(ctx, "invoice_imported",
		"transaction_id", tx.ID, "invoice_number", inv.InvoiceNumber, "customer_name", inv.CustomerName)
	return nil
}
