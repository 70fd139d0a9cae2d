// Package changefeed emulates the expiring-record change stream: it removes
// transactions past their expiry and emits REMOVE records carrying the
// pre-deletion image.
package changefeed

import (
	"context"
	"log/slog"
	"time"

	"invoiceapi/internal/metrics"
	"invoiceapi/internal/model"
	"invoiceapi/internal/repository"
)

// Listener consumes change records. Rows are deleted before delivery, so a crash
// in between loses the record: delivery is at-most-once per reaped row.
type Listener interface {
	HandleChanges(ctx context.Context, events []model.ChangeEvent)
}

// Reaper periodically deletes expired transactions and hands their last images to a Listener.
type Reaper struct {
	txs      repository.TransactionRepository
	events   repository.InvoiceEventRepository
	listener Listener
	interval time.Duration
	batch    int
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewReaper(
	txs repository.TransactionRepository,
	events repository.InvoiceEventRepository,
	listener Listener,
	interval time.Duration,
	batch int,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Reaper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Reaper{
		txs:      txs,
		events:   events,
		listener: listener,
		interval: interval,
		batch:    batch,
		metrics:  m,
		logger:   logger.With("component", "reaper"),
		now:      time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "reaper_started", "interval", r.interval.String(), "batch", r.batch)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "reaper_stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick drains every transaction expired at the current instant, batch by batch,
// then purges expired invoice event-log entries. It returns the number of
// transactions removed.
func (r *Reaper) Tick(ctx context.Context) int {
	now := r.now().UTC()
	total := 0
	for ctx.Err() == nil {
		rows, err := r.txs.ReapExpired(ctx, now, r.batch)
		if err != nil {
			r.logger.ErrorContext(ctx, "reap_failed", "error", err)
			break
		}
		if len(rows) == 0 {
			break
		}

		changes := make([]model.ChangeEvent, 0, len(rows))
		for i := range rows {
			r.metrics.Reaped(rows[i].Status.String())
			changes = append(changes, model.ChangeEvent{Kind: model.ChangeRemove, OldImage: &rows[i]})
		}
		r.listener.HandleChanges(ctx, changes)
		total += len(rows)

		if len(rows) < r.batch {
			break
		}
	}

	if total > 0 {
		r.logger.InfoContext(ctx, "transactions_reaped", "count", total)
	}

	if r.events != nil {
		n, err := r.events.DeleteExpired(ctx, now)
		if err != nil {
			r.logger.ErrorContext(ctx, "event_log_purge_failed", "error", err)
		} else if n > 0 {
			r.logger.DebugContext(ctx, "event_log_purged", "count", n)
		}
	}
	return total
}
