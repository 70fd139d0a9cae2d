package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"invoiceapi/internal/config"
	"invoiceapi/internal/metrics"
)

// DetailTypeInvoice is the detail type of every invoice import audit event.
const DetailTypeInvoice = "invoice"

// Error details understood by the downstream error-routing subsystem.
const (
	FailNoInvoiceNumber  = "FAIL_NO_INVOICE_NUMBER"
	FailMalformedInvoice = "FAIL_MALFORMED_INVOICE"
	Timeout              = "TIMEOUT"
)

// busExtension carries the target bus name on the CloudEvent.
const busExtension = "eventbus"

const sendTimeout = 5 * time.Second

// Detail is the payload of an audit event.
type Detail struct {
	ErrorDetail string `json:"errorDetail"`
	Info        any    `json:"info"`
}

// Publisher emits audit events. Publish is fire-and-forget: it never blocks
// on delivery and failures are only logged.
type Publisher interface {
	Publish(ctx context.Context, source, detailType string, detail Detail)
}

// CloudEventsPublisher sends audit events as CloudEvents over HTTP.
type CloudEventsPublisher struct {
	client  cloudevents.Client
	bus     string
	logger  *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

var _ Publisher = (*CloudEventsPublisher)(nil)

// NewCloudEvents creates a publisher posting to cfg.SinkURL.
func NewCloudEvents(cfg config.AuditConfig, logger *slog.Logger, m *metrics.Metrics) (*CloudEventsPublisher, error) {
	if cfg.SinkURL == "" {
		return nil, fmt.Errorf("audit sink url is required")
	}
	c, err := cloudevents.NewClientHTTP(cloudevents.WithTarget(cfg.SinkURL))
	if err != nil {
		return nil, fmt.Errorf("create cloudevents client: %w", err)
	}
	return &CloudEventsPublisher{
		client:  c,
		bus:     cfg.BusName,
		logger:  logger.With("component", "audit"),
		metrics: m,
	}, nil
}

func (p *CloudEventsPublisher) Publish(ctx context.Context, source, detailType string, detail Detail) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(source)
	event.SetType(detailType)
	event.SetTime(time.Now().UTC())
	if p.bus != "" {
		event.SetExtension(busExtension, p.bus)
	}
	if err := event.SetData(cloudevents.ApplicationJSON, detail); err != nil {
		p.logger.ErrorContext(ctx, "audit_encode_failed", "error_detail", detail.ErrorDetail, "error", err)
		p.metrics.Audit(detail.ErrorDetail, "encode_failed")
		return
	}

	// Delivery must not be tied to the caller's lifetime.
	sendCtx := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(sendCtx, sendTimeout)
		defer cancel()

		if res := p.client.Send(ctx, event); !cloudevents.IsACK(res) {
			p.logger.ErrorContext(ctx, "audit_publish_failed",
				"event_id", event.ID(), "error_detail", detail.ErrorDetail, "error", res)
			p.metrics.Audit(detail.ErrorDetail, "failed")
			return
		}
		p.logger.InfoContext(ctx, "audit_published", "event_id", event.ID(), "error_detail", detail.ErrorDetail)
		p.metrics.Audit(detail.ErrorDetail, "sent")
	}()
}

// Flush waits for in-flight deliveries or until ctx is done.
func (p *CloudEventsPublisher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Nop discards audit events after logging them. It is used when no sink is configured.
type Nop struct {
	Logger *slog.Logger
}

func (n Nop) Publish(ctx context.Context, source, detailType string, detail Detail) {
	if n.Logger != nil {
		n.Logger.DebugContext(ctx, "audit_discarded", "source", source, "detail_type", detailType, "error_detail", detail.ErrorDetail)
	}
}
