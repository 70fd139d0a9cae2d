package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"invoiceapi/internal/config"
	"invoiceapi/internal/model"
	"invoiceapi/internal/realtime"
	"invoiceapi/internal/repository"
	"invoiceapi/internal/storage"
)

// ErrCodeImportURLUnavailable is pushed when an upload target could not be issued.
const ErrCodeImportURLUnavailable = "IMPORT_URL_UNAVAILABLE"

// UploadIssuer hands out presigned upload targets and opens the matching transaction.
type UploadIssuer struct {
	txs      repository.TransactionRepository
	store    storage.Storage
	notifier realtime.Notifier
	cfg      config.ImportConfig
	endpoint string
	logger   *slog.Logger
	now      func() time.Time
}

// NewUploadIssuer constructs an UploadIssuer. endpoint is the public channel
// address recorded on each transaction.
func NewUploadIssuer(txs repository.TransactionRepository, store storage.Storage, notifier realtime.Notifier,
	cfg config.ImportConfig, endpoint string, logger *slog.Logger) *UploadIssuer {
	return &UploadIssuer{
		txs:      txs,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		endpoint: endpoint,
		logger:   logger.With("component", "upload_issuer"),
		now:      time.Now,
	}
}

// Issue creates a GENERATED transaction and pushes its upload target to the requester.
// Nothing is pushed unless both the target and the record exist.
func (s *UploadIssuer) Issue(ctx context.Context, req realtime.Request) (*model.UploadTarget, error) {
	ctx, span := tracer.Start(ctx, "UploadIssuer.Issue")
	defer span.End()

	id := uuid.NewString()
	span.SetAttributes(attribute.String("transaction.id", id), attribute.String("connection.id", req.ConnectionID))

	expiry := s.cfg.UploadURLExpiry()
	url, err := s.store.PresignPut(ctx, id, expiry)
	if err != nil {
		span.SetStatus(codes.Error, "presign failed")
		return nil, fmt.Errorf("issue upload target: %w", err)
	}

	now := s.now().UTC()
	tx := &model.Transaction{
		ID:              id,
		Status:          model.StatusGenerated,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.TransactionTTL()),
		ConnectionID:    req.ConnectionID,
		RequestID:       req.RequestID,
		Endpoint:        s.endpoint,
		UploadExpiresIn: int(expiry / time.Second),
	}
	if err := s.txs.Create(ctx, tx); err != nil {
		span.SetStatus(codes.Error, "create transaction failed")
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	target := &model.UploadTarget{URL: url, Expires: tx.UploadExpiresIn, TransactionID: id}
	delivered := s.notifier.Send(ctx, req.ConnectionID, target)

	s.logger.InfoContext(ctx, "upload_target_issued",
		"transaction_id", id,
		"connection_id", req.ConnectionID,
		"request_id", req.RequestID,
		"expires_at", tx.ExpiresAt,
		"delivered", delivered,
	)
	return target, nil
}

// Handle adapts Issue to the realtime router.
func (s *UploadIssuer) Handle(ctx context.Context, req realtime.Request) {
	if _, err := s.Issue(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "upload_target_failed",
			"connection_id", req.ConnectionID, "request_id", req.RequestID, "error", err)
		s.notifier.Send(ctx, req.ConnectionID, map[string]string{
			"action": model.ActionGetImportURL,
			"error":  ErrCodeImportURLUnavailable,
		})
	}
}
