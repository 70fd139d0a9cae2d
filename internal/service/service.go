package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"

	"invoiceapi/internal/model"
	"invoiceapi/internal/repository"
)

var tracer = otel.Tracer("invoiceapi/internal/service")

// ErrValidationFailed marks a business-rule rejection of uploaded content.
var ErrValidationFailed = errors.New("invoice validation failed")

// Validator applies the business rules an uploaded invoice must pass.
type Validator func(f model.InvoiceFile) error

// MinInvoiceNumberLength rejects invoices whose number has fewer than n characters.
func MinInvoiceNumberLength(n int) Validator {
	return func(f model.InvoiceFile) error {
		if utf8.RuneCountInString(f.InvoiceNumber) < n {
			return fmt.Errorf("%w: invoice number %q shorter than %d", ErrValidationFailed, f.InvoiceNumber, n)
		}
		return nil
	}
}

// transitionResult is the metrics label of a conditional update outcome.
func transitionResult(res repository.UpdateResult, err error) string {
	if err != nil {
		return "error"
	}
	return res.String()
}

// effects runs independent side effects concurrently and joins them.
// A failing effect is logged and does not cancel the others.
type effects struct {
	wg     sync.WaitGroup
	logger *slog.Logger
	attrs  []any
}

func newEffects(logger *slog.Logger, attrs ...any) *effects {
	return &effects{logger: logger, attrs: attrs}
}

func (e *effects) Go(name string, fn func() error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := fn(); err != nil {
			e.logger.Error("effect_failed", append([]any{"effect", name, "error", err}, e.attrs...)...)
		}
	}()
}

func (e *effects) Wait() {
	e.wg.Wait()
}
