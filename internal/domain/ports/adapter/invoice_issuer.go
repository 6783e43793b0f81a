package adapter

import (
	"context"
	"fmt"

	"stripe-invoice-bridge/internal/domain/model"
)

// IssuerErrorKind separates transport/auth failures (the call may not have
// reached the service) from malformed responses (the call went through but
// no invoice number came back — the invoice may or may not exist).
type IssuerErrorKind string

const (
	IssuerErrTransport IssuerErrorKind = "transport"
	IssuerErrRejected  IssuerErrorKind = "rejected"
	IssuerErrMalformed IssuerErrorKind = "malformed"
)

// IssuerError is the typed failure of an invoicing call.
type IssuerError struct {
	Kind IssuerErrorKind
	Err  error
}

func (e *IssuerError) Error() string {
	return fmt.Sprintf("invoice issuer: %s: %v", e.Kind, e.Err)
}

func (e *IssuerError) Unwrap() error { return e.Err }

// InvoiceIssuer is the hex port for the external invoicing service.
type InvoiceIssuer interface {
	// Issue creates a fiscal invoice and returns its number. This is a
	// non-idempotent external side effect; callers own the idempotency
	// guard around it.
	Issue(ctx context.Context, rec *model.InvoiceRecord) (string, error)
	// Cancel issues a storno document nullifying originalNumber and
	// returns the cancellation invoice number.
	Cancel(ctx context.Context, originalNumber string, rec *model.InvoiceRecord) (string, error)
}
