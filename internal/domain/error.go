package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNoLineItems       = errors.New("checkout session has no line items")
	ErrNoInvoiceNumber   = errors.New("invoice number absent from issuer response")
	ErrAlreadyProcessing = errors.New("payment is already being processed")
	ErrRowNotFound       = errors.New("payment has no rows in the ledger sheet")
)
