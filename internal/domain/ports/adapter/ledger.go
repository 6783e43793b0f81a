package adapter

import (
	"context"

	"stripe-invoice-bridge/internal/domain/model"
)

// Ledger is the hex port for the audit spreadsheet. It is a best-effort
// mirror: the engine logs its failures but never bases idempotency
// decisions on it, and never rolls anything back over it.
type Ledger interface {
	// RowExists reports whether any row for paymentID is present on sheet.
	RowExists(ctx context.Context, paymentID, sheet string) (bool, error)
	// AppendRow appends one audit row to sheet.
	AppendRow(ctx context.Context, row *model.LedgerRow, sheet string) error
	// UpdateStatus sets the invoice number and status on EVERY row of
	// sheet whose join key is paymentID (multi-line payments produce
	// several rows that must transition together).
	UpdateStatus(ctx context.Context, paymentID, invoiceNumber string, status model.RowStatus, sheet string) error
}
