// File: internal/infra/adapters/sheets/ledger.go
package sheets

import (
	"context"
	"fmt"
	"strconv"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"stripe-invoice-bridge/internal/config"
	"stripe-invoice-bridge/internal/domain"
	"stripe-invoice-bridge/internal/domain/model"
	"stripe-invoice-bridge/internal/domain/ports/adapter"
)

var _ adapter.Ledger = (*Ledger)(nil)

// Column layout of the audit sheet, A through K. The payment id in the
// last column is the join key; the invoice number and status live in I:J
// so both can be rewritten in one range update.
const (
	readRange    = "%s!A:K"
	statusRange  = "%s!I%d:J%d"
	paymentIDCol = 10
)

// Ledger implements adapter.Ledger on a Google Sheets spreadsheet.
type Ledger struct {
	srv           *sheetsapi.Service
	spreadsheetID string
}

func NewLedger(ctx context.Context, cfg config.SheetsConfig) (*Ledger, error) {
	srv, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Ledger{srv: srv, spreadsheetID: cfg.SpreadsheetID}, nil
}

func (l *Ledger) RowExists(ctx context.Context, paymentID, sheet string) (bool, error) {
	rows, err := l.readAll(ctx, sheet)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if cell(row, paymentIDCol) == paymentID {
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) AppendRow(ctx context.Context, row *model.LedgerRow, sheet string) error {
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{{
		row.Date.UTC().Format("2006-01-02"),
		row.CustomerName,
		row.Email,
		strconv.FormatFloat(row.Amount, 'f', 2, 64),
		row.ProductName,
		row.Quantity,
		fmt.Sprintf("%d%%", row.VATRate),
		row.Address,
		row.InvoiceNumber,
		string(row.Status),
		row.PaymentID,
	}}}
	_, err := l.srv.Spreadsheets.Values.
		Append(l.spreadsheetID, fmt.Sprintf(readRange, sheet), vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	return err
}

// UpdateStatus rewrites invoice number and status on every row whose join
// key matches; a multi-line payment has several rows and they transition
// together.
func (l *Ledger) UpdateStatus(ctx context.Context, paymentID, invoiceNumber string, status model.RowStatus, sheet string) error {
	rows, err := l.readAll(ctx, sheet)
	if err != nil {
		return err
	}
	var matches []int
	for i, row := range rows {
		if cell(row, paymentIDCol) == paymentID {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		return fmt.Errorf("payment %s on sheet %s: %w", paymentID, sheet, domain.ErrRowNotFound)
	}
	for _, idx := range matches {
		rowNumber := idx + 1 // sheet rows are 1-based
		vr := &sheetsapi.ValueRange{Values: [][]interface{}{{invoiceNumber, string(status)}}}
		_, err := l.srv.Spreadsheets.Values.
			Update(l.spreadsheetID, fmt.Sprintf(statusRange, sheet, rowNumber, rowNumber), vr).
			ValueInputOption("USER_ENTERED").
			Context(ctx).Do()
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) readAll(ctx context.Context, sheet string) ([][]interface{}, error) {
	resp, err := l.srv.Spreadsheets.Values.
		Get(l.spreadsheetID, fmt.Sprintf(readRange, sheet)).
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func cell(row []interface{}, idx int) string {
	if idx >= len(row) {
		return ""
	}
	s, _ := row[idx].(string)
	return s
}
