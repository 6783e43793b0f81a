package model

import "time"

// RowStatus is the lifecycle of a ledger row. The stored values are the
// Hungarian labels the audit sheet has always used.
type RowStatus string

const (
	RowStatusPending   RowStatus = "Függőben"
	RowStatusIssued    RowStatus = "Kiállítva"
	RowStatusCancelled RowStatus = "Sztornózva"
	RowStatusError     RowStatus = "Hiba"
)

// LedgerRow is one audit row per ledger group per payment. Multiple rows
// share a PaymentID (multi-line checkouts) and must transition status
// together; PaymentID is the join key for that.
type LedgerRow struct {
	Date          time.Time
	CustomerName  string
	Email         string
	Amount        float64
	ProductName   string
	Quantity      int64
	VATRate       int
	Address       string
	InvoiceNumber string // empty until issued
	Status        RowStatus
	PaymentID     string
}
