package model

import "time"

// Metadata keys written onto the payment record at the gateway. The metadata
// bag is the single source of truth for "has this payment produced an
// invoice" — the ledger sheet is only a best-effort mirror of it.
const (
	MetaInvoiceNumber       = "invoice_number"
	MetaRefundInvoiceNumber = "refund_invoice_number"
)

// RequiredBillingField is the checkout custom field (Hungarian postal code)
// that only invoice-capable payment links collect. Payments without it did
// not come through an invoicing flow and are skipped.
const RequiredBillingField = "irnytszm"

// PaymentEvent is a snapshot of a succeeded payment at the gateway.
// Amount is in minor currency units, as stored by the provider.
type PaymentEvent struct {
	ID        string
	Amount    int64
	Currency  string
	CreatedAt time.Time
	Metadata  map[string]string
}

// InvoiceNumber returns the idempotency marker for the payment path, if set.
func (p *PaymentEvent) InvoiceNumber() string {
	return p.Metadata[MetaInvoiceNumber]
}

// RefundInvoiceNumber returns the idempotency marker for the refund path, if set.
func (p *PaymentEvent) RefundInvoiceNumber() string {
	return p.Metadata[MetaRefundInvoiceNumber]
}

// RefundEvent references the payment it refunds; line items always mirror
// the original purchase, so the refund carries none of its own.
type RefundEvent struct {
	ID        string
	Amount    int64
	Currency  string
	PaymentID string
	CreatedAt time.Time
}

// PurchasedLine is one line of the original checkout.
// AmountGross is the total for the line (unit price x quantity), minor units.
type PurchasedLine struct {
	ProductID   string
	Quantity    int64
	AmountGross int64
}

// CustomField is a key/value collected by the checkout form. Numeric and
// text fields both surface their value as a string.
type CustomField struct {
	Key   string
	Type  string // "numeric" | "text"
	Value string
}

// CheckoutContext is the originating checkout session of a payment: its
// purchased lines, the customer identity and the billing custom fields.
// Payments created outside a checkout flow have no context at all.
type CheckoutContext struct {
	ID            string
	Lines         []PurchasedLine
	CustomerName  string
	CustomerEmail string
	CustomFields  []CustomField
}

// HasField reports whether the checkout collected the given custom field.
func (c *CheckoutContext) HasField(key string) bool {
	for _, f := range c.CustomFields {
		if f.Key == key {
			return true
		}
	}
	return false
}

// FieldValue returns the collected value for key, or "" when absent.
func (c *CheckoutContext) FieldValue(key string) string {
	for _, f := range c.CustomFields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// TaxConfig is the declarative per-product invoicing configuration, carried
// as raw gateway metadata values and resolved by the line derivation. Rates
// stay strings here because the metadata bag cannot hold anything else; a
// value that fails to parse falls back to the configured default rate.
type TaxConfig struct {
	VATRate           string // e.g. "27"
	VATType           string // issuer tax category code, e.g. "AAM", "TAM"
	ServiceFeePercent string // e.g. "20"; empty means no fee split
	SheetName         string // ledger sheet routing; empty means the default sheet
}

// Product is the invoicing-relevant slice of a gateway product record.
type Product struct {
	ID   string
	Name string
	Tax  TaxConfig
}
