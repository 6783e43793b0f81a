package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BillingAddress is the fiscal address the invoice is issued to, rebuilt
// from checkout custom fields on every run.
type BillingAddress struct {
	Name       string
	Email      string
	PostalCode string
	City       string
	Address    string
	Country    string
}

// BillingAddressFrom maps the checkout custom fields onto a billing address.
// Field keys follow the payment-link form (Hungarian, vowels dropped by the
// form builder's key generator).
func BillingAddressFrom(ctx *CheckoutContext) BillingAddress {
	return BillingAddress{
		Name:       ctx.CustomerName,
		Email:      ctx.CustomerEmail,
		PostalCode: ctx.FieldValue("irnytszm"),
		City:       ctx.FieldValue("vros"),
		Address:    ctx.FieldValue("cm"),
		Country:    "HU",
	}
}

// OneLine renders the address the way the ledger records it.
func (a BillingAddress) OneLine() string {
	return fmt.Sprintf("%s %s, %s", a.PostalCode, a.City, a.Address)
}

// InvoiceLine is one line of the invoicing request. Amounts are in major
// currency units and stay unrounded; formatting to two decimals happens
// only when the request body is built.
type InvoiceLine struct {
	ProductName string
	ProductID   string
	Quantity    int64
	UnitGross   float64
	Gross       float64
	VATRate     int
	VATType     string
}

// Net backs the VAT out of the gross amount: net = gross / (1 + rate/100).
func (l InvoiceLine) Net() float64 {
	return l.Gross / (1 + float64(l.VATRate)/100)
}

// VAT is the tax content of the line.
func (l InvoiceLine) VAT() float64 {
	return l.Gross - l.Net()
}

// UnitNet is the per-unit net price.
func (l InvoiceLine) UnitNet() float64 {
	return l.UnitGross / (1 + float64(l.VATRate)/100)
}

// InvoiceRecord is rebuilt fresh per invocation from the payment and its
// checkout context. It is never persisted; only the invoice number the
// issuer returns for it is, into the payment metadata and the ledger.
type InvoiceRecord struct {
	CustomerName  string
	CustomerEmail string
	TotalGross    float64
	Currency      string
	Lines         []InvoiceLine
	Billing       BillingAddress
	PaymentID     string
	PaymentDate   time.Time
}

// LedgerGroup is what one purchased line contributes to the audit sheet:
// always a single combined row at the full gross amount, even when the
// invoice splits the same line into base + service fee.
type LedgerGroup struct {
	ProductName string
	Quantity    int64
	Gross       float64
	VATRate     int
	SheetName   string
}

// DerivedLines is the output of the line derivation for one purchased line.
type DerivedLines struct {
	Invoice []InvoiceLine
	Ledger  LedgerGroup
	// FallbackRate is set when the product's VAT rate was missing or
	// unparsable and the default rate was used instead.
	FallbackRate bool
}

// MinorToMajor converts provider minor units (fillér, cent) to major units.
func MinorToMajor(amount int64) float64 {
	return float64(amount) / 100
}

// DeriveLines expands one purchased line into its invoice lines and its
// ledger group, driven entirely by the product's tax configuration.
//
// A configured service-fee percentage means the purchase price already
// contains the fee: the invoice gets two lines (base product and fee, same
// VAT rate, amounts summing exactly to the gross) while the ledger gets one
// combined row at the full gross. This divergence is deliberate: the
// invoice must itemize the fee, the audit trail tracks what was charged.
//
// Pure function; both the payment and the refund path derive through here.
func DeriveLines(line PurchasedLine, product Product, defaultVATRate int) DerivedLines {
	rate, ok := parseVATRate(product.Tax.VATRate)
	if !ok {
		rate = defaultVATRate
	}

	qty := line.Quantity
	if qty <= 0 {
		qty = 1
	}
	gross := MinorToMajor(line.AmountGross)

	out := DerivedLines{
		Ledger: LedgerGroup{
			ProductName: product.Name,
			Quantity:    qty,
			Gross:       gross,
			VATRate:     rate,
			SheetName:   product.Tax.SheetName,
		},
		FallbackRate: !ok,
	}

	feePct, feeOK := parseFeePercent(product.Tax.ServiceFeePercent)
	if !feeOK {
		out.Invoice = []InvoiceLine{{
			ProductName: product.Name,
			ProductID:   product.ID,
			Quantity:    qty,
			UnitGross:   gross / float64(qty),
			Gross:       gross,
			VATRate:     rate,
			VATType:     product.Tax.VATType,
		}}
		return out
	}

	// Price includes the fee: back the base out and keep the remainder as
	// the fee line, so the two grosses sum to the charged amount exactly.
	base := gross / (1 + feePct/100)
	fee := gross - base

	out.Invoice = []InvoiceLine{
		{
			ProductName: product.Name,
			ProductID:   product.ID,
			Quantity:    qty,
			UnitGross:   base / float64(qty),
			Gross:       base,
			VATRate:     rate,
			VATType:     product.Tax.VATType,
		},
		{
			ProductName: fmt.Sprintf("Szervizdíj %d%% ÁFA", rate),
			ProductID:   product.ID + "_service_fee",
			Quantity:    1,
			UnitGross:   fee,
			Gross:       fee,
			VATRate:     rate,
			VATType:     product.Tax.VATType,
		},
	}
	return out
}

func parseVATRate(raw string) (int, bool) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if s == "" {
		return 0, false
	}
	rate, err := strconv.Atoi(s)
	if err != nil || rate < 0 {
		return 0, false
	}
	return rate, true
}

func parseFeePercent(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if s == "" {
		return 0, false
	}
	pct, err := strconv.ParseFloat(s, 64)
	if err != nil || pct <= 0 {
		return 0, false
	}
	return pct, true
}
