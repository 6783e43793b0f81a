// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stripe-invoice-bridge/internal/domain"
	"stripe-invoice-bridge/internal/domain/model"
	"stripe-invoice-bridge/internal/domain/ports/adapter"
	"stripe-invoice-bridge/internal/domain/ports/repository"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// OutcomeStatus classifies what a reconciliation run did.
type OutcomeStatus string

const (
	OutcomeIssued      OutcomeStatus = "issued"       // invoice created this run
	OutcomeCancelled   OutcomeStatus = "cancelled"    // storno created this run
	OutcomeAlreadyDone OutcomeStatus = "already_done" // idempotency gate hit
	OutcomeSkipped     OutcomeStatus = "skipped"      // payment out of invoicing scope
)

// Skip reasons for OutcomeSkipped.
const (
	SkipNoCheckout     = "no_checkout_context"
	SkipNotInvoiceFlow = "missing_billing_field"
	SkipNeverInvoiced  = "payment_never_invoiced"
)

// Outcome reports the two channels of a reconciliation run separately: the
// authoritative result (the returned error of ProcessPayment/ProcessRefund)
// and the best-effort mirror result (MirrorErr, logged but never fatal).
type Outcome struct {
	Status        OutcomeStatus
	SkipReason    string
	InvoiceNumber string
	// MirrorErr is the ledger-side failure of an otherwise successful run,
	// kept so callers and tests can observe it; the invoice and its marker
	// are already durable when it is set.
	MirrorErr error
}

// ReconcileUseCase drives one payment or refund event to completion across
// the gateway, the invoice issuer and the ledger mirror. Both operations
// are safe to call concurrently and repeatedly for the same id: the marker
// store is the idempotency source of truth and markers are written before
// any mirror write that records them.
type ReconcileUseCase interface {
	ProcessPayment(ctx context.Context, paymentID string) (*Outcome, error)
	ProcessRefund(ctx context.Context, refundID string) (*Outcome, error)
}

// Config carries the per-deployment invoicing defaults.
type Config struct {
	DefaultVATRate int           // used when a product's rate is missing or unparsable
	DefaultSheet   string        // ledger sheet when a product names none
	LockTTL        time.Duration // strict-mode lock lifetime
}

type reconcileUC struct {
	gateway adapter.PaymentGateway
	issuer  adapter.InvoiceIssuer
	ledger  adapter.Ledger // nil disables the mirror entirely
	markers repository.MarkerStore
	locker  repository.Locker // nil runs in documented best-effort mode
	cfg     Config
	log     *zerolog.Logger
}

func NewReconcileUseCase(
	gateway adapter.PaymentGateway,
	issuer adapter.InvoiceIssuer,
	ledger adapter.Ledger,
	markers repository.MarkerStore,
	locker repository.Locker,
	cfg Config,
	logger *zerolog.Logger,
) *reconcileUC {
	if cfg.DefaultVATRate <= 0 {
		cfg.DefaultVATRate = 27
	}
	if cfg.DefaultSheet == "" {
		cfg.DefaultSheet = "Sheet1"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &reconcileUC{
		gateway: gateway,
		issuer:  issuer,
		ledger:  ledger,
		markers: markers,
		locker:  locker,
		cfg:     cfg,
		log:     logger,
	}
}

// ProcessPayment issues the invoice for one succeeded payment, at most once.
//
// Ordering is the load-bearing part: the issuer call is the only
// non-idempotent side effect taken before the marker write, and the marker
// write happens immediately after it, before the Issued mirror update. A
// crash between issue and marker is the one window where a retry would
// duplicate the invoice; everything else re-enters through the gate.
func (u *reconcileUC) ProcessPayment(ctx context.Context, paymentID string) (*Outcome, error) {
	log := u.log.With().Str("payment_id", paymentID).Logger()

	// Fresh fetch; webhook payloads may be stale relative to a concurrent run.
	pay, err := u.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch payment: %w", err)
	}

	// Idempotency gate, before any external side effect.
	if n := pay.InvoiceNumber(); n != "" {
		log.Info().Str("invoice_number", n).Msg("invoice already exists, nothing to do")
		return &Outcome{Status: OutcomeAlreadyDone, InvoiceNumber: n}, nil
	}

	ctxt, err := u.gateway.GetCheckoutContext(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch checkout context: %w", err)
	}
	if ctxt == nil {
		log.Info().Msg("no checkout context, payment out of invoicing scope")
		return &Outcome{Status: OutcomeSkipped, SkipReason: SkipNoCheckout}, nil
	}
	if !ctxt.HasField(model.RequiredBillingField) {
		log.Info().Msg("billing field missing, payment not from an invoice-capable flow")
		return &Outcome{Status: OutcomeSkipped, SkipReason: SkipNotInvoiceFlow}, nil
	}
	if len(ctxt.Lines) == 0 {
		return nil, domain.ErrNoLineItems
	}

	invLines, groups, sheet, err := u.deriveAll(ctx, &log, ctxt.Lines)
	if err != nil {
		return nil, err
	}

	billing := model.BillingAddressFrom(ctxt)
	rec := &model.InvoiceRecord{
		CustomerName:  ctxt.CustomerName,
		CustomerEmail: ctxt.CustomerEmail,
		TotalGross:    model.MinorToMajor(pay.Amount),
		Currency:      pay.Currency,
		Lines:         invLines,
		Billing:       billing,
		PaymentID:     paymentID,
		PaymentDate:   pay.CreatedAt,
	}

	if u.locker != nil {
		token, lockErr := u.locker.TryLock(ctx, lockKey(paymentID), u.cfg.LockTTL)
		if lockErr != nil {
			return nil, domain.ErrAlreadyProcessing
		}
		defer func() {
			if err := u.locker.Unlock(ctx, lockKey(paymentID), token); err != nil {
				log.Warn().Err(err).Msg("unlock failed, lock will expire on its own")
			}
		}()
	}

	// Pending placeholder rows before issuing, so an issuer failure can be
	// reflected in the audit trail. Best-effort.
	rowsReady := u.mirrorPending(ctx, &log, pay, billing, groups, sheet)

	// Narrow the duplicate-invocation window: re-read the marker right
	// before the one irreversible call. Not a guarantee without a locker.
	if n, ok, err := u.markers.Get(ctx, paymentID, model.MetaInvoiceNumber); err == nil && ok {
		log.Info().Str("invoice_number", n).Msg("marker appeared mid-run, another invocation won")
		return &Outcome{Status: OutcomeAlreadyDone, InvoiceNumber: n}, nil
	}

	number, err := u.issuer.Issue(ctx, rec)
	if err != nil {
		if rowsReady {
			if merr := u.ledger.UpdateStatus(ctx, paymentID, "", model.RowStatusError, sheet); merr != nil {
				log.Error().Err(merr).Msg("failed to record issuer error in ledger")
			}
		}
		return nil, fmt.Errorf("issue invoice: %w", err)
	}

	// Marker first, mirror second. If this write fails the invoice exists
	// unmarked and a retry WOULD duplicate it, so the failure is loud and
	// carries the invoice number for manual reconciliation.
	if err := u.markers.Set(ctx, paymentID, model.MetaInvoiceNumber, number); err != nil {
		log.Error().Err(err).Str("invoice_number", number).
			Msg("CRITICAL: invoice issued but marker write failed; do not blind-retry")
		return nil, fmt.Errorf("persist invoice marker (invoice %s exists): %w", number, err)
	}
	log.Info().Str("invoice_number", number).Msg("invoice issued and marked")

	out := &Outcome{Status: OutcomeIssued, InvoiceNumber: number}
	out.MirrorErr = u.mirrorIssued(ctx, &log, pay, billing, groups, sheet, number, rowsReady)
	return out, nil
}

// ProcessRefund issues the storno document for one refund, at most once.
// The cancellation mirrors the original purchase: lines and billing address
// are rebuilt from the original checkout context and the document carries
// the original payment date.
func (u *reconcileUC) ProcessRefund(ctx context.Context, refundID string) (*Outcome, error) {
	log := u.log.With().Str("refund_id", refundID).Logger()

	ref, err := u.gateway.GetRefund(ctx, refundID)
	if err != nil {
		return nil, fmt.Errorf("fetch refund: %w", err)
	}
	log = log.With().Str("payment_id", ref.PaymentID).Logger()

	pay, err := u.gateway.GetPayment(ctx, ref.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch originating payment: %w", err)
	}

	original := pay.InvoiceNumber()
	if original == "" {
		log.Info().Msg("originating payment was never invoiced, nothing to cancel")
		return &Outcome{Status: OutcomeSkipped, SkipReason: SkipNeverInvoiced}, nil
	}

	// Idempotency gate for the refund path.
	if n := pay.RefundInvoiceNumber(); n != "" {
		log.Info().Str("refund_invoice_number", n).Msg("refund invoice already exists, nothing to do")
		return &Outcome{Status: OutcomeAlreadyDone, InvoiceNumber: n}, nil
	}

	ctxt, err := u.gateway.GetCheckoutContext(ctx, ref.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch checkout context: %w", err)
	}
	if ctxt == nil {
		// An invoiced payment must have a checkout context; its absence
		// here is a data error, not a scope condition.
		return nil, fmt.Errorf("refund %s: originating checkout context: %w", refundID, domain.ErrNotFound)
	}
	if len(ctxt.Lines) == 0 {
		return nil, domain.ErrNoLineItems
	}

	invLines, _, sheet, err := u.deriveAll(ctx, &log, ctxt.Lines)
	if err != nil {
		return nil, err
	}

	rec := &model.InvoiceRecord{
		CustomerName:  ctxt.CustomerName,
		CustomerEmail: ctxt.CustomerEmail,
		TotalGross:    model.MinorToMajor(ref.Amount),
		Currency:      ref.Currency,
		Lines:         invLines,
		Billing:       model.BillingAddressFrom(ctxt),
		PaymentID:     ref.PaymentID,
		// Original payment date on the storno, not the refund date.
		PaymentDate: pay.CreatedAt,
	}

	if u.locker != nil {
		token, lockErr := u.locker.TryLock(ctx, lockKey(ref.PaymentID), u.cfg.LockTTL)
		if lockErr != nil {
			return nil, domain.ErrAlreadyProcessing
		}
		defer func() {
			if err := u.locker.Unlock(ctx, lockKey(ref.PaymentID), token); err != nil {
				log.Warn().Err(err).Msg("unlock failed, lock will expire on its own")
			}
		}()
	}

	if n, ok, err := u.markers.Get(ctx, ref.PaymentID, model.MetaRefundInvoiceNumber); err == nil && ok {
		log.Info().Str("refund_invoice_number", n).Msg("marker appeared mid-run, another invocation won")
		return &Outcome{Status: OutcomeAlreadyDone, InvoiceNumber: n}, nil
	}

	storno, err := u.issuer.Cancel(ctx, original, rec)
	if err != nil {
		return nil, fmt.Errorf("issue storno for %s: %w", original, err)
	}

	if err := u.markers.Set(ctx, ref.PaymentID, model.MetaRefundInvoiceNumber, storno); err != nil {
		log.Error().Err(err).Str("refund_invoice_number", storno).
			Msg("CRITICAL: storno issued but marker write failed; do not blind-retry")
		return nil, fmt.Errorf("persist refund marker (storno %s exists): %w", storno, err)
	}
	log.Info().Str("refund_invoice_number", storno).Str("cancelled", original).Msg("storno issued and marked")

	out := &Outcome{Status: OutcomeCancelled, InvoiceNumber: storno}
	if u.ledger != nil {
		if merr := u.ledger.UpdateStatus(ctx, ref.PaymentID, storno, model.RowStatusCancelled, sheet); merr != nil {
			log.Warn().Err(merr).Msg("ledger mirror update failed, storno is already authoritative")
			out.MirrorErr = merr
		}
	}
	return out, nil
}

// deriveAll runs the line derivation over every purchased line, fetching
// each product's tax configuration. The first product's sheet routes the
// whole payment, matching how the ledger has always grouped rows.
func (u *reconcileUC) deriveAll(ctx context.Context, log *zerolog.Logger, lines []model.PurchasedLine) ([]model.InvoiceLine, []model.LedgerGroup, string, error) {
	var (
		invLines []model.InvoiceLine
		groups   []model.LedgerGroup
		sheet    string
	)
	for idx, line := range lines {
		product, err := u.gateway.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, nil, "", fmt.Errorf("fetch product %s: %w", line.ProductID, err)
		}
		d := model.DeriveLines(line, *product, u.cfg.DefaultVATRate)
		if d.FallbackRate {
			log.Warn().Str("product_id", product.ID).Int("default_rate", u.cfg.DefaultVATRate).
				Msg("product has no usable vat_rate, using default")
		}
		// Strictly the first product's sheet routes the whole payment;
		// sheet names on later products are ignored.
		if idx == 0 {
			sheet = d.Ledger.SheetName
		}
		invLines = append(invLines, d.Invoice...)
		groups = append(groups, d.Ledger)
	}
	if sheet == "" {
		sheet = u.cfg.DefaultSheet
	}
	return invLines, groups, sheet, nil
}

// mirrorPending appends the Pending placeholder rows unless rows for the
// payment already exist (retry after a failed issue). Reports whether rows
// are in place for later status updates. Never fails the run.
func (u *reconcileUC) mirrorPending(ctx context.Context, log *zerolog.Logger, pay *model.PaymentEvent, billing model.BillingAddress, groups []model.LedgerGroup, sheet string) bool {
	if u.ledger == nil {
		log.Debug().Msg("ledger mirror disabled")
		return false
	}
	exists, err := u.ledger.RowExists(ctx, pay.ID, sheet)
	if err != nil {
		log.Warn().Err(err).Msg("ledger lookup failed, skipping pending rows")
		return false
	}
	if exists {
		log.Info().Msg("ledger rows already present, retrying invoice generation")
		return true
	}
	for _, g := range groups {
		row := rowFor(pay, billing, g)
		if err := u.ledger.AppendRow(ctx, row, sheet); err != nil {
			log.Warn().Err(err).Str("product", g.ProductName).Msg("pending row append failed")
			return false
		}
	}
	log.Info().Int("rows", len(groups)).Msg("pending ledger rows created")
	return true
}

// mirrorIssued records the issued invoice in the ledger after the marker is
// durable: updates the pending rows, or appends Issued rows when the
// pending write never happened. Returns the logged-only mirror error.
func (u *reconcileUC) mirrorIssued(ctx context.Context, log *zerolog.Logger, pay *model.PaymentEvent, billing model.BillingAddress, groups []model.LedgerGroup, sheet, number string, rowsReady bool) error {
	if u.ledger == nil {
		return nil
	}
	if rowsReady {
		if err := u.ledger.UpdateStatus(ctx, pay.ID, number, model.RowStatusIssued, sheet); err != nil {
			log.Warn().Err(err).Msg("ledger mirror update failed, invoice is already authoritative")
			return err
		}
		return nil
	}
	for _, g := range groups {
		row := rowFor(pay, billing, g)
		row.InvoiceNumber = number
		row.Status = model.RowStatusIssued
		if err := u.ledger.AppendRow(ctx, row, sheet); err != nil {
			log.Warn().Err(err).Str("product", g.ProductName).Msg("issued row append failed, invoice is already authoritative")
			return err
		}
	}
	return nil
}

func rowFor(pay *model.PaymentEvent, billing model.BillingAddress, g model.LedgerGroup) *model.LedgerRow {
	return &model.LedgerRow{
		Date:         pay.CreatedAt,
		CustomerName: billing.Name,
		Email:        billing.Email,
		Amount:       g.Gross,
		ProductName:  g.ProductName,
		Quantity:     g.Quantity,
		VATRate:      g.VATRate,
		Address:      billing.OneLine(),
		Status:       model.RowStatusPending,
		PaymentID:    pay.ID,
	}
}

func lockKey(paymentID string) string { return "invoice:" + paymentID }
