// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stripe-invoice-bridge/internal/domain"
	"stripe-invoice-bridge/internal/domain/model"
	"stripe-invoice-bridge/internal/domain/ports/adapter"
	"stripe-invoice-bridge/internal/domain/ports/repository"
)

// MockGateway is a small in-memory payment gateway used by unit tests.
// Defaults behave like the provider (fresh reads, metadata merges); any
// method can be overridden per test via its Func field.
type MockGateway struct {
	mu        sync.Mutex
	payments  map[string]*model.PaymentEvent
	refunds   map[string]*model.RefundEvent
	checkouts map[string]*model.CheckoutContext // by payment id
	products  map[string]*model.Product

	GetPaymentCalls  int
	SetMetadataCalls int

	GetPaymentFunc         func(ctx context.Context, paymentID string) (*model.PaymentEvent, error)
	GetRefundFunc          func(ctx context.Context, refundID string) (*model.RefundEvent, error)
	GetCheckoutContextFunc func(ctx context.Context, paymentID string) (*model.CheckoutContext, error)
	GetProductFunc         func(ctx context.Context, productID string) (*model.Product, error)
	SetMetadataFunc        func(ctx context.Context, paymentID string, meta map[string]string) error
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func NewMockGateway() *MockGateway {
	return &MockGateway{
		payments:  map[string]*model.PaymentEvent{},
		refunds:   map[string]*model.RefundEvent{},
		checkouts: map[string]*model.CheckoutContext{},
		products:  map[string]*model.Product{},
	}
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) AddPayment(p *model.PaymentEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p.Metadata == nil {
		p.Metadata = map[string]string{}
	}
	g.payments[p.ID] = p
}

func (g *MockGateway) AddRefund(r *model.RefundEvent)          { g.refunds[r.ID] = r }
func (g *MockGateway) AddCheckout(paymentID string, c *model.CheckoutContext) {
	g.checkouts[paymentID] = c
}
func (g *MockGateway) AddProduct(p *model.Product) { g.products[p.ID] = p }

func (g *MockGateway) Metadata(paymentID string) map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := map[string]string{}
	if p, ok := g.payments[paymentID]; ok {
		for k, v := range p.Metadata {
			out[k] = v
		}
	}
	return out
}

func (g *MockGateway) GetPayment(ctx context.Context, paymentID string) (*model.PaymentEvent, error) {
	g.mu.Lock()
	g.GetPaymentCalls++
	g.mu.Unlock()
	if g.GetPaymentFunc != nil {
		return g.GetPaymentFunc(ctx, paymentID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	// Copy, including the bag: callers must never observe later writes
	// through a stale snapshot.
	cp := *p
	cp.Metadata = map[string]string{}
	for k, v := range p.Metadata {
		cp.Metadata[k] = v
	}
	return &cp, nil
}

func (g *MockGateway) GetRefund(ctx context.Context, refundID string) (*model.RefundEvent, error) {
	if g.GetRefundFunc != nil {
		return g.GetRefundFunc(ctx, refundID)
	}
	r, ok := g.refunds[refundID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (g *MockGateway) GetCheckoutContext(ctx context.Context, paymentID string) (*model.CheckoutContext, error) {
	if g.GetCheckoutContextFunc != nil {
		return g.GetCheckoutContextFunc(ctx, paymentID)
	}
	c, ok := g.checkouts[paymentID]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (g *MockGateway) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	if g.GetProductFunc != nil {
		return g.GetProductFunc(ctx, productID)
	}
	p, ok := g.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (g *MockGateway) SetMetadata(ctx context.Context, paymentID string, meta map[string]string) error {
	g.mu.Lock()
	g.SetMetadataCalls++
	g.mu.Unlock()
	if g.SetMetadataFunc != nil {
		return g.SetMetadataFunc(ctx, paymentID, meta)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	for k, v := range meta {
		p.Metadata[k] = v
	}
	return nil
}

// MockIssuer hands out sequential invoice numbers and records the records
// it was asked to issue.
type MockIssuer struct {
	mu          sync.Mutex
	seq         int
	IssueCalls  int
	CancelCalls int
	LastRecord  *model.InvoiceRecord
	LastStorno  string // original number passed to Cancel

	IssueFunc  func(ctx context.Context, rec *model.InvoiceRecord) (string, error)
	CancelFunc func(ctx context.Context, originalNumber string, rec *model.InvoiceRecord) (string, error)
}

var _ adapter.InvoiceIssuer = (*MockIssuer)(nil)

func (i *MockIssuer) Issue(ctx context.Context, rec *model.InvoiceRecord) (string, error) {
	i.mu.Lock()
	i.IssueCalls++
	i.LastRecord = rec
	i.mu.Unlock()
	if i.IssueFunc != nil {
		return i.IssueFunc(ctx, rec)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seq++
	return fmt.Sprintf("INV-2025-%d", i.seq), nil
}

func (i *MockIssuer) Cancel(ctx context.Context, originalNumber string, rec *model.InvoiceRecord) (string, error) {
	i.mu.Lock()
	i.CancelCalls++
	i.LastRecord = rec
	i.LastStorno = originalNumber
	i.mu.Unlock()
	if i.CancelFunc != nil {
		return i.CancelFunc(ctx, originalNumber, rec)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seq++
	return fmt.Sprintf("SZLA-ST-%d", i.seq), nil
}

// MockLedger keeps rows per sheet in memory.
type MockLedger struct {
	mu   sync.Mutex
	rows map[string][]*model.LedgerRow // by sheet

	AppendCalls int

	RowExistsFunc    func(ctx context.Context, paymentID, sheet string) (bool, error)
	AppendRowFunc    func(ctx context.Context, row *model.LedgerRow, sheet string) error
	UpdateStatusFunc func(ctx context.Context, paymentID, invoiceNumber string, status model.RowStatus, sheet string) error
}

var _ adapter.Ledger = (*MockLedger)(nil)

func NewMockLedger() *MockLedger {
	return &MockLedger{rows: map[string][]*model.LedgerRow{}}
}

func (l *MockLedger) Rows(sheet string) []*model.LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*model.LedgerRow(nil), l.rows[sheet]...)
}

func (l *MockLedger) RowExists(ctx context.Context, paymentID, sheet string) (bool, error) {
	if l.RowExistsFunc != nil {
		return l.RowExistsFunc(ctx, paymentID, sheet)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows[sheet] {
		if r.PaymentID == paymentID {
			return true, nil
		}
	}
	return false, nil
}

func (l *MockLedger) AppendRow(ctx context.Context, row *model.LedgerRow, sheet string) error {
	l.mu.Lock()
	l.AppendCalls++
	l.mu.Unlock()
	if l.AppendRowFunc != nil {
		return l.AppendRowFunc(ctx, row, sheet)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *row
	l.rows[sheet] = append(l.rows[sheet], &cp)
	return nil
}

func (l *MockLedger) UpdateStatus(ctx context.Context, paymentID, invoiceNumber string, status model.RowStatus, sheet string) error {
	if l.UpdateStatusFunc != nil {
		return l.UpdateStatusFunc(ctx, paymentID, invoiceNumber, status, sheet)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	matched := false
	for _, r := range l.rows[sheet] {
		if r.PaymentID == paymentID {
			r.InvoiceNumber = invoiceNumber
			r.Status = status
			matched = true
		}
	}
	if !matched {
		return domain.ErrRowNotFound
	}
	return nil
}

// MockLocker grants every lock unless told otherwise.
type MockLocker struct {
	mu          sync.Mutex
	LockCalls   int
	UnlockCalls int

	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var _ repository.Locker = (*MockLocker)(nil)

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	l.LockCalls++
	l.mu.Unlock()
	if l.TryLockFunc != nil {
		return l.TryLockFunc(ctx, key, ttl)
	}
	return "token-" + key, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	l.UnlockCalls++
	l.mu.Unlock()
	return nil
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
