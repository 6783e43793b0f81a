package adapter

import (
	"context"

	"stripe-invoice-bridge/internal/domain/model"
)

// PaymentGateway is the hex port for the payment provider. All reads return
// fresh authoritative state; callers must not reuse webhook payload
// snapshots, which can be stale relative to concurrent processing.
type PaymentGateway interface {
	Name() string

	// GetPayment fetches the payment record including its metadata bag.
	GetPayment(ctx context.Context, paymentID string) (*model.PaymentEvent, error)
	// GetRefund fetches a refund and the id of its originating payment.
	GetRefund(ctx context.Context, refundID string) (*model.RefundEvent, error)
	// GetCheckoutContext resolves the checkout session that created the
	// payment. Returns (nil, nil) when the payment did not come from a
	// checkout flow at all; that is a scope condition, not an error.
	GetCheckoutContext(ctx context.Context, paymentID string) (*model.CheckoutContext, error)
	// GetProduct fetches a product with its tax configuration.
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	// SetMetadata merges key/value pairs into the payment's metadata bag.
	// Existing keys not named in meta are left untouched.
	SetMetadata(ctx context.Context, paymentID string, meta map[string]string) error
}
